package models

import "time"

// QuestionType определяет способ ответа на вопрос.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeScale          QuestionType = "scale"
	QuestionTypeBoolean        QuestionType = "boolean"
)

// AssessmentStatus описывает состояние попытки прохождения анкеты.
type AssessmentStatus string

const (
	AssessmentInProgress AssessmentStatus = "in_progress"
	AssessmentCompleted  AssessmentStatus = "completed"
	AssessmentAbandoned  AssessmentStatus = "abandoned"
)

// Level задает качественную оценку по измерению.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Assessment — версионированная анкета.
type Assessment struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Version           string    `json:"version"`
	IsActive          bool      `json:"isActive"`
	FreeResultsLimit  int       `json:"freeResultsLimit"`            // Количество бесплатно раскрываемых измерений
	PaidReportPrice   *int64    `json:"paidReportPrice,omitempty"`   // Цена полного отчета в центах
	EstimatedDuration *int      `json:"estimatedDuration,omitempty"` // Минуты
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`

	Dimensions []HealthDimension    `json:"dimensions,omitempty"`
	Questions  []AssessmentQuestion `json:"questions,omitempty"`
}

// HealthDimension описывает ось оценки внутри анкеты.
type HealthDimension struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DisplayOrder int       `json:"displayOrder"`
	Color        string    `json:"color"`
	Icon         string    `json:"icon"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AssessmentQuestion — вопрос анкеты, опционально привязанный к измерению.
type AssessmentQuestion struct {
	ID           string       `json:"id"`
	AssessmentID string       `json:"assessmentId"`
	DimensionID  *string      `json:"dimensionId,omitempty"`
	QuestionText string       `json:"questionText"`
	QuestionType QuestionType `json:"questionType"`
	DisplayOrder int          `json:"displayOrder"`
	IsRequired   bool         `json:"isRequired"`
	Weight       int          `json:"weight"`
	CreatedAt    time.Time    `json:"createdAt"`

	Options []QuestionOption `json:"options,omitempty"`
}

// QuestionOption — вариант ответа с числовым значением для подсчета.
type QuestionOption struct {
	ID           string    `json:"id"`
	QuestionID   string    `json:"questionId"`
	OptionText   string    `json:"optionText"`
	OptionValue  int       `json:"optionValue"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserAssessment — попытка пользователя пройти анкету.
type UserAssessment struct {
	ID                     string           `json:"id"`
	UserID                 string           `json:"userId"`
	AssessmentID           string           `json:"assessmentId"`
	OrganizationTrackingID *string          `json:"organizationTrackingId,omitempty"`
	Status                 AssessmentStatus `json:"status"`
	StartedAt              time.Time        `json:"startedAt"`
	CompletedAt            *time.Time       `json:"completedAt,omitempty"`
	TotalScore             *int             `json:"totalScore,omitempty"`
	PercentageComplete     int              `json:"percentageComplete"`
	CreatedAt              time.Time        `json:"createdAt"`
	UpdatedAt              time.Time        `json:"updatedAt"`
}

// UserResponse хранит ответ на один вопрос в рамках попытки.
type UserResponse struct {
	ID               string    `json:"id"`
	UserAssessmentID string    `json:"userAssessmentId"`
	QuestionID       string    `json:"questionId"`
	OptionID         *string   `json:"optionId,omitempty"`
	ResponseValue    *int      `json:"responseValue,omitempty"`
	ResponseText     string    `json:"responseText"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AssessmentResult — рассчитанный результат по измерению.
type AssessmentResult struct {
	ID               string    `json:"id"`
	UserAssessmentID string    `json:"userAssessmentId"`
	DimensionID      string    `json:"dimensionId"`
	DimensionName    string    `json:"dimensionName"`
	DisplayOrder     int       `json:"displayOrder"`
	Score            int       `json:"score"`
	PercentageScore  int       `json:"percentageScore"`
	Level            Level     `json:"level"`
	Interpretation   string    `json:"interpretation"`
	Recommendations  string    `json:"recommendations"`
	CreatedAt        time.Time `json:"createdAt"`
}
