// Package services содержит бизнес-логику прохождения анкет и подсчета результатов.
package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/healthmap/healthmap-api/internal/lib/apperror"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/metrics"
	"github.com/healthmap/healthmap-api/internal/models"
	"github.com/healthmap/healthmap-api/internal/storage"
)

var (
	ErrAssessmentNotFound = apperror.NotFound("Assessment not found")
	ErrAssessmentInactive = apperror.BadRequest("Assessment is not active")
	ErrTrackingInvalid    = apperror.BadRequest("Invalid tracking code")
	ErrAttemptNotFound    = apperror.NotFound("Assessment attempt not found")
	ErrAttemptClosed      = apperror.Conflict("Assessment attempt is not in progress")
	ErrInvalidAnswer      = apperror.BadRequest("Invalid answer")
	ErrIncomplete         = apperror.BadRequest("All required questions must be answered")
	ErrNotCompleted       = apperror.Conflict("Assessment attempt is not completed")
	ErrInternal           = apperror.New(http.StatusInternalServerError, "Internal server error", nil)
)

// Repository описывает хранилище анкет и попыток.
type Repository interface {
	ListActiveAssessments(ctx context.Context) ([]models.Assessment, error)
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)
	GetTrackingByCode(ctx context.Context, code string) (*models.OrganizationTracking, error)
	CreateUserAssessment(ctx context.Context, ua models.UserAssessment) error
	GetUserAssessment(ctx context.Context, id string) (*models.UserAssessment, error)
	SaveResponse(ctx context.Context, r models.UserResponse) error
	CountResponses(ctx context.Context, userAssessmentID string) (int, error)
	UpdateProgress(ctx context.Context, userAssessmentID string, percentage int, now time.Time) error
	ListResponses(ctx context.Context, userAssessmentID string) ([]models.UserResponse, error)
	CompleteUserAssessment(ctx context.Context, userAssessmentID string, totalScore int,
		results []models.AssessmentResult, completedAt time.Time) error
	SetUserAssessmentStatus(ctx context.Context, id string, from, to models.AssessmentStatus, now time.Time) error
	ListResults(ctx context.Context, userAssessmentID string) ([]models.AssessmentResult, error)
	HasCompletedPurchase(ctx context.Context, userID, userAssessmentID string) (bool, error)
}

// AnswerInput — ответ на один вопрос.
type AnswerInput struct {
	QuestionID string  `json:"questionId" validate:"required"`
	OptionID   *string `json:"optionId,omitempty"`
	Value      *int    `json:"value,omitempty"`
	Text       string  `json:"text,omitempty" validate:"max=2000"`
}

// DimensionResult — результат по измерению. Закрытые результаты не содержат
// интерпретации и рекомендаций.
type DimensionResult struct {
	models.AssessmentResult
	Locked bool `json:"locked"`
}

// Results — результаты завершенной попытки.
type Results struct {
	UserAssessmentID string            `json:"userAssessmentId"`
	AssessmentID     string            `json:"assessmentId"`
	TotalScore       int               `json:"totalScore"`
	FullReport       bool              `json:"fullReport"`
	Dimensions       []DimensionResult `json:"dimensions"`
}

// AssessmentService управляет жизненным циклом попытки.
type AssessmentService struct {
	repo    Repository
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewAssessmentService создает новый экземпляр AssessmentService.
func NewAssessmentService(repo Repository, m *metrics.Metrics, log *slog.Logger) *AssessmentService {
	return &AssessmentService{
		repo:    repo,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// ListActive возвращает активные анкеты.
func (s *AssessmentService) ListActive(ctx context.Context) ([]models.Assessment, error) {
	const op = "services.ListActive"

	list, err := s.repo.ListActiveAssessments(ctx)
	if err != nil {
		s.log.Error("failed to list assessments", sl.Op(op), sl.Err(err))
		return nil, ErrInternal
	}
	return list, nil
}

// Get возвращает анкету с вопросами.
func (s *AssessmentService) Get(ctx context.Context, id string) (*models.Assessment, error) {
	const op = "services.Get"

	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAssessmentNotFound
		}
		s.log.Error("failed to get assessment", sl.Op(op), sl.Err(err))
		return nil, ErrInternal
	}
	return a, nil
}

// Start начинает новую попытку. Код отслеживания необязателен; если он
// задан, он должен быть активен и относиться к той же анкете.
func (s *AssessmentService) Start(ctx context.Context, userID, assessmentID, trackingCode string) (*models.UserAssessment, error) {
	const op = "services.Start"
	log := s.log.With(sl.Op(op), slog.String("assessment_id", assessmentID))

	a, err := s.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, ErrAssessmentInactive
	}

	now := s.now().UTC()
	ua := models.UserAssessment{
		ID:           uuid.NewString(),
		UserID:       userID,
		AssessmentID: a.ID,
		Status:       models.AssessmentInProgress,
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if trackingCode != "" {
		tr, err := s.repo.GetTrackingByCode(ctx, trackingCode)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrTrackingInvalid
			}
			log.Error("failed to get tracking code", sl.Err(err))
			return nil, ErrInternal
		}
		if !tr.IsActive || tr.AssessmentID != a.ID {
			return nil, ErrTrackingInvalid
		}
		ua.OrganizationTrackingID = &tr.ID
	}

	if err := s.repo.CreateUserAssessment(ctx, ua); err != nil {
		if errors.Is(err, storage.ErrMismatch) {
			return nil, ErrTrackingInvalid
		}
		log.Error("failed to create attempt", sl.Err(err))
		return nil, ErrInternal
	}

	log.Info("assessment started", slog.String("user_assessment_id", ua.ID))
	return &ua, nil
}

// Answer сохраняет ответ и возвращает обновленный процент заполнения.
func (s *AssessmentService) Answer(ctx context.Context, userID, userAssessmentID string, in AnswerInput) (int, error) {
	const op = "services.Answer"
	log := s.log.With(sl.Op(op), slog.String("user_assessment_id", userAssessmentID))

	ua, a, err := s.openAttempt(ctx, userID, userAssessmentID)
	if err != nil {
		return 0, err
	}

	q := findQuestion(a, in.QuestionID)
	if q == nil {
		return 0, ErrInvalidAnswer
	}
	value, err := answerValue(q, in)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	err = s.repo.SaveResponse(ctx, models.UserResponse{
		ID:               uuid.NewString(),
		UserAssessmentID: ua.ID,
		QuestionID:       q.ID,
		OptionID:         in.OptionID,
		ResponseValue:    &value,
		ResponseText:     in.Text,
		CreatedAt:        now,
	})
	if err != nil {
		if errors.Is(err, storage.ErrMismatch) {
			return 0, ErrAttemptClosed
		}
		log.Error("failed to save response", sl.Err(err))
		return 0, ErrInternal
	}

	answered, err := s.repo.CountResponses(ctx, ua.ID)
	if err != nil {
		log.Error("failed to count responses", sl.Err(err))
		return 0, ErrInternal
	}
	pct := 0
	if len(a.Questions) > 0 {
		pct = min(answered*100/len(a.Questions), 100)
	}
	if err := s.repo.UpdateProgress(ctx, ua.ID, pct, now); err != nil {
		log.Error("failed to update progress", sl.Err(err))
		return 0, ErrInternal
	}
	return pct, nil
}

// Complete проверяет, что на все обязательные вопросы есть ответ, считает
// баллы и завершает попытку.
func (s *AssessmentService) Complete(ctx context.Context, userID, userAssessmentID string) (*Results, error) {
	const op = "services.Complete"
	log := s.log.With(sl.Op(op), slog.String("user_assessment_id", userAssessmentID))

	ua, a, err := s.openAttempt(ctx, userID, userAssessmentID)
	if err != nil {
		return nil, err
	}

	responses, err := s.repo.ListResponses(ctx, ua.ID)
	if err != nil {
		log.Error("failed to list responses", sl.Err(err))
		return nil, ErrInternal
	}
	answered := make(map[string]bool, len(responses))
	for _, r := range responses {
		answered[r.QuestionID] = true
	}
	for _, q := range a.Questions {
		if q.IsRequired && !answered[q.ID] {
			return nil, ErrIncomplete
		}
	}

	card := Score(a, responses)
	now := s.now().UTC()
	results := make([]models.AssessmentResult, 0, len(card.Dimensions))
	for _, d := range card.Dimensions {
		interpretation, recommendations := Interpret(d.Name, d.Level)
		results = append(results, models.AssessmentResult{
			ID:               uuid.NewString(),
			UserAssessmentID: ua.ID,
			DimensionID:      d.DimensionID,
			DimensionName:    d.Name,
			DisplayOrder:     d.DisplayOrder,
			Score:            d.Score,
			PercentageScore:  d.Percentage,
			Level:            d.Level,
			Interpretation:   interpretation,
			Recommendations:  recommendations,
			CreatedAt:        now,
		})
	}

	if err := s.repo.CompleteUserAssessment(ctx, ua.ID, card.Total, results, now); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrAttemptClosed
		}
		log.Error("failed to complete attempt", sl.Err(err))
		return nil, ErrInternal
	}

	s.metrics.AssessmentCompleted()
	log.Info("assessment completed", slog.Int("total_score", card.Total))
	return s.Results(ctx, userID, ua.ID)
}

// Abandon переводит попытку в abandoned.
func (s *AssessmentService) Abandon(ctx context.Context, userID, userAssessmentID string) error {
	const op = "services.Abandon"

	ua, err := s.attempt(ctx, userID, userAssessmentID)
	if err != nil {
		return err
	}
	err = s.repo.SetUserAssessmentStatus(ctx, ua.ID, models.AssessmentInProgress, models.AssessmentAbandoned,
		s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrAttemptClosed
		}
		s.log.Error("failed to abandon attempt", sl.Op(op), sl.Err(err))
		return ErrInternal
	}
	return nil
}

// Results возвращает результаты завершенной попытки. Без оплаченного полного
// отчета раскрываются только первые FreeResultsLimit измерений.
func (s *AssessmentService) Results(ctx context.Context, userID, userAssessmentID string) (*Results, error) {
	const op = "services.Results"
	log := s.log.With(sl.Op(op), slog.String("user_assessment_id", userAssessmentID))

	ua, err := s.attempt(ctx, userID, userAssessmentID)
	if err != nil {
		return nil, err
	}
	if ua.Status != models.AssessmentCompleted {
		return nil, ErrNotCompleted
	}

	a, err := s.Get(ctx, ua.AssessmentID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListResults(ctx, ua.ID)
	if err != nil {
		log.Error("failed to list results", sl.Err(err))
		return nil, ErrInternal
	}
	paid, err := s.repo.HasCompletedPurchase(ctx, userID, ua.ID)
	if err != nil {
		log.Error("failed to check purchase", sl.Err(err))
		return nil, ErrInternal
	}

	res := &Results{
		UserAssessmentID: ua.ID,
		AssessmentID:     ua.AssessmentID,
		FullReport:       paid,
	}
	if ua.TotalScore != nil {
		res.TotalScore = *ua.TotalScore
	}
	for i, r := range list {
		locked := !paid && i >= a.FreeResultsLimit
		if locked {
			r.Interpretation = ""
			r.Recommendations = ""
		}
		res.Dimensions = append(res.Dimensions, DimensionResult{AssessmentResult: r, Locked: locked})
	}
	return res, nil
}

// attempt загружает попытку пользователя. Чужая попытка неотличима от отсутствующей.
func (s *AssessmentService) attempt(ctx context.Context, userID, id string) (*models.UserAssessment, error) {
	ua, err := s.repo.GetUserAssessment(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		s.log.Error("failed to get attempt", sl.Op("services.attempt"), sl.Err(err))
		return nil, ErrInternal
	}
	if ua.UserID != userID {
		return nil, ErrAttemptNotFound
	}
	return ua, nil
}

func (s *AssessmentService) openAttempt(ctx context.Context, userID, id string) (*models.UserAssessment, *models.Assessment, error) {
	ua, err := s.attempt(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if ua.Status != models.AssessmentInProgress {
		return nil, nil, ErrAttemptClosed
	}
	a, err := s.Get(ctx, ua.AssessmentID)
	if err != nil {
		return nil, nil, err
	}
	return ua, a, nil
}

func findQuestion(a *models.Assessment, id string) *models.AssessmentQuestion {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}

// answerValue проверяет ответ по типу вопроса и возвращает его числовое значение.
func answerValue(q *models.AssessmentQuestion, in AnswerInput) (int, error) {
	if len(q.Options) > 0 {
		if in.OptionID == nil {
			return 0, ErrInvalidAnswer
		}
		for _, o := range q.Options {
			if o.ID == *in.OptionID {
				return o.OptionValue, nil
			}
		}
		return 0, ErrInvalidAnswer
	}

	if in.OptionID != nil || in.Value == nil {
		return 0, ErrInvalidAnswer
	}
	v := *in.Value
	switch q.QuestionType {
	case models.QuestionTypeBoolean:
		if v != 0 && v != 1 {
			return 0, ErrInvalidAnswer
		}
	case models.QuestionTypeScale:
		if v < 0 || v > DefaultScaleMax {
			return 0, ErrInvalidAnswer
		}
	default:
		return 0, ErrInvalidAnswer
	}
	return v, nil
}
