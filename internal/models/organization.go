package models

import "time"

// OrganizationTracking позволяет работодателю раздавать анкету сотрудникам
// по коду и считать прохождения.
type OrganizationTracking struct {
	ID                   string    `json:"id"`
	OrganizationName     string    `json:"organizationName"`
	ContactEmail         string    `json:"contactEmail"`
	ContactName          string    `json:"contactName"`
	AssessmentID         string    `json:"assessmentId"`
	TrackingCode         string    `json:"trackingCode"`
	IsActive             bool      `json:"isActive"`
	TotalParticipants    int       `json:"totalParticipants"`
	CompletedAssessments int       `json:"completedAssessments"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
