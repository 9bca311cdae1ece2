package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/healthmap/healthmap-api/internal/models"
)

// CreateTracking сохраняет код отслеживания организации.
func (s *Storage) CreateTracking(ctx context.Context, t models.OrganizationTracking) error {
	const op = "storage.CreateTracking"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO organization_tracking (id, organization_name, contact_email, contact_name,
				  assessment_id, tracking_code, is_active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, query, t.ID, t.OrganizationName, t.ContactEmail,
		nullString(t.ContactName), t.AssessmentID, t.TrackingCode, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetTrackingByCode ищет запись отслеживания по коду.
func (s *Storage) GetTrackingByCode(ctx context.Context, code string) (*models.OrganizationTracking, error) {
	const op = "storage.GetTrackingByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, organization_name, contact_email, contact_name, assessment_id, tracking_code,
				  is_active, total_participants, completed_assessments, created_at, updated_at
			  FROM organization_tracking WHERE tracking_code = $1`
	var (
		t           models.OrganizationTracking
		contactName sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, query, code).Scan(&t.ID, &t.OrganizationName, &t.ContactEmail,
		&contactName, &t.AssessmentID, &t.TrackingCode, &t.IsActive, &t.TotalParticipants,
		&t.CompletedAssessments, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.ContactName = contactName.String
	return &t, nil
}
