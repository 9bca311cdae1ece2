package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/healthmap/healthmap-api/internal/models"
)

// CreateUserAssessment сохраняет новую попытку. Если указан код отслеживания,
// счетчик участников увеличивается в той же транзакции; код должен быть
// активен и относиться к той же анкете, иначе возвращается ErrMismatch.
func (s *Storage) CreateUserAssessment(ctx context.Context, ua models.UserAssessment) error {
	const op = "storage.CreateUserAssessment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if ua.OrganizationTrackingID != nil {
			res, err := tx.ExecContext(ctx, `UPDATE organization_tracking
				SET total_participants = total_participants + 1, updated_at = $3
				WHERE id = $1 AND assessment_id = $2 AND is_active`,
				*ua.OrganizationTrackingID, ua.AssessmentID, ua.CreatedAt)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				return ErrMismatch
			}
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO user_assessments (id, user_id, assessment_id,
				organization_tracking_id, status, started_at, percentage_complete, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			ua.ID, ua.UserID, ua.AssessmentID, nullStringPtr(ua.OrganizationTrackingID),
			string(ua.Status), ua.StartedAt, ua.PercentageComplete, ua.CreatedAt, ua.UpdatedAt)
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUserAssessment возвращает попытку по идентификатору.
func (s *Storage) GetUserAssessment(ctx context.Context, id string) (*models.UserAssessment, error) {
	const op = "storage.GetUserAssessment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, assessment_id, organization_tracking_id, status, started_at,
				  completed_at, total_score, percentage_complete, created_at, updated_at
			  FROM user_assessments WHERE id = $1`
	var (
		ua          models.UserAssessment
		trackingID  sql.NullString
		status      string
		completedAt sql.NullTime
		totalScore  sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&ua.ID, &ua.UserID, &ua.AssessmentID, &trackingID,
		&status, &ua.StartedAt, &completedAt, &totalScore, &ua.PercentageComplete, &ua.CreatedAt, &ua.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ua.OrganizationTrackingID = stringPtr(trackingID)
	ua.Status = models.AssessmentStatus(status)
	ua.CompletedAt = timePtr(completedAt)
	ua.TotalScore = intPtr(totalScore)
	return &ua, nil
}

// SaveResponse сохраняет или заменяет ответ на вопрос. Запись выполняется только
// если попытка в статусе in_progress, вопрос принадлежит анкете попытки, а
// вариант ответа (если задан) принадлежит вопросу. Иначе возвращается ErrMismatch.
func (s *Storage) SaveResponse(ctx context.Context, r models.UserResponse) error {
	const op = "storage.SaveResponse"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO user_responses (id, user_assessment_id, question_id, option_id,
				  response_value, response_text, created_at)
			  SELECT $1::text, ua.id, q.id, $4::text, $5::integer, $6::text, $7::timestamptz
			  FROM user_assessments ua
			  JOIN assessment_questions q ON q.assessment_id = ua.assessment_id AND q.id = $3
			  WHERE ua.id = $2 AND ua.status = 'in_progress'
				AND ($4::text IS NULL OR EXISTS (
					SELECT 1 FROM question_options o WHERE o.id = $4::text AND o.question_id = q.id))
			  ON CONFLICT (user_assessment_id, question_id) DO UPDATE
			  SET option_id = EXCLUDED.option_id,
				  response_value = EXCLUDED.response_value,
				  response_text = EXCLUDED.response_text,
				  created_at = EXCLUDED.created_at`
	res, err := s.DB.ExecContext(ctx, query, r.ID, r.UserAssessmentID, r.QuestionID,
		nullStringPtr(r.OptionID), nullInt(r.ResponseValue), nullString(r.ResponseText), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	return nil
}

// ListResponses возвращает ответы попытки.
func (s *Storage) ListResponses(ctx context.Context, userAssessmentID string) ([]models.UserResponse, error) {
	const op = "storage.ListResponses"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_assessment_id, question_id, option_id, response_value, response_text, created_at
			  FROM user_responses WHERE user_assessment_id = $1 ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, userAssessmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.UserResponse
	for rows.Next() {
		var (
			r        models.UserResponse
			optionID sql.NullString
			value    sql.NullInt64
			text     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserAssessmentID, &r.QuestionID, &optionID, &value, &text,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.OptionID = stringPtr(optionID)
		r.ResponseValue = intPtr(value)
		r.ResponseText = text.String
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountResponses возвращает количество вопросов, на которые дан ответ.
func (s *Storage) CountResponses(ctx context.Context, userAssessmentID string) (int, error) {
	const op = "storage.CountResponses"

	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT question_id) FROM user_responses WHERE user_assessment_id = $1`,
		userAssessmentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// UpdateProgress обновляет процент заполнения незавершенной попытки.
func (s *Storage) UpdateProgress(ctx context.Context, userAssessmentID string, percentage int, now time.Time) error {
	const op = "storage.UpdateProgress"

	_, err := s.DB.ExecContext(ctx, `UPDATE user_assessments
		SET percentage_complete = $2, updated_at = $3
		WHERE id = $1 AND status = 'in_progress'`, userAssessmentID, percentage, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CompleteUserAssessment в одной транзакции переводит попытку в completed,
// сохраняет результаты по измерениям и увеличивает счетчик завершений у
// организации. Если попытка уже не in_progress, возвращается ErrConflict.
func (s *Storage) CompleteUserAssessment(ctx context.Context, userAssessmentID string, totalScore int,
	results []models.AssessmentResult, completedAt time.Time) error {
	const op = "storage.CompleteUserAssessment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var trackingID sql.NullString
		err := tx.QueryRowContext(ctx, `UPDATE user_assessments
			SET status = 'completed', completed_at = $2, total_score = $3,
				percentage_complete = 100, updated_at = $2
			WHERE id = $1 AND status = 'in_progress'
			RETURNING organization_tracking_id`, userAssessmentID, completedAt, totalScore).Scan(&trackingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrConflict
			}
			return err
		}

		for _, r := range results {
			_, err = tx.ExecContext(ctx, `INSERT INTO assessment_results (id, user_assessment_id,
					dimension_id, score, percentage_score, level, interpretation, recommendations, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				r.ID, userAssessmentID, r.DimensionID, r.Score, r.PercentageScore, string(r.Level),
				nullString(r.Interpretation), nullString(r.Recommendations), completedAt)
			if err != nil {
				return err
			}
		}

		if trackingID.Valid {
			_, err = tx.ExecContext(ctx, `UPDATE organization_tracking
				SET completed_assessments = completed_assessments + 1, updated_at = $2
				WHERE id = $1`, trackingID.String, completedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetUserAssessmentStatus переводит попытку из статуса from в статус to.
// Если попытка не в статусе from, возвращается ErrConflict.
func (s *Storage) SetUserAssessmentStatus(ctx context.Context, id string, from, to models.AssessmentStatus,
	now time.Time) error {
	const op = "storage.SetUserAssessmentStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE user_assessments SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`, id, string(from), string(to), now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return nil
}

// ListResults возвращает результаты попытки в порядке отображения измерений.
func (s *Storage) ListResults(ctx context.Context, userAssessmentID string) ([]models.AssessmentResult, error) {
	const op = "storage.ListResults"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT r.id, r.user_assessment_id, r.dimension_id, d.name, d.display_order, r.score,
				  r.percentage_score, r.level, r.interpretation, r.recommendations, r.created_at
			  FROM assessment_results r
			  JOIN health_dimensions d ON d.id = r.dimension_id
			  WHERE r.user_assessment_id = $1
			  ORDER BY d.display_order, d.id`
	rows, err := s.DB.QueryContext(ctx, query, userAssessmentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.AssessmentResult
	for rows.Next() {
		var (
			r                             models.AssessmentResult
			level, interp, recommendation sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserAssessmentID, &r.DimensionID, &r.DimensionName, &r.DisplayOrder,
			&r.Score, &r.PercentageScore, &level, &interp, &recommendation, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.Level = models.Level(level.String)
		r.Interpretation = interp.String
		r.Recommendations = recommendation.String
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
