package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/healthmap/healthmap-api/internal/models"
)

const assessmentColumns = `id, name, description, version, is_active, free_results_limit,
	paid_report_price, estimated_duration, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ListActiveAssessments возвращает активные анкеты без вопросов, по имени.
func (s *Storage) ListActiveAssessments(ctx context.Context) ([]models.Assessment, error) {
	const op = "storage.ListActiveAssessments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE is_active ORDER BY name, id`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetAssessment возвращает анкету вместе с измерениями, вопросами и вариантами
// ответов, упорядоченными по display_order.
func (s *Storage) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	const op = "storage.GetAssessment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	a, err := scanAssessment(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if a.Dimensions, err = s.listDimensions(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.Questions, err = s.listQuestions(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// CreateAssessment сохраняет анкету целиком в одной транзакции.
func (s *Storage) CreateAssessment(ctx context.Context, a models.Assessment) error {
	const op = "storage.CreateAssessment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO assessments (id, name, description, version, is_active,
				free_results_limit, paid_report_price, estimated_duration, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			a.ID, a.Name, nullString(a.Description), a.Version, a.IsActive, a.FreeResultsLimit,
			nullInt64(a.PaidReportPrice), nullInt(a.EstimatedDuration), a.CreatedAt, a.UpdatedAt)
		if err != nil {
			return err
		}

		for _, d := range a.Dimensions {
			_, err = tx.ExecContext(ctx, `INSERT INTO health_dimensions (id, assessment_id, name,
					description, display_order, color, icon, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				d.ID, a.ID, d.Name, nullString(d.Description), d.DisplayOrder,
				nullString(d.Color), nullString(d.Icon), d.CreatedAt)
			if err != nil {
				return err
			}
		}

		for _, q := range a.Questions {
			_, err = tx.ExecContext(ctx, `INSERT INTO assessment_questions (id, assessment_id,
					dimension_id, question_text, question_type, display_order, is_required, weight, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				q.ID, a.ID, nullStringPtr(q.DimensionID), q.QuestionText, string(q.QuestionType),
				q.DisplayOrder, q.IsRequired, q.Weight, q.CreatedAt)
			if err != nil {
				return err
			}
			for _, o := range q.Options {
				_, err = tx.ExecContext(ctx, `INSERT INTO question_options (id, question_id,
						option_text, option_value, display_order, created_at)
					VALUES ($1, $2, $3, $4, $5, $6)`,
					o.ID, q.ID, o.OptionText, o.OptionValue, o.DisplayOrder, o.CreatedAt)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateOptionValue меняет значение варианта ответа. База отклоняет изменение,
// если на вариант уже ссылаются ответы; тогда возвращается ErrConflict.
func (s *Storage) UpdateOptionValue(ctx context.Context, optionID string, value int) error {
	const op = "storage.UpdateOptionValue"

	res, err := s.DB.ExecContext(ctx, `UPDATE question_options SET option_value = $2 WHERE id = $1`,
		optionID, value)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Storage) listDimensions(ctx context.Context, assessmentID string) ([]models.HealthDimension, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, assessment_id, name, description, display_order,
			color, icon, created_at
		FROM health_dimensions WHERE assessment_id = $1 ORDER BY display_order, id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.HealthDimension
	for rows.Next() {
		var (
			d                        models.HealthDimension
			description, color, icon sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.AssessmentID, &d.Name, &description, &d.DisplayOrder,
			&color, &icon, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Description = description.String
		d.Color = color.String
		d.Icon = icon.String
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Storage) listQuestions(ctx context.Context, assessmentID string) ([]models.AssessmentQuestion, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, assessment_id, dimension_id, question_text,
			question_type, display_order, is_required, weight, created_at
		FROM assessment_questions WHERE assessment_id = $1 ORDER BY display_order, id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var (
		result []models.AssessmentQuestion
		index  = make(map[string]int)
	)
	for rows.Next() {
		var (
			q           models.AssessmentQuestion
			dimensionID sql.NullString
			qType       string
		)
		if err := rows.Scan(&q.ID, &q.AssessmentID, &dimensionID, &q.QuestionText, &qType,
			&q.DisplayOrder, &q.IsRequired, &q.Weight, &q.CreatedAt); err != nil {
			return nil, err
		}
		q.DimensionID = stringPtr(dimensionID)
		q.QuestionType = models.QuestionType(qType)
		index[q.ID] = len(result)
		result = append(result, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	optRows, err := s.DB.QueryContext(ctx, `SELECT o.id, o.question_id, o.option_text, o.option_value,
			o.display_order, o.created_at
		FROM question_options o
		JOIN assessment_questions q ON q.id = o.question_id
		WHERE q.assessment_id = $1
		ORDER BY o.question_id, o.display_order, o.id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = optRows.Close()
	}()

	for optRows.Next() {
		var o models.QuestionOption
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.OptionValue,
			&o.DisplayOrder, &o.CreatedAt); err != nil {
			return nil, err
		}
		if i, ok := index[o.QuestionID]; ok {
			result[i].Options = append(result[i].Options, o)
		}
	}
	return result, optRows.Err()
}

func scanAssessment(row rowScanner) (*models.Assessment, error) {
	var (
		a           models.Assessment
		description sql.NullString
		price       sql.NullInt64
		duration    sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.Name, &description, &a.Version, &a.IsActive, &a.FreeResultsLimit,
		&price, &duration, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Description = description.String
	a.PaidReportPrice = int64Ptr(price)
	a.EstimatedDuration = intPtr(duration)
	return &a, nil
}
