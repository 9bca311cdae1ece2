package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/healthmap/healthmap-api/internal/models"
)

const userColumns = `id, name, email, email_verified, image, password, created_at, updated_at`

// CreateUser сохраняет пользователя и возвращает сохраненную запись.
// Нарушение уникальности email возвращается как ErrUserExists.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (id, name, email, password, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING ` + userColumns
	row := s.DB.QueryRowContext(ctx, query,
		user.ID, nullString(user.Name), user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetUserByEmail возвращает пользователя по email или ErrNotFound.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору или ErrNotFound.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// CreateProfile сохраняет профиль. Существование пользователя не проверяется:
// при его отсутствии запись отклонит внешний ключ.
// Повторный профиль того же пользователя возвращается как ErrConflict.
func (s *Storage) CreateProfile(ctx context.Context, p models.Profile) error {
	const op = "storage.CreateProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO profiles (id, user_id, first_name, last_name, date_of_birth, gender,
				  height, weight, activity_level, medical_conditions, allergies, medications,
				  emergency_contact_name, emergency_contact_phone, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := s.DB.ExecContext(ctx, query,
		p.ID, p.UserID, nullString(p.FirstName), nullString(p.LastName), nullTime(p.DateOfBirth),
		nullString(p.Gender), nullInt(p.Height), nullInt(p.Weight), nullString(p.ActivityLevel),
		nullString(p.MedicalConditions), nullString(p.Allergies), nullString(p.Medications),
		nullString(p.EmergencyContactName), nullString(p.EmergencyContactPhone),
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUserWithProfile одним запросом возвращает пользователя и его профиль.
// Профиль равен nil, если он еще не создан.
func (s *Storage) GetUserWithProfile(ctx context.Context, userID string) (*models.UserWithProfile, error) {
	const op = "storage.GetUserWithProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT u.id, u.name, u.email, u.email_verified, u.image, u.password, u.created_at, u.updated_at,
				  p.id, p.first_name, p.last_name, p.date_of_birth, p.gender, p.height, p.weight,
				  p.activity_level, p.medical_conditions, p.allergies, p.medications,
				  p.emergency_contact_name, p.emergency_contact_phone, p.created_at, p.updated_at
			  FROM users u
			  LEFT JOIN profiles p ON p.user_id = u.id
			  WHERE u.id = $1`

	var (
		res                                     models.UserWithProfile
		name, image, password                   sql.NullString
		emailVerified                           sql.NullTime
		pID, firstName, lastName, gender        sql.NullString
		activity, conditions, allergies, meds   sql.NullString
		contactName, contactPhone               sql.NullString
		dateOfBirth, profileCreated, profileUpd sql.NullTime
		height, weight                          sql.NullInt64
	)
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(
		&res.ID, &name, &res.Email, &emailVerified, &image, &password, &res.CreatedAt, &res.UpdatedAt,
		&pID, &firstName, &lastName, &dateOfBirth, &gender, &height, &weight,
		&activity, &conditions, &allergies, &meds,
		&contactName, &contactPhone, &profileCreated, &profileUpd,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res.Name = name.String
	res.Image = image.String
	res.PasswordHash = password.String
	res.EmailVerified = timePtr(emailVerified)

	if pID.Valid {
		res.Profile = &models.Profile{
			ID:                    pID.String,
			UserID:                res.ID,
			FirstName:             firstName.String,
			LastName:              lastName.String,
			DateOfBirth:           timePtr(dateOfBirth),
			Gender:                gender.String,
			Height:                intPtr(height),
			Weight:                intPtr(weight),
			ActivityLevel:         activity.String,
			MedicalConditions:     conditions.String,
			Allergies:             allergies.String,
			Medications:           meds.String,
			EmergencyContactName:  contactName.String,
			EmergencyContactPhone: contactPhone.String,
			CreatedAt:             profileCreated.Time,
			UpdatedAt:             profileUpd.Time,
		}
	}
	return &res, nil
}

// DeleteUser удаляет пользователя; зависимые записи удаляются каскадно.
func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	const op = "storage.DeleteUser"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
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

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                     models.User
		name, image, password sql.NullString
		emailVerified         sql.NullTime
	)
	if err := row.Scan(&u.ID, &name, &u.Email, &emailVerified, &image, &password,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	u.Image = image.String
	u.PasswordHash = password.String
	u.EmailVerified = timePtr(emailVerified)
	return &u, nil
}
