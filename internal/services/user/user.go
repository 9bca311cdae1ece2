// Package services содержит бизнес-логику работы с пользователями и их профилями.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/healthmap/healthmap-api/internal/lib/apperror"
	"github.com/healthmap/healthmap-api/internal/lib/password"
	"github.com/healthmap/healthmap-api/internal/lib/rabbitmq"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/metrics"
	"github.com/healthmap/healthmap-api/internal/models"
	"github.com/healthmap/healthmap-api/internal/storage"
)

var (
	ErrUserExists    = apperror.BadRequest("User with this email already exists")
	ErrCreateUser    = apperror.BadRequest("Failed to create user")
	ErrCreateProfile = apperror.BadRequest("Failed to create user profile")
)

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateProfile(ctx context.Context, profile models.Profile) error
	GetUserWithProfile(ctx context.Context, userID string) (*models.UserWithProfile, error)
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// UserService реализует регистрацию и чтение пользователей.
type UserService struct {
	repo      UserRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(repo UserRepository, publisher EventPublisher, m *metrics.Metrics, log *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// CreateUser регистрирует пользователя. Email сравнивается как есть, приводить
// его к нижнему регистру должен вызывающий. Пароль хранится только в виде
// bcrypt-хэша. Дубликат email возвращает ErrUserExists, любой другой сбой
// возвращает ErrCreateUser.
func (s *UserService) CreateUser(ctx context.Context, email, rawPassword, name string) (*models.User, error) {
	const op = "services.CreateUser"
	log := s.log.With(sl.Op(op))

	_, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		s.metrics.Registration(metrics.ResultDuplicate)
		return nil, ErrUserExists
	case !errors.Is(err, storage.ErrNotFound):
		log.Error("failed to check existing user", sl.Err(err))
		s.metrics.Registration(metrics.ResultFailure)
		return nil, ErrCreateUser
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		s.metrics.Registration(metrics.ResultFailure)
		return nil, ErrCreateUser
	}

	now := s.now().UTC()
	user, err := s.repo.CreateUser(ctx, models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			s.metrics.Registration(metrics.ResultDuplicate)
			return nil, ErrUserExists
		}
		log.Error("failed to create user", sl.Err(err))
		s.metrics.Registration(metrics.ResultFailure)
		return nil, ErrCreateUser
	}

	s.metrics.Registration(metrics.ResultSuccess)
	log.Info("user registered", slog.String("user_id", user.ID))

	event := rabbitmq.UserRegistered{UserID: user.ID, Email: user.Email, RegisteredAt: user.CreatedAt}
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingUserRegistered, event); err != nil {
		log.Warn("failed to publish user.registered", sl.Err(err))
	}

	return user, nil
}

// CreateUserProfile создает профиль пользователя. Существование пользователя
// заранее не проверяется, второй профиль отклоняется хранилищем.
func (s *UserService) CreateUserProfile(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error) {
	const op = "services.CreateUserProfile"

	now := s.now().UTC()
	profile := models.Profile{
		ID:                    uuid.NewString(),
		UserID:                userID,
		FirstName:             in.FirstName,
		LastName:              in.LastName,
		DateOfBirth:           in.DateOfBirth,
		Gender:                in.Gender,
		Height:                in.Height,
		Weight:                in.Weight,
		ActivityLevel:         in.ActivityLevel,
		MedicalConditions:     in.MedicalConditions,
		Allergies:             in.Allergies,
		Medications:           in.Medications,
		EmergencyContactName:  in.EmergencyContactName,
		EmergencyContactPhone: in.EmergencyContactPhone,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		s.log.Error("failed to create user profile", sl.Op(op), slog.String("user_id", userID), sl.Err(err))
		return nil, ErrCreateProfile
	}
	return &profile, nil
}

// GetUserByEmail возвращает пользователя или nil, если его нет.
// Ошибки хранилища логируются и тоже дают nil.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) *models.User {
	const op = "services.GetUserByEmail"

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("failed to fetch user by email", sl.Op(op), sl.Err(err))
		}
		return nil
	}
	return user
}

// GetUserByID возвращает пользователя или nil, если его нет.
func (s *UserService) GetUserByID(ctx context.Context, id string) *models.User {
	const op = "services.GetUserByID"

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("failed to fetch user by id", sl.Op(op), sl.Err(err))
		}
		return nil
	}
	return user
}

// GetUserWithProfile возвращает пользователя с профилем (профиль может быть
// nil) или nil, если пользователя нет.
func (s *UserService) GetUserWithProfile(ctx context.Context, userID string) *models.UserWithProfile {
	const op = "services.GetUserWithProfile"

	res, err := s.repo.GetUserWithProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("failed to fetch user with profile", sl.Op(op), sl.Err(err))
		}
		return nil
	}
	return res
}
