// Package services содержит логику входа по паролю и проверки JWT.
package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/healthmap/healthmap-api/internal/lib/apperror"
	"github.com/healthmap/healthmap-api/internal/lib/jwt"
	"github.com/healthmap/healthmap-api/internal/lib/password"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/metrics"
	"github.com/healthmap/healthmap-api/internal/models"
	"github.com/healthmap/healthmap-api/internal/storage"
)

var (
	ErrInvalidCredentials = apperror.Unauthorized("Invalid email or password")
	ErrTooManyAttempts    = apperror.TooManyRequests("Too many login attempts, try again later")
	ErrInvalidToken       = apperror.Unauthorized("Invalid or expired token")
	ErrLogin              = apperror.New(http.StatusInternalServerError, "Internal server error", nil)
)

// UserRepository описывает поиск пользователя для входа.
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Throttle ограничивает неудачные попытки входа.
type Throttle interface {
	IsBlocked(ctx context.Context, email, ip string) (bool, error)
	RecordFailure(ctx context.Context, email, ip string) (bool, error)
	Clear(ctx context.Context, email, ip string) error
}

// AuthService отвечает за вход и валидацию JWT.
type AuthService struct {
	users    UserRepository
	throttle Throttle
	jwtMaker jwt.Maker
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, throttle Throttle, jwtMaker jwt.Maker, m *metrics.Metrics,
	log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		throttle: throttle,
		jwtMaker: jwtMaker,
		metrics:  m,
		log:      log,
	}
}

// Login проверяет пароль и выдает JWT. Сбои redis не мешают входу.
func (s *AuthService) Login(ctx context.Context, email, rawPassword, clientIP string) (string, *models.User, error) {
	const op = "services.Login"
	log := s.log.With(sl.Op(op))
	email = strings.ToLower(strings.TrimSpace(email))

	blocked, err := s.throttle.IsBlocked(ctx, email, clientIP)
	if err != nil {
		log.Warn("login throttle unavailable", sl.Err(err))
	}
	if blocked {
		s.metrics.Login(metrics.ResultBlocked)
		return "", nil, ErrTooManyAttempts
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error("failed to fetch user", sl.Err(err))
		s.metrics.Login(metrics.ResultFailure)
		return "", nil, ErrLogin
	}
	if user == nil || user.PasswordHash == "" || password.CompareHash(user.PasswordHash, rawPassword) != nil {
		s.metrics.Login(metrics.ResultInvalid)
		nowBlocked, err := s.throttle.RecordFailure(ctx, email, clientIP)
		if err != nil {
			log.Warn("failed to record login failure", sl.Err(err))
		}
		if nowBlocked {
			log.Info("login blocked after repeated failures", slog.String("ip", clientIP))
		}
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwtMaker.GenerateToken(user.ID, user.Email)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		s.metrics.Login(metrics.ResultFailure)
		return "", nil, ErrLogin
	}

	if err := s.throttle.Clear(ctx, email, clientIP); err != nil {
		log.Warn("failed to clear login attempts", sl.Err(err))
	}
	s.metrics.Login(metrics.ResultSuccess)
	return token, user, nil
}

// ValidateToken проверяет JWT и возвращает его claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
