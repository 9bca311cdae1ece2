package login

import (
	"context"

	"github.com/healthmap/healthmap-api/internal/models"
)

// Service описывает вход по email и паролю.
type Service interface {
	Login(ctx context.Context, email, password, clientIP string) (string, *models.User, error)
}
