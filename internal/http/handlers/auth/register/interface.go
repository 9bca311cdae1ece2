package register

import (
	"context"

	"github.com/healthmap/healthmap-api/internal/models"
)

// Service описывает регистрацию пользователя.
type Service interface {
	CreateUser(ctx context.Context, email, password, name string) (*models.User, error)
}
