// Package me реализует HTTP-обработчик GET /api/me: текущий пользователь
// вместе с профилем.
package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/models"
)

// Service описывает чтение пользователя с профилем.
type Service interface {
	GetUserWithProfile(ctx context.Context, userID string) *models.UserWithProfile
}

// Response — тело успешного ответа. Profile равен null, если профиль не создан.
type Response struct {
	User    response.User   `json:"user"`
	Profile *models.Profile `json:"profile"`
}

// Handler отдает текущего пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Текущий пользователь
// @Tags User
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} response.ErrorResponse "Нет токена"
// @Failure 404 {object} response.ErrorResponse "Пользователь удален"
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.me"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.WriteError(w, r, http.StatusUnauthorized, "User identification missing")
		return
	}

	res := h.service.GetUserWithProfile(r.Context(), userID)
	if res == nil {
		log.Info("user not found", slog.String("user_id", userID))
		response.WriteError(w, r, http.StatusNotFound, "User not found")
		return
	}

	render.JSON(w, r, Response{
		User:    response.NewUser(&res.User),
		Profile: res.Profile,
	})
}
