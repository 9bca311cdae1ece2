// Package abandon реализует HTTP-обработчик POST /api/me/assessments/{id}/abandon.
package abandon

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
)

// Service описывает отказ от попытки.
type Service interface {
	Abandon(ctx context.Context, userID, userAssessmentID string) error
}

// Handler переводит попытку в abandoned.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отказаться от прохождения
// @Tags Assessments
// @Security BearerAuth
// @Param id path string true "Идентификатор попытки"
// @Success 204
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /me/assessments/{id}/abandon [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.assessment.abandon"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.WriteError(w, r, http.StatusUnauthorized, "User identification missing")
		return
	}

	if err := h.service.Abandon(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		log.Info("failed to abandon assessment", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
