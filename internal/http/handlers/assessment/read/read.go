// Package read реализует HTTP-обработчик GET /api/assessments/{id}: анкета
// с измерениями, вопросами и вариантами ответов.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/models"
)

// Service описывает чтение анкеты.
type Service interface {
	Get(ctx context.Context, id string) (*models.Assessment, error)
}

// Handler отдает анкету по идентификатору.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Анкета
// @Tags Assessments
// @Produce  json
// @Param id path string true "Идентификатор анкеты"
// @Success 200 {object} models.Assessment
// @Failure 404 {object} response.ErrorResponse
// @Router /assessments/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.assessment.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to read assessment", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	render.JSON(w, r, a)
}
