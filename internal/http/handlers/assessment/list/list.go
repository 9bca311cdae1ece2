// Package list реализует HTTP-обработчик GET /api/assessments: каталог
// активных анкет.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/models"
)

// Service описывает получение каталога анкет.
type Service interface {
	ListActive(ctx context.Context) ([]models.Assessment, error)
}

// Handler отдает список активных анкет.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Каталог анкет
// @Tags Assessments
// @Produce  json
// @Success 200 {object} map[string]any
// @Failure 500 {object} response.ErrorResponse
// @Router /assessments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.assessment.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	list, err := h.service.ListActive(r.Context())
	if err != nil {
		log.Error("failed to list assessments", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Assessment{}
	}

	render.JSON(w, r, map[string]any{
		"assessments": list,
	})
}
