// Package results реализует HTTP-обработчик GET /api/me/assessments/{id}/results.
//
// Без оплаченного полного отчета часть измерений отдается закрытой:
// без интерпретации и рекомендаций, с locked=true.
package results

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	services "github.com/healthmap/healthmap-api/internal/services/assessment"
)

// Service описывает чтение результатов.
type Service interface {
	Results(ctx context.Context, userID, userAssessmentID string) (*services.Results, error)
}

// Handler отдает результаты завершенной попытки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Результаты прохождения
// @Tags Assessments
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор попытки"
// @Success 200 {object} services.Results
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Попытка не завершена"
// @Router /me/assessments/{id}/results [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.assessment.results"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.WriteError(w, r, http.StatusUnauthorized, "User identification missing")
		return
	}

	res, err := h.service.Results(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		log.Info("failed to read results", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	render.JSON(w, r, res)
}
