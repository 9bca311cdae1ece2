// Package respond реализует HTTP-обработчик POST /api/me/assessments/{id}/responses:
// сохранение ответа на вопрос.
package respond

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	services "github.com/healthmap/healthmap-api/internal/services/assessment"
)

// Service описывает сохранение ответа.
type Service interface {
	Answer(ctx context.Context, userID, userAssessmentID string, in services.AnswerInput) (int, error)
}

// Handler сохраняет ответ в попытке текущего пользователя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Ответ на вопрос
// @Description Повторный ответ на тот же вопрос заменяет предыдущий.
// @Tags Assessments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор попытки"
// @Param request body services.AnswerInput true "Ответ"
// @Success 200 {object} map[string]int "percentageComplete"
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /me/assessments/{id}/responses [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.assessment.respond"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.WriteError(w, r, http.StatusUnauthorized, "User identification missing")
		return
	}

	var in services.AnswerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.Warn("failed to decode request body", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		response.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	pct, err := h.service.Answer(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		log.Info("answer rejected", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]int{
		"percentageComplete": pct,
	})
}
