// Package start реализует HTTP-обработчик POST /api/me/assessments: начало
// новой попытки прохождения анкеты.
package start

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/http/response"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/models"
)

// Request — входные данные. TrackingCode необязателен.
type Request struct {
	AssessmentID string `json:"assessmentId" validate:"required"`
	TrackingCode string `json:"trackingCode" validate:"max=64"`
}

// Service описывает начало попытки.
type Service interface {
	Start(ctx context.Context, userID, assessmentID, trackingCode string) (*models.UserAssessment, error)
}

// Handler начинает попытку текущего пользователя.
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
// @Summary Начать прохождение анкеты
// @Tags Assessments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body Request true "Анкета и код организации"
// @Success 201 {object} models.UserAssessment
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /me/assessments [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.assessment.start"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.WriteError(w, r, http.StatusUnauthorized, "User identification missing")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode request body", sl.Err(err))
		response.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		response.WriteError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	ua, err := h.service.Start(r.Context(), userID, req.AssessmentID, req.TrackingCode)
	if err != nil {
		log.Info("failed to start assessment", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ua)
}
