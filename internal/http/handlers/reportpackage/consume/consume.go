// Package consume реализует HTTP-обработчик POST /api/me/packages/{id}/reports:
// списание одного отчета с купленного пакета.
package consume

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
	"github.com/healthmap/healthmap-api/internal/models"
)

// Request — попытка, под которую выдается отчет, и получатель.
type Request struct {
	UserAssessmentID string `json:"userAssessmentId" validate:"required"`
	AssignedTo       string `json:"assignedTo" validate:"max=255"`
}

// Service описывает списание отчета с пакета.
type Service interface {
	ConsumeReport(ctx context.Context, userID, packagePurchaseID, userAssessmentID,
		assignedTo string) (*models.PurchasedReport, error)
}

// Handler списывает отчет с пакета текущего пользователя.
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
// @Summary Списать отчет с пакета
// @Tags Commerce
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор купленного пакета"
// @Param request body Request true "Попытка и получатель"
// @Success 201 {object} models.PurchasedReport
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Пакет исчерпан, просрочен или неактивен"
// @Router /me/packages/{id}/reports [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.reportpackage.consume"

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

	pr, err := h.service.ConsumeReport(r.Context(), userID, chi.URLParam(r, "id"), req.UserAssessmentID,
		req.AssignedTo)
	if err != nil {
		log.Info("report not consumed", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, pr)
}
