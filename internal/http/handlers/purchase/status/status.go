// Package status реализует HTTP-обработчик PATCH /api/me/purchases/{id}/status:
// смена статуса оплаты покупки.
package status

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

// Request — новый статус и идентификаторы платежа у провайдера.
type Request struct {
	Status          models.PaymentStatus `json:"status" validate:"required,oneof=completed failed refunded"`
	PaymentProvider string               `json:"paymentProvider" validate:"max=64"`
	PaymentID       string               `json:"paymentId" validate:"max=255"`
}

// Service описывает смену статуса оплаты.
type Service interface {
	UpdatePaymentStatus(ctx context.Context, userID, purchaseID string, status models.PaymentStatus,
		provider, paymentID string) (*models.Purchase, error)
}

// Handler меняет статус оплаты покупки текущего пользователя.
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
// @Summary Сменить статус оплаты
// @Description Допустимы переходы pending → completed | failed и completed → refunded.
// @Tags Commerce
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "Идентификатор покупки"
// @Param request body Request true "Новый статус"
// @Success 200 {object} models.Purchase
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход"
// @Router /me/purchases/{id}/status [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.status"

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

	p, err := h.service.UpdatePaymentStatus(r.Context(), userID, chi.URLParam(r, "id"), req.Status,
		req.PaymentProvider, req.PaymentID)
	if err != nil {
		log.Info("status change rejected", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	render.JSON(w, r, p)
}
