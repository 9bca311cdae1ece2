// Package create реализует HTTP-обработчик POST /api/me/purchases: создание
// покупки полного отчета или пакета отчетов с необязательным промокодом.
package create

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
	services "github.com/healthmap/healthmap-api/internal/services/commerce"
)

// Service описывает создание покупки.
type Service interface {
	CreatePurchase(ctx context.Context, userID string, in services.PurchaseInput) (*models.Purchase, error)
}

// Handler создает покупку текущего пользователя.
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
// @Summary Создать покупку
// @Description Суммы в ответе указаны в центах.
// @Tags Commerce
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body services.PurchaseInput true "Продукт и промокод"
// @Success 201 {object} models.Purchase
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /me/purchases [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.purchase.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		response.WriteError(w, r, http.StatusUnauthorized, "User identification missing")
		return
	}

	var in services.PurchaseInput
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

	p, err := h.service.CreatePurchase(r.Context(), userID, in)
	if err != nil {
		log.Info("purchase rejected", sl.Err(err))
		response.WriteAppError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, p)
}
