package status

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/models"
	services "github.com/healthmap/healthmap-api/internal/services/commerce"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) UpdatePaymentStatus(ctx context.Context, userID, purchaseID string, status models.PaymentStatus,
	provider, paymentID string) (*models.Purchase, error) {
	args := m.Called(ctx, userID, purchaseID, status, provider, paymentID)
	p, _ := args.Get(0).(*models.Purchase)
	return p, args.Error(1)
}

func TestStatusHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "completed",
			body: `{"status":"completed","paymentProvider":"stripe","paymentId":"pi_1"}`,
			setupMock: func(m *MockService) {
				m.On("UpdatePaymentStatus", mock.Anything, "u1", "p1", models.PaymentCompleted, "stripe", "pi_1").
					Return(&models.Purchase{ID: "p1", PaymentStatus: models.PaymentCompleted}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"paymentStatus":"completed"`,
		},
		{
			name: "invalid transition",
			body: `{"status":"refunded"}`,
			setupMock: func(m *MockService) {
				m.On("UpdatePaymentStatus", mock.Anything, "u1", "p1", models.PaymentRefunded, "", "").
					Return(nil, services.ErrInvalidTransition)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Invalid payment status transition"}`,
		},
		{
			name:           "back to pending is not allowed",
			body:           `{"status":"pending"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `field Status must be one of`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPatch, "/api/me/purchases/p1/status", strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", "p1")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			req = req.WithContext(middlewarectx.WithUserID(ctx, "u1"))
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
