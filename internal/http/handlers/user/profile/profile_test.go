package profile

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/models"
	userservice "github.com/healthmap/healthmap-api/internal/services/user"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CreateUserProfile(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error) {
	args := m.Called(ctx, userID, in)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func TestProfileHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "created",
			body: `{"firstName":"Ann","height":170}`,
			setupMock: func(m *MockService) {
				m.On("CreateUserProfile", mock.Anything, "u1", mock.MatchedBy(func(in models.ProfileInput) bool {
					return in.FirstName == "Ann" && *in.Height == 170
				})).Return(&models.Profile{ID: "p1", UserID: "u1", FirstName: "Ann"}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"firstName":"Ann"`,
		},
		{
			name: "profile already exists",
			body: `{"firstName":"Ann"}`,
			setupMock: func(m *MockService) {
				m.On("CreateUserProfile", mock.Anything, "u1", mock.Anything).
					Return(nil, userservice.ErrCreateProfile)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Failed to create user profile"}`,
		},
		{
			name:           "height out of range",
			body:           `{"height":5}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `field Height must be at least 30`,
		},
		{
			name:           "invalid json",
			body:           `[`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/me/profile", strings.NewReader(tt.body))
			req = req.WithContext(middlewarectx.WithUserID(req.Context(), "u1"))
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
