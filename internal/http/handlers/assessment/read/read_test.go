package read

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

	"github.com/healthmap/healthmap-api/internal/models"
	services "github.com/healthmap/healthmap-api/internal/services/assessment"
)

// MockService реализует интерфейс read.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Get(ctx context.Context, id string) (*models.Assessment, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Assessment), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "assessment with questions",
			url:  "/api/assessments/a1",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "a1").Return(&models.Assessment{
					ID: "a1",
					Questions: []models.AssessmentQuestion{{
						ID: "q1", QuestionText: "How do you sleep?", QuestionType: models.QuestionTypeScale,
					}},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"questionText":"How do you sleep?"`,
		},
		{
			name: "unknown assessment",
			url:  "/api/assessments/nope",
			setupMock: func(m *MockService) {
				m.On("Get", mock.Anything, "nope").Return(nil, services.ErrAssessmentNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Assessment not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", strings.TrimPrefix(tt.url, "/api/assessments/"))
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
