package results

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/healthmap/healthmap-api/internal/http/middlewarectx"
	"github.com/healthmap/healthmap-api/internal/models"
	services "github.com/healthmap/healthmap-api/internal/services/assessment"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Results(ctx context.Context, userID, userAssessmentID string) (*services.Results, error) {
	args := m.Called(ctx, userID, userAssessmentID)
	res, _ := args.Get(0).(*services.Results)
	return res, args.Error(1)
}

func request(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/me/assessments/"+id+"/results", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middlewarectx.WithUserID(ctx, "u1"))
}

func TestResultsHandler_LockedDimensions(t *testing.T) {
	svc := new(MockService)
	svc.On("Results", mock.Anything, "u1", "ua1").Return(&services.Results{
		UserAssessmentID: "ua1",
		Dimensions: []services.DimensionResult{
			{AssessmentResult: models.AssessmentResult{DimensionName: "Sleep", Interpretation: "Good"}},
			{AssessmentResult: models.AssessmentResult{DimensionName: "Stress"}, Locked: true},
		},
	}, nil)
	rec := httptest.NewRecorder()

	New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, request("ua1"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		FullReport bool `json:"fullReport"`
		Dimensions []struct {
			DimensionName  string `json:"dimensionName"`
			Interpretation string `json:"interpretation"`
			Locked         bool   `json:"locked"`
		} `json:"dimensions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.FullReport)
	require.Len(t, body.Dimensions, 2)
	assert.Equal(t, "Good", body.Dimensions[0].Interpretation)
	assert.False(t, body.Dimensions[0].Locked)
	assert.True(t, body.Dimensions[1].Locked)
	assert.Empty(t, body.Dimensions[1].Interpretation)
}

func TestResultsHandler_NotCompleted(t *testing.T) {
	svc := new(MockService)
	svc.On("Results", mock.Anything, "u1", "ua2").Return(nil, services.ErrNotCompleted)
	rec := httptest.NewRecorder()

	New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).ServeHTTP(rec, request("ua2"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"Assessment attempt is not completed"}`, rec.Body.String())
}
