package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/healthmap/healthmap-api/internal/models"
	"github.com/healthmap/healthmap-api/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListActiveAssessments(ctx context.Context) ([]models.Assessment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Assessment), args.Error(1)
}

func (m *RepoMock) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Assessment), args.Error(1)
}

func (m *RepoMock) GetTrackingByCode(ctx context.Context, code string) (*models.OrganizationTracking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrganizationTracking), args.Error(1)
}

func (m *RepoMock) CreateUserAssessment(ctx context.Context, ua models.UserAssessment) error {
	return m.Called(ctx, ua).Error(0)
}

func (m *RepoMock) GetUserAssessment(ctx context.Context, id string) (*models.UserAssessment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserAssessment), args.Error(1)
}

func (m *RepoMock) SaveResponse(ctx context.Context, r models.UserResponse) error {
	return m.Called(ctx, r).Error(0)
}

func (m *RepoMock) CountResponses(ctx context.Context, id string) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) UpdateProgress(ctx context.Context, id string, percentage int, now time.Time) error {
	return m.Called(ctx, id, percentage, now).Error(0)
}

func (m *RepoMock) ListResponses(ctx context.Context, id string) ([]models.UserResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserResponse), args.Error(1)
}

func (m *RepoMock) CompleteUserAssessment(ctx context.Context, id string, totalScore int,
	results []models.AssessmentResult, completedAt time.Time) error {
	return m.Called(ctx, id, totalScore, results, completedAt).Error(0)
}

func (m *RepoMock) SetUserAssessmentStatus(ctx context.Context, id string, from, to models.AssessmentStatus,
	now time.Time) error {
	return m.Called(ctx, id, from, to, now).Error(0)
}

func (m *RepoMock) ListResults(ctx context.Context, id string) ([]models.AssessmentResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AssessmentResult), args.Error(1)
}

func (m *RepoMock) HasCompletedPurchase(ctx context.Context, userID, id string) (bool, error) {
	args := m.Called(ctx, userID, id)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *RepoMock) *AssessmentService {
	svc := NewAssessmentService(repo, nil, newNoopLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func attempt(status models.AssessmentStatus) *models.UserAssessment {
	return &models.UserAssessment{ID: "ua1", UserID: "u1", AssessmentID: "a1", Status: status}
}

func TestAssessmentService_Start(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		code       string
		setupMocks func(r *RepoMock)
		wantErr    error
	}{
		{
			name: "without tracking code",
			setupMocks: func(r *RepoMock) {
				r.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
				r.On("CreateUserAssessment", ctx, mock.MatchedBy(func(ua models.UserAssessment) bool {
					return ua.UserID == "u1" && ua.AssessmentID == "a1" &&
						ua.Status == models.AssessmentInProgress && ua.OrganizationTrackingID == nil
				})).Return(nil)
			},
		},
		{
			name: "with tracking code",
			code: "ACME",
			setupMocks: func(r *RepoMock) {
				r.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
				r.On("GetTrackingByCode", ctx, "ACME").
					Return(&models.OrganizationTracking{ID: "t1", AssessmentID: "a1", IsActive: true}, nil)
				r.On("CreateUserAssessment", ctx, mock.MatchedBy(func(ua models.UserAssessment) bool {
					return ua.OrganizationTrackingID != nil && *ua.OrganizationTrackingID == "t1"
				})).Return(nil)
			},
		},
		{
			name: "tracking code for another assessment",
			code: "OTHER",
			setupMocks: func(r *RepoMock) {
				r.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
				r.On("GetTrackingByCode", ctx, "OTHER").
					Return(&models.OrganizationTracking{ID: "t2", AssessmentID: "a2", IsActive: true}, nil)
			},
			wantErr: ErrTrackingInvalid,
		},
		{
			name: "inactive tracking code",
			code: "OLD",
			setupMocks: func(r *RepoMock) {
				r.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
				r.On("GetTrackingByCode", ctx, "OLD").
					Return(&models.OrganizationTracking{ID: "t3", AssessmentID: "a1"}, nil)
			},
			wantErr: ErrTrackingInvalid,
		},
		{
			name: "unknown tracking code",
			code: "NOPE",
			setupMocks: func(r *RepoMock) {
				r.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
				r.On("GetTrackingByCode", ctx, "NOPE").Return(nil, storage.ErrNotFound)
			},
			wantErr: ErrTrackingInvalid,
		},
		{
			name: "inactive assessment",
			setupMocks: func(r *RepoMock) {
				a := fixture()
				a.IsActive = false
				r.On("GetAssessment", ctx, "a1").Return(a, nil)
			},
			wantErr: ErrAssessmentInactive,
		},
		{
			name: "missing assessment",
			setupMocks: func(r *RepoMock) {
				r.On("GetAssessment", ctx, "a1").Return(nil, storage.ErrNotFound)
			},
			wantErr: ErrAssessmentNotFound,
		},
		{
			name: "store failure",
			setupMocks: func(r *RepoMock) {
				r.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
				r.On("CreateUserAssessment", ctx, mock.Anything).Return(errors.New("boom"))
			},
			wantErr: ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)

			ua, err := newTestService(repo).Start(ctx, "u1", "a1", tt.code)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ua)
			} else {
				require.NoError(t, err)
				assert.Equal(t, fixedNow, ua.StartedAt)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAssessmentService_Answer(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		in         AnswerInput
		setupMocks func(r *RepoMock)
		wantPct    int
		wantErr    error
	}{
		{
			name: "multiple choice stores option value",
			in:   AnswerInput{QuestionID: "q1", OptionID: strp("o4")},
			setupMocks: func(r *RepoMock) {
				r.On("SaveResponse", ctx, mock.MatchedBy(func(resp models.UserResponse) bool {
					return resp.QuestionID == "q1" && *resp.OptionID == "o4" && *resp.ResponseValue == 4
				})).Return(nil)
				r.On("CountResponses", ctx, "ua1").Return(1, nil)
				r.On("UpdateProgress", ctx, "ua1", 25, fixedNow).Return(nil)
			},
			wantPct: 25,
		},
		{
			name: "scale value",
			in:   AnswerInput{QuestionID: "q3", Value: intp(7)},
			setupMocks: func(r *RepoMock) {
				r.On("SaveResponse", ctx, mock.Anything).Return(nil)
				r.On("CountResponses", ctx, "ua1").Return(3, nil)
				r.On("UpdateProgress", ctx, "ua1", 75, fixedNow).Return(nil)
			},
			wantPct: 75,
		},
		{
			name:       "boolean out of range",
			in:         AnswerInput{QuestionID: "q2", Value: intp(2)},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name:       "scale above maximum",
			in:         AnswerInput{QuestionID: "q3", Value: intp(DefaultScaleMax + 1)},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name:       "option of another question",
			in:         AnswerInput{QuestionID: "q1", OptionID: strp("o-foreign")},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name:       "missing option for choice question",
			in:         AnswerInput{QuestionID: "q1", Value: intp(4)},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name:       "question of another assessment",
			in:         AnswerInput{QuestionID: "q-foreign", Value: intp(1)},
			setupMocks: func(_ *RepoMock) {},
			wantErr:    ErrInvalidAnswer,
		},
		{
			name: "attempt closed concurrently",
			in:   AnswerInput{QuestionID: "q3", Value: intp(1)},
			setupMocks: func(r *RepoMock) {
				r.On("SaveResponse", ctx, mock.Anything).Return(storage.ErrMismatch)
			},
			wantErr: ErrAttemptClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentInProgress), nil)
			repo.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
			tt.setupMocks(repo)

			pct, err := newTestService(repo).Answer(ctx, "u1", "ua1", tt.in)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantPct, pct)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAssessmentService_AttemptOwnership(t *testing.T) {
	ctx := context.Background()
	repo := new(RepoMock)
	repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentInProgress), nil)
	repo.On("GetUserAssessment", ctx, "missing").Return(nil, storage.ErrNotFound)
	svc := newTestService(repo)

	_, err := svc.Answer(ctx, "intruder", "ua1", AnswerInput{QuestionID: "q3", Value: intp(1)})
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	assert.ErrorIs(t, svc.Abandon(ctx, "u1", "missing"), ErrAttemptNotFound)

	_, err = svc.Results(ctx, "intruder", "ua1")
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestAssessmentService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("missing required answer", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentInProgress), nil)
		repo.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
		repo.On("ListResponses", ctx, "ua1").Return([]models.UserResponse{
			{QuestionID: "q1", ResponseValue: intp(4)},
		}, nil)

		_, err := newTestService(repo).Complete(ctx, "u1", "ua1")
		assert.ErrorIs(t, err, ErrIncomplete)
		repo.AssertNotCalled(t, "CompleteUserAssessment", mock.Anything, mock.Anything, mock.Anything,
			mock.Anything, mock.Anything)
	})

	t.Run("already completed", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentCompleted), nil)

		_, err := newTestService(repo).Complete(ctx, "u1", "ua1")
		assert.ErrorIs(t, err, ErrAttemptClosed)
	})

	t.Run("scores and returns locked results", func(t *testing.T) {
		responses := []models.UserResponse{
			{QuestionID: "q1", ResponseValue: intp(4)},
			{QuestionID: "q2", ResponseValue: intp(1)},
			{QuestionID: "q3", ResponseValue: intp(2)},
		}
		completed := attempt(models.AssessmentCompleted)
		completed.TotalScore = intp(8)

		repo := new(RepoMock)
		repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentInProgress), nil).Once()
		repo.On("GetUserAssessment", ctx, "ua1").Return(completed, nil)
		repo.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
		repo.On("ListResponses", ctx, "ua1").Return(responses, nil)

		var saved []models.AssessmentResult
		repo.On("CompleteUserAssessment", ctx, "ua1", 8, mock.Anything, fixedNow).
			Run(func(args mock.Arguments) {
				saved = args.Get(3).([]models.AssessmentResult)
			}).Return(nil)
		repo.On("ListResults", ctx, "ua1").Return([]models.AssessmentResult{
			{DimensionID: "d-sleep", DimensionName: "Sleep", Interpretation: "a", Recommendations: "b"},
			{DimensionID: "d-stress", DimensionName: "Stress", Interpretation: "c", Recommendations: "d"},
		}, nil)
		repo.On("HasCompletedPurchase", ctx, "u1", "ua1").Return(false, nil)

		res, err := newTestService(repo).Complete(ctx, "u1", "ua1")
		require.NoError(t, err)

		require.Len(t, saved, 2)
		assert.Equal(t, 6, saved[0].Score)
		assert.Equal(t, 100, saved[0].PercentageScore)
		assert.Equal(t, models.LevelHigh, saved[0].Level)
		assert.Equal(t, 20, saved[1].PercentageScore)
		assert.Equal(t, models.LevelLow, saved[1].Level)

		assert.Equal(t, 8, res.TotalScore)
		assert.False(t, res.FullReport)
		require.Len(t, res.Dimensions, 2)
		assert.False(t, res.Dimensions[0].Locked)
		assert.Equal(t, "a", res.Dimensions[0].Interpretation)
		assert.True(t, res.Dimensions[1].Locked)
		assert.Empty(t, res.Dimensions[1].Interpretation)
		assert.Empty(t, res.Dimensions[1].Recommendations)
		repo.AssertExpectations(t)
	})
}

func TestAssessmentService_Results(t *testing.T) {
	ctx := context.Background()

	t.Run("paid report unlocks everything", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentCompleted), nil)
		repo.On("GetAssessment", ctx, "a1").Return(fixture(), nil)
		repo.On("ListResults", ctx, "ua1").Return([]models.AssessmentResult{
			{DimensionID: "d-sleep", Interpretation: "a"},
			{DimensionID: "d-stress", Interpretation: "c"},
		}, nil)
		repo.On("HasCompletedPurchase", ctx, "u1", "ua1").Return(true, nil)

		res, err := newTestService(repo).Results(ctx, "u1", "ua1")
		require.NoError(t, err)
		assert.True(t, res.FullReport)
		for _, d := range res.Dimensions {
			assert.False(t, d.Locked)
			assert.NotEmpty(t, d.Interpretation)
		}
	})

	t.Run("attempt in progress", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentInProgress), nil)

		_, err := newTestService(repo).Results(ctx, "u1", "ua1")
		assert.ErrorIs(t, err, ErrNotCompleted)
	})
}

func TestAssessmentService_Abandon(t *testing.T) {
	ctx := context.Background()
	repo := new(RepoMock)
	repo.On("GetUserAssessment", ctx, "ua1").Return(attempt(models.AssessmentInProgress), nil)
	repo.On("SetUserAssessmentStatus", ctx, "ua1", models.AssessmentInProgress, models.AssessmentAbandoned, fixedNow).
		Return(nil).Once()
	repo.On("SetUserAssessmentStatus", ctx, "ua1", models.AssessmentInProgress, models.AssessmentAbandoned, fixedNow).
		Return(storage.ErrConflict)
	svc := newTestService(repo)

	require.NoError(t, svc.Abandon(ctx, "u1", "ua1"))
	assert.ErrorIs(t, svc.Abandon(ctx, "u1", "ua1"), ErrAttemptClosed)
}

func TestAssessmentService_ListActive(t *testing.T) {
	ctx := context.Background()
	repo := new(RepoMock)
	repo.On("ListActiveAssessments", ctx).Return([]models.Assessment{{ID: "a1"}}, nil).Once()
	repo.On("ListActiveAssessments", ctx).Return(nil, errors.New("boom"))
	svc := newTestService(repo)

	list, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListActive(ctx)
	assert.ErrorIs(t, err, ErrInternal)
}
