package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/healthmap/healthmap-api/internal/lib/pgtest"
	"github.com/healthmap/healthmap-api/internal/migrations"
	"github.com/healthmap/healthmap-api/internal/models"
	"github.com/healthmap/healthmap-api/internal/storage"
)

func setupTestStorage(t *testing.T) *storage.Storage {
	t.Helper()
	db := pgtest.Start(t)
	require.NoError(t, migrations.Run(db, pgtest.MigrationsPath(t)))
	return storage.NewWithDB(db)
}

// testDataFactory создает связанные записи для тестов.
type testDataFactory struct {
	s   *storage.Storage
	now time.Time
}

func newTestDataFactory(s *storage.Storage) *testDataFactory {
	return &testDataFactory{s: s, now: time.Now().UTC().Truncate(time.Microsecond)}
}

func (f *testDataFactory) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := f.s.CreateUser(context.Background(), models.User{
		ID:           uuid.NewString(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	})
	require.NoError(t, err)
	return u
}

func ptr[T any](v T) *T {
	return &v
}

// createAssessment создает анкету с двумя измерениями: в первом вопрос с
// вариантами, во втором шкала; третий вопрос необязательный и без измерения.
func (f *testDataFactory) createAssessment(t *testing.T) *models.Assessment {
	t.Helper()
	id := uuid.NewString()
	dimA, dimB := uuid.NewString(), uuid.NewString()
	q1, q2, q3 := uuid.NewString(), uuid.NewString(), uuid.NewString()

	a := models.Assessment{
		ID:               id,
		Name:             "Health Map " + id[:8],
		Version:          "1.0",
		IsActive:         true,
		FreeResultsLimit: 1,
		PaidReportPrice:  ptr(int64(2900)),
		CreatedAt:        f.now,
		UpdatedAt:        f.now,
		Dimensions: []models.HealthDimension{
			{ID: dimA, Name: "Sleep", DisplayOrder: 1, CreatedAt: f.now},
			{ID: dimB, Name: "Stress", DisplayOrder: 2, CreatedAt: f.now},
		},
		Questions: []models.AssessmentQuestion{
			{
				ID: q1, DimensionID: &dimA, QuestionText: "How well do you sleep?",
				QuestionType: models.QuestionTypeMultipleChoice, DisplayOrder: 1, IsRequired: true,
				Weight: 1, CreatedAt: f.now,
				Options: []models.QuestionOption{
					{ID: uuid.NewString(), OptionText: "Poorly", OptionValue: 1, DisplayOrder: 1, CreatedAt: f.now},
					{ID: uuid.NewString(), OptionText: "Well", OptionValue: 4, DisplayOrder: 2, CreatedAt: f.now},
				},
			},
			{
				ID: q2, DimensionID: &dimB, QuestionText: "Stress level",
				QuestionType: models.QuestionTypeScale, DisplayOrder: 2, IsRequired: true,
				Weight: 2, CreatedAt: f.now,
			},
			{
				ID: q3, QuestionText: "Anything else?", QuestionType: models.QuestionTypeBoolean,
				DisplayOrder: 3, Weight: 1, CreatedAt: f.now,
			},
		},
	}
	require.NoError(t, f.s.CreateAssessment(context.Background(), a))

	got, err := f.s.GetAssessment(context.Background(), id)
	require.NoError(t, err)
	return got
}

func (f *testDataFactory) startAttempt(t *testing.T, userID, assessmentID string) *models.UserAssessment {
	t.Helper()
	ua := models.UserAssessment{
		ID:           uuid.NewString(),
		UserID:       userID,
		AssessmentID: assessmentID,
		Status:       models.AssessmentInProgress,
		StartedAt:    f.now,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}
	require.NoError(t, f.s.CreateUserAssessment(context.Background(), ua))
	return &ua
}

// createPackagePurchase создает клиента платежной системы и купленный пакет.
func (f *testDataFactory) createPackagePurchase(t *testing.T, userID string, remaining *int,
	expiresAt *time.Time) string {
	t.Helper()
	ctx := context.Background()

	customerID := uuid.NewString()
	_, err := f.s.DB.ExecContext(ctx, `INSERT INTO stripe_customers (id, user_id, stripe_customer_id,
			email, customer_type) VALUES ($1, $2, $3, 'org@example.com', 'organization')`,
		customerID, userID, "cus_"+customerID[:8])
	require.NoError(t, err)

	pkg := models.ReportPackage{
		ID:                 uuid.NewString(),
		Name:               "Bulk",
		PackageType:        "bulk",
		ReportCount:        remaining,
		TotalPrice:         9900,
		IsActive:           true,
		TargetCustomerType: "organization",
		Features:           []string{"pdf", "dashboard"},
		CreatedAt:          f.now,
		UpdatedAt:          f.now,
	}
	require.NoError(t, f.s.CreateReportPackage(ctx, pkg))

	id := uuid.NewString()
	var total any
	if remaining != nil {
		total = *remaining
	}
	var expires any
	if expiresAt != nil {
		expires = *expiresAt
	}
	_, err = f.s.DB.ExecContext(ctx, `INSERT INTO package_purchases (id, stripe_customer_id,
			report_package_id, original_price, final_price, reports_remaining, total_reports, expires_at)
		VALUES ($1, $2, $3, 9900, 9900, $4, $4, $5)`, id, customerID, pkg.ID, total, expires)
	require.NoError(t, err)
	return id
}
