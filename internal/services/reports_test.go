package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/fieldcaptureflow/internal/catalog"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
)

const testCatalogYAML = `products:
  - code: A100
    description: Anchor bolt M12x120
    unit: box
  - code: B200
    description: Cable tie 300mm
    unit: bag
`

func seedReportSession(t *testing.T, st store.Store) string {
	t.Helper()
	ctx := context.Background()
	sessionID := uuid.NewString()
	require.NoError(t, st.CreateSession(ctx, &models.Session{
		ID:        sessionID,
		Status:    models.SessionReviewOrder,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}))

	seedGroup := func(status models.GroupStatus, extraction *models.ExtractionResult) {
		require.NoError(t, st.CreateGroup(ctx, &models.CaptureGroup{
			ID:             uuid.NewString(),
			SessionID:      sessionID,
			EmployeeLabel:  "crew-a",
			ExpectedImages: 1,
			Status:         status,
			Extraction:     extraction,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}))
	}
	seedGroup(models.GroupSuccess, &models.ExtractionResult{
		LineItems: []models.LineItem{
			{PrimaryCode: "A100", Quantity: 5, ActivityCode: "ACT-1"},
			{PrimaryCode: "B200", Quantity: 2, Description: "Cable tie black", ActivityCode: "ACT-1"},
		},
		Summary:   models.ExtractionSummary{TotalActivities: 1, TotalLineItems: 2},
		TotalCost: f64(80),
	})
	seedGroup(models.GroupError, &models.ExtractionResult{
		LineItems: []models.LineItem{{PrimaryCode: "Z999", Quantity: 9}},
	})

	require.NoError(t, st.CreateStation(ctx, &models.StationCapture{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		ProductCode: "A100",
		Status:      models.StationValid,
		OnHandQty:   f64(2),
		MaxQty:      f64(10),
		MinQty:      f64(1),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}))
	return sessionID
}

func newReportFixture(t *testing.T) (*ReportService, store.Store) {
	t.Helper()
	st := newTestStore(t)
	cat, err := catalog.Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	return NewReportService(st, cat), st
}

func TestDemandReport(t *testing.T) {
	svc, st := newReportFixture(t)
	sessionID := seedReportSession(t, st)

	report, err := svc.DemandReport(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, report.SessionID)
	assert.False(t, report.GeneratedAt.IsZero())

	require.Len(t, report.Items, 2, "the error group contributes nothing")
	assert.Equal(t, "A100", report.Items[0].ProductCode)
	assert.Equal(t, "Anchor bolt M12x120", report.Items[0].Description, "catalog fills a missing description")
	assert.Equal(t, "Cable tie black", report.Items[1].Description, "extraction text wins over the catalog")

	assert.Equal(t, 1, report.Stats.SuccessGroups)
	assert.Equal(t, 1, report.Stats.ErrorGroups)
	assert.Equal(t, 2, report.Stats.TotalLineItems)
	assert.Equal(t, 80.0, report.Stats.TotalCost)
}

func TestDemandReport_BadSession(t *testing.T) {
	svc, _ := newReportFixture(t)
	ctx := context.Background()

	_, err := svc.DemandReport(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.DemandReport(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrderReport(t *testing.T) {
	svc, st := newReportFixture(t)
	sessionID := seedReportSession(t, st)

	report, err := svc.OrderReport(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, report.SessionID)

	require.Len(t, report.Items, 1)
	assert.Equal(t, "A100", report.Items[0].ProductCode)
	assert.Equal(t, 3.0, report.Items[0].RecommendedOrderQty)
	assert.False(t, report.Items[0].ExceedsMax)

	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "B200", report.Skipped[0].ProductCode)
	assert.Equal(t, models.SkipNoStation, report.Skipped[0].Reason)

	assert.Equal(t, []string{"A100"}, report.Coverage.Covered)
	assert.Equal(t, []string{"B200"}, report.Coverage.Missing)
	assert.Equal(t, 50, report.Coverage.Percentage)
}

func TestReportService_EmptySession(t *testing.T) {
	st := newTestStore(t)
	svc := NewReportService(st, nil)
	ctx := context.Background()

	sessionID := uuid.NewString()
	require.NoError(t, st.CreateSession(ctx, &models.Session{
		ID: sessionID, Status: models.SessionDraft, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	demand, err := svc.DemandReport(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, demand.Items)

	orders, err := svc.OrderReport(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, orders.Items)
	assert.Equal(t, 100, orders.Coverage.Percentage)
}
