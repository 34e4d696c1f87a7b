package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

func TestComputeCoverage(t *testing.T) {
	noQty := &models.StationCapture{ID: "st-null", ProductCode: "B2", Status: models.StationValid}
	attention := &models.StationCapture{ID: "st-bad", ProductCode: "C3", Status: models.StationNeedsAttention, OnHandQty: f64(4)}

	report := ComputeCoverage(
		[]models.DemandItem{demandOf("A1", 1), demandOf("B2", 1), demandOf("C3", 1)},
		[]*models.StationCapture{validStation("st-a", "A1", 2, 10), noQty, attention},
	)

	assert.Equal(t, []string{"A1"}, report.Covered)
	assert.Equal(t, []string{"B2", "C3"}, report.Missing)
	assert.Equal(t, 33, report.Percentage)
}

func TestComputeCoverage_EmptyDemand(t *testing.T) {
	report := ComputeCoverage(nil, []*models.StationCapture{validStation("st", "A1", 1, 2)})

	assert.Equal(t, 100, report.Percentage)
	assert.Empty(t, report.Covered)
	assert.Empty(t, report.Missing)
}

func TestComputeCoverage_Rounding(t *testing.T) {
	demand := []models.DemandItem{demandOf("A1", 1), demandOf("B2", 1), demandOf("C3", 1)}
	stations := []*models.StationCapture{
		validStation("st-a", "A1", 1, 5),
		validStation("st-b", "B2", 1, 5),
	}

	report := ComputeCoverage(demand, stations)

	assert.Equal(t, 67, report.Percentage, "two of three rounds up")
}

func TestComputeExtractionStats(t *testing.T) {
	success := demandGroup("g1", "", models.GroupSuccess,
		models.LineItem{PrimaryCode: "A100", Quantity: 1},
	)
	success.Extraction.Summary = models.ExtractionSummary{TotalActivities: 2, TotalLineItems: 5}
	success.Extraction.TotalCost = f64(120.5)

	warning := demandGroup("g2", "", models.GroupWarning,
		models.LineItem{PrimaryCode: "B200", Quantity: 1},
	)
	warning.Extraction.Summary = models.ExtractionSummary{TotalActivities: 1, TotalLineItems: 2}

	failed := demandGroup("g3", "", models.GroupError,
		models.LineItem{PrimaryCode: "C300", Quantity: 9},
	)
	failed.Extraction.Summary = models.ExtractionSummary{TotalActivities: 9, TotalLineItems: 9}
	failed.Extraction.TotalCost = f64(999)

	stats := ComputeExtractionStats([]*models.CaptureGroup{
		success, warning, failed,
		demandGroup("g4", "", models.GroupPending),
		demandGroup("g5", "", models.GroupReady),
	})

	assert.Equal(t, 1, stats.SuccessGroups)
	assert.Equal(t, 1, stats.WarningGroups)
	assert.Equal(t, 1, stats.ErrorGroups)
	assert.Equal(t, 2, stats.PendingGroups)
	assert.Equal(t, 3, stats.TotalActivities, "error group sums are excluded")
	assert.Equal(t, 7, stats.TotalLineItems)
	assert.Equal(t, 120.5, stats.TotalCost, "missing cost counts as zero")
}

func TestComputeExtractionStats_Empty(t *testing.T) {
	assert.Zero(t, ComputeExtractionStats(nil))
}
