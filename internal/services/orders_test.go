package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

func validStation(id, code string, onHand, max float64) *models.StationCapture {
	return &models.StationCapture{
		ID:          id,
		ProductCode: code,
		Status:      models.StationValid,
		OnHandQty:   f64(onHand),
		MaxQty:      f64(max),
		MinQty:      f64(0),
	}
}

func demandOf(code string, qty float64) models.DemandItem {
	return models.DemandItem{ProductCode: code, DemandQty: qty}
}

func TestRecommendOrders_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		demand     models.DemandItem
		station    *models.StationCapture
		wantQty    float64
		wantExceed bool
	}{
		{
			name:    "shortfall ordered",
			demand:  demandOf("P1", 5),
			station: validStation("st1", "P1", 2, 10),
			wantQty: 3,
		},
		{
			name:    "surplus orders nothing",
			demand:  demandOf("P2", 5),
			station: validStation("st2", "P2", 8, 10),
			wantQty: 0,
		},
		{
			name:       "recommendation may overshoot max",
			demand:     demandOf("P3", 20),
			station:    validStation("st3", "P3", 5, 10),
			wantQty:    15,
			wantExceed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, skipped := RecommendOrders(
				[]models.DemandItem{tt.demand},
				[]*models.StationCapture{tt.station},
			)
			require.Len(t, orders, 1)
			assert.Empty(t, skipped)
			assert.Equal(t, tt.demand.ProductCode, orders[0].ProductCode)
			assert.Equal(t, tt.station.ID, orders[0].StationID)
			assert.Equal(t, tt.wantQty, orders[0].RecommendedOrderQty)
			assert.Equal(t, tt.wantExceed, orders[0].ExceedsMax)
		})
	}
}

func TestRecommendOrders_SkipReasons(t *testing.T) {
	invalid := validStation("st-bad", "P5", 1, 10)
	invalid.Status = models.StationNeedsAttention
	noQty := &models.StationCapture{ID: "st-null", ProductCode: "P6", Status: models.StationValid, MaxQty: f64(10)}

	orders, skipped := RecommendOrders(
		[]models.DemandItem{demandOf("P4", 3), demandOf("P5", 3), demandOf("P6", 3)},
		[]*models.StationCapture{invalid, noQty},
	)

	assert.Empty(t, orders)
	require.Len(t, skipped, 3)
	assert.Equal(t, models.SkipNoStation, skipped[0].Reason)
	assert.Equal(t, "P4", skipped[0].ProductCode)
	assert.Equal(t, models.SkipStationInvalid, skipped[1].Reason)
	assert.Equal(t, models.SkipMissingData, skipped[2].Reason)
	assert.Equal(t, float64(3), skipped[2].DemandQty)
}

func TestRecommendOrders_PrefersValidStation(t *testing.T) {
	retaken := validStation("st-good", "P1", 4, 10)
	stale := &models.StationCapture{ID: "st-stale", ProductCode: "P1", Status: models.StationNeedsAttention}

	orders, skipped := RecommendOrders(
		[]models.DemandItem{demandOf("P1", 6)},
		[]*models.StationCapture{stale, retaken},
	)

	require.Len(t, orders, 1)
	assert.Empty(t, skipped)
	assert.Equal(t, "st-good", orders[0].StationID)
	assert.Equal(t, float64(2), orders[0].RecommendedOrderQty)
}

func TestRecommendOrders_OutputsSorted(t *testing.T) {
	orders, skipped := RecommendOrders(
		[]models.DemandItem{demandOf("C3", 1), demandOf("A1", 1), demandOf("B2", 1), demandOf("D4", 1)},
		[]*models.StationCapture{
			validStation("st-c", "C3", 0, 5),
			validStation("st-a", "A1", 0, 5),
		},
	)

	require.Len(t, orders, 2)
	assert.Equal(t, "A1", orders[0].ProductCode)
	assert.Equal(t, "C3", orders[1].ProductCode)
	require.Len(t, skipped, 2)
	assert.Equal(t, "B2", skipped[0].ProductCode)
	assert.Equal(t, "D4", skipped[1].ProductCode)
}

func TestRecommendOrders_NeverNegative(t *testing.T) {
	orders, _ := RecommendOrders(
		[]models.DemandItem{demandOf("P1", 1)},
		[]*models.StationCapture{validStation("st1", "P1", 50, 60)},
	)
	require.Len(t, orders, 1)
	assert.Equal(t, float64(0), orders[0].RecommendedOrderQty)
	assert.False(t, orders[0].ExceedsMax)
}
