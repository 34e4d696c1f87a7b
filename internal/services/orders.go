package services

import (
	"sort"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

// RecommendOrders matches aggregated demand against station readings
// and produces one order line per fully-covered product, plus a skip
// entry for every demand row the engine could not serve. The
// recommendation is never clamped to the station's max; ExceedsMax
// only flags the overshoot for human review.
func RecommendOrders(demand []models.DemandItem, stations []*models.StationCapture) ([]models.OrderItem, []models.SkippedOrderItem) {
	// Index stations by product code. When two stations claim the same
	// code, a valid one beats an invalid one; among equals the first
	// wins.
	byCode := make(map[string]*models.StationCapture, len(stations))
	for _, station := range stations {
		if station.ProductCode == "" {
			continue
		}
		current, ok := byCode[station.ProductCode]
		if !ok || (current.Status != models.StationValid && station.Status == models.StationValid) {
			byCode[station.ProductCode] = station
		}
	}

	var orders []models.OrderItem
	var skipped []models.SkippedOrderItem
	for _, item := range demand {
		station, ok := byCode[item.ProductCode]
		switch {
		case !ok:
			skipped = append(skipped, skipItem(item, models.SkipNoStation))
		case station.Status != models.StationValid:
			skipped = append(skipped, skipItem(item, models.SkipStationInvalid))
		case station.OnHandQty == nil || station.MaxQty == nil:
			skipped = append(skipped, skipItem(item, models.SkipMissingData))
		default:
			onHand := *station.OnHandQty
			rec := item.DemandQty - onHand
			if rec < 0 {
				rec = 0
			}
			orders = append(orders, models.OrderItem{
				ProductCode:         item.ProductCode,
				Description:         item.Description,
				StationID:           station.ID,
				DemandQty:           item.DemandQty,
				OnHandQty:           onHand,
				MinQty:              station.MinQty,
				MaxQty:              station.MaxQty,
				RecommendedOrderQty: rec,
				ExceedsMax:          onHand+rec > *station.MaxQty,
			})
		}
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ProductCode < orders[j].ProductCode
	})
	sort.Slice(skipped, func(i, j int) bool {
		return skipped[i].ProductCode < skipped[j].ProductCode
	})
	return orders, skipped
}

func skipItem(item models.DemandItem, reason models.SkipReason) models.SkippedOrderItem {
	return models.SkippedOrderItem{
		ProductCode: item.ProductCode,
		Description: item.Description,
		DemandQty:   item.DemandQty,
		Reason:      reason,
	}
}
