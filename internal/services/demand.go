package services

import (
	"sort"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

// ComputeDemand folds every usable extracted line item into one demand
// row per product code. Groups without an extraction result and groups
// classified error contribute nothing; within a usable group, line
// items with an empty primary code or a non-positive quantity are
// dropped individually. Each surviving item appends a provenance entry
// so a reviewer can trace a demand row back to the loading lists that
// produced it.
func ComputeDemand(groups []*models.CaptureGroup) []models.DemandItem {
	byCode := make(map[string]*models.DemandItem)

	for _, group := range groups {
		if group.Extraction == nil || group.Status == models.GroupError {
			continue
		}
		for _, item := range group.Extraction.LineItems {
			// The negated comparison also rejects NaN quantities.
			if item.PrimaryCode == "" || !(item.Quantity > 0) {
				continue
			}
			row, ok := byCode[item.PrimaryCode]
			if !ok {
				row = &models.DemandItem{ProductCode: item.PrimaryCode}
				byCode[item.PrimaryCode] = row
			}
			row.DemandQty += item.Quantity
			if row.Description == "" {
				row.Description = item.Description
			}
			row.Sources = append(row.Sources, models.DemandSource{
				GroupID:       group.ID,
				EmployeeLabel: group.EmployeeLabel,
				ActivityCode:  item.ActivityCode,
			})
		}
	}

	items := make([]models.DemandItem, 0, len(byCode))
	for _, row := range byCode {
		items = append(items, *row)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductCode < items[j].ProductCode
	})
	return items
}
