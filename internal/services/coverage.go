package services

import (
	"math"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

// ComputeCoverage reports which demanded product codes are backed by a
// valid station with a known on-hand quantity. An empty demand list is
// vacuously complete.
func ComputeCoverage(demand []models.DemandItem, stations []*models.StationCapture) models.CoverageReport {
	report := models.CoverageReport{
		Covered: []string{},
		Missing: []string{},
	}
	if len(demand) == 0 {
		report.Percentage = 100
		return report
	}

	usable := make(map[string]bool, len(stations))
	for _, station := range stations {
		if station.Status == models.StationValid && station.OnHandQty != nil {
			usable[station.ProductCode] = true
		}
	}

	for _, item := range demand {
		if usable[item.ProductCode] {
			report.Covered = append(report.Covered, item.ProductCode)
		} else {
			report.Missing = append(report.Missing, item.ProductCode)
		}
	}
	report.Percentage = int(math.Round(100 * float64(len(report.Covered)) / float64(len(demand))))
	return report
}

// ComputeExtractionStats tallies extraction outcomes across a
// session's groups. The activity, line item, and cost sums cover
// non-error groups only; a missing total cost counts as zero.
func ComputeExtractionStats(groups []*models.CaptureGroup) models.ExtractionStats {
	var stats models.ExtractionStats
	for _, group := range groups {
		switch group.Status {
		case models.GroupSuccess:
			stats.SuccessGroups++
		case models.GroupWarning:
			stats.WarningGroups++
		case models.GroupError:
			stats.ErrorGroups++
		default:
			stats.PendingGroups++
		}
		if group.Status == models.GroupError || group.Extraction == nil {
			continue
		}
		stats.TotalActivities += group.Extraction.Summary.TotalActivities
		stats.TotalLineItems += group.Extraction.Summary.TotalLineItems
		if group.Extraction.TotalCost != nil {
			stats.TotalCost += *group.Extraction.TotalCost
		}
	}
	return stats
}
