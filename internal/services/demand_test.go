package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

func demandGroup(id, label string, status models.GroupStatus, items ...models.LineItem) *models.CaptureGroup {
	group := &models.CaptureGroup{ID: id, EmployeeLabel: label, Status: status}
	if items != nil {
		group.Extraction = &models.ExtractionResult{LineItems: items}
	}
	return group
}

func TestComputeDemand_SumsAcrossGroups(t *testing.T) {
	groups := []*models.CaptureGroup{
		demandGroup("g1", "crew-a", models.GroupSuccess,
			models.LineItem{PrimaryCode: "B200", Quantity: 2, ActivityCode: "ACT-1"},
			models.LineItem{PrimaryCode: "A100", Quantity: 5, Description: "Anchor bolt", ActivityCode: "ACT-1"},
		),
		demandGroup("g2", "crew-b", models.GroupWarning,
			models.LineItem{PrimaryCode: "A100", Quantity: 3, ActivityCode: "ACT-7"},
		),
	}

	items := ComputeDemand(groups)

	assert.Len(t, items, 2)
	assert.Equal(t, "A100", items[0].ProductCode, "output is sorted by product code")
	assert.Equal(t, float64(8), items[0].DemandQty)
	assert.Equal(t, "Anchor bolt", items[0].Description)
	assert.Equal(t, []models.DemandSource{
		{GroupID: "g1", EmployeeLabel: "crew-a", ActivityCode: "ACT-1"},
		{GroupID: "g2", EmployeeLabel: "crew-b", ActivityCode: "ACT-7"},
	}, items[0].Sources)
	assert.Equal(t, "B200", items[1].ProductCode)
	assert.Equal(t, float64(2), items[1].DemandQty)
}

func TestComputeDemand_SkipsUnusableGroups(t *testing.T) {
	groups := []*models.CaptureGroup{
		demandGroup("pending", "", models.GroupPending),
		demandGroup("failed", "", models.GroupError,
			models.LineItem{PrimaryCode: "A100", Quantity: 4},
		),
		demandGroup("good", "", models.GroupSuccess,
			models.LineItem{PrimaryCode: "A100", Quantity: 1},
		),
	}

	items := ComputeDemand(groups)

	assert.Len(t, items, 1)
	assert.Equal(t, float64(1), items[0].DemandQty, "error group line items must not contribute")
}

func TestComputeDemand_SkipsBadLineItems(t *testing.T) {
	groups := []*models.CaptureGroup{
		demandGroup("g1", "", models.GroupSuccess,
			models.LineItem{PrimaryCode: "", Quantity: 9},
			models.LineItem{PrimaryCode: "A100", Quantity: 0},
			models.LineItem{PrimaryCode: "A100", Quantity: -2},
			models.LineItem{PrimaryCode: "A100", Quantity: 2.5},
		),
	}

	items := ComputeDemand(groups)

	assert.Len(t, items, 1)
	assert.Equal(t, 2.5, items[0].DemandQty)
	assert.Len(t, items[0].Sources, 1)
}

func TestComputeDemand_FirstDescriptionWins(t *testing.T) {
	groups := []*models.CaptureGroup{
		demandGroup("g1", "", models.GroupSuccess,
			models.LineItem{PrimaryCode: "A100", Quantity: 1},
			models.LineItem{PrimaryCode: "A100", Quantity: 1, Description: "Anchor bolt"},
			models.LineItem{PrimaryCode: "A100", Quantity: 1, Description: "Other name"},
		),
	}

	items := ComputeDemand(groups)

	assert.Equal(t, "Anchor bolt", items[0].Description)
	assert.Equal(t, float64(3), items[0].DemandQty)
}

func TestComputeDemand_Empty(t *testing.T) {
	assert.Empty(t, ComputeDemand(nil))
	assert.Empty(t, ComputeDemand([]*models.CaptureGroup{demandGroup("g", "", models.GroupPending)}))
}
