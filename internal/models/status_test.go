package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusCanAdvanceTo(t *testing.T) {
	cases := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"draft to capturing", SessionDraft, SessionCapturingLoadingLists, true},
		{"skip ahead is allowed", SessionDraft, SessionReviewOrder, true},
		{"full run", SessionCapturingInventory, SessionReviewOrder, true},
		{"no backward", SessionReviewDemand, SessionCapturingLoadingLists, false},
		{"no self transition", SessionReviewDemand, SessionReviewDemand, false},
		{"completed is terminal", SessionCompleted, SessionDraft, false},
		{"unknown target", SessionDraft, SessionStatus("archived"), false},
		{"unknown source", SessionStatus(""), SessionDraft, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanAdvanceTo(tc.to))
		})
	}
}

func TestSessionStatusValid(t *testing.T) {
	for _, s := range []SessionStatus{
		SessionDraft, SessionCapturingLoadingLists, SessionReviewDemand,
		SessionCapturingInventory, SessionReviewOrder, SessionCompleted,
	} {
		assert.True(t, s.Valid(), "status %q", s)
	}
	assert.False(t, SessionStatus("bogus").Valid())
	assert.False(t, SessionStatus("").Valid())
}

func TestGroupStatusExtracted(t *testing.T) {
	assert.True(t, GroupSuccess.Extracted())
	assert.True(t, GroupWarning.Extracted())
	assert.True(t, GroupError.Extracted())
	assert.False(t, GroupPending.Extracted())
	assert.False(t, GroupReady.Extracted())
	assert.False(t, GroupNeedsAttention.Extracted())
}

func TestGroupStatusExtractable(t *testing.T) {
	assert.True(t, GroupReady.Extractable())
	assert.True(t, GroupError.Extractable(), "re-extraction of failed groups is allowed")
	assert.False(t, GroupPending.Extractable())
	assert.False(t, GroupNeedsAttention.Extractable())
}

func TestUploadSlotValid(t *testing.T) {
	assert.True(t, SlotSign.Valid())
	assert.True(t, SlotStock.Valid())
	assert.False(t, UploadSlot("front").Valid())
}

func TestExtractionResultHelpers(t *testing.T) {
	empty := &ExtractionResult{Activities: []Activity{{ActivityCode: "ACT-1"}}}
	assert.False(t, empty.Usable(), "activities alone are not usable")
	assert.False(t, empty.HasWarnings())

	withItems := &ExtractionResult{LineItems: []LineItem{{PrimaryCode: "P1", Quantity: 2}}}
	assert.True(t, withItems.Usable())
	assert.False(t, withItems.HasWarnings())

	withWarnings := &ExtractionResult{
		LineItems: []LineItem{{PrimaryCode: "P1", Quantity: 2}},
		Warnings:  []string{"page 2 partially obscured"},
	}
	assert.True(t, withWarnings.HasWarnings())

	withIgnored := &ExtractionResult{
		LineItems:     []LineItem{{PrimaryCode: "P1", Quantity: 2}},
		IgnoredImages: []int{1},
	}
	assert.True(t, withIgnored.HasWarnings())
}

func TestStationReadingComplete(t *testing.T) {
	q := func(v float64) *float64 { return &v }

	full := &StationReading{ProductCode: "P1", MinQty: q(1), MaxQty: q(10), OnHandQty: q(4)}
	assert.True(t, full.Complete())

	assert.False(t, (&StationReading{MinQty: q(1), MaxQty: q(10), OnHandQty: q(4)}).Complete())
	assert.False(t, (&StationReading{ProductCode: "P1", MaxQty: q(10), OnHandQty: q(4)}).Complete())
	assert.False(t, (&StationReading{ProductCode: "P1", MinQty: q(1), OnHandQty: q(4)}).Complete())
	assert.False(t, (&StationReading{ProductCode: "P1", MinQty: q(1), MaxQty: q(10)}).Complete())
}

func TestStationCaptureSlotsFilled(t *testing.T) {
	s := &StationCapture{}
	assert.False(t, s.SlotsFilled())
	s.SignBlobURL = "https://storage.googleapis.com/b/sign.jpg"
	assert.False(t, s.SlotsFilled())
	s.StockBlobURL = "https://storage.googleapis.com/b/stock.jpg"
	assert.True(t, s.SlotsFilled())
}
