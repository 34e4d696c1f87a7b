package models

// ExtractionResult is the structured output of one loading-list
// extraction run over a capture group's images. It is written to the
// group in the same update that moves the group status, and is
// overwritten wholesale on re-extraction.
type ExtractionResult struct {
	Activities    []Activity        `firestore:"activities,omitempty" json:"activities,omitempty"`
	LineItems     []LineItem        `firestore:"lineItems" json:"lineItems"`
	ImageChecks   []ImageCheck      `firestore:"imageChecks,omitempty" json:"imageChecks,omitempty"`
	IgnoredImages []int             `firestore:"ignoredImages,omitempty" json:"ignoredImages,omitempty"`
	Warnings      []string          `firestore:"warnings,omitempty" json:"warnings,omitempty"`
	Summary       ExtractionSummary `firestore:"summary" json:"summary"`
	TotalCost     *float64          `firestore:"totalCost,omitempty" json:"totalCost,omitempty"`
}

// Activity is one work entry on a loading list. Line items reference
// their activity by code so demand provenance can name it.
type Activity struct {
	ActivityCode string `firestore:"activityCode" json:"activityCode"`
	Description  string `firestore:"description,omitempty" json:"description,omitempty"`
}

// LineItem is one demanded material row read off a loading list.
type LineItem struct {
	PrimaryCode  string  `firestore:"primaryCode" json:"primaryCode"`
	Quantity     float64 `firestore:"quantity" json:"quantity"`
	Description  string  `firestore:"description,omitempty" json:"description,omitempty"`
	ActivityCode string  `firestore:"activityCode,omitempty" json:"activityCode,omitempty"`
}

// ImageCheck is the model's per-image legibility verdict. Index is the
// image's orderIndex at extraction time.
type ImageCheck struct {
	Index    int      `firestore:"index" json:"index"`
	Legible  bool     `firestore:"legible" json:"legible"`
	Complete bool     `firestore:"complete" json:"complete"`
	Issues   []string `firestore:"issues,omitempty" json:"issues,omitempty"`
}

// ExtractionSummary carries the model's own totals for the group.
type ExtractionSummary struct {
	TotalActivities int `firestore:"totalActivities" json:"totalActivities"`
	TotalLineItems  int `firestore:"totalLineItems" json:"totalLineItems"`
}

// Usable reports whether the run yielded any line items. A result
// without line items counts as a failed extraction even when the model
// responded, because demand aggregation has nothing to consume.
func (r *ExtractionResult) Usable() bool {
	return len(r.LineItems) > 0
}

// HasWarnings reports whether the run flagged anything for review.
func (r *ExtractionResult) HasWarnings() bool {
	return len(r.Warnings) > 0 || len(r.IgnoredImages) > 0
}

// StationReading is the structured output of one station extraction run
// over a sign photo and a stock photo.
type StationReading struct {
	ProductCode string   `firestore:"productCode" json:"productCode"`
	MinQty      *float64 `firestore:"minQty" json:"minQty"`
	MaxQty      *float64 `firestore:"maxQty" json:"maxQty"`
	OnHandQty   *float64 `firestore:"onHandQty" json:"onHandQty"`
	Warnings    []string `firestore:"warnings,omitempty" json:"warnings,omitempty"`
}

// Complete reports whether every field the order engine needs was read
// successfully.
func (r *StationReading) Complete() bool {
	return r.ProductCode != "" && r.MinQty != nil && r.MaxQty != nil && r.OnHandQty != nil
}
