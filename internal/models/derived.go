package models

// Derived report types. None of these are persisted; every report is
// recomputed from current group and station state on read.

// DemandSource records one line item's provenance inside an aggregated
// demand row.
type DemandSource struct {
	GroupID       string `json:"groupId"`
	EmployeeLabel string `json:"employeeLabel,omitempty"`
	ActivityCode  string `json:"activityCode,omitempty"`
}

// DemandItem is the summed demand for one product code across all
// usable capture groups of a session.
type DemandItem struct {
	ProductCode string         `json:"productCode"`
	Description string         `json:"description,omitempty"`
	DemandQty   float64        `json:"demandQty"`
	Sources     []DemandSource `json:"sources"`
}

// OrderItem is one recommended purchase line. ExceedsMax flags that
// on-hand plus the recommendation overshoots the station's max; the
// quantity is never clamped, the flag is advisory.
type OrderItem struct {
	ProductCode         string   `json:"productCode"`
	Description         string   `json:"description,omitempty"`
	StationID           string   `json:"stationId"`
	DemandQty           float64  `json:"demandQty"`
	OnHandQty           float64  `json:"onHandQty"`
	MinQty              *float64 `json:"minQty,omitempty"`
	MaxQty              *float64 `json:"maxQty,omitempty"`
	RecommendedOrderQty float64  `json:"recommendedOrderQty"`
	ExceedsMax          bool     `json:"exceedsMax"`
}

// SkipReason explains why a demand item produced no order line.
type SkipReason string

const (
	SkipNoStation      SkipReason = "no_station"
	SkipStationInvalid SkipReason = "station_invalid"
	SkipMissingData    SkipReason = "missing_data"
)

// SkippedOrderItem is a demand item the order engine could not match to
// usable station data.
type SkippedOrderItem struct {
	ProductCode string     `json:"productCode"`
	Description string     `json:"description,omitempty"`
	DemandQty   float64    `json:"demandQty"`
	Reason      SkipReason `json:"reason"`
}

// CoverageReport states which demanded products have usable station
// data. Percentage is 100 when there is no demand at all.
type CoverageReport struct {
	Covered    []string `json:"covered"`
	Missing    []string `json:"missing"`
	Percentage int      `json:"percentage"`
}

// ExtractionStats summarizes extraction outcomes across a session's
// groups. The sums cover non-error groups only.
type ExtractionStats struct {
	SuccessGroups   int     `json:"successGroups"`
	WarningGroups   int     `json:"warningGroups"`
	ErrorGroups     int     `json:"errorGroups"`
	PendingGroups   int     `json:"pendingGroups"`
	TotalActivities int     `json:"totalActivities"`
	TotalLineItems  int     `json:"totalLineItems"`
	TotalCost       float64 `json:"totalCost"`
}
