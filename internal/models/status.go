package models

// SessionStatus tracks a capture session through its workflow phases.
// The progression is strictly forward; nothing ever moves a session back.
type SessionStatus string

const (
	SessionDraft                 SessionStatus = "draft"
	SessionCapturingLoadingLists SessionStatus = "capturing_loading_lists"
	SessionReviewDemand          SessionStatus = "review_demand"
	SessionCapturingInventory    SessionStatus = "capturing_inventory"
	SessionReviewOrder           SessionStatus = "review_order"
	SessionCompleted             SessionStatus = "completed"
)

// sessionOrder assigns each status its position in the workflow.
var sessionOrder = map[SessionStatus]int{
	SessionDraft:                 0,
	SessionCapturingLoadingLists: 1,
	SessionReviewDemand:          2,
	SessionCapturingInventory:    3,
	SessionReviewOrder:           4,
	SessionCompleted:             5,
}

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	_, ok := sessionOrder[s]
	return ok
}

// CanAdvanceTo reports whether moving from s to next is a legal,
// strictly forward transition.
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	from, ok := sessionOrder[s]
	if !ok {
		return false
	}
	to, ok := sessionOrder[next]
	if !ok {
		return false
	}
	return to > from
}

// GroupStatus is the single authoritative state of a capture group.
// Extraction state is carried here explicitly rather than inferred from
// the presence of a result.
type GroupStatus string

const (
	// GroupPending: created, waiting for one or more uploads.
	GroupPending GroupStatus = "pending"
	// GroupReady: all expected uploads have arrived; extraction may run.
	GroupReady GroupStatus = "ready"
	// GroupSuccess, GroupWarning, GroupError: extraction outcome classes.
	GroupSuccess GroupStatus = "success"
	GroupWarning GroupStatus = "warning"
	GroupError   GroupStatus = "error"
	// GroupNeedsAttention: an upload failed irrecoverably. Terminal for
	// the pipeline; the operator re-submits with a fresh group.
	GroupNeedsAttention GroupStatus = "needs_attention"
)

// Extracted reports whether extraction has produced an outcome for the
// group, whatever its class.
func (s GroupStatus) Extracted() bool {
	return s == GroupSuccess || s == GroupWarning || s == GroupError
}

// Extractable reports whether the group may be handed to the extraction
// model: either freshly ready, or already extracted (re-extraction
// overwrites the previous result).
func (s GroupStatus) Extractable() bool {
	return s == GroupReady || s.Extracted()
}

// StationStatus is the authoritative state of a station capture.
type StationStatus string

const (
	// StationPending: fewer than two slot uploads have arrived.
	StationPending StationStatus = "pending"
	// StationReady: both sign and stock photos are present.
	StationReady StationStatus = "ready"
	// StationValid: extraction read the sign; quantity fields are set.
	StationValid StationStatus = "valid"
	// StationNeedsAttention: an upload failed or extraction could not
	// produce a usable reading. Quantity fields are cleared.
	StationNeedsAttention StationStatus = "needs_attention"
)

// CaptureType records how an asset entered the system.
type CaptureType string

const (
	CaptureCameraPhoto  CaptureType = "camera_photo"
	CaptureUploadedFile CaptureType = "uploaded_file"
)

// UploadSlot names the two asset slots of a station capture.
type UploadSlot string

const (
	SlotSign  UploadSlot = "sign"
	SlotStock UploadSlot = "stock"
)

// Valid reports whether s names a known slot.
func (s UploadSlot) Valid() bool {
	return s == SlotSign || s == SlotStock
}
