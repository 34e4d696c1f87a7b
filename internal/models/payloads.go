package models

import "time"

// These structs define the JSON payloads for HTTP requests and responses
// between the capture UI, the Cloud Workflow, and the worker Cloud
// Functions.

// CreateSessionResponse is returned when a new capture session is opened.
type CreateSessionResponse struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
}

// AdvanceSessionRequest moves a session to a later workflow phase.
type AdvanceSessionRequest struct {
	Status SessionStatus `json:"status"`
}

// UploadFileInfo describes one asset the client intends to upload.
type UploadFileInfo struct {
	Index       int         `json:"index"`
	ContentType string      `json:"contentType"`
	CaptureType CaptureType `json:"captureType"`
}

// CreateGroupRequest opens a pending capture group and reserves upload
// slots for its images.
type CreateGroupRequest struct {
	EmployeeLabel string           `json:"employeeLabel,omitempty"`
	Files         []UploadFileInfo `json:"files"`
}

// UploadTarget is one signed PUT destination handed back to the client.
// Index is set for group images, Slot for station photos.
type UploadTarget struct {
	Index      int        `json:"index,omitempty"`
	Slot       UploadSlot `json:"slot,omitempty"`
	ObjectPath string     `json:"objectPath"`
	UploadURL  string     `json:"uploadUrl"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// CreateGroupResponse is the gateway's answer to CreateGroupRequest.
type CreateGroupResponse struct {
	GroupID string         `json:"groupId"`
	Status  GroupStatus    `json:"status"`
	Uploads []UploadTarget `json:"uploads"`
}

// CreateStationRequest opens a pending station capture and reserves
// upload slots for its sign and stock photos. ProductCode is optional;
// extraction fills or corrects it from the sign photo.
type CreateStationRequest struct {
	ProductCode string           `json:"productCode,omitempty"`
	Slots       []UploadSlotInfo `json:"slots"`
}

// UploadSlotInfo describes one station photo the client intends to upload.
type UploadSlotInfo struct {
	Slot        UploadSlot `json:"slot"`
	ContentType string     `json:"contentType"`
}

type CreateStationResponse struct {
	StationID string         `json:"stationId"`
	Status    StationStatus  `json:"status"`
	Uploads   []UploadTarget `json:"uploads"`
}

// MarkFailedRequest records an irrecoverable client-side upload failure.
type MarkFailedRequest struct {
	Reason string `json:"reason"`
}

// ReorderImagesRequest supplies the full new presentation order of a
// group's images as image IDs.
type ReorderImagesRequest struct {
	ImageIDs []string `json:"imageIds"`
}

// RecordUploadRequest is the client's completion callback for one
// uploaded asset. The object path must be one previously handed out for
// the addressed entity; index or slot are recovered from it. The AI
// hint fields carry the capture UI's on-device classification verdict;
// they are stored as advisory metadata only.
type RecordUploadRequest struct {
	ObjectPath       string      `json:"objectPath"`
	Width            int         `json:"width,omitempty"`
	Height           int         `json:"height,omitempty"`
	CaptureType      CaptureType `json:"captureType,omitempty"`
	ValidationPassed *bool       `json:"validationPassed,omitempty"`
	AIHintKind       string      `json:"aiHintKind,omitempty"`
	AIHintConfidence *float64    `json:"aiHintConfidence,omitempty"`
}

// RecordUploadResponse acknowledges one recorded group image upload.
type RecordUploadResponse struct {
	ImageID  string      `json:"imageId"`
	Promoted bool        `json:"promoted"`
	Status   GroupStatus `json:"status"`
}

// RecordSlotResponse acknowledges one recorded station photo upload.
type RecordSlotResponse struct {
	Promoted bool          `json:"promoted"`
	Status   StationStatus `json:"status"`
}

// ExtractionLaunch is the argument handed to the extraction workflow
// when an entity becomes ready. It carries the asset URIs directly so
// the workers never re-list storage.
type ExtractionLaunch struct {
	SessionID string   `json:"sessionId"`
	Kind      string   `json:"kind"`
	EntityID  string   `json:"entityId"`
	AssetURIs []string `json:"assetUris"`
	ModelID   string   `json:"modelId,omitempty"`
}

// Entity kinds carried in an ExtractionLaunch.
const (
	LaunchKindGroup   = "group"
	LaunchKindStation = "station"
)

// GroupExtractionRequest is the input for the extraction-runner function
// when processing a loading-list capture group.
type GroupExtractionRequest struct {
	SessionID   string   `json:"sessionId"`
	GroupID     string   `json:"groupId"`
	AssetURIs   []string `json:"assetUris"`
	ModelID     string   `json:"modelId,omitempty"`
	ExecutionID string   `json:"executionId,omitempty"`
}

// GroupExtractionResponse is the output of the extraction-runner function.
type GroupExtractionResponse struct {
	Status         GroupStatus `json:"status"`
	TotalLineItems int         `json:"totalLineItems"`
}

// StationExtractionRequest is the input for the extraction-runner
// function when processing a station capture.
type StationExtractionRequest struct {
	SessionID   string `json:"sessionId"`
	StationID   string `json:"stationId"`
	SignURI     string `json:"signUri"`
	StockURI    string `json:"stockUri"`
	ModelID     string `json:"modelId,omitempty"`
	ExecutionID string `json:"executionId,omitempty"`
}

type StationExtractionResponse struct {
	Status      StationStatus `json:"status"`
	ProductCode string        `json:"productCode,omitempty"`
}

// GroupDetail pairs a capture group with its ordered images.
type GroupDetail struct {
	Group  *CaptureGroup `json:"group"`
	Images []*Image      `json:"images"`
}

// SessionDetail is the gateway's full read of one session.
type SessionDetail struct {
	Session  *Session          `json:"session"`
	Groups   []GroupDetail     `json:"groups"`
	Stations []*StationCapture `json:"stations"`
}

// DemandReport is the aggregated demand view for one session.
type DemandReport struct {
	SessionID   string          `json:"sessionId"`
	Items       []DemandItem    `json:"items"`
	Stats       ExtractionStats `json:"stats"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// OrderReport is the order recommendation view for one session.
type OrderReport struct {
	SessionID   string             `json:"sessionId"`
	Items       []OrderItem        `json:"items"`
	Skipped     []SkippedOrderItem `json:"skipped"`
	Coverage    CoverageReport     `json:"coverage"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// CleanupReport is the outcome of one retention sweep.
type CleanupReport struct {
	Cutoff           time.Time `json:"cutoff"`
	SessionsExamined int       `json:"sessionsExamined"`
	SessionsDeleted  int       `json:"sessionsDeleted"`
	DeletedBlobs     int       `json:"deletedBlobs"`
	FailedBlobs      int       `json:"failedBlobs"`
	Errors           []string  `json:"errors,omitempty"`
}
