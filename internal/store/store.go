// Package store persists capture workflow state. Two implementations
// exist: Firestore for the cloud deployment and a gorm-backed SQL store
// for self-hosted installs and tests. Both enforce the same transition
// guards, so the services above them never see backend differences.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

var (
	// ErrNotFound is returned when an addressed entity does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when an operation is not legal from the
	// entity's current status.
	ErrConflict = errors.New("store: status conflict")
)

// GroupExtractionUpdate carries everything one extraction run writes to
// a capture group. Status and result land in a single write so a stale
// status can never be observed next to a fresh result.
type GroupExtractionUpdate struct {
	Status        models.GroupStatus
	ModelID       string
	Result        *models.ExtractionResult
	FailureReason string
	ExtractedAt   time.Time
}

// StationExtractionUpdate carries everything one extraction run writes
// to a station capture. Quantity fields are applied only when Status is
// StationValid and cleared otherwise.
type StationExtractionUpdate struct {
	Status        models.StationStatus
	ModelID       string
	Reading       *models.StationReading
	Warnings      []string
	FailureReason string
	ExtractedAt   time.Time
}

// Store is the persistence surface of the capture workflow.
//
// Entity addressing always carries the session ID because the Firestore
// backend keys child entities under their session document.
type Store interface {
	// Sessions.
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*models.Session, error)
	// AdvanceSession applies a strictly forward status transition. A
	// lost race against an identical transition is reported as success.
	AdvanceSession(ctx context.Context, sessionID string, next models.SessionStatus) (*models.Session, error)
	// ListSessionsCreatedBefore returns sessions with createdAt strictly
	// before the cutoff, oldest first.
	ListSessionsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error)
	// DeleteSessionCascade removes a session and every group, image and
	// station under it. Blob objects are not touched.
	DeleteSessionCascade(ctx context.Context, sessionID string) error

	// Capture groups.
	CreateGroup(ctx context.Context, group *models.CaptureGroup) error
	GetGroup(ctx context.Context, sessionID, groupID string) (*models.CaptureGroup, error)
	ListGroups(ctx context.Context, sessionID string) ([]*models.CaptureGroup, error)
	ListImages(ctx context.Context, sessionID, groupID string) ([]*models.Image, error)
	// AttachImage records one completed upload. The image ID must be
	// deterministic per object so duplicate completion events collapse
	// into the existing row. It reports promoted=true for exactly the
	// one call that moves the group from pending to ready.
	AttachImage(ctx context.Context, image *models.Image) (promoted bool, group *models.CaptureGroup, err error)
	// DeleteImage removes one image, renumbers the survivors densely,
	// and lowers the expected count while the group is still pending.
	// It returns the deleted image so the caller can drop its blob.
	DeleteImage(ctx context.Context, sessionID, groupID, imageID string) (*models.Image, error)
	// ReorderImages applies a full permutation of the group's images,
	// given as image IDs in their new presentation order.
	ReorderImages(ctx context.Context, sessionID, groupID string, imageIDs []string) error
	// MarkGroupFailed moves a pending or ready group to needs_attention.
	// Already-attached images are retained.
	MarkGroupFailed(ctx context.Context, sessionID, groupID, reason string) (*models.CaptureGroup, error)
	// SetGroupExtraction writes one extraction outcome. Legal only from
	// ready or a previous extraction outcome (re-extraction overwrites).
	SetGroupExtraction(ctx context.Context, sessionID, groupID string, upd GroupExtractionUpdate) (*models.CaptureGroup, error)

	// Station captures.
	CreateStation(ctx context.Context, station *models.StationCapture) error
	GetStation(ctx context.Context, sessionID, stationID string) (*models.StationCapture, error)
	ListStations(ctx context.Context, sessionID string) ([]*models.StationCapture, error)
	// FillStationSlot records one completed slot upload. Filling the
	// same slot with the same object again is a no-op. It reports
	// promoted=true for exactly the one call that completes the pair.
	FillStationSlot(ctx context.Context, sessionID, stationID string, slot models.UploadSlot, objectPath, blobURL string, uploadedAt time.Time) (promoted bool, station *models.StationCapture, err error)
	// MarkStationFailed moves a pending or ready station to
	// needs_attention.
	MarkStationFailed(ctx context.Context, sessionID, stationID, reason string) (*models.StationCapture, error)
	// SetStationExtraction writes one extraction outcome. Legal from any
	// status except pending.
	SetStationExtraction(ctx context.Context, sessionID, stationID string, upd StationExtractionUpdate) (*models.StationCapture, error)
}
