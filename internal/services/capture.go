package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/fieldcaptureflow/internal/blob"
	"github.com/Lllllllleong/fieldcaptureflow/internal/events"
	"github.com/Lllllllleong/fieldcaptureflow/internal/gcp"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
)

// ErrInvalidArgument marks caller mistakes (malformed IDs, impossible
// requests). HTTP handlers map it to 400; everything else that is not a
// store sentinel is a 500.
var ErrInvalidArgument = errors.New("services: invalid argument")

// DefaultUploadTTL bounds how long a handed-out signed upload URL stays
// usable.
const DefaultUploadTTL = 15 * time.Minute

// Launcher starts one extraction workflow execution for an entity whose
// uploads just completed.
type Launcher interface {
	Launch(ctx context.Context, launch models.ExtractionLaunch) error
}

// CaptureService implements the capture pipeline: session lifecycle,
// create-then-fill group/station creation with signed upload targets,
// and the completion handling that promotes entities and hands them to
// the extraction workflow. It is shared by the HTTP gateway and the
// storage event watcher.
type CaptureService struct {
	store     store.Store
	blobs     blob.Store
	launcher  Launcher
	publisher events.Publisher
	uploadTTL time.Duration
	modelID   string
}

// NewCaptureService wires a capture service. launcher may be nil when no
// workflow engine is deployed; promotions are then logged and left for
// an explicit extraction call.
func NewCaptureService(st store.Store, blobs blob.Store, launcher Launcher, publisher events.Publisher, uploadTTL time.Duration, modelID string) *CaptureService {
	if uploadTTL <= 0 {
		uploadTTL = DefaultUploadTTL
	}
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &CaptureService{
		store:     st,
		blobs:     blobs,
		launcher:  launcher,
		publisher: publisher,
		uploadTTL: uploadTTL,
		modelID:   modelID,
	}
}

// NewCloudCaptureService wires the capture service for the Google Cloud
// deployment: Firestore entities, GCS assets, Cloud Workflows hand-off,
// CloudEvents cache invalidation.
func NewCloudCaptureService(ctx context.Context) (*CaptureService, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := gcp.GetEnv("ASSETS_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("ASSETS_BUCKET environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, err
	}
	launcher, err := gcp.NewWorkflowLauncher(ctx, projectID,
		gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		gcp.GetEnv("WORKFLOW_ID", "extraction-orchestrator"))
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.LogPublisher{}
	if target := gcp.GetEnv("REVALIDATE_URL", ""); target != "" {
		publisher, err = events.NewCloudEventPublisher(target, "fieldcaptureflow/"+gcp.GetEnv("K_SERVICE", "capture"))
		if err != nil {
			return nil, err
		}
	}

	st := store.NewFirestoreStore(firestoreClient, gcp.GetEnv("FIRESTORE_COLLECTION", store.DefaultCollection))
	blobs, err := blob.NewGCSStore(storageClient, bucket)
	if err != nil {
		return nil, err
	}
	modelID := gcp.GetEnv("EXTRACTION_MODEL_ID", gcp.DefaultModelID)
	return NewCaptureService(st, blobs, launcher, publisher, DefaultUploadTTL, modelID), nil
}

func parseID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s id %q is not a valid uuid: %w", kind, id, ErrInvalidArgument)
	}
	return nil
}

// invalidate announces stale cached views. Delivery failure never fails
// the mutation; a stale cache heals on expiry.
func (s *CaptureService) invalidate(ctx context.Context, sessionID string) {
	if err := s.publisher.Publish(ctx, events.SessionTouched(sessionID)...); err != nil {
		slog.Warn("Cache invalidation delivery failed", "sessionId", sessionID, "error", err)
	}
}

// --- Sessions ---

func (s *CaptureService) CreateSession(ctx context.Context) (*models.Session, error) {
	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		Status:    models.SessionDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("Capture session created", "sessionId", session.ID)
	s.invalidate(ctx, session.ID)
	return session, nil
}

func (s *CaptureService) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	return s.store.ListSessions(ctx, limit)
}

// GetSessionDetail assembles the full session read: the session row,
// every group with its ordered images, and every station.
func (s *CaptureService) GetSessionDetail(ctx context.Context, sessionID string) (*models.SessionDetail, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	groups, err := s.store.ListGroups(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail := &models.SessionDetail{Session: session}
	for _, group := range groups {
		images, err := s.store.ListImages(ctx, sessionID, group.ID)
		if err != nil {
			return nil, err
		}
		detail.Groups = append(detail.Groups, models.GroupDetail{Group: group, Images: images})
	}
	detail.Stations, err = s.store.ListStations(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *CaptureService) AdvanceSession(ctx context.Context, sessionID string, next models.SessionStatus) (*models.Session, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, fmt.Errorf("unknown session status %q: %w", next, ErrInvalidArgument)
	}
	session, err := s.store.AdvanceSession(ctx, sessionID, next)
	if err != nil {
		return nil, err
	}
	slog.Info("Session advanced", "sessionId", sessionID, "status", next)
	s.invalidate(ctx, sessionID)
	return session, nil
}

// --- Create-then-fill ---

// CreatePendingGroup opens an empty pending group and reserves one
// signed upload target per declared file. It performs a single insert so
// the client gets its upload URLs without waiting on anything else.
func (s *CaptureService) CreatePendingGroup(ctx context.Context, sessionID string, req models.CreateGroupRequest) (*models.CreateGroupResponse, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("a capture group needs at least one file: %w", ErrInvalidArgument)
	}
	seen := make(map[int]bool, len(req.Files))
	for _, f := range req.Files {
		if f.Index < 0 || f.Index >= len(req.Files) || seen[f.Index] {
			return nil, fmt.Errorf("file indexes must be unique and dense from 0: %w", ErrInvalidArgument)
		}
		seen[f.Index] = true
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	now := time.Now()
	group := &models.CaptureGroup{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		EmployeeLabel:  req.EmployeeLabel,
		ExpectedImages: len(req.Files),
		Status:         models.GroupPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	uploads := make([]models.UploadTarget, 0, len(req.Files))
	for _, f := range req.Files {
		objectPath := blob.LoadingListObjectPath(sessionID, group.ID, f.Index, blob.ExtForContentType(f.ContentType))
		url, expires, err := s.blobs.SignedUploadURL(ctx, objectPath, f.ContentType, s.uploadTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign upload url for index %d: %w", f.Index, err)
		}
		uploads = append(uploads, models.UploadTarget{
			Index:      f.Index,
			ObjectPath: objectPath,
			UploadURL:  url,
			ExpiresAt:  expires,
		})
	}

	slog.Info("Pending capture group created",
		"sessionId", sessionID, "groupId", group.ID, "expectedImages", group.ExpectedImages)
	s.invalidate(ctx, sessionID)
	return &models.CreateGroupResponse{GroupID: group.ID, Status: group.Status, Uploads: uploads}, nil
}

// CreatePendingStation opens an empty pending station capture and
// reserves signed upload targets for its sign and stock photos.
func (s *CaptureService) CreatePendingStation(ctx context.Context, sessionID string, req models.CreateStationRequest) (*models.CreateStationResponse, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	if len(req.Slots) == 0 {
		return nil, fmt.Errorf("a station capture needs at least one slot: %w", ErrInvalidArgument)
	}
	seen := make(map[models.UploadSlot]bool, len(req.Slots))
	for _, sl := range req.Slots {
		if !sl.Slot.Valid() || seen[sl.Slot] {
			return nil, fmt.Errorf("station slots must be a subset of sign/stock without repeats: %w", ErrInvalidArgument)
		}
		seen[sl.Slot] = true
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	now := time.Now()
	station := &models.StationCapture{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		ProductCode: req.ProductCode,
		Status:      models.StationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateStation(ctx, station); err != nil {
		return nil, err
	}

	uploads := make([]models.UploadTarget, 0, len(req.Slots))
	for _, sl := range req.Slots {
		objectPath := blob.StationObjectPath(sessionID, station.ID, sl.Slot, blob.ExtForContentType(sl.ContentType))
		url, expires, err := s.blobs.SignedUploadURL(ctx, objectPath, sl.ContentType, s.uploadTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to sign upload url for slot %s: %w", sl.Slot, err)
		}
		uploads = append(uploads, models.UploadTarget{
			Slot:       sl.Slot,
			ObjectPath: objectPath,
			UploadURL:  url,
			ExpiresAt:  expires,
		})
	}

	slog.Info("Pending station capture created",
		"sessionId", sessionID, "stationId", station.ID, "productCode", station.ProductCode)
	s.invalidate(ctx, sessionID)
	return &models.CreateStationResponse{StationID: station.ID, Status: station.Status, Uploads: uploads}, nil
}

// --- Upload completion ---

// CompletedUpload describes one finished asset upload, however the
// completion was observed: the client's callback to the gateway or a
// storage finalize event.
type CompletedUpload struct {
	ObjectPath       string
	Path             blob.ParsedPath
	Width            int
	Height           int
	CaptureType      models.CaptureType
	ValidationPassed *bool
	AIHintKind       string
	AIHintConfidence *float64
	UploadedAt       time.Time
}

// RecordGroupUpload is the gateway's completion callback for one group
// image. The object path must address the entity named in the URL.
func (s *CaptureService) RecordGroupUpload(ctx context.Context, sessionID, groupID string, req models.RecordUploadRequest) (*models.RecordUploadResponse, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	if err := parseID("group", groupID); err != nil {
		return nil, err
	}
	parsed, ok := blob.ParseObjectPath(req.ObjectPath)
	if !ok || parsed.Kind != blob.PathLoadingList || parsed.SessionID != sessionID || parsed.GroupID != groupID {
		return nil, fmt.Errorf("object path %q does not address this group: %w", req.ObjectPath, ErrInvalidArgument)
	}
	image, group, promoted, err := s.RecordImageUpload(ctx, CompletedUpload{
		ObjectPath:       req.ObjectPath,
		Path:             parsed,
		Width:            req.Width,
		Height:           req.Height,
		CaptureType:      req.CaptureType,
		ValidationPassed: req.ValidationPassed,
		AIHintKind:       req.AIHintKind,
		AIHintConfidence: req.AIHintConfidence,
		UploadedAt:       time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &models.RecordUploadResponse{ImageID: image.ID, Promoted: promoted, Status: group.Status}, nil
}

// RecordStationSlotUpload is the gateway's completion callback for one
// station photo.
func (s *CaptureService) RecordStationSlotUpload(ctx context.Context, sessionID, stationID string, req models.RecordUploadRequest) (*models.RecordSlotResponse, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	if err := parseID("station", stationID); err != nil {
		return nil, err
	}
	parsed, ok := blob.ParseObjectPath(req.ObjectPath)
	if !ok || parsed.Kind != blob.PathStation || parsed.SessionID != sessionID || parsed.StationID != stationID {
		return nil, fmt.Errorf("object path %q does not address this station: %w", req.ObjectPath, ErrInvalidArgument)
	}
	station, promoted, err := s.RecordStationUpload(ctx, CompletedUpload{
		ObjectPath: req.ObjectPath,
		Path:       parsed,
		UploadedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return &models.RecordSlotResponse{Promoted: promoted, Status: station.Status}, nil
}

// RecordImageUpload attaches one completed group image. The image ID is
// derived deterministically from the object path, so a redelivered
// completion collapses into the already-attached row and can never
// promote a second time. On the single promoting call the group's asset
// list is handed to the extraction workflow.
func (s *CaptureService) RecordImageUpload(ctx context.Context, up CompletedUpload) (*models.Image, *models.CaptureGroup, bool, error) {
	if up.Path.Kind != blob.PathLoadingList {
		return nil, nil, false, fmt.Errorf("object path %q is not a loading-list asset: %w", up.ObjectPath, ErrInvalidArgument)
	}
	logCtx := slog.With("sessionId", up.Path.SessionID, "groupId", up.Path.GroupID, "index", up.Path.Index)

	captureType := up.CaptureType
	if captureType == "" {
		captureType = models.CaptureCameraPhoto
	}
	uploadedAt := up.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	image := &models.Image{
		ID:                     uuid.NewSHA1(uuid.NameSpaceURL, []byte(up.ObjectPath)).String(),
		GroupID:                up.Path.GroupID,
		SessionID:              up.Path.SessionID,
		BlobURL:                s.blobs.URL(up.ObjectPath),
		ObjectPath:             up.ObjectPath,
		CaptureType:            captureType,
		OrderIndex:             up.Path.Index,
		Width:                  up.Width,
		Height:                 up.Height,
		UploadValidationPassed: up.ValidationPassed,
		AIHintKind:             up.AIHintKind,
		AIHintConfidence:       up.AIHintConfidence,
		UploadedAt:             uploadedAt,
	}

	promoted, group, err := s.store.AttachImage(ctx, image)
	if err != nil {
		return nil, nil, false, err
	}
	logCtx.Info("Image upload recorded", "imageId", image.ID, "promoted", promoted)
	s.invalidate(ctx, up.Path.SessionID)

	if promoted {
		if err := s.launchGroupExtraction(ctx, group); err != nil {
			logCtx.Error("Failed to hand ready group to the extraction workflow", "error", err)
			return image, group, true, err
		}
	}
	return image, group, promoted, nil
}

// RecordStationUpload fills one completed station slot. Exactly the
// call that completes the pair launches station extraction.
func (s *CaptureService) RecordStationUpload(ctx context.Context, up CompletedUpload) (*models.StationCapture, bool, error) {
	if up.Path.Kind != blob.PathStation {
		return nil, false, fmt.Errorf("object path %q is not a station asset: %w", up.ObjectPath, ErrInvalidArgument)
	}
	logCtx := slog.With("sessionId", up.Path.SessionID, "stationId", up.Path.StationID, "slot", up.Path.Slot)

	uploadedAt := up.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	promoted, station, err := s.store.FillStationSlot(ctx,
		up.Path.SessionID, up.Path.StationID, up.Path.Slot,
		up.ObjectPath, s.blobs.URL(up.ObjectPath), uploadedAt)
	if err != nil {
		return nil, false, err
	}
	logCtx.Info("Station photo recorded", "promoted", promoted)
	s.invalidate(ctx, up.Path.SessionID)

	if promoted {
		if err := s.launchStationExtraction(ctx, station); err != nil {
			logCtx.Error("Failed to hand ready station to the extraction workflow", "error", err)
			return station, true, err
		}
	}
	return station, promoted, nil
}

func (s *CaptureService) launchGroupExtraction(ctx context.Context, group *models.CaptureGroup) error {
	if s.launcher == nil {
		slog.Info("No workflow engine configured; group awaits an explicit extraction call",
			"sessionId", group.SessionID, "groupId", group.ID)
		return nil
	}
	images, err := s.store.ListImages(ctx, group.SessionID, group.ID)
	if err != nil {
		return fmt.Errorf("failed to list images for hand-off: %w", err)
	}
	uris := make([]string, 0, len(images))
	for _, img := range images {
		uris = append(uris, s.blobs.URI(img.ObjectPath))
	}
	return s.launcher.Launch(ctx, models.ExtractionLaunch{
		SessionID: group.SessionID,
		Kind:      models.LaunchKindGroup,
		EntityID:  group.ID,
		AssetURIs: uris,
		ModelID:   s.modelID,
	})
}

func (s *CaptureService) launchStationExtraction(ctx context.Context, station *models.StationCapture) error {
	if s.launcher == nil {
		slog.Info("No workflow engine configured; station awaits an explicit extraction call",
			"sessionId", station.SessionID, "stationId", station.ID)
		return nil
	}
	return s.launcher.Launch(ctx, models.ExtractionLaunch{
		SessionID: station.SessionID,
		Kind:      models.LaunchKindStation,
		EntityID:  station.ID,
		AssetURIs: []string{s.blobs.URI(station.SignObjectPath), s.blobs.URI(station.StockObjectPath)},
		ModelID:   s.modelID,
	})
}

// --- Upload failure and image management ---

func (s *CaptureService) MarkGroupUploadFailed(ctx context.Context, sessionID, groupID, reason string) (*models.CaptureGroup, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	if err := parseID("group", groupID); err != nil {
		return nil, err
	}
	group, err := s.store.MarkGroupFailed(ctx, sessionID, groupID, reason)
	if err != nil {
		return nil, err
	}
	slog.Warn("Capture group marked failed", "sessionId", sessionID, "groupId", groupID, "reason", reason)
	s.invalidate(ctx, sessionID)
	return group, nil
}

func (s *CaptureService) MarkStationUploadFailed(ctx context.Context, sessionID, stationID, reason string) (*models.StationCapture, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, err
	}
	if err := parseID("station", stationID); err != nil {
		return nil, err
	}
	station, err := s.store.MarkStationFailed(ctx, sessionID, stationID, reason)
	if err != nil {
		return nil, err
	}
	slog.Warn("Station capture marked failed", "sessionId", sessionID, "stationId", stationID, "reason", reason)
	s.invalidate(ctx, sessionID)
	return station, nil
}

// DeleteImage removes one image and its blob. The blob delete is
// best-effort; the retention sweep picks up leftovers.
func (s *CaptureService) DeleteImage(ctx context.Context, sessionID, groupID, imageID string) error {
	if err := parseID("session", sessionID); err != nil {
		return err
	}
	if err := parseID("group", groupID); err != nil {
		return err
	}
	if err := parseID("image", imageID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteImage(ctx, sessionID, groupID, imageID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, deleted.BlobURL); err != nil {
		slog.Warn("Failed to delete image blob", "blobUrl", deleted.BlobURL, "error", err)
	}
	slog.Info("Image deleted", "sessionId", sessionID, "groupId", groupID, "imageId", imageID)
	s.invalidate(ctx, sessionID)
	return nil
}

func (s *CaptureService) ReorderImages(ctx context.Context, sessionID, groupID string, imageIDs []string) error {
	if err := parseID("session", sessionID); err != nil {
		return err
	}
	if err := parseID("group", groupID); err != nil {
		return err
	}
	if len(imageIDs) == 0 {
		return fmt.Errorf("reorder needs the full image id list: %w", ErrInvalidArgument)
	}
	if err := s.store.ReorderImages(ctx, sessionID, groupID, imageIDs); err != nil {
		return err
	}
	s.invalidate(ctx, sessionID)
	return nil
}
