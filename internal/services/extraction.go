package services

import (
	"context"
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

// Extractor is the model call surface. It returns the parsed result,
// the raw model text for the audit trail, and the call error.
type Extractor interface {
	ExtractLoadingList(ctx context.Context, assetURIs []string, modelID string) (*models.ExtractionResult, string, error)
	ExtractStation(ctx context.Context, signURI, stockURI, modelID string) (*models.StationReading, string, error)
}

// ExtractionService runs extraction calls and ingests their outcomes.
// An extraction outcome, including a failed one, is a classification
// written to the entity, never a Go error; errors are reserved for
// infrastructure and caller mistakes.
type ExtractionService struct {
	store     store.Store
	extractor Extractor
	blobs     blob.Store
	publisher events.Publisher
	modelID   string
}

// NewExtractionService wires an extraction service. blobs may be nil to
// disable the raw-output audit trail.
func NewExtractionService(st store.Store, extractor Extractor, blobs blob.Store, publisher events.Publisher, modelID string) *ExtractionService {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	if modelID == "" {
		modelID = gcp.DefaultModelID
	}
	return &ExtractionService{store: st, extractor: extractor, blobs: blobs, publisher: publisher, modelID: modelID}
}

// NewCloudExtractionService wires the extraction service against Vertex
// AI, Firestore and GCS.
func NewCloudExtractionService(ctx context.Context) (*ExtractionService, error) {
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
	vertexClient, err := gcp.NewVertexClient(ctx, projectID, gcp.GetEnv("VERTEX_AI_REGION", "us-central1"))
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.LogPublisher{}
	if target := gcp.GetEnv("REVALIDATE_URL", ""); target != "" {
		publisher, err = events.NewCloudEventPublisher(target, "fieldcaptureflow/"+gcp.GetEnv("K_SERVICE", "extraction-runner"))
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
	return NewExtractionService(st, gcp.NewVertexExtractor(vertexClient), blobs, publisher, modelID), nil
}

// ProcessGroup extracts one loading-list capture group and writes the
// classified outcome. Asset URIs are taken from the request (the
// workflow hand-off carries them) or recovered from the stored images
// on a re-extraction call.
func (s *ExtractionService) ProcessGroup(ctx context.Context, req models.GroupExtractionRequest) (*models.GroupExtractionResponse, error) {
	if err := parseID("session", req.SessionID); err != nil {
		return nil, err
	}
	if err := parseID("group", req.GroupID); err != nil {
		return nil, err
	}
	logCtx := slog.With("sessionId", req.SessionID, "groupId", req.GroupID, "executionId", req.ExecutionID)

	group, err := s.store.GetGroup(ctx, req.SessionID, req.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.Status.Extractable() {
		return nil, fmt.Errorf("group %s is %s, not extractable: %w", req.GroupID, group.Status, store.ErrConflict)
	}

	uris := req.AssetURIs
	if len(uris) == 0 {
		images, err := s.store.ListImages(ctx, req.SessionID, req.GroupID)
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			uris = append(uris, s.assetURI(img.ObjectPath))
		}
	}
	if len(uris) == 0 {
		return nil, fmt.Errorf("group %s has no assets to extract: %w", req.GroupID, ErrInvalidArgument)
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = s.modelID
	}
	logCtx.Info("Starting loading-list extraction.", "model", modelID, "assetCount", len(uris))

	result, raw, callErr := s.extractor.ExtractLoadingList(ctx, uris, modelID)
	s.writeAudit(ctx, req.SessionID, req.GroupID, req.ExecutionID, raw)

	status := models.GroupSuccess
	failureReason := ""
	switch {
	case callErr != nil:
		status = models.GroupError
		failureReason = callErr.Error()
		logCtx.Error("Loading-list extraction call failed", "error", callErr)
	case result == nil || !result.Usable():
		status = models.GroupError
		failureReason = "extraction produced no line items"
		logCtx.Warn("Loading-list extraction produced no usable line items")
	case result.HasWarnings():
		status = models.GroupWarning
	}

	group, err = s.store.SetGroupExtraction(ctx, req.SessionID, req.GroupID, store.GroupExtractionUpdate{
		Status:        status,
		ModelID:       modelID,
		Result:        result,
		FailureReason: failureReason,
		ExtractedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.SessionID)

	totalLineItems := 0
	if result != nil {
		totalLineItems = len(result.LineItems)
	}
	logCtx.Info("Loading-list extraction ingested", "status", group.Status, "totalLineItems", totalLineItems)
	return &models.GroupExtractionResponse{Status: group.Status, TotalLineItems: totalLineItems}, nil
}

// ProcessStation extracts one station capture. A reading counts as
// valid only when it is complete and warning-free; anything else lands
// as needs_attention with the quantity fields cleared and the warnings
// retained for review.
func (s *ExtractionService) ProcessStation(ctx context.Context, req models.StationExtractionRequest) (*models.StationExtractionResponse, error) {
	if err := parseID("session", req.SessionID); err != nil {
		return nil, err
	}
	if err := parseID("station", req.StationID); err != nil {
		return nil, err
	}
	logCtx := slog.With("sessionId", req.SessionID, "stationId", req.StationID, "executionId", req.ExecutionID)

	station, err := s.store.GetStation(ctx, req.SessionID, req.StationID)
	if err != nil {
		return nil, err
	}
	if station.Status == models.StationPending {
		return nil, fmt.Errorf("station %s is pending, not extractable: %w", req.StationID, store.ErrConflict)
	}

	signURI := req.SignURI
	if signURI == "" && station.SignObjectPath != "" {
		signURI = s.assetURI(station.SignObjectPath)
	}
	stockURI := req.StockURI
	if stockURI == "" && station.StockObjectPath != "" {
		stockURI = s.assetURI(station.StockObjectPath)
	}
	if signURI == "" || stockURI == "" {
		return nil, fmt.Errorf("station %s is missing a sign or stock asset: %w", req.StationID, ErrInvalidArgument)
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = s.modelID
	}
	logCtx.Info("Starting station extraction.", "model", modelID)

	reading, raw, callErr := s.extractor.ExtractStation(ctx, signURI, stockURI, modelID)
	s.writeAudit(ctx, req.SessionID, req.StationID, req.ExecutionID, raw)

	status := models.StationValid
	failureReason := ""
	var warnings []string
	if reading != nil {
		warnings = reading.Warnings
	}
	switch {
	case callErr != nil:
		status = models.StationNeedsAttention
		failureReason = callErr.Error()
		logCtx.Error("Station extraction call failed", "error", callErr)
	case reading == nil:
		status = models.StationNeedsAttention
		failureReason = "extraction produced no reading"
	case !reading.Complete():
		status = models.StationNeedsAttention
		failureReason = "sign reading incomplete"
		logCtx.Warn("Station sign reading incomplete", "productCode", reading.ProductCode)
	case len(reading.Warnings) > 0:
		status = models.StationNeedsAttention
		failureReason = "extraction flagged warnings"
	}

	station, err = s.store.SetStationExtraction(ctx, req.SessionID, req.StationID, store.StationExtractionUpdate{
		Status:        status,
		ModelID:       modelID,
		Reading:       reading,
		Warnings:      warnings,
		FailureReason: failureReason,
		ExtractedAt:   time.Now(),
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.SessionID)

	logCtx.Info("Station extraction ingested", "status", station.Status, "productCode", station.ProductCode)
	return &models.StationExtractionResponse{Status: station.Status, ProductCode: station.ProductCode}, nil
}

func (s *ExtractionService) assetURI(objectPath string) string {
	if s.blobs == nil {
		return objectPath
	}
	return s.blobs.URI(objectPath)
}

// writeAudit keeps the raw model output next to the assets. Best
// effort: a failed audit write never affects the ingested outcome, and
// the conditional write makes workflow retries a no-op.
func (s *ExtractionService) writeAudit(ctx context.Context, sessionID, entityID, executionID, raw string) {
	if s.blobs == nil || raw == "" {
		return
	}
	if executionID == "" {
		executionID = uuid.NewString()
	}
	objectPath := blob.ExtractionAuditPath(sessionID, entityID, executionID)
	if err := s.blobs.Put(ctx, objectPath, "application/json", []byte(raw)); err != nil {
		slog.Warn("Failed to persist raw extraction output", "objectPath", objectPath, "error", err)
	}
}

func (s *ExtractionService) invalidate(ctx context.Context, sessionID string) {
	if err := s.publisher.Publish(ctx, events.SessionTouched(sessionID)...); err != nil {
		slog.Warn("Cache invalidation delivery failed", "sessionId", sessionID, "error", err)
	}
}
