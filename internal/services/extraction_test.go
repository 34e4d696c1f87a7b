package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/fieldcaptureflow/internal/blob"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
)

type extractionFixture struct {
	svc       *ExtractionService
	capture   *CaptureService
	store     store.Store
	blobs     *fakeBlobStore
	extractor *fakeExtractor
}

func newExtractionFixture(t *testing.T) *extractionFixture {
	t.Helper()
	st := newTestStore(t)
	blobs := newFakeBlobStore()
	extractor := &fakeExtractor{}
	return &extractionFixture{
		svc:       NewExtractionService(st, extractor, blobs, &recordingPublisher{}, "model-test"),
		capture:   NewCaptureService(st, blobs, nil, &recordingPublisher{}, time.Minute, "model-test"),
		store:     st,
		blobs:     blobs,
		extractor: extractor,
	}
}

// readyGroup captures a session with one fully uploaded group and
// returns its identifiers plus the uploaded object paths.
func (f *extractionFixture) readyGroup(t *testing.T, images int) (sessionID, groupID string, paths []string) {
	t.Helper()
	ctx := context.Background()
	session := mustCreateSession(t, f.capture)
	group := mustCreateGroup(t, f.capture, session.ID, images)
	for _, target := range group.Uploads {
		_, err := f.capture.RecordGroupUpload(ctx, session.ID, group.GroupID, models.RecordUploadRequest{
			ObjectPath: target.ObjectPath,
		})
		require.NoError(t, err)
		paths = append(paths, target.ObjectPath)
	}
	return session.ID, group.GroupID, paths
}

func (f *extractionFixture) readyStation(t *testing.T) (sessionID, stationID string) {
	t.Helper()
	ctx := context.Background()
	session := mustCreateSession(t, f.capture)
	created, err := f.capture.CreatePendingStation(ctx, session.ID, models.CreateStationRequest{
		Slots: []models.UploadSlotInfo{
			{Slot: models.SlotSign, ContentType: "image/jpeg"},
			{Slot: models.SlotStock, ContentType: "image/jpeg"},
		},
	})
	require.NoError(t, err)
	for _, target := range created.Uploads {
		_, err := f.capture.RecordStationSlotUpload(ctx, session.ID, created.StationID, models.RecordUploadRequest{
			ObjectPath: target.ObjectPath,
		})
		require.NoError(t, err)
	}
	return session.ID, created.StationID
}

func usableResult(items ...models.LineItem) *models.ExtractionResult {
	return &models.ExtractionResult{
		LineItems: items,
		Summary:   models.ExtractionSummary{TotalLineItems: len(items)},
	}
}

func TestProcessGroup_Success(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, groupID, _ := f.readyGroup(t, 2)

	f.extractor.result = usableResult(
		models.LineItem{PrimaryCode: "A100", Quantity: 4, ActivityCode: "ACT-1"},
	)
	resp, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{
		SessionID: sessionID,
		GroupID:   groupID,
		AssetURIs: []string{"gs://assets-test/a", "gs://assets-test/b"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.GroupSuccess, resp.Status)
	assert.Equal(t, 1, resp.TotalLineItems)

	group, err := f.store.GetGroup(ctx, sessionID, groupID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupSuccess, group.Status)
	assert.Equal(t, "model-test", group.ExtractionModel)
	require.NotNil(t, group.Extraction)
	assert.Equal(t, "A100", group.Extraction.LineItems[0].PrimaryCode)
	assert.NotNil(t, group.ExtractedAt)
}

func TestProcessGroup_WarningClassification(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()

	t.Run("model warnings", func(t *testing.T) {
		sessionID, groupID, _ := f.readyGroup(t, 1)
		result := usableResult(models.LineItem{PrimaryCode: "A100", Quantity: 1})
		result.Warnings = []string{"handwriting unclear on page 1"}
		f.extractor.result = result

		resp, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: sessionID, GroupID: groupID})
		require.NoError(t, err)
		assert.Equal(t, models.GroupWarning, resp.Status)
	})

	t.Run("ignored images", func(t *testing.T) {
		sessionID, groupID, _ := f.readyGroup(t, 2)
		result := usableResult(models.LineItem{PrimaryCode: "A100", Quantity: 1})
		result.IgnoredImages = []int{1}
		f.extractor.result = result

		resp, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: sessionID, GroupID: groupID})
		require.NoError(t, err)
		assert.Equal(t, models.GroupWarning, resp.Status)
	})
}

func TestProcessGroup_CallErrorBecomesStatus(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, groupID, _ := f.readyGroup(t, 1)

	f.extractor.err = errors.New("model quota exhausted")
	resp, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: sessionID, GroupID: groupID})
	require.NoError(t, err, "a failed extraction is an outcome, not an error")
	assert.Equal(t, models.GroupError, resp.Status)
	assert.Zero(t, resp.TotalLineItems)

	group, err := f.store.GetGroup(ctx, sessionID, groupID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupError, group.Status)
	assert.Equal(t, "model quota exhausted", group.FailureReason)
	assert.Nil(t, group.Extraction)
}

func TestProcessGroup_NoLineItemsIsError(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, groupID, _ := f.readyGroup(t, 1)

	f.extractor.result = &models.ExtractionResult{
		Activities: []models.Activity{{ActivityCode: "ACT-1"}},
	}
	resp, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: sessionID, GroupID: groupID})
	require.NoError(t, err)
	assert.Equal(t, models.GroupError, resp.Status)

	group, err := f.store.GetGroup(ctx, sessionID, groupID)
	require.NoError(t, err)
	assert.Equal(t, "extraction produced no line items", group.FailureReason)
	require.NotNil(t, group.Extraction, "the empty result is kept for review")
}

func TestProcessGroup_PendingGroupConflicts(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	session := mustCreateSession(t, f.capture)
	group := mustCreateGroup(t, f.capture, session.ID, 2)

	_, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: session.ID, GroupID: group.GroupID})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestProcessGroup_RecoversAssetURIs(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, groupID, paths := f.readyGroup(t, 2)

	f.extractor.result = usableResult(models.LineItem{PrimaryCode: "A100", Quantity: 1})
	_, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: sessionID, GroupID: groupID})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"gs://assets-test/" + paths[0],
		"gs://assets-test/" + paths[1],
	}, f.extractor.lastURIs, "re-extraction rebuilds URIs from the stored images")
}

func TestProcessGroup_WritesAuditObject(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, groupID, _ := f.readyGroup(t, 1)

	f.extractor.result = usableResult(models.LineItem{PrimaryCode: "A100", Quantity: 1})
	f.extractor.raw = `{"lineItems":[{"primaryCode":"A100","quantity":1}]}`
	_, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{
		SessionID:   sessionID,
		GroupID:     groupID,
		ExecutionID: "exec-7",
	})
	require.NoError(t, err)

	auditPath := blob.ExtractionAuditPath(sessionID, groupID, "exec-7")
	assert.Equal(t, []byte(f.extractor.raw), f.blobs.puts[auditPath])
}

func TestProcessGroup_ReextractionClearsFailure(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, groupID, _ := f.readyGroup(t, 1)

	f.extractor.err = errors.New("transient upstream failure")
	_, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: sessionID, GroupID: groupID})
	require.NoError(t, err)

	f.extractor.err = nil
	f.extractor.result = usableResult(models.LineItem{PrimaryCode: "A100", Quantity: 2})
	resp, err := f.svc.ProcessGroup(ctx, models.GroupExtractionRequest{SessionID: sessionID, GroupID: groupID})
	require.NoError(t, err)
	assert.Equal(t, models.GroupSuccess, resp.Status)

	group, err := f.store.GetGroup(ctx, sessionID, groupID)
	require.NoError(t, err)
	assert.Empty(t, group.FailureReason)
}

func TestProcessStation_Valid(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, stationID := f.readyStation(t)

	f.extractor.reading = &models.StationReading{
		ProductCode: "A100",
		MinQty:      f64(2),
		MaxQty:      f64(10),
		OnHandQty:   f64(6),
	}
	resp, err := f.svc.ProcessStation(ctx, models.StationExtractionRequest{SessionID: sessionID, StationID: stationID})
	require.NoError(t, err)
	assert.Equal(t, models.StationValid, resp.Status)
	assert.Equal(t, "A100", resp.ProductCode)

	station, err := f.store.GetStation(ctx, sessionID, stationID)
	require.NoError(t, err)
	assert.Equal(t, models.StationValid, station.Status)
	assert.Equal(t, 6.0, *station.OnHandQty)
	assert.Equal(t, 10.0, *station.MaxQty)
}

func TestProcessStation_IncompleteReading(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, stationID := f.readyStation(t)

	f.extractor.reading = &models.StationReading{ProductCode: "A100", OnHandQty: f64(6)}
	resp, err := f.svc.ProcessStation(ctx, models.StationExtractionRequest{SessionID: sessionID, StationID: stationID})
	require.NoError(t, err)
	assert.Equal(t, models.StationNeedsAttention, resp.Status)

	station, err := f.store.GetStation(ctx, sessionID, stationID)
	require.NoError(t, err)
	assert.Equal(t, "sign reading incomplete", station.FailureReason)
	assert.Nil(t, station.OnHandQty, "quantities are only trusted on a valid reading")
	assert.Equal(t, "A100", station.ProductCode, "the readable code is kept for matching")
}

func TestProcessStation_WarningsNeedAttention(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, stationID := f.readyStation(t)

	f.extractor.reading = &models.StationReading{
		ProductCode: "A100",
		MinQty:      f64(2),
		MaxQty:      f64(10),
		OnHandQty:   f64(6),
		Warnings:    []string{"stock photo partially occluded"},
	}
	resp, err := f.svc.ProcessStation(ctx, models.StationExtractionRequest{SessionID: sessionID, StationID: stationID})
	require.NoError(t, err)
	assert.Equal(t, models.StationNeedsAttention, resp.Status)

	station, err := f.store.GetStation(ctx, sessionID, stationID)
	require.NoError(t, err)
	assert.Equal(t, []string{"stock photo partially occluded"}, station.ExtractionWarnings)
	assert.Nil(t, station.OnHandQty)
}

func TestProcessStation_CallError(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	sessionID, stationID := f.readyStation(t)

	f.extractor.stationErr = errors.New("model timeout")
	resp, err := f.svc.ProcessStation(ctx, models.StationExtractionRequest{SessionID: sessionID, StationID: stationID})
	require.NoError(t, err)
	assert.Equal(t, models.StationNeedsAttention, resp.Status)

	station, err := f.store.GetStation(ctx, sessionID, stationID)
	require.NoError(t, err)
	assert.Equal(t, "model timeout", station.FailureReason)
}

func TestProcessStation_PendingConflicts(t *testing.T) {
	f := newExtractionFixture(t)
	ctx := context.Background()
	session := mustCreateSession(t, f.capture)
	created, err := f.capture.CreatePendingStation(ctx, session.ID, models.CreateStationRequest{
		Slots: []models.UploadSlotInfo{{Slot: models.SlotSign, ContentType: "image/jpeg"}},
	})
	require.NoError(t, err)

	_, err = f.svc.ProcessStation(ctx, models.StationExtractionRequest{SessionID: session.ID, StationID: created.StationID})
	assert.ErrorIs(t, err, store.ErrConflict)
}
