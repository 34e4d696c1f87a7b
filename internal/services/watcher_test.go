package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

func newWatcherFixture(t *testing.T) (*UploadWatcherFunction, *CaptureService) {
	t.Helper()
	st := newTestStore(t)
	capture := NewCaptureService(st, newFakeBlobStore(), &fakeLauncher{}, &recordingPublisher{}, time.Minute, "model-test")
	watcher := &UploadWatcherFunction{
		capture: capture,
		config:  UploadWatcherConfig{AssetsBucket: "assets-test"},
	}
	return watcher, capture
}

func TestWatcher_AttachesGroupImage(t *testing.T) {
	watcher, capture := newWatcherFixture(t)
	ctx := context.Background()
	session := mustCreateSession(t, capture)
	group := mustCreateGroup(t, capture, session.ID, 1)

	err := watcher.Process(ctx, GCSEvent{
		Bucket:      "assets-test",
		Name:        group.Uploads[0].ObjectPath,
		ContentType: "image/jpeg",
		Metadata: map[string]string{
			"width":              "1024",
			"height":             "768",
			"capture-type":       "uploaded_file",
			"validation-passed":  "true",
			"ai-hint-kind":       "loading_list",
			"ai-hint-confidence": "0.93",
		},
		TimeCreated: time.Now(),
	})
	require.NoError(t, err)

	detail, err := capture.GetSessionDetail(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, detail.Groups, 1)
	assert.Equal(t, models.GroupReady, detail.Groups[0].Group.Status)
	require.Len(t, detail.Groups[0].Images, 1)
	image := detail.Groups[0].Images[0]
	assert.Equal(t, 1024, image.Width)
	assert.Equal(t, 768, image.Height)
	assert.Equal(t, models.CaptureUploadedFile, image.CaptureType)
	require.NotNil(t, image.UploadValidationPassed)
	assert.True(t, *image.UploadValidationPassed)
	assert.Equal(t, "loading_list", image.AIHintKind)
	require.NotNil(t, image.AIHintConfidence)
	assert.Equal(t, 0.93, *image.AIHintConfidence)
}

func TestWatcher_FillsStationSlot(t *testing.T) {
	watcher, capture := newWatcherFixture(t)
	ctx := context.Background()
	session := mustCreateSession(t, capture)
	created, err := capture.CreatePendingStation(ctx, session.ID, models.CreateStationRequest{
		Slots: []models.UploadSlotInfo{{Slot: models.SlotSign, ContentType: "image/jpeg"}},
	})
	require.NoError(t, err)

	err = watcher.Process(ctx, GCSEvent{
		Bucket: "assets-test",
		Name:   created.Uploads[0].ObjectPath,
	})
	require.NoError(t, err)

	detail, err := capture.GetSessionDetail(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, detail.Stations, 1)
	assert.NotEmpty(t, detail.Stations[0].SignBlobURL)
}

func TestWatcher_IgnoresForeignBucket(t *testing.T) {
	watcher, _ := newWatcherFixture(t)

	err := watcher.Process(context.Background(), GCSEvent{
		Bucket: "some-other-bucket",
		Name:   "sessions/x/loading-lists/y/0.jpg",
	})
	assert.NoError(t, err)
}

func TestWatcher_IgnoresUnrelatedObjects(t *testing.T) {
	watcher, capture := newWatcherFixture(t)
	ctx := context.Background()
	session := mustCreateSession(t, capture)

	for _, name := range []string{
		"tmp/backfill.csv",
		"sessions/" + session.ID + "/extractions/abc/exec-1.json",
	} {
		err := watcher.Process(ctx, GCSEvent{Bucket: "assets-test", Name: name})
		assert.NoError(t, err, name)
	}
}

func TestWatcher_DropsEventsForDeletedEntities(t *testing.T) {
	watcher, _ := newWatcherFixture(t)

	// Session was cleaned up before the event arrived; redelivery can
	// never succeed, so the event is dropped.
	err := watcher.Process(context.Background(), GCSEvent{
		Bucket: "assets-test",
		Name:   "sessions/7b0d7a1e-95d2-4f2a-bb1d-111111111111/loading-lists/8c1e8b2f-95d2-4f2a-bb1d-222222222222/0.jpg",
	})
	assert.NoError(t, err)
}

func TestWatcher_BadMetadataDefaults(t *testing.T) {
	watcher, capture := newWatcherFixture(t)
	ctx := context.Background()
	session := mustCreateSession(t, capture)
	group := mustCreateGroup(t, capture, session.ID, 1)

	err := watcher.Process(ctx, GCSEvent{
		Bucket: "assets-test",
		Name:   group.Uploads[0].ObjectPath,
		Metadata: map[string]string{
			"width":              "not-a-number",
			"height":             "-5",
			"capture-type":       "hologram",
			"ai-hint-kind":       "loading_list",
			"ai-hint-confidence": "very sure",
		},
	})
	require.NoError(t, err)

	detail, err := capture.GetSessionDetail(ctx, session.ID)
	require.NoError(t, err)
	image := detail.Groups[0].Images[0]
	assert.Zero(t, image.Width)
	assert.Zero(t, image.Height)
	assert.Equal(t, models.CaptureCameraPhoto, image.CaptureType, "unknown capture types fall back to the default")
	assert.Nil(t, image.UploadValidationPassed)
	assert.Equal(t, "loading_list", image.AIHintKind)
	assert.Nil(t, image.AIHintConfidence, "an unparseable confidence is dropped, not zeroed")
}
