package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Lllllllleong/fieldcaptureflow/internal/blob"
	"github.com/Lllllllleong/fieldcaptureflow/internal/gcp"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
)

// GCSEvent is the payload of a GCS object finalize event. Metadata
// carries optional client-set keys: width, height, capture-type,
// validation-passed, ai-hint-kind, ai-hint-confidence.
type GCSEvent struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
	TimeCreated time.Time         `json:"timeCreated"`
}

// UploadWatcherConfig holds configuration for the upload watcher.
type UploadWatcherConfig struct {
	AssetsBucket string
}

// UploadWatcherFunction turns storage finalize events into upload
// completions. It is the event-driven twin of the gateway's completion
// callback; both paths converge on the same CaptureService methods, so
// a client that never calls back still gets its uploads attached.
type UploadWatcherFunction struct {
	capture *CaptureService
	config  UploadWatcherConfig
}

// NewUploadWatcher creates a new UploadWatcherFunction instance.
func NewUploadWatcher(ctx context.Context) (*UploadWatcherFunction, error) {
	bucket := gcp.GetEnv("ASSETS_BUCKET", "")
	if bucket == "" {
		return nil, fmt.Errorf("ASSETS_BUCKET environment variable must be set")
	}
	capture, err := NewCloudCaptureService(ctx)
	if err != nil {
		return nil, err
	}
	return &UploadWatcherFunction{
		capture: capture,
		config:  UploadWatcherConfig{AssetsBucket: bucket},
	}, nil
}

// Process routes one finalize event. Objects outside the capture path
// convention (including extraction audit files) are ignored, as are
// events for entities that no longer exist; both would fail forever on
// redelivery.
func (f *UploadWatcherFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("bucket", e.Bucket, "object", e.Name)

	if e.Bucket != f.config.AssetsBucket {
		logCtx.Info("Ignoring event for a foreign bucket")
		return nil
	}
	parsed, ok := blob.ParseObjectPath(e.Name)
	if !ok {
		logCtx.Info("Ignoring object outside the capture path convention")
		return nil
	}

	up := CompletedUpload{
		ObjectPath: e.Name,
		Path:       parsed,
		Width:      metaInt(e.Metadata, "width"),
		Height:     metaInt(e.Metadata, "height"),
		UploadedAt: e.TimeCreated,
	}
	if ct := models.CaptureType(e.Metadata["capture-type"]); ct == models.CaptureCameraPhoto || ct == models.CaptureUploadedFile {
		up.CaptureType = ct
	}
	if v, present := e.Metadata["validation-passed"]; present {
		passed := v == "true"
		up.ValidationPassed = &passed
	}
	if kind := e.Metadata["ai-hint-kind"]; kind != "" {
		up.AIHintKind = kind
		if conf, err := strconv.ParseFloat(e.Metadata["ai-hint-confidence"], 64); err == nil {
			up.AIHintConfidence = &conf
		}
	}

	var err error
	switch parsed.Kind {
	case blob.PathLoadingList:
		_, _, _, err = f.capture.RecordImageUpload(ctx, up)
	case blob.PathStation:
		_, _, err = f.capture.RecordStationUpload(ctx, up)
	default:
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		logCtx.Warn("Upload completion for an unknown entity dropped", "error", err)
		return nil
	}
	return err
}

func metaInt(metadata map[string]string, key string) int {
	v, err := strconv.Atoi(metadata[key])
	if err != nil || v < 0 {
		return 0
	}
	return v
}
