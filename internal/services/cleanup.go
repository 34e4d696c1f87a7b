package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/fieldcaptureflow/internal/blob"
	"github.com/Lllllllleong/fieldcaptureflow/internal/events"
	"github.com/Lllllllleong/fieldcaptureflow/internal/gcp"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
)

// DefaultRetentionAge is how long a session is kept when no explicit
// window is configured.
const DefaultRetentionAge = 7 * 24 * time.Hour

// deleteConcurrency bounds parallel blob deletes per session.
const deleteConcurrency = 8

// CleanupService removes sessions past the retention window together
// with their stored assets. Sessions are handled one at a time so a
// failure is attributed to the session that caused it; blob deletes
// within a session run in parallel and fail independently.
type CleanupService struct {
	store     store.Store
	blobs     blob.Deleter
	publisher events.Publisher
}

// NewCleanupService wires a cleanup service.
func NewCleanupService(st store.Store, blobs blob.Deleter, publisher events.Publisher) *CleanupService {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	return &CleanupService{store: st, blobs: blobs, publisher: publisher}
}

// NewCloudCleanupService wires the cleanup service for the Google Cloud
// deployment.
func NewCloudCleanupService(ctx context.Context) (*CleanupService, error) {
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
	blobs, err := blob.NewGCSStore(storageClient, bucket)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.LogPublisher{}
	if target := gcp.GetEnv("REVALIDATE_URL", ""); target != "" {
		publisher, err = events.NewCloudEventPublisher(target, "fieldcaptureflow/"+gcp.GetEnv("K_SERVICE", "retention-sweeper"))
		if err != nil {
			return nil, err
		}
	}

	st := store.NewFirestoreStore(firestoreClient, gcp.GetEnv("FIRESTORE_COLLECTION", store.DefaultCollection))
	return NewCleanupService(st, blobs, publisher), nil
}

// Run deletes every session created before now minus maxAge and reports
// what happened. One session's failure is recorded and the sweep moves
// on; Run itself only fails when the candidate list cannot be read.
func (s *CleanupService) Run(ctx context.Context, maxAge time.Duration) (*models.CleanupReport, error) {
	if maxAge <= 0 {
		maxAge = DefaultRetentionAge
	}
	cutoff := time.Now().UTC().Add(-maxAge)
	logCtx := slog.With("cutoff", cutoff.Format(time.RFC3339))
	logCtx.Info("Starting retention sweep", "maxAge", maxAge.String())

	sessions, err := s.store.ListSessionsCreatedBefore(ctx, cutoff)
	if err != nil {
		logCtx.Error("Failed to list expired sessions", "error", err)
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}

	report := &models.CleanupReport{Cutoff: cutoff, SessionsExamined: len(sessions)}
	for _, session := range sessions {
		deleted, failed, err := s.cleanSession(ctx, session.ID)
		report.DeletedBlobs += deleted
		report.FailedBlobs += failed
		if err != nil {
			logCtx.Error("Session cleanup failed", "sessionId", session.ID, "error", err)
			report.Errors = append(report.Errors, fmt.Sprintf("session %s: %v", session.ID, err))
			continue
		}
		report.SessionsDeleted++
		if err := s.publisher.Publish(ctx, events.SessionTouched(session.ID)...); err != nil {
			logCtx.Warn("Failed to publish invalidation", "sessionId", session.ID, "error", err)
		}
	}

	logCtx.Info("Retention sweep finished",
		"examined", report.SessionsExamined,
		"deleted", report.SessionsDeleted,
		"deletedBlobs", report.DeletedBlobs,
		"failedBlobs", report.FailedBlobs,
		"errors", len(report.Errors))
	return report, nil
}

// cleanSession drops one session's blobs and then its rows. Blob
// failures are tallied but never block the row delete; orphaned objects
// are cheaper than orphaned rows pointing at deleted objects.
func (s *CleanupService) cleanSession(ctx context.Context, sessionID string) (deleted, failed int, err error) {
	urls, err := s.collectBlobURLs(ctx, sessionID)
	if err != nil {
		return 0, 0, err
	}
	deleted, failed = s.deleteBlobs(ctx, sessionID, urls)
	if err := s.store.DeleteSessionCascade(ctx, sessionID); err != nil {
		return deleted, failed, fmt.Errorf("delete session rows: %w", err)
	}
	return deleted, failed, nil
}

func (s *CleanupService) collectBlobURLs(ctx context.Context, sessionID string) ([]string, error) {
	var urls []string

	groups, err := s.store.ListGroups(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	for _, group := range groups {
		images, err := s.store.ListImages(ctx, sessionID, group.ID)
		if err != nil {
			return nil, fmt.Errorf("list images of group %s: %w", group.ID, err)
		}
		for _, image := range images {
			if image.BlobURL != "" {
				urls = append(urls, image.BlobURL)
			}
		}
	}

	stations, err := s.store.ListStations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	for _, station := range stations {
		if station.SignBlobURL != "" {
			urls = append(urls, station.SignBlobURL)
		}
		if station.StockBlobURL != "" {
			urls = append(urls, station.StockBlobURL)
		}
	}
	return urls, nil
}

// deleteBlobs removes the given objects in parallel. Each URL succeeds
// or fails on its own; the closures always return nil so one bad object
// cannot cancel the rest of the batch.
func (s *CleanupService) deleteBlobs(ctx context.Context, sessionID string, urls []string) (deleted, failed int) {
	if len(urls) == 0 {
		return 0, 0
	}

	var deletedCount, failedCount atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(deleteConcurrency)
	for _, url := range urls {
		g.Go(func() error {
			if err := s.blobs.Delete(ctx, url); err != nil {
				slog.Warn("Failed to delete blob", "sessionId", sessionID, "url", url, "error", err)
				failedCount.Add(1)
				return nil
			}
			deletedCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(deletedCount.Load()), int(failedCount.Load())
}
