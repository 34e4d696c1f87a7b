package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Lllllllleong/fieldcaptureflow/internal/events"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A fresh in-memory database exists per connection; keep the pool
	// at one so every goroutine sees the same schema.
	sqlDB.SetMaxOpenConns(1)
	st, err := store.NewSQLStore(db)
	require.NoError(t, err)
	return st
}

// fakeBlobStore implements blob.Store in memory and records every call.
type fakeBlobStore struct {
	mu        sync.Mutex
	signed    []string
	puts      map[string][]byte
	deleted   []string
	deleteErr map[string]error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		puts:      map[string][]byte{},
		deleteErr: map[string]error{},
	}
}

func (f *fakeBlobStore) SignedUploadURL(_ context.Context, objectPath, _ string, ttl time.Duration) (string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed = append(f.signed, objectPath)
	return "https://upload.test/" + objectPath, time.Now().Add(ttl), nil
}

func (f *fakeBlobStore) Put(_ context.Context, objectPath, _ string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.puts[objectPath]; exists {
		return nil
	}
	f.puts[objectPath] = content
	return nil
}

func (f *fakeBlobStore) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[url]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeBlobStore) URL(objectPath string) string { return "https://assets.test/" + objectPath }
func (f *fakeBlobStore) URI(objectPath string) string { return "gs://assets-test/" + objectPath }

func (f *fakeBlobStore) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// fakeLauncher records workflow hand-offs.
type fakeLauncher struct {
	mu       sync.Mutex
	err      error
	launches []models.ExtractionLaunch
}

func (f *fakeLauncher) Launch(_ context.Context, launch models.ExtractionLaunch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.launches = append(f.launches, launch)
	return nil
}

func (f *fakeLauncher) recorded() []models.ExtractionLaunch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ExtractionLaunch(nil), f.launches...)
}

// recordingPublisher collects published invalidations.
type recordingPublisher struct {
	mu   sync.Mutex
	invs []events.Invalidation
}

func (p *recordingPublisher) Publish(_ context.Context, invs ...events.Invalidation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invs = append(p.invs, invs...)
	return nil
}

func (p *recordingPublisher) recorded() []events.Invalidation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Invalidation(nil), p.invs...)
}

// fakeExtractor returns canned model outputs.
type fakeExtractor struct {
	mu           sync.Mutex
	result       *models.ExtractionResult
	raw          string
	err          error
	reading      *models.StationReading
	stationRaw   string
	stationErr   error
	groupCalls   int
	stationCalls int
	lastURIs     []string
}

func (f *fakeExtractor) ExtractLoadingList(_ context.Context, assetURIs []string, _ string) (*models.ExtractionResult, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCalls++
	f.lastURIs = append([]string(nil), assetURIs...)
	return f.result, f.raw, f.err
}

func (f *fakeExtractor) ExtractStation(_ context.Context, signURI, stockURI, _ string) (*models.StationReading, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stationCalls++
	f.lastURIs = []string{signURI, stockURI}
	return f.reading, f.stationRaw, f.stationErr
}

func f64(v float64) *float64 { return &v }
