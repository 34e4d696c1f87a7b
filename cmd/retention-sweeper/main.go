package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/fieldcaptureflow/internal/gcp"
	"github.com/Lllllllleong/fieldcaptureflow/internal/services"
	_ "github.com/GoogleCloudPlatform/functions-framework-go/functions"
)

var (
	sweeperInstance *services.CleanupService
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the HTTP function with the framework.
	// "SweepRetention" is the entry point name configured in GCP.
	functions.HTTP("SweepRetention", sweepRetention)
}

// main is required by the Go Functions Framework.
func main() {}

// sweepRetention deletes sessions older than the retention window.
// Cloud Scheduler calls it with the bearer token shared through
// CLEANUP_TOKEN; the token is checked before any other work.
func sweepRetention(w http.ResponseWriter, r *http.Request) {
	token := os.Getenv("CLEANUP_TOKEN")
	if token == "" {
		slog.Error("CLEANUP_TOKEN is not configured")
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	header := r.Header.Get("Authorization")
	if subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+token)) != 1 {
		slog.Warn("Rejected sweep request with bad credentials")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		sweeperInstance, initErr = services.NewCloudCleanupService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: cleanup service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	maxAge, err := retentionWindow(r.URL.Query().Get("maxAge"))
	if err != nil {
		slog.Warn("Could not parse retention window", "error", err)
		http.Error(w, "Bad Request: could not parse maxAge", http.StatusBadRequest)
		return
	}

	report, err := sweeperInstance.Run(r.Context(), maxAge)
	if err != nil {
		// The specific error is already logged inside the Run method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

// retentionWindow resolves the sweep window from the maxAge query
// parameter, then the RETENTION_MAX_AGE environment variable. A zero
// return means the service default applies.
func retentionWindow(param string) (time.Duration, error) {
	if param != "" {
		return time.ParseDuration(param)
	}
	if env := gcp.GetEnv("RETENTION_MAX_AGE", ""); env != "" {
		return time.ParseDuration(env)
	}
	return 0, nil
}
