package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/services"
	_ "github.com/GoogleCloudPlatform/functions-framework-go/functions"
)

var (
	runnerInstance *services.ExtractionService
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the HTTP function with the framework.
	// "RunExtraction" is the entry point name configured in GCP.
	functions.HTTP("RunExtraction", runExtraction)
}

// main is required by the Go Functions Framework.
func main() {}

// runExtraction is the HTTP handler for the extraction service. The
// workflow posts loading-list groups to /group and station sign/stock
// pairs to /station. Re-extraction reuses the same routes.
func runExtraction(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		runnerInstance, initErr = services.NewCloudExtractionService(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: extraction service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/group"):
		handleGroup(w, r)
	case strings.HasSuffix(r.URL.Path, "/station"):
		handleStation(w, r)
	default:
		http.NotFound(w, r)
	}
}

func handleGroup(w http.ResponseWriter, r *http.Request) {
	// Decode the incoming JSON request from the workflow.
	var req models.GroupExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	// Delegate to the business logic.
	res, err := runnerInstance.ProcessGroup(r.Context(), req)
	if err != nil {
		// The specific error is already logged inside the ProcessGroup method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	writeResponse(w, res, req.GroupID, req.ExecutionID)
}

func handleStation(w http.ResponseWriter, r *http.Request) {
	var req models.StationExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := runnerInstance.ProcessStation(r.Context(), req)
	if err != nil {
		// The specific error is already logged inside the ProcessStation method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	writeResponse(w, res, req.StationID, req.ExecutionID)
}

// writeResponse encodes the result and sends it back to the workflow.
func writeResponse(w http.ResponseWriter, res any, entityID, executionID string) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error(
			"Failed to write response",
			"error", err,
			"entityId", entityID,
			"executionId", executionID,
		)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
