package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/fieldcaptureflow/internal/services"
	"github.com/gin-gonic/gin"
	_ "github.com/GoogleCloudPlatform/functions-framework-go/functions"
)

var (
	router  *gin.Engine
	once    sync.Once
	initErr error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the HTTP function with the framework.
	// "CaptureGateway" is the entry point name configured in GCP.
	functions.HTTP("CaptureGateway", handleGateway)
}

// main is required by the Go Functions Framework.
func main() {}

// handleGateway builds the Gin router on first use and serves every
// gateway route through it.
func handleGateway(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		var capture *services.CaptureService
		capture, initErr = services.NewCloudCaptureService(context.Background())
		if initErr != nil {
			return
		}
		gin.SetMode(gin.ReleaseMode)
		router = gin.New()
		router.Use(gin.Recovery())
		registerRoutes(router, capture)
	})
	if initErr != nil {
		slog.Error("Critical: capture gateway initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	router.ServeHTTP(w, r)
}
