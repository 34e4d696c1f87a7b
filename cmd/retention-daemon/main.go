package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lllllllleong/fieldcaptureflow/internal/blob"
	"github.com/Lllllllleong/fieldcaptureflow/internal/events"
	"github.com/Lllllllleong/fieldcaptureflow/internal/services"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// daemonConfig is the on-disk configuration for the self-hosted
// deployment, where sessions live in SQL and blobs on the local disk.
type daemonConfig struct {
	Database struct {
		Driver string `mapstructure:"driver"` // sqlite or mysql
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Blobs struct {
		Dir     string `mapstructure:"dir"`
		BaseURL string `mapstructure:"baseUrl"`
	} `mapstructure:"blobs"`
	Retention struct {
		Cron   string `mapstructure:"cron"`   // 5-field cron expression
		MaxAge string `mapstructure:"maxAge"` // Go duration, e.g. "168h"
	} `mapstructure:"retention"`
}

var (
	configPath string
	runOnce    bool
)

func init() {
	flag.StringVar(&configPath, "config", "fieldcapture.yaml", "Path to the daemon config file")
	flag.BoolVar(&runOnce, "once", false, "Run a single sweep and exit")
}

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load Config
	flag.Parse()
	var cfg daemonConfig
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Reading config: %v", err)
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Decoding config: %v", err)
	}

	cleanup, err := buildCleanup(cfg)
	if err != nil {
		log.Fatalf("Initializing cleanup service: %v", err)
	}

	maxAge := services.DefaultRetentionAge
	if cfg.Retention.MaxAge != "" {
		maxAge, err = time.ParseDuration(cfg.Retention.MaxAge)
		if err != nil {
			log.Fatalf("Invalid retention.maxAge: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if runOnce {
		if _, err := cleanup.Run(ctx, maxAge); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		return
	}

	runScheduler(ctx, cleanup, cfg.Retention.Cron, maxAge)
}

// buildCleanup wires the SQL store and filesystem blob store from config.
func buildCleanup(cfg daemonConfig) (*services.CleanupService, error) {
	var st *store.SQLStore
	var err error
	switch cfg.Database.Driver {
	case "mysql":
		st, err = store.OpenMySQL(cfg.Database.DSN)
	default:
		st, err = store.OpenSQLite(cfg.Database.DSN)
	}
	if err != nil {
		return nil, err
	}
	blobs, err := blob.NewFSStore(cfg.Blobs.Dir, cfg.Blobs.BaseURL)
	if err != nil {
		return nil, err
	}
	return services.NewCleanupService(st, blobs, events.LogPublisher{}), nil
}

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// runScheduler sleeps until each cron fire time and runs a sweep. It
// returns when the context is cancelled.
func runScheduler(ctx context.Context, cleanup *services.CleanupService, expr string, maxAge time.Duration) {
	if expr == "" {
		expr = "0 3 * * *"
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		log.Fatalf("Invalid retention.cron %q: %v", expr, err)
	}

	slog.Info("Retention daemon started", "cron", expr, "maxAge", maxAge.String())
	timer := time.NewTimer(time.Until(sched.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Retention daemon stopping")
			return
		case <-timer.C:
			if _, err := cleanup.Run(ctx, maxAge); err != nil {
				slog.Error("Sweep failed", "error", err)
			}
			timer.Reset(time.Until(sched.Next(time.Now())))
		}
	}
}
