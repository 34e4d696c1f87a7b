package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/fieldcaptureflow/internal/catalog"
	"github.com/Lllllllleong/fieldcaptureflow/internal/gcp"
	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
	"github.com/Lllllllleong/fieldcaptureflow/internal/store"
)

// ReportService assembles the derived read views: demand aggregation,
// order recommendations, and coverage. Reports are recomputed from
// current state on every call; nothing here writes.
type ReportService struct {
	store   store.Store
	catalog *catalog.Catalog
}

// NewReportService wires a report service. cat may be nil when no
// product catalog is configured; descriptions then come only from the
// extraction output.
func NewReportService(st store.Store, cat *catalog.Catalog) *ReportService {
	if cat == nil {
		cat = catalog.Empty()
	}
	return &ReportService{store: st, catalog: cat}
}

// NewCloudReportService wires the report service for the Google Cloud
// deployment. CATALOG_PATH is optional; without it product descriptions
// are whatever extraction produced.
func NewCloudReportService(ctx context.Context) (*ReportService, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}

	cat := catalog.Empty()
	if path := gcp.GetEnv("CATALOG_PATH", ""); path != "" {
		cat, err = catalog.Load(path)
		if err != nil {
			return nil, err
		}
		slog.Info("Loaded product catalog", "path", path, "products", cat.Len())
	}

	st := store.NewFirestoreStore(firestoreClient, gcp.GetEnv("FIRESTORE_COLLECTION", store.DefaultCollection))
	return NewReportService(st, cat), nil
}

// DemandReport aggregates the session's extracted line items into
// per-product demand with extraction statistics.
func (s *ReportService) DemandReport(ctx context.Context, sessionID string) (*models.DemandReport, error) {
	session, groups, err := s.sessionGroups(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items := s.describe(ComputeDemand(groups))
	return &models.DemandReport{
		SessionID:   session.ID,
		Items:       items,
		Stats:       ComputeExtractionStats(groups),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// OrderReport matches the session's demand against its station readings
// and reports recommendations, skips, and coverage.
func (s *ReportService) OrderReport(ctx context.Context, sessionID string) (*models.OrderReport, error) {
	session, groups, err := s.sessionGroups(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stations, err := s.store.ListStations(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	demand := s.describe(ComputeDemand(groups))
	orders, skipped := RecommendOrders(demand, stations)
	return &models.OrderReport{
		SessionID:   session.ID,
		Items:       orders,
		Skipped:     skipped,
		Coverage:    ComputeCoverage(demand, stations),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *ReportService) sessionGroups(ctx context.Context, sessionID string) (*models.Session, []*models.CaptureGroup, error) {
	if err := parseID("session", sessionID); err != nil {
		return nil, nil, err
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	groups, err := s.store.ListGroups(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, groups, nil
}

// describe fills in catalog descriptions for demand rows whose
// extraction output carried none. Extraction text wins when present.
func (s *ReportService) describe(items []models.DemandItem) []models.DemandItem {
	for i := range items {
		if items[i].Description == "" {
			items[i].Description = s.catalog.Describe(items[i].ProductCode)
		}
	}
	return items
}
