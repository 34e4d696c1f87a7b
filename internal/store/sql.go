package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

// SQLStore keeps workflow state in a relational database through gorm.
// Promotion and transition guards are expressed as conditional UPDATEs
// checked by affected-row count, so they stay exactly-once on both
// SQLite (serialized writers) and MySQL (row locks on the update).
type SQLStore struct {
	db *gorm.DB
}

// errDuplicateAttach aborts an attach transaction when the image row
// already exists; the caller turns it into a clean no-op.
var errDuplicateAttach = errors.New("store: duplicate attach")

// AllModels returns every persisted entity for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.CaptureGroup{},
		&models.Image{},
		&models.StationCapture{},
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Duplicate-key errors drive idempotent attach handling, so they
		// must surface as gorm.ErrDuplicatedKey on every backend.
		TranslateError: true,
	}
}

// NewSQLStore wraps an open gorm connection and migrates the schema.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("store: auto-migrate: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// OpenMySQL connects to a MySQL-compatible server.
func OpenMySQL(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("store: connect mysql: %w", err)
	}
	return NewSQLStore(db)
}

// OpenSQLite opens (or creates) a SQLite database file. Pass ":memory:"
// for an ephemeral store.
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	return NewSQLStore(db)
}

// --- Sessions ---

func (s *SQLStore) CreateSession(ctx context.Context, session *models.Session) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (s *SQLStore) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sessions []*models.Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SQLStore) AdvanceSession(ctx context.Context, sessionID string, next models.SessionStatus) (*models.Session, error) {
	var out *models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := firstSession(tx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == next {
			out = session // repeated transition, nothing to do
			return nil
		}
		if !session.Status.CanAdvanceTo(next) {
			return fmt.Errorf("store: session %s cannot move %s -> %s: %w", sessionID, session.Status, next, ErrConflict)
		}
		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", sessionID, session.Status).
			Updates(map[string]interface{}{"status": next, "updated_at": time.Now()})
		if res.Error != nil {
			return fmt.Errorf("store: advance session %s: %w", sessionID, res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost a race. Re-read; an identical concurrent advance is
			// still a success for this caller.
			session, err = firstSession(tx, sessionID)
			if err != nil {
				return err
			}
			if session.Status != next {
				return fmt.Errorf("store: session %s advanced elsewhere to %s: %w", sessionID, session.Status, ErrConflict)
			}
			out = session
			return nil
		}
		session.Status = next
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) ListSessionsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	var sessions []*models.Session
	err := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("store: list expired sessions: %w", err)
	}
	return sessions, nil
}

func (s *SQLStore) DeleteSessionCascade(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := firstSession(tx, sessionID); err != nil {
			return err
		}
		// Children first; foreign keys may or may not be enforced
		// depending on the backend.
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.Image{}).Error; err != nil {
			return fmt.Errorf("store: delete session images: %w", err)
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.CaptureGroup{}).Error; err != nil {
			return fmt.Errorf("store: delete session groups: %w", err)
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.StationCapture{}).Error; err != nil {
			return fmt.Errorf("store: delete session stations: %w", err)
		}
		if err := tx.Delete(&models.Session{}, "id = ?", sessionID).Error; err != nil {
			return fmt.Errorf("store: delete session: %w", err)
		}
		return nil
	})
}

// --- Capture groups ---

func (s *SQLStore) CreateGroup(ctx context.Context, group *models.CaptureGroup) error {
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("store: create group: %w", err)
	}
	return nil
}

func (s *SQLStore) GetGroup(ctx context.Context, sessionID, groupID string) (*models.CaptureGroup, error) {
	var group models.CaptureGroup
	err := s.db.WithContext(ctx).First(&group, "id = ? AND session_id = ?", groupID, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: group %s: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get group %s: %w", groupID, err)
	}
	return &group, nil
}

func (s *SQLStore) ListGroups(ctx context.Context, sessionID string) ([]*models.CaptureGroup, error) {
	var groups []*models.CaptureGroup
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	return groups, nil
}

func (s *SQLStore) ListImages(ctx context.Context, sessionID, groupID string) ([]*models.Image, error) {
	var images []*models.Image
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND session_id = ?", groupID, sessionID).
		Order("order_index ASC").
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("store: list images: %w", err)
	}
	return images, nil
}

func (s *SQLStore) AttachImage(ctx context.Context, image *models.Image) (bool, *models.CaptureGroup, error) {
	var (
		promoted bool
		group    *models.CaptureGroup
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		promoted = false
		var err error
		group, err = firstGroup(tx, image.SessionID, image.GroupID)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Image{}).Where("id = ?", image.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("store: check image %s: %w", image.ID, err)
		}
		if existing > 0 {
			return errDuplicateAttach
		}
		if err := tx.Create(image).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicateAttach
			}
			return fmt.Errorf("store: attach image %s: %w", image.ID, err)
		}

		// Promote when this image completes the expected set. The count
		// runs inside the UPDATE, so it is evaluated against current
		// rows rather than a stale snapshot, and the status guard keeps
		// the transition exactly-once under racing completions.
		res := tx.Model(&models.CaptureGroup{}).
			Where("id = ? AND status = ? AND expected_images = (?)",
				group.ID, models.GroupPending,
				tx.Model(&models.Image{}).Select("COUNT(*)").Where("group_id = ?", group.ID)).
			Updates(map[string]interface{}{"status": models.GroupReady, "updated_at": time.Now()})
		if res.Error != nil {
			return fmt.Errorf("store: promote group %s: %w", group.ID, res.Error)
		}
		promoted = res.RowsAffected == 1
		if promoted {
			group.Status = models.GroupReady
		}
		return nil
	})
	if errors.Is(err, errDuplicateAttach) {
		current, gerr := s.GetGroup(ctx, image.SessionID, image.GroupID)
		if gerr != nil {
			return false, nil, gerr
		}
		return false, current, nil
	}
	if err != nil {
		return false, nil, err
	}
	return promoted, group, nil
}

func (s *SQLStore) DeleteImage(ctx context.Context, sessionID, groupID, imageID string) (*models.Image, error) {
	var deleted models.Image
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := firstGroup(tx, sessionID, groupID)
		if err != nil {
			return err
		}
		if err := tx.First(&deleted, "id = ? AND group_id = ?", imageID, groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("store: image %s: %w", imageID, ErrNotFound)
			}
			return fmt.Errorf("store: get image %s: %w", imageID, err)
		}
		if err := tx.Delete(&models.Image{}, "id = ?", imageID).Error; err != nil {
			return fmt.Errorf("store: delete image %s: %w", imageID, err)
		}

		// Renumber survivors into a dense 0..n-1 run, keeping their
		// relative order.
		var survivors []*models.Image
		if err := tx.Where("group_id = ?", groupID).Order("order_index ASC").Find(&survivors).Error; err != nil {
			return fmt.Errorf("store: list surviving images: %w", err)
		}
		for i, img := range survivors {
			if img.OrderIndex == i {
				continue
			}
			if err := tx.Model(&models.Image{}).Where("id = ?", img.ID).Update("order_index", i).Error; err != nil {
				return fmt.Errorf("store: renumber image %s: %w", img.ID, err)
			}
		}

		// While the group still waits for uploads, the deleted image no
		// longer counts toward completion.
		if group.Status == models.GroupPending && group.ExpectedImages > 0 {
			res := tx.Model(&models.CaptureGroup{}).
				Where("id = ? AND status = ?", groupID, models.GroupPending).
				Update("expected_images", gorm.Expr("expected_images - 1"))
			if res.Error != nil {
				return fmt.Errorf("store: lower expected count: %w", res.Error)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

func (s *SQLStore) ReorderImages(ctx context.Context, sessionID, groupID string, imageIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := firstGroup(tx, sessionID, groupID); err != nil {
			return err
		}
		var images []*models.Image
		if err := tx.Where("group_id = ?", groupID).Find(&images).Error; err != nil {
			return fmt.Errorf("store: list images: %w", err)
		}
		if len(images) != len(imageIDs) {
			return fmt.Errorf("store: reorder names %d images, group has %d: %w", len(imageIDs), len(images), ErrConflict)
		}
		byID := make(map[string]*models.Image, len(images))
		for _, img := range images {
			byID[img.ID] = img
		}
		for pos, id := range imageIDs {
			img, ok := byID[id]
			if !ok {
				return fmt.Errorf("store: image %s not in group %s: %w", id, groupID, ErrConflict)
			}
			delete(byID, id) // a repeated ID must not stand in for a missing one
			if img.OrderIndex == pos {
				continue
			}
			if err := tx.Model(&models.Image{}).Where("id = ?", id).Update("order_index", pos).Error; err != nil {
				return fmt.Errorf("store: reorder image %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) MarkGroupFailed(ctx context.Context, sessionID, groupID, reason string) (*models.CaptureGroup, error) {
	var out *models.CaptureGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := firstGroup(tx, sessionID, groupID)
		if err != nil {
			return err
		}
		if group.Status == models.GroupNeedsAttention {
			out = group // already failed, keep the first reason
			return nil
		}
		if group.Status != models.GroupPending && group.Status != models.GroupReady {
			return fmt.Errorf("store: group %s is %s, cannot mark failed: %w", groupID, group.Status, ErrConflict)
		}
		res := tx.Model(&models.CaptureGroup{}).
			Where("id = ? AND status IN ?", groupID, []models.GroupStatus{models.GroupPending, models.GroupReady}).
			Updates(map[string]interface{}{
				"status":         models.GroupNeedsAttention,
				"failure_reason": reason,
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("store: mark group %s failed: %w", groupID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("store: group %s changed status concurrently: %w", groupID, ErrConflict)
		}
		group.Status = models.GroupNeedsAttention
		group.FailureReason = reason
		out = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) SetGroupExtraction(ctx context.Context, sessionID, groupID string, upd GroupExtractionUpdate) (*models.CaptureGroup, error) {
	if !upd.Status.Extracted() {
		return nil, fmt.Errorf("store: %s is not an extraction outcome: %w", upd.Status, ErrConflict)
	}
	var out *models.CaptureGroup
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := firstGroup(tx, sessionID, groupID)
		if err != nil {
			return err
		}
		if !group.Status.Extractable() {
			return fmt.Errorf("store: group %s is %s, not extractable: %w", groupID, group.Status, ErrConflict)
		}
		extractedAt := upd.ExtractedAt
		values := models.CaptureGroup{
			Status:          upd.Status,
			ExtractionModel: upd.ModelID,
			Extraction:      upd.Result,
			FailureReason:   upd.FailureReason,
			ExtractedAt:     &extractedAt,
			UpdatedAt:       time.Now(),
		}
		err = tx.Model(&models.CaptureGroup{}).
			Where("id = ?", groupID).
			Select("status", "extraction_model", "extraction", "failure_reason", "extracted_at", "updated_at").
			Updates(values).Error
		if err != nil {
			return fmt.Errorf("store: write extraction for group %s: %w", groupID, err)
		}
		group.Status = upd.Status
		group.ExtractionModel = upd.ModelID
		group.Extraction = upd.Result
		group.FailureReason = upd.FailureReason
		group.ExtractedAt = &extractedAt
		out = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Station captures ---

func (s *SQLStore) CreateStation(ctx context.Context, station *models.StationCapture) error {
	if err := s.db.WithContext(ctx).Create(station).Error; err != nil {
		return fmt.Errorf("store: create station: %w", err)
	}
	return nil
}

func (s *SQLStore) GetStation(ctx context.Context, sessionID, stationID string) (*models.StationCapture, error) {
	var station models.StationCapture
	err := s.db.WithContext(ctx).First(&station, "id = ? AND session_id = ?", stationID, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: station %s: %w", stationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get station %s: %w", stationID, err)
	}
	return &station, nil
}

func (s *SQLStore) ListStations(ctx context.Context, sessionID string) ([]*models.StationCapture, error) {
	var stations []*models.StationCapture
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&stations).Error
	if err != nil {
		return nil, fmt.Errorf("store: list stations: %w", err)
	}
	return stations, nil
}

func (s *SQLStore) FillStationSlot(ctx context.Context, sessionID, stationID string, slot models.UploadSlot, objectPath, blobURL string, uploadedAt time.Time) (bool, *models.StationCapture, error) {
	if !slot.Valid() {
		return false, nil, fmt.Errorf("store: unknown slot %q: %w", slot, ErrConflict)
	}
	var (
		promoted bool
		station  *models.StationCapture
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		promoted = false
		var err error
		station, err = firstStation(tx, sessionID, stationID)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{"updated_at": now}
		switch slot {
		case models.SlotSign:
			if station.SignBlobURL != blobURL {
				updates["sign_object_path"] = objectPath
				updates["sign_blob_url"] = blobURL
				updates["sign_uploaded_at"] = &uploadedAt
			}
		case models.SlotStock:
			if station.StockBlobURL != blobURL {
				updates["stock_object_path"] = objectPath
				updates["stock_blob_url"] = blobURL
				updates["stock_uploaded_at"] = &uploadedAt
			}
		}
		// Always runs, so concurrent fills of the two slots serialize on
		// the station row before the promotion check below.
		if err := tx.Model(&models.StationCapture{}).Where("id = ?", stationID).Updates(updates).Error; err != nil {
			return fmt.Errorf("store: fill %s slot: %w", slot, err)
		}

		res := tx.Model(&models.StationCapture{}).
			Where("id = ? AND status = ? AND sign_blob_url <> '' AND stock_blob_url <> ''", stationID, models.StationPending).
			Updates(map[string]interface{}{"status": models.StationReady, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("store: promote station %s: %w", stationID, res.Error)
		}
		promoted = res.RowsAffected == 1

		station, err = firstStation(tx, sessionID, stationID)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return promoted, station, nil
}

func (s *SQLStore) MarkStationFailed(ctx context.Context, sessionID, stationID, reason string) (*models.StationCapture, error) {
	var out *models.StationCapture
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		station, err := firstStation(tx, sessionID, stationID)
		if err != nil {
			return err
		}
		if station.Status == models.StationNeedsAttention {
			out = station
			return nil
		}
		if station.Status != models.StationPending && station.Status != models.StationReady {
			return fmt.Errorf("store: station %s is %s, cannot mark failed: %w", stationID, station.Status, ErrConflict)
		}
		res := tx.Model(&models.StationCapture{}).
			Where("id = ? AND status IN ?", stationID, []models.StationStatus{models.StationPending, models.StationReady}).
			Updates(map[string]interface{}{
				"status":         models.StationNeedsAttention,
				"failure_reason": reason,
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("store: mark station %s failed: %w", stationID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("store: station %s changed status concurrently: %w", stationID, ErrConflict)
		}
		station.Status = models.StationNeedsAttention
		station.FailureReason = reason
		out = station
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) SetStationExtraction(ctx context.Context, sessionID, stationID string, upd StationExtractionUpdate) (*models.StationCapture, error) {
	if upd.Status != models.StationValid && upd.Status != models.StationNeedsAttention {
		return nil, fmt.Errorf("store: %s is not an extraction outcome: %w", upd.Status, ErrConflict)
	}
	var out *models.StationCapture
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		station, err := firstStation(tx, sessionID, stationID)
		if err != nil {
			return err
		}
		if station.Status == models.StationPending {
			return fmt.Errorf("store: station %s is pending, not extractable: %w", stationID, ErrConflict)
		}

		extractedAt := upd.ExtractedAt
		values := models.StationCapture{
			Status:             upd.Status,
			ProductCode:        station.ProductCode,
			ExtractionModel:    upd.ModelID,
			ExtractionWarnings: upd.Warnings,
			FailureReason:      upd.FailureReason,
			ExtractedAt:        &extractedAt,
			UpdatedAt:          time.Now(),
		}
		// The product code survives a failed reading when the model got
		// that far; quantities exist only on a valid outcome.
		if upd.Reading != nil && upd.Reading.ProductCode != "" {
			values.ProductCode = upd.Reading.ProductCode
		}
		if upd.Status == models.StationValid && upd.Reading != nil {
			values.MinQty = upd.Reading.MinQty
			values.MaxQty = upd.Reading.MaxQty
			values.OnHandQty = upd.Reading.OnHandQty
		}
		err = tx.Model(&models.StationCapture{}).
			Where("id = ?", stationID).
			Select("status", "product_code", "min_qty", "max_qty", "on_hand_qty",
				"extraction_model", "extraction_warnings", "failure_reason", "extracted_at", "updated_at").
			Updates(values).Error
		if err != nil {
			return fmt.Errorf("store: write extraction for station %s: %w", stationID, err)
		}

		station.Status = values.Status
		station.ProductCode = values.ProductCode
		station.MinQty = values.MinQty
		station.MaxQty = values.MaxQty
		station.OnHandQty = values.OnHandQty
		station.ExtractionModel = values.ExtractionModel
		station.ExtractionWarnings = values.ExtractionWarnings
		station.FailureReason = values.FailureReason
		station.ExtractedAt = values.ExtractedAt
		out = station
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- helpers ---

func firstSession(tx *gorm.DB, sessionID string) (*models.Session, error) {
	var session models.Session
	err := tx.First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", sessionID, err)
	}
	return &session, nil
}

func firstGroup(tx *gorm.DB, sessionID, groupID string) (*models.CaptureGroup, error) {
	var group models.CaptureGroup
	err := tx.First(&group, "id = ? AND session_id = ?", groupID, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: group %s: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get group %s: %w", groupID, err)
	}
	return &group, nil
}

func firstStation(tx *gorm.DB, sessionID, stationID string) (*models.StationCapture, error) {
	var station models.StationCapture
	err := tx.First(&station, "id = ? AND session_id = ?", stationID, sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: station %s: %w", stationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get station %s: %w", stationID, err)
	}
	return &station, nil
}
