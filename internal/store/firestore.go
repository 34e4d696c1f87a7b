package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

// Collection layout:
//
//	{collection}/{sessionId}
//	{collection}/{sessionId}/groups/{groupId}
//	{collection}/{sessionId}/groups/{groupId}/images/{imageId}
//	{collection}/{sessionId}/stations/{stationId}
//
// Firestore transactions lock every document they read, so the fresh
// count comparisons below are race-safe; on transaction retry the
// closure re-reads everything, which is why each closure resets its
// outputs first.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// DefaultCollection is the root collection when none is configured.
const DefaultCollection = "sessions"

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) sessionRef(sessionID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(sessionID)
}

func (s *FirestoreStore) groupRef(sessionID, groupID string) *firestore.DocumentRef {
	return s.sessionRef(sessionID).Collection("groups").Doc(groupID)
}

func (s *FirestoreStore) stationRef(sessionID, stationID string) *firestore.DocumentRef {
	return s.sessionRef(sessionID).Collection("stations").Doc(stationID)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// --- Sessions ---

func (s *FirestoreStore) CreateSession(ctx context.Context, session *models.Session) error {
	if _, err := s.sessionRef(session.ID).Create(ctx, session); err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	snap, err := s.sessionRef(sessionID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("store: session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session %s: %w", sessionID, err)
	}
	return sessionFromSnap(snap)
}

func (s *FirestoreStore) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	q := s.client.Collection(s.collection).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sessions []*models.Session
	it := q.Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: list sessions: %w", err)
		}
		session, err := sessionFromSnap(snap)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *FirestoreStore) AdvanceSession(ctx context.Context, sessionID string, next models.SessionStatus) (*models.Session, error) {
	ref := s.sessionRef(sessionID)
	var out *models.Session
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("store: session %s: %w", sessionID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get session %s: %w", sessionID, err)
		}
		session, err := sessionFromSnap(snap)
		if err != nil {
			return err
		}
		if session.Status == next {
			out = session
			return nil
		}
		if !session.Status.CanAdvanceTo(next) {
			return fmt.Errorf("store: session %s cannot move %s -> %s: %w", sessionID, session.Status, next, ErrConflict)
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: next},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return fmt.Errorf("store: advance session %s: %w", sessionID, err)
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

func (s *FirestoreStore) ListSessionsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*models.Session, error) {
	it := s.client.Collection(s.collection).
		Where("createdAt", "<", cutoff).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer it.Stop()
	var sessions []*models.Session
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: list expired sessions: %w", err)
		}
		session, err := sessionFromSnap(snap)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *FirestoreStore) DeleteSessionCascade(ctx context.Context, sessionID string) error {
	ref := s.sessionRef(sessionID)
	if _, err := ref.Get(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("store: session %s: %w", sessionID, ErrNotFound)
		}
		return fmt.Errorf("store: get session %s: %w", sessionID, err)
	}

	groupRefs := ref.Collection("groups").DocumentRefs(ctx)
	for {
		groupRef, err := groupRefs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("store: list group refs: %w", err)
		}
		if err := s.deleteRefs(ctx, groupRef.Collection("images").DocumentRefs(ctx)); err != nil {
			return err
		}
		if _, err := groupRef.Delete(ctx); err != nil {
			return fmt.Errorf("store: delete group %s: %w", groupRef.ID, err)
		}
	}

	if err := s.deleteRefs(ctx, ref.Collection("stations").DocumentRefs(ctx)); err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("store: delete session %s: %w", sessionID, err)
	}
	return nil
}

func (s *FirestoreStore) deleteRefs(ctx context.Context, refs *firestore.DocumentRefIterator) error {
	for {
		ref, err := refs.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: list refs: %w", err)
		}
		if _, err := ref.Delete(ctx); err != nil {
			return fmt.Errorf("store: delete %s: %w", ref.ID, err)
		}
	}
}

// --- Capture groups ---

func (s *FirestoreStore) CreateGroup(ctx context.Context, group *models.CaptureGroup) error {
	if _, err := s.groupRef(group.SessionID, group.ID).Create(ctx, group); err != nil {
		return fmt.Errorf("store: create group: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetGroup(ctx context.Context, sessionID, groupID string) (*models.CaptureGroup, error) {
	snap, err := s.groupRef(sessionID, groupID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("store: group %s: %w", groupID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get group %s: %w", groupID, err)
	}
	return groupFromSnap(snap)
}

func (s *FirestoreStore) ListGroups(ctx context.Context, sessionID string) ([]*models.CaptureGroup, error) {
	it := s.sessionRef(sessionID).Collection("groups").
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer it.Stop()
	var groups []*models.CaptureGroup
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: list groups: %w", err)
		}
		group, err := groupFromSnap(snap)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *FirestoreStore) ListImages(ctx context.Context, sessionID, groupID string) ([]*models.Image, error) {
	it := s.groupRef(sessionID, groupID).Collection("images").
		OrderBy("orderIndex", firestore.Asc).
		Documents(ctx)
	defer it.Stop()
	var images []*models.Image
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: list images: %w", err)
		}
		image, err := imageFromSnap(snap)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, nil
}

func (s *FirestoreStore) AttachImage(ctx context.Context, image *models.Image) (bool, *models.CaptureGroup, error) {
	groupRef := s.groupRef(image.SessionID, image.GroupID)
	imageRef := groupRef.Collection("images").Doc(image.ID)

	var (
		promoted bool
		group    *models.CaptureGroup
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		promoted = false
		group = nil

		snap, err := tx.Get(groupRef)
		if isNotFound(err) {
			return fmt.Errorf("store: group %s: %w", image.GroupID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get group %s: %w", image.GroupID, err)
		}
		group, err = groupFromSnap(snap)
		if err != nil {
			return err
		}

		if _, err := tx.Get(imageRef); err == nil {
			return nil // duplicate completion event, already attached
		} else if !isNotFound(err) {
			return fmt.Errorf("store: check image %s: %w", image.ID, err)
		}

		snaps, err := tx.Documents(groupRef.Collection("images")).GetAll()
		if err != nil {
			return fmt.Errorf("store: count images: %w", err)
		}
		count := len(snaps) + 1 // including the one attached below

		if err := tx.Create(imageRef, image); err != nil {
			return fmt.Errorf("store: attach image %s: %w", image.ID, err)
		}
		if group.Status == models.GroupPending && count == group.ExpectedImages {
			if err := tx.Update(groupRef, []firestore.Update{
				{Path: "status", Value: models.GroupReady},
				{Path: "updatedAt", Value: time.Now()},
			}); err != nil {
				return fmt.Errorf("store: promote group %s: %w", group.ID, err)
			}
			group.Status = models.GroupReady
			promoted = true
		}
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return promoted, group, nil
}

func (s *FirestoreStore) DeleteImage(ctx context.Context, sessionID, groupID, imageID string) (*models.Image, error) {
	groupRef := s.groupRef(sessionID, groupID)
	imageRef := groupRef.Collection("images").Doc(imageID)

	var deleted *models.Image
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = nil

		groupSnap, err := tx.Get(groupRef)
		if isNotFound(err) {
			return fmt.Errorf("store: group %s: %w", groupID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get group %s: %w", groupID, err)
		}
		group, err := groupFromSnap(groupSnap)
		if err != nil {
			return err
		}

		imageSnap, err := tx.Get(imageRef)
		if isNotFound(err) {
			return fmt.Errorf("store: image %s: %w", imageID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get image %s: %w", imageID, err)
		}
		deleted, err = imageFromSnap(imageSnap)
		if err != nil {
			return err
		}

		snaps, err := tx.Documents(groupRef.Collection("images")).GetAll()
		if err != nil {
			return fmt.Errorf("store: list images: %w", err)
		}
		survivors := make([]*models.Image, 0, len(snaps))
		for _, snap := range snaps {
			if snap.Ref.ID == imageID {
				continue
			}
			img, err := imageFromSnap(snap)
			if err != nil {
				return err
			}
			survivors = append(survivors, img)
		}
		sort.Slice(survivors, func(i, j int) bool { return survivors[i].OrderIndex < survivors[j].OrderIndex })

		if err := tx.Delete(imageRef); err != nil {
			return fmt.Errorf("store: delete image %s: %w", imageID, err)
		}
		for i, img := range survivors {
			if img.OrderIndex == i {
				continue
			}
			ref := groupRef.Collection("images").Doc(img.ID)
			if err := tx.Update(ref, []firestore.Update{{Path: "orderIndex", Value: i}}); err != nil {
				return fmt.Errorf("store: renumber image %s: %w", img.ID, err)
			}
		}
		if group.Status == models.GroupPending && group.ExpectedImages > 0 {
			if err := tx.Update(groupRef, []firestore.Update{
				{Path: "expectedImages", Value: firestore.Increment(-1)},
				{Path: "updatedAt", Value: time.Now()},
			}); err != nil {
				return fmt.Errorf("store: lower expected count: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *FirestoreStore) ReorderImages(ctx context.Context, sessionID, groupID string, imageIDs []string) error {
	groupRef := s.groupRef(sessionID, groupID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(groupRef); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("store: group %s: %w", groupID, ErrNotFound)
			}
			return fmt.Errorf("store: get group %s: %w", groupID, err)
		}
		snaps, err := tx.Documents(groupRef.Collection("images")).GetAll()
		if err != nil {
			return fmt.Errorf("store: list images: %w", err)
		}
		if len(snaps) != len(imageIDs) {
			return fmt.Errorf("store: reorder names %d images, group has %d: %w", len(imageIDs), len(snaps), ErrConflict)
		}
		current := make(map[string]int, len(snaps))
		for _, snap := range snaps {
			img, err := imageFromSnap(snap)
			if err != nil {
				return err
			}
			current[img.ID] = img.OrderIndex
		}
		for pos, id := range imageIDs {
			orderIndex, ok := current[id]
			if !ok {
				return fmt.Errorf("store: image %s not in group %s: %w", id, groupID, ErrConflict)
			}
			delete(current, id)
			if orderIndex == pos {
				continue
			}
			ref := groupRef.Collection("images").Doc(id)
			if err := tx.Update(ref, []firestore.Update{{Path: "orderIndex", Value: pos}}); err != nil {
				return fmt.Errorf("store: reorder image %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *FirestoreStore) MarkGroupFailed(ctx context.Context, sessionID, groupID, reason string) (*models.CaptureGroup, error) {
	ref := s.groupRef(sessionID, groupID)
	var out *models.CaptureGroup
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("store: group %s: %w", groupID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get group %s: %w", groupID, err)
		}
		group, err := groupFromSnap(snap)
		if err != nil {
			return err
		}
		if group.Status == models.GroupNeedsAttention {
			out = group
			return nil
		}
		if group.Status != models.GroupPending && group.Status != models.GroupReady {
			return fmt.Errorf("store: group %s is %s, cannot mark failed: %w", groupID, group.Status, ErrConflict)
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: models.GroupNeedsAttention},
			{Path: "failureReason", Value: reason},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return fmt.Errorf("store: mark group %s failed: %w", groupID, err)
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

func (s *FirestoreStore) SetGroupExtraction(ctx context.Context, sessionID, groupID string, upd GroupExtractionUpdate) (*models.CaptureGroup, error) {
	if !upd.Status.Extracted() {
		return nil, fmt.Errorf("store: %s is not an extraction outcome: %w", upd.Status, ErrConflict)
	}
	ref := s.groupRef(sessionID, groupID)
	var out *models.CaptureGroup
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("store: group %s: %w", groupID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get group %s: %w", groupID, err)
		}
		group, err := groupFromSnap(snap)
		if err != nil {
			return err
		}
		if !group.Status.Extractable() {
			return fmt.Errorf("store: group %s is %s, not extractable: %w", groupID, group.Status, ErrConflict)
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: upd.Status},
			{Path: "extractionModel", Value: upd.ModelID},
			{Path: "extraction", Value: upd.Result},
			{Path: "failureReason", Value: upd.FailureReason},
			{Path: "extractedAt", Value: upd.ExtractedAt},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return fmt.Errorf("store: write extraction for group %s: %w", groupID, err)
		}
		extractedAt := upd.ExtractedAt
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

func (s *FirestoreStore) CreateStation(ctx context.Context, station *models.StationCapture) error {
	if _, err := s.stationRef(station.SessionID, station.ID).Create(ctx, station); err != nil {
		return fmt.Errorf("store: create station: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetStation(ctx context.Context, sessionID, stationID string) (*models.StationCapture, error) {
	snap, err := s.stationRef(sessionID, stationID).Get(ctx)
	if isNotFound(err) {
		return nil, fmt.Errorf("store: station %s: %w", stationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get station %s: %w", stationID, err)
	}
	return stationFromSnap(snap)
}

func (s *FirestoreStore) ListStations(ctx context.Context, sessionID string) ([]*models.StationCapture, error) {
	it := s.sessionRef(sessionID).Collection("stations").
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer it.Stop()
	var stations []*models.StationCapture
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: list stations: %w", err)
		}
		station, err := stationFromSnap(snap)
		if err != nil {
			return nil, err
		}
		stations = append(stations, station)
	}
	return stations, nil
}

func (s *FirestoreStore) FillStationSlot(ctx context.Context, sessionID, stationID string, slot models.UploadSlot, objectPath, blobURL string, uploadedAt time.Time) (bool, *models.StationCapture, error) {
	if !slot.Valid() {
		return false, nil, fmt.Errorf("store: unknown slot %q: %w", slot, ErrConflict)
	}
	ref := s.stationRef(sessionID, stationID)
	var (
		promoted bool
		out      *models.StationCapture
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		promoted = false
		out = nil

		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("store: station %s: %w", stationID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get station %s: %w", stationID, err)
		}
		station, err := stationFromSnap(snap)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := []firestore.Update{{Path: "updatedAt", Value: now}}
		switch slot {
		case models.SlotSign:
			if station.SignBlobURL != blobURL {
				updates = append(updates,
					firestore.Update{Path: "signObjectPath", Value: objectPath},
					firestore.Update{Path: "signBlobUrl", Value: blobURL},
					firestore.Update{Path: "signUploadedAt", Value: uploadedAt},
				)
				station.SignObjectPath = objectPath
				station.SignBlobURL = blobURL
				station.SignUploadedAt = &uploadedAt
			}
		case models.SlotStock:
			if station.StockBlobURL != blobURL {
				updates = append(updates,
					firestore.Update{Path: "stockObjectPath", Value: objectPath},
					firestore.Update{Path: "stockBlobUrl", Value: blobURL},
					firestore.Update{Path: "stockUploadedAt", Value: uploadedAt},
				)
				station.StockObjectPath = objectPath
				station.StockBlobURL = blobURL
				station.StockUploadedAt = &uploadedAt
			}
		}
		if station.Status == models.StationPending && station.SlotsFilled() {
			updates = append(updates, firestore.Update{Path: "status", Value: models.StationReady})
			station.Status = models.StationReady
			promoted = true
		}
		if err := tx.Update(ref, updates); err != nil {
			return fmt.Errorf("store: fill %s slot: %w", slot, err)
		}
		out = station
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return promoted, out, nil
}

func (s *FirestoreStore) MarkStationFailed(ctx context.Context, sessionID, stationID, reason string) (*models.StationCapture, error) {
	ref := s.stationRef(sessionID, stationID)
	var out *models.StationCapture
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("store: station %s: %w", stationID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get station %s: %w", stationID, err)
		}
		station, err := stationFromSnap(snap)
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
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: models.StationNeedsAttention},
			{Path: "failureReason", Value: reason},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return fmt.Errorf("store: mark station %s failed: %w", stationID, err)
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

func (s *FirestoreStore) SetStationExtraction(ctx context.Context, sessionID, stationID string, upd StationExtractionUpdate) (*models.StationCapture, error) {
	if upd.Status != models.StationValid && upd.Status != models.StationNeedsAttention {
		return nil, fmt.Errorf("store: %s is not an extraction outcome: %w", upd.Status, ErrConflict)
	}
	ref := s.stationRef(sessionID, stationID)
	var out *models.StationCapture
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		out = nil
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return fmt.Errorf("store: station %s: %w", stationID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("store: get station %s: %w", stationID, err)
		}
		station, err := stationFromSnap(snap)
		if err != nil {
			return err
		}
		if station.Status == models.StationPending {
			return fmt.Errorf("store: station %s is pending, not extractable: %w", stationID, ErrConflict)
		}

		productCode := station.ProductCode
		if upd.Reading != nil && upd.Reading.ProductCode != "" {
			productCode = upd.Reading.ProductCode
		}
		var minQty, maxQty, onHandQty *float64
		if upd.Status == models.StationValid && upd.Reading != nil {
			minQty = upd.Reading.MinQty
			maxQty = upd.Reading.MaxQty
			onHandQty = upd.Reading.OnHandQty
		}
		extractedAt := upd.ExtractedAt
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: upd.Status},
			{Path: "productCode", Value: productCode},
			{Path: "minQty", Value: minQty},
			{Path: "maxQty", Value: maxQty},
			{Path: "onHandQty", Value: onHandQty},
			{Path: "extractionModel", Value: upd.ModelID},
			{Path: "extractionWarnings", Value: upd.Warnings},
			{Path: "failureReason", Value: upd.FailureReason},
			{Path: "extractedAt", Value: extractedAt},
			{Path: "updatedAt", Value: time.Now()},
		}); err != nil {
			return fmt.Errorf("store: write extraction for station %s: %w", stationID, err)
		}
		station.Status = upd.Status
		station.ProductCode = productCode
		station.MinQty = minQty
		station.MaxQty = maxQty
		station.OnHandQty = onHandQty
		station.ExtractionModel = upd.ModelID
		station.ExtractionWarnings = upd.Warnings
		station.FailureReason = upd.FailureReason
		station.ExtractedAt = &extractedAt
		out = station
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- snapshot decoding ---

func sessionFromSnap(snap *firestore.DocumentSnapshot) (*models.Session, error) {
	var session models.Session
	if err := snap.DataTo(&session); err != nil {
		return nil, fmt.Errorf("store: decode session %s: %w", snap.Ref.ID, err)
	}
	session.ID = snap.Ref.ID
	return &session, nil
}

func groupFromSnap(snap *firestore.DocumentSnapshot) (*models.CaptureGroup, error) {
	var group models.CaptureGroup
	if err := snap.DataTo(&group); err != nil {
		return nil, fmt.Errorf("store: decode group %s: %w", snap.Ref.ID, err)
	}
	group.ID = snap.Ref.ID
	return &group, nil
}

func imageFromSnap(snap *firestore.DocumentSnapshot) (*models.Image, error) {
	var image models.Image
	if err := snap.DataTo(&image); err != nil {
		return nil, fmt.Errorf("store: decode image %s: %w", snap.Ref.ID, err)
	}
	image.ID = snap.Ref.ID
	return &image, nil
}

func stationFromSnap(snap *firestore.DocumentSnapshot) (*models.StationCapture, error) {
	var station models.StationCapture
	if err := snap.DataTo(&station); err != nil {
		return nil, fmt.Errorf("store: decode station %s: %w", snap.Ref.ID, err)
	}
	station.ID = snap.Ref.ID
	return &station, nil
}
