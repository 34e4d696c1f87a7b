package blob

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/Lllllllleong/fieldcaptureflow/internal/models"
)

// Object path layout. Every asset lives under its session so retention
// cleanup and the upload watcher can attribute any object from its name
// alone:
//
//	sessions/{sessionId}/loading-lists/{groupId}/{index}{ext}
//	sessions/{sessionId}/stations/{stationId}/{slot}{ext}
//	sessions/{sessionId}/extractions/{entityId}/{executionId}.json

// PathKind classifies a parsed object path.
type PathKind int

const (
	PathUnknown PathKind = iota
	PathLoadingList
	PathStation
)

// ParsedPath is the decoded form of an asset object path.
type ParsedPath struct {
	Kind      PathKind
	SessionID string
	GroupID   string
	Index     int
	StationID string
	Slot      models.UploadSlot
	Ext       string
}

// LoadingListObjectPath builds the object path for one image of a
// capture group. ext must include the leading dot.
func LoadingListObjectPath(sessionID, groupID string, index int, ext string) string {
	return fmt.Sprintf("sessions/%s/loading-lists/%s/%d%s", sessionID, groupID, index, ext)
}

// StationObjectPath builds the object path for one station photo slot.
func StationObjectPath(sessionID, stationID string, slot models.UploadSlot, ext string) string {
	return fmt.Sprintf("sessions/%s/stations/%s/%s%s", sessionID, stationID, slot, ext)
}

// ExtractionAuditPath builds the object path for the raw model output
// of one extraction run.
func ExtractionAuditPath(sessionID, entityID, executionID string) string {
	return fmt.Sprintf("sessions/%s/extractions/%s/%s.json", sessionID, entityID, executionID)
}

// ParseObjectPath decodes an asset object path. It reports ok=false for
// anything that is not a loading-list image or station photo, which
// lets the upload watcher ignore unrelated objects in the bucket.
func ParseObjectPath(objectPath string) (ParsedPath, bool) {
	parts := strings.Split(objectPath, "/")
	if len(parts) != 5 || parts[0] != "sessions" || parts[1] == "" || parts[3] == "" {
		return ParsedPath{}, false
	}

	ext := path.Ext(parts[4])
	stem := strings.TrimSuffix(parts[4], ext)
	if stem == "" {
		return ParsedPath{}, false
	}

	switch parts[2] {
	case "loading-lists":
		index, err := strconv.Atoi(stem)
		if err != nil || index < 0 {
			return ParsedPath{}, false
		}
		return ParsedPath{
			Kind:      PathLoadingList,
			SessionID: parts[1],
			GroupID:   parts[3],
			Index:     index,
			Ext:       ext,
		}, true
	case "stations":
		slot := models.UploadSlot(stem)
		if !slot.Valid() {
			return ParsedPath{}, false
		}
		return ParsedPath{
			Kind:      PathStation,
			SessionID: parts[1],
			StationID: parts[3],
			Slot:      slot,
			Ext:       ext,
		}, true
	}
	return ParsedPath{}, false
}

// ExtForContentType maps the content types the capture UI produces to
// an object path extension.
func ExtForContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ".bin"
	}
}
