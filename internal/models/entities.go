package models

import "time"

// Session is one end-to-end capture workflow instance. It owns its
// capture groups and station captures; deleting a session cascades to
// all of them.
type Session struct {
	ID        string        `firestore:"-" gorm:"primaryKey;size:36" json:"id"`
	Status    SessionStatus `firestore:"status" gorm:"size:32;default:draft;index" json:"status"`
	CreatedAt time.Time     `firestore:"createdAt" gorm:"index" json:"createdAt"`
	UpdatedAt time.Time     `firestore:"updatedAt" json:"updatedAt"`
}

// CaptureGroup is a batch of loading-list photos submitted together by
// one worker. The status field is the only authority on pipeline state;
// the embedded extraction result is written in the same update that
// moves the status, so the two can never disagree.
type CaptureGroup struct {
	ID             string      `firestore:"-" gorm:"primaryKey;size:36" json:"id"`
	SessionID      string      `firestore:"sessionId" gorm:"size:36;index;not null" json:"sessionId"`
	EmployeeLabel  string      `firestore:"employeeLabel,omitempty" gorm:"size:128" json:"employeeLabel,omitempty"`
	ExpectedImages int         `firestore:"expectedImages" gorm:"not null" json:"expectedImages"`
	Status         GroupStatus `firestore:"status" gorm:"size:24;default:pending;index" json:"status"`
	FailureReason  string      `firestore:"failureReason,omitempty" gorm:"size:512" json:"failureReason,omitempty"`

	ExtractionModel string            `firestore:"extractionModel,omitempty" gorm:"size:64" json:"extractionModel,omitempty"`
	Extraction      *ExtractionResult `firestore:"extraction,omitempty" gorm:"serializer:json;type:text" json:"extraction,omitempty"`
	ExtractedAt     *time.Time        `firestore:"extractedAt,omitempty" json:"extractedAt,omitempty"`

	CreatedAt time.Time `firestore:"createdAt" gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`

	Session *Session `firestore:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// Image is one uploaded asset of a capture group. OrderIndex is dense
// and zero-based within the group and defines presentation order; any
// delete renumbers the survivors. The AI hint fields are advisory
// classification output, never used for workflow decisions.
type Image struct {
	ID          string      `firestore:"-" gorm:"primaryKey;size:36" json:"id"`
	GroupID     string      `firestore:"groupId" gorm:"size:36;index:idx_images_group_order;not null" json:"groupId"`
	SessionID   string      `firestore:"sessionId" gorm:"size:36;index" json:"sessionId"`
	BlobURL     string      `firestore:"blobUrl" gorm:"size:1024" json:"blobUrl"`
	ObjectPath  string      `firestore:"objectPath" gorm:"size:512" json:"objectPath"`
	CaptureType CaptureType `firestore:"captureType" gorm:"size:24" json:"captureType"`
	OrderIndex  int         `firestore:"orderIndex" gorm:"index:idx_images_group_order;not null" json:"orderIndex"`
	Width       int         `firestore:"width" json:"width"`
	Height      int         `firestore:"height" json:"height"`

	UploadValidationPassed *bool `firestore:"uploadValidationPassed,omitempty" json:"uploadValidationPassed,omitempty"`

	AIHintKind       string   `firestore:"aiHintKind,omitempty" gorm:"size:32" json:"aiHintKind,omitempty"`
	AIHintConfidence *float64 `firestore:"aiHintConfidence,omitempty" json:"aiHintConfidence,omitempty"`

	UploadedAt time.Time `firestore:"uploadedAt" json:"uploadedAt"`

	Group *CaptureGroup `firestore:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
}

// StationCapture is a paired sign+stock photo submission describing one
// product's storage location. The two slots fill independently; the
// station is ready once both are present. OnHandQty, MinQty, and MaxQty
// are extraction-derived and populated exactly when Status is
// StationValid.
type StationCapture struct {
	ID          string        `firestore:"-" gorm:"primaryKey;size:36" json:"id"`
	SessionID   string        `firestore:"sessionId" gorm:"size:36;index;not null" json:"sessionId"`
	ProductCode string        `firestore:"productCode,omitempty" gorm:"size:64;index" json:"productCode,omitempty"`
	Status      StationStatus `firestore:"status" gorm:"size:24;default:pending;index" json:"status"`

	MinQty    *float64 `firestore:"minQty,omitempty" json:"minQty,omitempty"`
	MaxQty    *float64 `firestore:"maxQty,omitempty" json:"maxQty,omitempty"`
	OnHandQty *float64 `firestore:"onHandQty,omitempty" json:"onHandQty,omitempty"`

	SignObjectPath  string     `firestore:"signObjectPath,omitempty" gorm:"size:512" json:"signObjectPath,omitempty"`
	SignBlobURL     string     `firestore:"signBlobUrl,omitempty" gorm:"size:1024" json:"signBlobUrl,omitempty"`
	SignUploadedAt  *time.Time `firestore:"signUploadedAt,omitempty" json:"signUploadedAt,omitempty"`
	StockObjectPath string     `firestore:"stockObjectPath,omitempty" gorm:"size:512" json:"stockObjectPath,omitempty"`
	StockBlobURL    string     `firestore:"stockBlobUrl,omitempty" gorm:"size:1024" json:"stockBlobUrl,omitempty"`
	StockUploadedAt *time.Time `firestore:"stockUploadedAt,omitempty" json:"stockUploadedAt,omitempty"`

	ExtractionModel    string     `firestore:"extractionModel,omitempty" gorm:"size:64" json:"extractionModel,omitempty"`
	ExtractionWarnings []string   `firestore:"extractionWarnings,omitempty" gorm:"serializer:json;type:text" json:"extractionWarnings,omitempty"`
	FailureReason      string     `firestore:"failureReason,omitempty" gorm:"size:512" json:"failureReason,omitempty"`
	ExtractedAt        *time.Time `firestore:"extractedAt,omitempty" json:"extractedAt,omitempty"`

	CreatedAt time.Time `firestore:"createdAt" gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt" json:"updatedAt"`

	Session *Session `firestore:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// SlotsFilled reports whether both station photo slots have an uploaded
// asset.
func (s *StationCapture) SlotsFilled() bool {
	return s.SignBlobURL != "" && s.StockBlobURL != ""
}
