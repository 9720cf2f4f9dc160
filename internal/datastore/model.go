package datastore

import (
	"time"

	"github.com/google/uuid"
)

// QueueStatus is the lifecycle state of an analysis queue entry.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusCompleted QueueStatus = "completed"
)

// Location is the GPS position reported by the capturing device.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationInfo is the reverse-geocoded place of a capture.
type LocationInfo struct {
	Country   string `json:"country,omitempty"`
	City      string `json:"city,omitempty"`
	PlaceName string `json:"placeName,omitempty"`
}

// Orientation is the camera heading at capture time.
type Orientation struct {
	Bearing           *float64 `json:"bearing,omitempty"`
	CardinalDirection string   `json:"cardinalDirection,omitempty"`
}

// Capture is an uploaded image with its device metadata and analysis outputs.
// The analysis pipeline reads the metadata and writes back the vision result,
// the extracted fields, the tag list and the thumbnail URL.
type Capture struct {
	ID           uuid.UUID  `gorm:"primaryKey;size:36"`
	UserID       *uuid.UUID `gorm:"size:36;index"`
	AuthorName   *string    `gorm:"size:255"`
	ImageURL     string     `gorm:"size:2048;not null"`
	ThumbnailURL *string    `gorm:"size:2048"`
	ImageSize    *int64
	StorageType  string `gorm:"size:20;not null;default:s3"`

	VisionResult map[string]any `gorm:"serializer:json"`
	Category     *string        `gorm:"size:100;index"`
	Confidence   *float64
	Difficulty   *string `gorm:"size:20"`
	Verified     *bool
	Tags         []string `gorm:"serializer:json"`

	Location     *Location     `gorm:"serializer:json"`
	LocationInfo *LocationInfo `gorm:"serializer:json"`
	Orientation  *Orientation  `gorm:"serializer:json"`

	IsDeleted bool      `gorm:"not null;default:false;index"`
	IsPublic  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (Capture) TableName() string {
	return "captures"
}

// AnalysisQueueEntry tracks one capture awaiting vision analysis.
// Attempts counts permanent failures only; an entry stops being eligible
// once it reaches the configured maximum.
type AnalysisQueueEntry struct {
	ID          uuid.UUID   `gorm:"primaryKey;size:36"`
	CaptureID   uuid.UUID   `gorm:"size:36;uniqueIndex;not null"`
	Status      QueueStatus `gorm:"size:20;not null;default:pending;index:idx_analysis_queue_status_created"`
	Attempts    int         `gorm:"not null;default:0"`
	CreatedAt   time.Time   `gorm:"index:idx_analysis_queue_status_created"`
	LastAttempt *time.Time
	// LeasedUntil is set by ClaimPending; nil when the entry is not claimed
	LeasedUntil *time.Time
}

func (AnalysisQueueEntry) TableName() string {
	return "analysis_queue"
}

// Tag is a deduplicated lowercase label.
type Tag struct {
	ID        uuid.UUID `gorm:"primaryKey;size:36"`
	Name      string    `gorm:"size:100;uniqueIndex;not null"`
	CreatedAt time.Time
}

func (Tag) TableName() string {
	return "tags"
}

// CaptureTag links a capture to a tag.
type CaptureTag struct {
	CaptureID uuid.UUID `gorm:"primaryKey;size:36"`
	TagID     uuid.UUID `gorm:"primaryKey;size:36;index"`
}

func (CaptureTag) TableName() string {
	return "capture_tags"
}

// QueueStats is a snapshot of the analysis queue.
type QueueStats struct {
	Pending   int64
	Exhausted int64
	Completed int64
}

// AnalysisUpdate carries the values written back to a capture after a
// successful analysis.
type AnalysisUpdate struct {
	Result     map[string]any
	Category   string
	Confidence float64
	Difficulty string
	Verified   bool
	Tags       []string
}

// NeedsAnalysis reports whether a stored vision result is absent or empty.
func NeedsAnalysis(result map[string]any) bool {
	return len(result) == 0
}
