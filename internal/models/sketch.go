package models

import "time"

// Request lifecycle. Status is tracked explicitly so clients can poll
// /images/{device_id} instead of relying on the push channel alone; the
// filename columns stay the source of truth for what was persisted.
const (
	StatusPending    = "pending"
	StatusGenerating = "generating"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Device — an anonymous client installation, identified by a server-issued ID.
type Device struct {
	ID        string    `gorm:"column:id;primaryKey" json:"device_id"`
	CreatedAt time.Time `json:"created_at"`

	Requests []SketchRequest `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"-"`
}

// Topic — a named drawing subject with the prompts fed to the generator.
// Seeded once at startup, read-only afterwards.
type Topic struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	Name           string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Prompt         string    `gorm:"type:text;not null" json:"prompt"`
	NegativePrompt string    `gorm:"type:text" json:"negative_prompt,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SketchRequest — one topic-assignment → canvas-upload → generation cycle.
// The filename columns start null and are set at most once each.
type SketchRequest struct {
	ID                string    `gorm:"column:id;primaryKey" json:"id"`
	DeviceID          string    `gorm:"index;not null" json:"device_id"`
	TopicID           string    `gorm:"not null" json:"topic_id"`
	CanvasFilename    *string   `gorm:"column:canvas_image_filename" json:"canvas_image_filename"`
	GeneratedFilename *string   `gorm:"column:generated_image_filename" json:"generated_image_filename"`
	NegativePrompt    *string   `gorm:"type:text" json:"negative_prompt,omitempty"`
	Status            string    `gorm:"size:16;default:pending" json:"status"`
	RequestTime       time.Time `gorm:"index" json:"request_time"`

	Device *Device `gorm:"foreignKey:DeviceID" json:"-"`
	Topic  *Topic  `gorm:"foreignKey:TopicID" json:"-"`
}

func (SketchRequest) TableName() string { return "images" }
