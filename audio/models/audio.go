package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recording catalogs an audio clip sent as a chat message. The clip itself
// stays on the device and is referenced by URI.
type Recording struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	MessageID  string    `json:"message_id" gorm:"uniqueIndex;size:64"`
	RoomID     string    `json:"room_id" gorm:"index;size:64"`
	SenderID   string    `json:"sender_id"`
	URI        string    `json:"uri"`
	DurationMs int64     `json:"duration_ms"`
	Format     string    `json:"format" gorm:"default:m4a"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r *Recording) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Format == "" {
		r.Format = "m4a"
	}
	return nil
}

func (Recording) TableName() string {
	return "audio_recordings"
}
