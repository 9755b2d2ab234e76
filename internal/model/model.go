package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Role         string         `gorm:"default:'user'" json:"role"` // admin, user
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Call log entry types.
const (
	CallTypeIncoming = "incoming"
	CallTypeOutgoing = "outgoing"
	CallTypeMissed   = "missed"
)

type CallLogEntry struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	PhoneNumber string    `gorm:"index;not null" json:"phone_number"`
	DisplayName string    `json:"display_name,omitempty"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
	Duration    int       `json:"duration"` // seconds
	Type        string    `gorm:"index" json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

type Contact struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"index;not null" json:"name"`
	PhoneNumber string    `gorm:"index;not null" json:"phone_number"` // dialable form
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Voicemail struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	PhoneNumber   string    `gorm:"index;not null" json:"phone_number"`
	DisplayName   string    `json:"display_name,omitempty"`
	Timestamp     time.Time `gorm:"index" json:"timestamp"`
	Duration      int       `json:"duration"`
	AudioURL      string    `json:"audio_url,omitempty"`
	Transcription string    `json:"transcription,omitempty"`
	IsRead        bool      `gorm:"default:false" json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recording statuses.
const (
	RecordingStatusActive    = "active"
	RecordingStatusCompleted = "completed"
)

type Recording struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	CallID      string     `gorm:"index;not null" json:"call_id"`
	CallSID     string     `json:"call_sid,omitempty"`
	PhoneNumber string     `json:"phone_number"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Duration    int        `json:"duration"`
	Status      string     `gorm:"index" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
