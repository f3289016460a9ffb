package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	Role         string    `gorm:"not null"`
	Status       string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	LastLogin    *time.Time
}

type DocumentModel struct {
	ID         string `gorm:"primaryKey"`
	Title      string `gorm:"not null"`
	Type       string `gorm:"not null"`
	Size       string `gorm:"not null"`
	SizeBytes  int64
	UploadedBy string    `gorm:"not null"`
	UploadDate string    `gorm:"not null"`
	Status     string    `gorm:"not null;index"`
	StorageKey string
	CreatedAt  time.Time `gorm:"not null;index"`
}

type IngestionModel struct {
	ID             string `gorm:"primaryKey"`
	DocumentID     string `gorm:"index"`
	DocumentTitle  string `gorm:"not null"`
	Status         string    `gorm:"not null;index"`
	StartTime      time.Time `gorm:"not null;index"`
	EndTime        *time.Time
	ProcessedPages int `gorm:"not null"`
	TotalPages     int `gorm:"not null"`
	Error          string
}

type MessageModel struct {
	ID        string         `gorm:"primaryKey"`
	UserID    string         `gorm:"not null;index"`
	Role      string         `gorm:"not null"`
	Content   string         `gorm:"type:text;not null"`
	Sources   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;index"`
}
