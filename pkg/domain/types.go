package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	// RoleEditor exists only on admin-managed user records; sessions are
	// admin or user.
	RoleEditor Role = "editor"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
)

type DocumentStatus string

const (
	DocumentProcessed  DocumentStatus = "processed"
	DocumentProcessing DocumentStatus = "processing"
	DocumentFailed     DocumentStatus = "failed"
)

type IngestionStatus string

const (
	IngestionCompleted  IngestionStatus = "completed"
	IngestionInProgress IngestionStatus = "in-progress"
	IngestionFailed     IngestionStatus = "failed"
)

// Identity is the authenticated session object. It never carries password material.
type Identity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	Picture string `json:"picture,omitempty"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin"`
}

type Document struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Type       string         `json:"type"`
	Size       string         `json:"size"`
	SizeBytes  int64          `json:"sizeBytes,omitempty"`
	UploadedBy string         `json:"uploadedBy"`
	UploadDate string         `json:"uploadDate"`
	Status     DocumentStatus `json:"status"`
	StorageKey string         `json:"-"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type Ingestion struct {
	ID             string          `json:"id"`
	DocumentID     string          `json:"documentId,omitempty"`
	DocumentTitle  string          `json:"documentTitle"`
	Status         IngestionStatus `json:"status"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        *time.Time      `json:"endTime"`
	ProcessedPages int             `json:"processedPages"`
	TotalPages     int             `json:"totalPages"`
	Error          string          `json:"error,omitempty"`
}

// Progress returns completion as a percentage in [0, 100].
func (i Ingestion) Progress() float64 {
	if i.Status == IngestionCompleted {
		return 100
	}
	if i.TotalPages <= 0 {
		return 0
	}
	return float64(i.ProcessedPages) / float64(i.TotalPages) * 100
}

type Answer struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"createdAt"`
}

type Source struct {
	DocumentID string `json:"documentId,omitempty"`
	Title      string `json:"title"`
	UploadDate string `json:"uploadDate"`
	Excerpt    string `json:"excerpt"`
}

// Message is one entry of the question/answer history.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary aggregates the dashboard figures.
type Summary struct {
	TotalDocuments   int                    `json:"totalDocuments"`
	ByStatus         map[DocumentStatus]int `json:"byStatus"`
	ByType           map[string]int         `json:"byType"`
	RecentIngestions []Ingestion            `json:"recentIngestions"`
}
