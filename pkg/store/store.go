package store

import "docuquery/pkg/domain"

// UserRepository persists admin-managed user records.
type UserRepository interface {
	ListUsers() ([]domain.User, error)
	GetUser(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	SaveUser(domain.User) error
	// UpdateUser applies fn to the stored record atomically. Returns ErrNotFound for unknown ids.
	UpdateUser(id string, fn func(*domain.User) error) (domain.User, error)
	DeleteUser(id string) error
}

// DocumentRepository persists document records.
type DocumentRepository interface {
	ListDocuments() ([]domain.Document, error)
	GetDocument(id string) (domain.Document, bool, error)
	SaveDocument(domain.Document) error
	UpdateDocument(id string, fn func(*domain.Document) error) (domain.Document, error)
	DeleteDocument(id string) error
}

// IngestionRepository persists ingestion records.
type IngestionRepository interface {
	ListIngestions() ([]domain.Ingestion, error)
	GetIngestion(id string) (domain.Ingestion, bool, error)
	SaveIngestion(domain.Ingestion) error
	UpdateIngestion(id string, fn func(*domain.Ingestion) error) (domain.Ingestion, error)
	DeleteIngestion(id string) error
}

// MessageRepository keeps the question/answer history per user.
type MessageRepository interface {
	AppendMessage(domain.Message) error
	// ListMessages returns the newest limit messages of a user in chronological order.
	ListMessages(userID string, limit int) ([]domain.Message, error)
}

// Store bundles every repository the service layer needs.
type Store interface {
	UserRepository
	DocumentRepository
	IngestionRepository
	MessageRepository
}
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
