package store

import (
	"slices"
	"strings"
	"sync"

	"docuquery/pkg/domain"
)

// table keeps rows keyed by id and remembers insertion order.
type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[string]T)}
}

func (t *table[T]) list() []T {
	res := make([]T, 0, len(t.order))
	for _, id := range t.order {
		if row, ok := t.rows[id]; ok {
			res = append(res, row)
		}
	}
	return res
}

func (t *table[T]) put(id string, row T) {
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table[T]) remove(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	t.order = slices.DeleteFunc(t.order, func(item string) bool { return item == id })
	return true
}

// MemoryStore keeps every collection in-process for the lifetime of the process.
type MemoryStore struct {
	mu         sync.RWMutex
	users      table[domain.User]
	email      map[string]string // normalized email -> user ID
	documents  table[domain.Document]
	ingestions table[domain.Ingestion]
	messages   map[string][]domain.Message // user ID -> history
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      newTable[domain.User](),
		email:      make(map[string]string),
		documents:  newTable[domain.Document](),
		ingestions: newTable[domain.Ingestion](),
		messages:   make(map[string][]domain.Message),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ListUsers returns users in insertion order.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users.list(), nil
}

// GetUser returns a user by ID.
func (m *MemoryStore) GetUser(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users.rows[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email, ignoring case.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[normalizeEmail(email)]
	if !ok {
		return domain.User{}, false, nil
	}
	u, exists := m.users.rows[id]
	return u, exists, nil
}

// SaveUser inserts or replaces a user. The email must not belong to another user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putUserLocked(u)
}

func (m *MemoryStore) putUserLocked(u domain.User) error {
	key := normalizeEmail(u.Email)
	if owner, ok := m.email[key]; ok && owner != u.ID {
		return ErrDuplicateEmail
	}
	if prev, ok := m.users.rows[u.ID]; ok {
		delete(m.email, normalizeEmail(prev.Email))
	}
	m.email[key] = u.ID
	m.users.put(u.ID, u)
	return nil
}

// UpdateUser applies fn to a copy of the user and stores the result.
func (m *MemoryStore) UpdateUser(id string, fn func(*domain.User) error) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users.rows[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if err := fn(&u); err != nil {
		return domain.User{}, err
	}
	u.ID = id
	if err := m.putUserLocked(u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// DeleteUser removes a user and its history.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users.rows[id]
	if !ok {
		return ErrNotFound
	}
	m.users.remove(id)
	delete(m.email, normalizeEmail(u.Email))
	delete(m.messages, id)
	return nil
}

// ListDocuments returns documents in insertion order.
func (m *MemoryStore) ListDocuments() ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.documents.list(), nil
}

// GetDocument retrieves a document by ID.
func (m *MemoryStore) GetDocument(id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents.rows[id]
	return d, ok, nil
}

// SaveDocument stores or replaces a document.
func (m *MemoryStore) SaveDocument(d domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents.put(d.ID, d)
	return nil
}

func (m *MemoryStore) UpdateDocument(id string, fn func(*domain.Document) error) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents.rows[id]
	if !ok {
		return domain.Document{}, ErrNotFound
	}
	if err := fn(&d); err != nil {
		return domain.Document{}, err
	}
	d.ID = id
	m.documents.put(id, d)
	return d, nil
}

// DeleteDocument removes exactly one document.
func (m *MemoryStore) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.documents.remove(id) {
		return ErrNotFound
	}
	return nil
}

// ListIngestions returns ingestions in insertion order.
func (m *MemoryStore) ListIngestions() ([]domain.Ingestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ingestions.list(), nil
}

func (m *MemoryStore) GetIngestion(id string) (domain.Ingestion, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ing, ok := m.ingestions.rows[id]
	return ing, ok, nil
}

func (m *MemoryStore) SaveIngestion(ing domain.Ingestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestions.put(ing.ID, ing)
	return nil
}

func (m *MemoryStore) UpdateIngestion(id string, fn func(*domain.Ingestion) error) (domain.Ingestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ing, ok := m.ingestions.rows[id]
	if !ok {
		return domain.Ingestion{}, ErrNotFound
	}
	if err := fn(&ing); err != nil {
		return domain.Ingestion{}, err
	}
	ing.ID = id
	m.ingestions.put(id, ing)
	return ing, nil
}

func (m *MemoryStore) DeleteIngestion(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ingestions.remove(id) {
		return ErrNotFound
	}
	return nil
}

// AppendMessage records a history entry for msg.UserID.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.Sources = slices.Clone(msg.Sources)
	m.messages[msg.UserID] = append(m.messages[msg.UserID], msg)
	return nil
}

// ListMessages returns the newest limit messages in chronological order. limit <= 0 means all.
func (m *MemoryStore) ListMessages(userID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.messages[userID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return slices.Clone(history), nil
}
