package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"docuquery/pkg/domain"
)

// googleIdentity is the account every Google sign-in resolves to.
var googleIdentity = domain.Identity{
	ID:      "3",
	Name:    "Google User",
	Email:   "google@example.com",
	Role:    domain.RoleUser,
	Picture: "https://randomuser.me/api/portraits/men/1.jpg",
}

// Store tracks the current identity of one client. It is Anonymous until a
// login or registration succeeds, or until a saved identity is restored.
type Store struct {
	mu      sync.RWMutex
	slot    Slot
	dir     *Directory
	current *domain.Identity
}

// NewStore restores the identity held by slot, if it decodes, and returns the store.
// An empty or undecodable slot leaves the store Anonymous.
func NewStore(ctx context.Context, slot Slot, dir *Directory) (*Store, error) {
	if slot == nil {
		slot = NewMemorySlot()
	}
	if dir == nil {
		dir = NewDirectory()
	}
	s := &Store{slot: slot, dir: dir}
	data, ok, err := slot.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ok {
		var id domain.Identity
		if err := json.Unmarshal(data, &id); err == nil && id.ID != "" {
			s.current = &id
		}
	}
	return s, nil
}

// Login authenticates against the directory. On mismatch the state is unchanged.
func (s *Store) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	id, ok := s.dir.Match(email, password)
	if !ok {
		return domain.Identity{}, ErrInvalidCredentials
	}
	if err := s.establish(ctx, id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// LoginWithGoogle establishes the fixed Google identity.
func (s *Store) LoginWithGoogle(ctx context.Context) (domain.Identity, error) {
	id := googleIdentity
	if err := s.establish(ctx, id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Register appends a user-role account to the directory and authenticates as it.
func (s *Store) Register(ctx context.Context, name, email, password string) (domain.Identity, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domain.Identity{}, ErrInvalidInput
	}
	if s.dir.Has(email) {
		return domain.Identity{}, ErrUserExists
	}
	id, err := s.dir.Add(strings.TrimSpace(name), email, password)
	if err != nil {
		return domain.Identity{}, err
	}
	if err := s.establish(ctx, id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Logout clears the identity and its durable copy.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slot.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.current = nil
	return nil
}

// Current returns the identity, if any.
func (s *Store) Current() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Identity{}, false
	}
	return *s.current, true
}

func (s *Store) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

func (s *Store) IsAdmin() bool {
	id, ok := s.Current()
	return ok && id.IsAdmin()
}

func (s *Store) establish(ctx context.Context, id domain.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.slot.Save(ctx, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.current = &id
	return nil
}
