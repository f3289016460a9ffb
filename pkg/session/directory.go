package session

import (
	"strconv"
	"strings"
	"sync"

	"docuquery/pkg/domain"
)

type credential struct {
	identity domain.Identity
	password string
}

// Directory is the fixed credential list consulted by Login and extended by Register.
// Passwords are compared in plaintext.
type Directory struct {
	mu    sync.RWMutex
	users []credential
}

// NewDirectory returns a directory holding the two demo accounts.
func NewDirectory() *Directory {
	return &Directory{users: []credential{
		{identity: domain.Identity{ID: "1", Name: "Admin User", Email: "admin@example.com", Role: domain.RoleAdmin}, password: "password"},
		{identity: domain.Identity{ID: "2", Name: "Regular User", Email: "user@example.com", Role: domain.RoleUser}, password: "password"},
	}}
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// Match returns the identity whose email and password both match.
func (d *Directory) Match(email, password string) (domain.Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.users {
		if sameEmail(c.identity.Email, email) && c.password == password {
			return c.identity, true
		}
	}
	return domain.Identity{}, false
}

// Has reports whether the email is registered.
func (d *Directory) Has(email string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hasLocked(email)
}

func (d *Directory) hasLocked(email string) bool {
	for _, c := range d.users {
		if sameEmail(c.identity.Email, email) {
			return true
		}
	}
	return false
}

// Add appends an account with role user and id len+1.
func (d *Directory) Add(name, email, password string) (domain.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLocked(email) {
		return domain.Identity{}, ErrUserExists
	}
	id := domain.Identity{
		ID:    strconv.Itoa(len(d.users) + 1),
		Name:  name,
		Email: strings.TrimSpace(email),
		Role:  domain.RoleUser,
	}
	d.users = append(d.users, credential{identity: id, password: password})
	return id, nil
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
