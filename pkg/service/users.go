package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"docuquery/pkg/auth"
	"docuquery/pkg/domain"
	"docuquery/pkg/store"
)

// DefaultPassword is assigned to users created from the admin table.
const DefaultPassword = "password"

// NewUser is the input of UserService.Create.
type NewUser struct {
	Name     string
	Email    string
	Role     domain.Role
	Status   domain.UserStatus
	Password string
}

// UserPatch changes the non-nil fields of a user.
type UserPatch struct {
	Name   *string            `json:"name,omitempty"`
	Email  *string            `json:"email,omitempty"`
	Role   *domain.Role       `json:"role,omitempty"`
	Status *domain.UserStatus `json:"status,omitempty"`
}

// UserService manages the admin user table.
type UserService struct {
	repo    store.UserRepository
	latency Latency
	ids     *sequence
	now     func() time.Time
}

func NewUserService(repo store.UserRepository, latency Latency) *UserService {
	return &UserService{
		repo:    repo,
		latency: latency,
		ids: newSequence(func() ([]string, error) {
			list, err := repo.ListUsers()
			if err != nil {
				return nil, err
			}
			ids := make([]string, len(list))
			for i, u := range list {
				ids[i] = u.ID
			}
			return ids, nil
		}),
		now: time.Now,
	}
}

// List returns users whose name, email or role contains query, ignoring case.
func (s *UserService) List(ctx context.Context, query string) ([]domain.User, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users, nil
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(string(u.Role), q) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	if err := s.latency.Wait(ctx); err != nil {
		return domain.User{}, err
	}
	u, ok, err := s.repo.GetUser(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

// Create adds a user. Role defaults to user, status to active and the
// password to DefaultPassword.
func (s *UserService) Create(ctx context.Context, in NewUser) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" {
		return domain.User{}, fmt.Errorf("%w: name and email required", ErrInvalidInput)
	}
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	status := in.Status
	if status == "" {
		status = domain.StatusActive
	}
	if err := validateRoleStatus(role, status); err != nil {
		return domain.User{}, err
	}
	password := in.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	if err := s.latency.Wait(ctx); err != nil {
		return domain.User{}, err
	}
	if _, exists, err := s.repo.GetUserByEmail(email); err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, ErrEmailExists
	}
	id, err := s.ids.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("next user id: %w", err)
	}
	u := domain.User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.SaveUser(u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailExists
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// Update applies patch to the user with id.
func (s *UserService) Update(ctx context.Context, id string, patch UserPatch) (domain.User, error) {
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if err := validateEmail(email); err != nil {
			return domain.User{}, err
		}
		patch.Email = &email
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return domain.User{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if err := s.latency.Wait(ctx); err != nil {
		return domain.User{}, err
	}
	u, err := s.repo.UpdateUser(id, func(u *domain.User) error {
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
		if patch.Status != nil {
			u.Status = *patch.Status
		}
		return validateRoleStatus(u.Role, u.Status)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailExists
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.latency.Wait(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// Touch records a login for the user with email. Unknown emails are ignored
// because sign-ins are not tied to the admin table.
func (s *UserService) Touch(email string) error {
	u, ok, err := s.repo.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	if !ok {
		return nil
	}
	now := s.now().UTC()
	_, err = s.repo.UpdateUser(u.ID, func(u *domain.User) error {
		u.LastLogin = &now
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email %q", ErrInvalidInput, email)
	}
	return nil
}

func validateRoleStatus(role domain.Role, status domain.UserStatus) error {
	switch role {
	case domain.RoleAdmin, domain.RoleEditor, domain.RoleUser:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	switch status {
	case domain.StatusActive, domain.StatusInactive:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return nil
}
