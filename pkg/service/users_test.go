package service

import (
	"context"
	"errors"
	"testing"

	"docuquery/pkg/auth"
	"docuquery/pkg/domain"
)

func TestCreateUserDefaults(t *testing.T) {
	svc, st := newSeededServices(t)
	u, err := svc.Users.Create(context.Background(), NewUser{Name: " Cody Fisher ", Email: "Cody@Example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID != "5" || u.Name != "Cody Fisher" || u.Email != "cody@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.Role != domain.RoleUser || u.Status != domain.StatusActive || u.LastLogin != nil {
		t.Fatalf("unexpected defaults: %+v", u)
	}
	stored, ok, _ := st.GetUser(u.ID)
	if !ok || !auth.CheckPassword(DefaultPassword, stored.PasswordHash) {
		t.Fatalf("expected default password hash on stored user")
	}

	editor, err := svc.Users.Create(context.Background(), NewUser{Name: "Esther Howard", Email: "esther@example.com", Role: domain.RoleEditor})
	if err != nil {
		t.Fatalf("create editor: %v", err)
	}
	if editor.Role != domain.RoleEditor {
		t.Fatalf("role = %q, want editor", editor.Role)
	}
}

func TestCreateUserRejectsDuplicateAndInvalid(t *testing.T) {
	svc, st := newSeededServices(t)
	ctx := context.Background()
	before, _ := st.ListUsers()

	if _, err := svc.Users.Create(ctx, NewUser{Name: "Dup", Email: "ADMIN@example.com"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("duplicate: got %v, want ErrEmailExists", err)
	}
	invalid := []NewUser{
		{Name: "", Email: "x@example.com"},
		{Name: "X", Email: "not-an-email"},
		{Name: "X", Email: "x@example.com", Role: "root"},
		{Name: "X", Email: "x@example.com", Status: "banned"},
	}
	for _, in := range invalid {
		if _, err := svc.Users.Create(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("create %+v: got %v, want ErrInvalidInput", in, err)
		}
	}
	after, _ := st.ListUsers()
	if len(after) != len(before) {
		t.Fatalf("users = %d, want %d", len(after), len(before))
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	svc, _ := newSeededServices(t)
	ctx := context.Background()

	role := domain.RoleAdmin
	status := domain.StatusInactive
	u, err := svc.Users.Update(ctx, "3", UserPatch{Role: &role, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Role != domain.RoleAdmin || u.Status != domain.StatusInactive || u.Name != "Jane Cooper" {
		t.Fatalf("unexpected updated user: %+v", u)
	}

	taken := "user@example.com"
	if _, err := svc.Users.Update(ctx, "3", UserPatch{Email: &taken}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("update to taken email: got %v", err)
	}
	editor := domain.RoleEditor
	if u, err := svc.Users.Update(ctx, "3", UserPatch{Role: &editor}); err != nil || u.Role != domain.RoleEditor {
		t.Fatalf("update to editor: %+v, %v", u, err)
	}
	bad := domain.Role("owner")
	if _, err := svc.Users.Update(ctx, "3", UserPatch{Role: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("update bad role: got %v", err)
	}
	if _, err := svc.Users.Update(ctx, "404", UserPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update unknown: got %v", err)
	}

	if err := svc.Users.Delete(ctx, "3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Users.Delete(ctx, "3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice: got %v, want ErrNotFound", err)
	}
}

func TestListUsersSearch(t *testing.T) {
	svc, _ := newSeededServices(t)
	admins, err := svc.Users.List(context.Background(), "ADMIN")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(admins) != 1 || admins[0].ID != "1" {
		t.Fatalf("unexpected search result: %+v", admins)
	}
}

func TestTouchRecordsLastLogin(t *testing.T) {
	svc, st := newSeededServices(t)
	if err := svc.Users.Touch("Robert.Fox@example.com"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	u, _, _ := st.GetUser("4")
	if u.LastLogin == nil {
		t.Fatalf("expected last login to be set")
	}
	if err := svc.Users.Touch("google@example.com"); err != nil {
		t.Fatalf("touch unknown should be ignored: %v", err)
	}
}
