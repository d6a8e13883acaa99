package user

import (
	"context"
	"errors"
	"testing"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
	"gorm.io/gorm"
)

type memStore struct {
	users map[int64]*User
}

func (m *memStore) Upsert(_ context.Context, u *User) error {
	cp := *u
	m.users[u.TelegramID] = &cp
	return nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) ListActiveByRole(_ context.Context, role Role) ([]User, error) {
	var out []User
	for _, u := range m.users {
		if u.Role == role && u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memStore) Deactivate(_ context.Context, id int64) error {
	if u, ok := m.users[id]; ok {
		u.Active = false
	}
	return nil
}

func TestRegisterOverwritesRole(t *testing.T) {
	store := &memStore{users: make(map[int64]*User)}
	svc := NewService(store)
	ctx := context.Background()

	if _, err := svc.Register(ctx, 1, "Anna", RoleReception); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if role, _ := svc.RoleOf(ctx, 1); role != RoleReception {
		t.Fatalf("expected reception, got %s", role)
	}

	// 重复注册覆盖角色
	if _, err := svc.Register(ctx, 1, "Anna", RoleValet); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if role, _ := svc.RoleOf(ctx, 1); role != RoleValet {
		t.Fatalf("expected valet after re-registration, got %s", role)
	}
}

func TestRoleOfUnregistered(t *testing.T) {
	svc := NewService(&memStore{users: make(map[int64]*User)})
	if _, err := svc.RoleOf(context.Background(), 99); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestDeactivatedUserIsUnauthenticated(t *testing.T) {
	store := &memStore{users: map[int64]*User{
		5: {TelegramID: 5, Name: "Luca", Role: RoleValet, Active: false},
	}}
	svc := NewService(store)
	if _, err := svc.Get(context.Background(), 5); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := NewService(&memStore{users: make(map[int64]*User)})
	ctx := context.Background()
	if _, err := svc.Register(ctx, 1, "  ", RoleValet); !errors.Is(err, apperr.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for blank name, got %v", err)
	}
	if _, err := svc.Register(ctx, 1, "Anna", Role("manager")); !errors.Is(err, apperr.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for unknown role, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole(" Valet "); !ok || r != RoleValet {
		t.Fatalf("ParseRole: got %s %v", r, ok)
	}
	if _, ok := ParseRole("concierge"); ok {
		t.Fatalf("expected unknown role to fail")
	}
}
