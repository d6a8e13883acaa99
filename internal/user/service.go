package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
	"gorm.io/gorm"
)

// Store 用户存储契约（便于测试时用内存实现替换）。
type Store interface {
	Upsert(ctx context.Context, u *User) error
	FindByID(ctx context.Context, telegramID int64) (*User, error)
	ListActiveByRole(ctx context.Context, role Role) ([]User, error)
	Deactivate(ctx context.Context, telegramID int64) error
}

// Service 封装用户/授权用例。
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register 注册（或重复注册覆盖）一个用户。
func (s *Service) Register(ctx context.Context, telegramID int64, name string, role Role) (*User, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.MalformedInputf("name required")
	}
	if role != RoleReception && role != RoleValet {
		return nil, apperr.MalformedInputf("unknown role %q", role)
	}
	u := &User{
		TelegramID: telegramID,
		Name:       name,
		Role:       role,
		Active:     true,
	}
	if err := s.store.Upsert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RoleOf 返回用户角色；未注册用户返回 ErrUnauthenticated。
func (s *Service) RoleOf(ctx context.Context, telegramID int64) (Role, error) {
	u, err := s.Get(ctx, telegramID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// Get 查找用户；未注册（或已停用）映射为 ErrUnauthenticated。
func (s *Service) Get(ctx context.Context, telegramID int64) (*User, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	u, err := s.store.FindByID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticatedf("user %d is not registered", telegramID)
		}
		return nil, err
	}
	if !u.Active {
		return nil, apperr.Unauthenticatedf("user %d is deactivated", telegramID)
	}
	return u, nil
}

// ActiveByRole 某角色的在岗用户列表。
func (s *Service) ActiveByRole(ctx context.Context, role Role) ([]User, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.store.ListActiveByRole(ctx, role)
}
