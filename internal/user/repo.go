package user

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Upsert 按 TelegramID 覆盖写入（重复注册即覆盖角色/姓名）。
func (r *Repo) Upsert(ctx context.Context, u *User) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "active", "updated_at"}),
	}).Create(u).Error
}

func (r *Repo) FindByID(ctx context.Context, telegramID int64) (*User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var u User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListActiveByRole 返回某角色的全部在岗用户（通知收件人集合）。
func (r *Repo) ListActiveByRole(ctx context.Context, role Role) ([]User, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var users []User
	err := r.db.WithContext(ctx).
		Where("role = ? AND active = ?", role, true).
		Order("created_at desc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Deactivate 软删除：翻转 active 标记，记录保留。
func (r *Repo) Deactivate(ctx context.Context, telegramID int64) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Model(&User{}).
		Where("telegram_id = ?", telegramID).
		Update("active", false).Error
}
