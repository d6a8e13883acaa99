package request

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) withCtx(ctx context.Context) *gorm.DB {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.WithContext(ctx)
}

func (r *Repo) Create(ctx context.Context, req *Request) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Create(req).Error
}

func (r *Repo) Update(ctx context.Context, req *Request) error {
	db := r.withCtx(ctx)
	if db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return db.Save(req).Error
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Request, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var req Request
	if err := db.Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// List 支持按状态集合 / 受派人过滤，创建时间倒序。
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Request, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}

	q := db.Model(&Request{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.Assignee != 0 {
		q = q.Where("assignee = ?", f.Assignee)
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}

	var requests []Request
	if err := q.Order("created_at DESC").Limit(f.Limit).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// FindByPlate 按归一化车牌查找，可选限定状态集合，创建时间倒序。
func (r *Repo) FindByPlate(ctx context.Context, plate string, statuses []Status) ([]Request, error) {
	db := r.withCtx(ctx)
	if db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	q := db.Model(&Request{}).Where("plate = ?", NormalizePlate(plate))
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var requests []Request
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
