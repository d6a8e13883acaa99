package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
	"github.com/ValetFlow/ValetFlow/internal/user"
	"gorm.io/gorm"
)

// Store 请求存储契约。*Repo 是生产实现，测试用内存实现。
type Store interface {
	Create(ctx context.Context, req *Request) error
	Update(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uint64) (*Request, error)
	List(ctx context.Context, f ListFilter) ([]Request, error)
	FindByPlate(ctx context.Context, plate string, statuses []Status) ([]Request, error)
}

// Directory 请求引擎需要的用户查询面（由 user.Service 提供）。
type Directory interface {
	Get(ctx context.Context, telegramID int64) (*user.User, error)
}

// ListFilter 列表查询条件。
type ListFilter struct {
	Statuses []Status
	Assignee int64 // 0 表示不过滤
	Limit    int
}

// ActiveStatuses 非终态集合（前台“当前请求”视图）。
var ActiveStatuses = []Status{
	StatusNew, StatusAssigned, StatusInProgress,
	StatusDeparted, StatusCompleted, StatusReturnInProgress,
}

// ETALabel 把分钟数渲染为承诺文案（自由文本，引擎只存字符串）。
func ETALabel(minutes int) string {
	return fmt.Sprintf("%d min ca.", minutes)
}

// Service 请求生命周期引擎：校验角色与状态流转，落库，返回快照。
// 通知由调用方基于返回的快照触发，通知失败永远不回滚流转。
type Service struct {
	store Store
	users Directory
}

func NewService(store Store, users Directory) *Service {
	return &Service{store: store, users: users}
}

// CreateInput 前台录入的请求字段。
type CreateInput struct {
	Plate   string
	Guest   string
	Room    string
	Service ServiceType
}

// Create 前台创建请求（初始状态 new）。
func (s *Service) Create(ctx context.Context, actor int64, in CreateInput) (*Request, error) {
	if _, err := s.requireRole(ctx, actor, user.RoleReception); err != nil {
		return nil, err
	}

	plate := NormalizePlate(in.Plate)
	if plate == "" {
		return nil, apperr.MalformedInputf("plate required")
	}
	guest := strings.TrimSpace(in.Guest)
	if guest == "" {
		return nil, apperr.MalformedInputf("guest name required")
	}
	room := strings.TrimSpace(in.Room)
	if room == "" {
		return nil, apperr.MalformedInputf("room required")
	}
	if in.Service == "" {
		return nil, apperr.MalformedInputf("service type required")
	}

	req := &Request{
		Plate:   plate,
		Guest:   guest,
		Room:    room,
		Service: in.Service,
		Status:  StatusNew,
		Creator: actor,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Claim 泊车员认领请求并承诺取车 ETA。
// 对 assigned 状态的再次认领直接覆盖受派人与 ETA（接受的竞态，见状态机注释）。
func (s *Service) Claim(ctx context.Context, actor int64, id uint64, etaLabel string) (*Request, error) {
	if _, err := s.requireRole(ctx, actor, user.RoleValet); err != nil {
		return nil, err
	}
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(req, StatusAssigned, time.Now()); err != nil {
		return nil, err
	}
	assignee := actor
	req.Assignee = &assignee
	req.PickupETA = strings.TrimSpace(etaLabel)
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Begin 泊车员开始服务（assigned -> in_progress）。
func (s *Service) Begin(ctx context.Context, actor int64, id uint64) (*Request, error) {
	return s.assigneeTransition(ctx, actor, id, StatusInProgress)
}

// MarkDeparted 泊车员确认车辆已离开（写入 DepartedAt，只写一次）。
func (s *Service) MarkDeparted(ctx context.Context, actor int64, id uint64) (*Request, error) {
	return s.assigneeTransition(ctx, actor, id, StatusDeparted)
}

// Complete 泊车员确认服务完成。
func (s *Service) Complete(ctx context.Context, actor int64, id uint64) (*Request, error) {
	return s.assigneeTransition(ctx, actor, id, StatusCompleted)
}

// FindReturnable 前台按车牌检索可还车的请求：
// 状态必须是 completed 或 returned 且有受派人，否则拒绝且无副作用。
func (s *Service) FindReturnable(ctx context.Context, actor int64, plate string) (*Request, error) {
	if _, err := s.requireRole(ctx, actor, user.RoleReception); err != nil {
		return nil, err
	}
	if NormalizePlate(plate) == "" {
		return nil, apperr.MalformedInputf("plate required")
	}
	matches, err := s.store.FindByPlate(ctx, plate, []Status{StatusCompleted, StatusReturned})
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if matches[i].Assignee != nil {
			return &matches[i], nil
		}
	}
	return nil, apperr.NotFoundf("no returnable request for plate %s", NormalizePlate(plate))
}

// RequestReturn 前台发起还车：不改状态，仅校验后返回快照供通知受派人。
func (s *Service) RequestReturn(ctx context.Context, actor int64, id uint64) (*Request, error) {
	if _, err := s.requireRole(ctx, actor, user.RoleReception); err != nil {
		return nil, err
	}
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusCompleted {
		return nil, apperr.InvalidStatef("return can be requested only on completed requests, got %s", req.Status)
	}
	if req.Assignee == nil {
		return nil, apperr.InvalidStatef("request %d has no assignee", id)
	}
	return req, nil
}

// SetReturnETA 泊车员承诺还车 ETA（completed -> return_in_progress）。
func (s *Service) SetReturnETA(ctx context.Context, actor int64, id uint64, etaLabel string) (*Request, error) {
	if _, err := s.requireRole(ctx, actor, user.RoleValet); err != nil {
		return nil, err
	}
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.AssignedTo(actor) {
		return nil, apperr.Unauthorizedf("request %d is assigned to another valet", id)
	}
	if err := ApplyTransition(req, StatusReturnInProgress, time.Now()); err != nil {
		return nil, err
	}
	req.ReturnETA = strings.TrimSpace(etaLabel)
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// ConfirmReturn 前台确认车辆已还（写入 ArrivedAt + CompletedAt）。
func (s *Service) ConfirmReturn(ctx context.Context, actor int64, id uint64) (*Request, error) {
	if _, err := s.requireRole(ctx, actor, user.RoleReception); err != nil {
		return nil, err
	}
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(req, StatusReturned, time.Now()); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel 任一角色从任意非终态取消；重复取消被拒绝而不是崩溃。
func (s *Service) Cancel(ctx context.Context, actor int64, id uint64) (*Request, error) {
	u, err := s.users.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if u.Role != user.RoleReception && u.Role != user.RoleValet {
		return nil, apperr.Unauthorizedf("role %s cannot cancel", u.Role)
	}
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyTransition(req, StatusCancelled, time.Now()); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Get 读取单个请求（不做角色校验，供渲染/通知使用）。
func (s *Service) Get(ctx context.Context, id uint64) (*Request, error) {
	return s.get(ctx, id)
}

// Exists 仅校验请求存在（照片附件用）。
func (s *Service) Exists(ctx context.Context, id uint64) error {
	_, err := s.get(ctx, id)
	return err
}

// List 列表查询，创建时间倒序。
func (s *Service) List(ctx context.Context, f ListFilter) ([]Request, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.store.List(ctx, f)
}

// SearchByPlate 按归一化车牌检索（不限状态）。
func (s *Service) SearchByPlate(ctx context.Context, plate string) ([]Request, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.store.FindByPlate(ctx, plate, nil)
}

// assigneeTransition 受派人限定的流转：actor 必须是 valet 且是当前受派人。
func (s *Service) assigneeTransition(ctx context.Context, actor int64, id uint64, to Status) (*Request, error) {
	if _, err := s.requireRole(ctx, actor, user.RoleValet); err != nil {
		return nil, err
	}
	req, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !req.AssignedTo(actor) {
		return nil, apperr.Unauthorizedf("request %d is assigned to another valet", id)
	}
	if err := ApplyTransition(req, to, time.Now()); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// requireRole 角色门禁：未注册 → Unauthenticated；角色不符 → Unauthorized。
func (s *Service) requireRole(ctx context.Context, actor int64, want user.Role) (*user.User, error) {
	if s == nil || s.store == nil || s.users == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	u, err := s.users.Get(ctx, actor)
	if err != nil {
		return nil, err
	}
	if u.Role != want {
		return nil, apperr.Unauthorizedf("operation requires role %s, caller is %s", want, u.Role)
	}
	return u, nil
}

// get 读取请求并把存储层未找到映射为 NotFound。
func (s *Service) get(ctx context.Context, id uint64) (*Request, error) {
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("request %d not found", id)
		}
		return nil, err
	}
	return req, nil
}
