package request

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
	"github.com/ValetFlow/ValetFlow/internal/user"
	"gorm.io/gorm"
)

// memStore 内存版 Store，测试用。
type memStore struct {
	nextID   uint64
	requests map[uint64]*Request
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, requests: make(map[uint64]*Request)}
}

func (m *memStore) Create(_ context.Context, req *Request) error {
	req.ID = m.nextID
	m.nextID++
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, req *Request) error {
	if _, ok := m.requests[req.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uint64) (*Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memStore) List(_ context.Context, f ListFilter) ([]Request, error) {
	var out []Request
	for _, req := range m.requests {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, req.Status) {
			continue
		}
		if f.Assignee != 0 && !req.AssignedTo(f.Assignee) {
			continue
		}
		out = append(out, *req)
	}
	// ID 单调分配，倒序即创建时间倒序
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) FindByPlate(_ context.Context, plate string, statuses []Status) ([]Request, error) {
	var out []Request
	for _, req := range m.requests {
		if req.Plate != NormalizePlate(plate) {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, req.Status) {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// memUsers 内存版用户存储；跟生产一样经由 user.Service 暴露。
type memUsers struct {
	users map[int64]*user.User
}

func (m *memUsers) Upsert(_ context.Context, u *user.User) error {
	cp := *u
	m.users[u.TelegramID] = &cp
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ListActiveByRole(_ context.Context, role user.Role) ([]user.User, error) {
	var out []user.User
	for _, u := range m.users {
		if u.Role == role && u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) Deactivate(_ context.Context, id int64) error {
	if u, ok := m.users[id]; ok {
		u.Active = false
	}
	return nil
}

const (
	receptionR1 int64 = 101
	valetV1     int64 = 201
	valetV2     int64 = 202
)

func newTestService() (*Service, *memStore) {
	users := &memUsers{users: map[int64]*user.User{
		receptionR1: {TelegramID: receptionR1, Name: "Anna", Role: user.RoleReception, Active: true},
		valetV1:     {TelegramID: valetV1, Name: "Luca", Role: user.RoleValet, Active: true},
		valetV2:     {TelegramID: valetV2, Name: "Marco", Role: user.RoleValet, Active: true},
	}}
	store := newMemStore()
	return NewService(store, user.NewService(users)), store
}

func TestCreateRejectsWrongRole(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, valetV1, CreateInput{Plate: "AB123CD", Guest: "Rossi", Room: "204", Service: ServiceExteriorWash})
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(store.requests) != 0 {
		t.Fatalf("rejected create must not persist a row")
	}
}

func TestClaimRejectsReception(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, receptionR1, CreateInput{Plate: "AB123CD", Guest: "Rossi", Room: "204", Service: ServiceExteriorWash})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Claim(ctx, receptionR1, req.ID, ETALabel(10)); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUnregisteredCallerIsUnauthenticated(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Create(context.Background(), 999, CreateInput{Plate: "AB123CD", Guest: "Rossi", Room: "1", Service: ServiceRefuel})
	if !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

// 完整生命周期场景（§ 建档→认领→出发→完成→还车确认）。
func TestFullLifecycleScenario(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req, err := svc.Create(ctx, receptionR1, CreateInput{Plate: "ab123cd", Guest: "Rossi", Room: "204", Service: ServiceExteriorWash})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != StatusNew || req.Creator != receptionR1 {
		t.Fatalf("unexpected fresh request: %+v", req)
	}
	if req.Plate != "AB123CD" {
		t.Fatalf("plate must be stored normalized, got %q", req.Plate)
	}
	if req.Guest != "Rossi" {
		t.Fatalf("guest casing must be preserved, got %q", req.Guest)
	}

	req, err = svc.Claim(ctx, valetV1, req.ID, ETALabel(10))
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if req.Status != StatusAssigned || !req.AssignedTo(valetV1) {
		t.Fatalf("unexpected claim result: %+v", req)
	}
	if req.PickupETA != "10 min ca." {
		t.Fatalf("expected pickup eta %q, got %q", "10 min ca.", req.PickupETA)
	}

	req, err = svc.MarkDeparted(ctx, valetV1, req.ID)
	if err != nil {
		t.Fatalf("MarkDeparted: %v", err)
	}
	if req.Status != StatusDeparted || req.DepartedAt == nil {
		t.Fatalf("unexpected departed result: %+v", req)
	}

	req, err = svc.Complete(ctx, valetV1, req.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if req.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", req.Status)
	}

	// 前台发起还车：不改状态
	snap, err := svc.RequestReturn(ctx, receptionR1, req.ID)
	if err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	if snap.Status != StatusCompleted {
		t.Fatalf("RequestReturn must not change status, got %s", snap.Status)
	}

	req, err = svc.SetReturnETA(ctx, valetV1, req.ID, ETALabel(20))
	if err != nil {
		t.Fatalf("SetReturnETA: %v", err)
	}
	if req.Status != StatusReturnInProgress || req.ReturnETA != "20 min ca." {
		t.Fatalf("unexpected return eta result: %+v", req)
	}

	req, err = svc.ConfirmReturn(ctx, receptionR1, req.ID)
	if err != nil {
		t.Fatalf("ConfirmReturn: %v", err)
	}
	if req.Status != StatusReturned {
		t.Fatalf("expected returned, got %s", req.Status)
	}
	if req.ArrivedAt == nil || req.CompletedAt == nil || !req.ArrivedAt.Equal(*req.CompletedAt) {
		t.Fatalf("expected ArrivedAt and CompletedAt set together, got %v / %v", req.ArrivedAt, req.CompletedAt)
	}
}

func TestReclaimOverwritesAssignee(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req, _ := svc.Create(ctx, receptionR1, CreateInput{Plate: "ZZ999ZZ", Guest: "Verdi", Room: "12", Service: ServiceFullWash})
	if _, err := svc.Claim(ctx, valetV1, req.ID, ETALabel(5)); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	req, err := svc.Claim(ctx, valetV2, req.ID, ETALabel(20))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !req.AssignedTo(valetV2) || req.PickupETA != "20 min ca." {
		t.Fatalf("reclaim must overwrite assignee and eta: %+v", req)
	}

	// 被顶掉的泊车员不再是受派人
	if _, err := svc.Begin(ctx, valetV1, req.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for ousted valet, got %v", err)
	}
}

func TestPlateSearchIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, receptionR1, CreateInput{Plate: "ab123cd", Guest: "Rossi", Room: "204", Service: ServiceMechanic}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, probe := range []string{"AB123CD", "ab123cd"} {
		matches, err := svc.SearchByPlate(ctx, probe)
		if err != nil {
			t.Fatalf("SearchByPlate(%q): %v", probe, err)
		}
		if len(matches) != 1 {
			t.Fatalf("SearchByPlate(%q): expected 1 match, got %d", probe, len(matches))
		}
	}
}

func TestFindReturnableRequiresCompletedWithAssignee(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req, _ := svc.Create(ctx, receptionR1, CreateInput{Plate: "CC111CC", Guest: "Bianchi", Room: "7", Service: ServiceRefuel})

	// new 状态不可还车
	if _, err := svc.FindReturnable(ctx, receptionR1, "CC111CC"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for new request, got %v", err)
	}

	svc.Claim(ctx, valetV1, req.ID, ETALabel(5))
	svc.MarkDeparted(ctx, valetV1, req.ID)
	svc.Complete(ctx, valetV1, req.ID)

	found, err := svc.FindReturnable(ctx, receptionR1, "cc111cc")
	if err != nil {
		t.Fatalf("FindReturnable: %v", err)
	}
	if found.ID != req.ID {
		t.Fatalf("expected request %d, got %d", req.ID, found.ID)
	}

	// 只有前台可以发起
	if _, err := svc.FindReturnable(ctx, valetV1, "CC111CC"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for valet, got %v", err)
	}
}

func TestCancelFromNonTerminalOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req, _ := svc.Create(ctx, receptionR1, CreateInput{Plate: "DD222DD", Guest: "Neri", Room: "3", Service: ServiceFullWash})
	if _, err := svc.Cancel(ctx, valetV1, req.ID); err != nil {
		t.Fatalf("Cancel from new: %v", err)
	}

	// 重复取消：拒绝而不是崩溃
	if _, err := svc.Cancel(ctx, receptionR1, req.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on repeated cancel, got %v", err)
	}
}

func TestTransitionOnMissingRequest(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.Claim(context.Background(), valetV1, 4242, ETALabel(5)); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
