package bot

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/ValetFlow/ValetFlow/internal/notify"
	"github.com/ValetFlow/ValetFlow/internal/photo"
	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/ValetFlow/ValetFlow/internal/user"
	"gorm.io/gorm"
)

// fakeTransport 记录全部出站消息，GetUpdates 不用于这些测试。
type fakeTransport struct {
	sent []telegram.SendMessageRequest
}

func (f *fakeTransport) GetUpdates(context.Context) ([]telegram.Update, error) { return nil, nil }
func (f *fakeTransport) SendMessage(_ context.Context, req telegram.SendMessageRequest) error {
	f.sent = append(f.sent, req)
	return nil
}
func (f *fakeTransport) AnswerCallback(context.Context, telegram.AnswerCallbackRequest) error {
	return nil
}

func (f *fakeTransport) textsFor(chatID int64) []string {
	var out []string
	for _, s := range f.sent {
		if s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

type memUserStore struct{ users map[int64]*user.User }

func (m *memUserStore) Upsert(_ context.Context, u *user.User) error {
	cp := *u
	m.users[u.TelegramID] = &cp
	return nil
}
func (m *memUserStore) FindByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}
func (m *memUserStore) ListActiveByRole(_ context.Context, role user.Role) ([]user.User, error) {
	var out []user.User
	for _, u := range m.users {
		if u.Role == role && u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}
func (m *memUserStore) Deactivate(_ context.Context, id int64) error { return nil }

type memRequestStore struct {
	nextID   uint64
	requests map[uint64]*request.Request
}

func (m *memRequestStore) Create(_ context.Context, req *request.Request) error {
	req.ID = m.nextID
	m.nextID++
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}
func (m *memRequestStore) Update(_ context.Context, req *request.Request) error {
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}
func (m *memRequestStore) GetByID(_ context.Context, id uint64) (*request.Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *req
	return &cp, nil
}
func (m *memRequestStore) List(_ context.Context, f request.ListFilter) ([]request.Request, error) {
	var out []request.Request
	for _, req := range m.requests {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}
func (m *memRequestStore) FindByPlate(_ context.Context, plate string, statuses []request.Status) ([]request.Request, error) {
	var out []request.Request
	for _, req := range m.requests {
		if req.Plate == request.NormalizePlate(plate) {
			out = append(out, *req)
		}
	}
	return out, nil
}

type memPhotoStore struct{ photos []*photo.Photo }

func (m *memPhotoStore) Create(_ context.Context, p *photo.Photo) error {
	p.ID = uint64(len(m.photos) + 1)
	m.photos = append(m.photos, p)
	return nil
}
func (m *memPhotoStore) ListByRequest(_ context.Context, id uint64) ([]photo.Photo, error) {
	return nil, nil
}

const (
	receptionChat int64 = 101
	valetChat     int64 = 201
)

func newTestBot() (*Bot, *fakeTransport, *memRequestStore) {
	tg := &fakeTransport{}
	users := &memUserStore{users: map[int64]*user.User{
		receptionChat: {TelegramID: receptionChat, Name: "Anna", Role: user.RoleReception, Active: true},
		valetChat:     {TelegramID: valetChat, Name: "Luca", Role: user.RoleValet, Active: true},
	}}
	reqStore := &memRequestStore{nextID: 1, requests: make(map[uint64]*request.Request)}

	userSvc := user.NewService(users)
	requestSvc := request.NewService(reqStore, userSvc)
	photoSvc := photo.NewService(&memPhotoStore{}, requestSvc)
	dispatcher := notify.NewDispatcher(userSvc, tg, nil)

	return New(tg, userSvc, requestSvc, photoSvc, dispatcher, "valet-service-test", nil), tg, reqStore
}

func textUpdate(chatID int64, text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		Chat: telegram.Chat{ID: chatID},
		From: &telegram.User{ID: chatID},
		Text: text,
	}}
}

func callbackUpdate(chatID int64, data string) *telegram.Update {
	return &telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:   "cb",
		From: telegram.User{ID: chatID},
		Data: data,
	}}
}

func TestIntakeFlowCreatesRequestAndNotifiesValets(t *testing.T) {
	b, tg, store := newTestBot()
	ctx := context.Background()

	steps := []string{menuNewRequest, "ab 123 cd", "Rossi", "204", string(request.ServiceExteriorWash)}
	for _, s := range steps {
		if err := b.route(ctx, textUpdate(receptionChat, s)); err != nil {
			t.Fatalf("step %q: %v", s, err)
		}
	}

	if len(store.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(store.requests))
	}
	req := store.requests[1]
	if req.Plate != "AB123CD" || req.Status != request.StatusNew || req.Creator != receptionChat {
		t.Fatalf("unexpected request: %+v", req)
	}

	// 泊车员收到带认领按钮的广播
	var valetGotKeyboard bool
	for _, s := range tg.sent {
		if s.ChatID == valetChat {
			if _, ok := s.ReplyMarkup.(*telegram.InlineKeyboardMarkup); ok {
				valetGotKeyboard = true
			}
		}
	}
	if !valetGotKeyboard {
		t.Fatalf("expected valet to receive claim keyboard")
	}

	// 录入完成后会话被清除
	if sess := b.sessions.Get(receptionChat); sess.State != StateIdle {
		t.Fatalf("expected cleared session, got %s", sess.State)
	}
}

func TestClaimCallbackAssignsAndNotifiesReception(t *testing.T) {
	b, tg, store := newTestBot()
	ctx := context.Background()

	for _, s := range []string{menuNewRequest, "AB123CD", "Rossi", "204", string(request.ServiceFullWash)} {
		if err := b.route(ctx, textUpdate(receptionChat, s)); err != nil {
			t.Fatalf("intake step: %v", err)
		}
	}
	tg.sent = nil

	if err := b.route(ctx, callbackUpdate(valetChat, notify.EncodeAction(notify.ActionClaim, 1, "10"))); err != nil {
		t.Fatalf("claim callback: %v", err)
	}

	req := store.requests[1]
	if req.Status != request.StatusAssigned || !req.AssignedTo(valetChat) || req.PickupETA != "10 min ca." {
		t.Fatalf("unexpected claim result: %+v", req)
	}
	if len(tg.textsFor(receptionChat)) == 0 {
		t.Fatalf("expected reception to be notified about the claim")
	}
}

func TestUnregisteredUserGetsGuidance(t *testing.T) {
	b, tg, _ := newTestBot()
	if err := b.route(context.Background(), textUpdate(555, menuNewRequest)); err != nil {
		t.Fatalf("route: %v", err)
	}
	texts := tg.textsFor(555)
	if len(texts) == 0 || !strings.Contains(texts[0], "/register") {
		t.Fatalf("expected registration guidance, got %v", texts)
	}
}

func TestRegistrationFlow(t *testing.T) {
	b, tg, _ := newTestBot()
	ctx := context.Background()
	newUser := int64(777)

	if err := b.route(ctx, textUpdate(newUser, "/register")); err != nil {
		t.Fatalf("/register: %v", err)
	}
	if err := b.route(ctx, textUpdate(newUser, "Paolo")); err != nil {
		t.Fatalf("name step: %v", err)
	}
	if err := b.route(ctx, callbackUpdate(newUser, "role:valet")); err != nil {
		t.Fatalf("role step: %v", err)
	}

	u, err := b.users.Get(ctx, newUser)
	if err != nil {
		t.Fatalf("expected registered user, got %v", err)
	}
	if u.Name != "Paolo" || u.Role != user.RoleValet {
		t.Fatalf("unexpected user: %+v", u)
	}
	if len(tg.textsFor(newUser)) < 3 {
		t.Fatalf("expected prompts for every step")
	}
}
