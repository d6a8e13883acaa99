package bot

import (
	"sync"
	"time"

	"github.com/ValetFlow/ValetFlow/internal/request"
)

// State 会话状态：用户当前停在哪个多步流程的哪一步。
// 与请求生命周期状态机完全独立，只描述“对话进行到哪了”。
type State string

const (
	StateIdle         State = ""              // 无进行中的流程
	StateRegisterName State = "register_name" // 等待姓名
	StateRegisterRole State = "register_role" // 等待角色选择
	StateIntakePlate  State = "intake_plate"  // 新请求：等待车牌
	StateIntakeGuest  State = "intake_guest"  // 新请求：等待客人姓名
	StateIntakeRoom   State = "intake_room"   // 新请求：等待房间号
	StateIntakeSvc    State = "intake_svc"    // 新请求：等待服务类型
	StateReturnPlate  State = "return_plate"  // 还车：等待车牌
)

// Session 单用户会话上下文；首次交互创建，流程完成或 /annulla 清除。
type Session struct {
	ChatID    int64
	State     State
	Name      string              // 注册流程暂存
	Draft     request.CreateInput // 录入流程暂存
	UpdatedAt time.Time
}

// SessionStore 内存会话表（按用户标识），并发安全。
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*Session)}
}

// Get 取出会话；不存在时返回空闲态会话（不落表）。
func (s *SessionStore) Get(chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}
	return &Session{ChatID: chatID, State: StateIdle}
}

// Put 写入会话。
func (s *SessionStore) Put(sess *Session) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now()
	s.sessions[sess.ChatID] = sess
}

// Clear 清除会话（流程完成或用户主动取消）。
func (s *SessionStore) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}
