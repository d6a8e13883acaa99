package notify

import (
	"context"
	"fmt"

	"github.com/ValetFlow/ValetFlow/internal/common/logger"
	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/ValetFlow/ValetFlow/internal/user"
)

// Event 触发通知的生命周期事件。
type Event string

const (
	EventCreated         Event = "created"          // → 全体在岗泊车员
	EventClaimed         Event = "claimed"          // → 全体在岗前台
	EventDeparted        Event = "departed"         // → 全体在岗前台
	EventCompleted       Event = "completed"        // → 全体在岗前台
	EventReturnRequested Event = "return_requested" // → 仅当前受派人
	EventReturnETASet    Event = "return_eta_set"   // → 全体在岗前台
	EventReturned        Event = "returned"         // → 无人（确认者自己收回执即可）
)

// Sender 消息投递面（由 telegram.Client 提供）。
type Sender interface {
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) error
}

// Directory 收件人解析需要的用户查询面。
type Directory interface {
	ActiveByRole(ctx context.Context, role user.Role) ([]user.User, error)
}

// Outcome 单个收件人的投递结果。
type Outcome struct {
	ChatID int64
	Err    error
}

// Dispatcher 通知分发器：解析收件人集合，逐个尽力投递。
// 单个收件人失败只记日志，不中断其余投递，更不回滚触发它的状态流转。
type Dispatcher struct {
	users  Directory
	sender Sender
	log    logger.Logger
}

func NewDispatcher(users Directory, sender Sender, log logger.Logger) *Dispatcher {
	return &Dispatcher{users: users, sender: sender, log: log}
}

// Notify 按事件解析收件人并广播，返回逐收件人结果（可观测，不用于控制流）。
func (d *Dispatcher) Notify(ctx context.Context, event Event, req *request.Request) []Outcome {
	if d == nil || d.sender == nil || req == nil {
		return nil
	}

	recipients, text, markup := d.resolve(ctx, event, req)
	outcomes := make([]Outcome, 0, len(recipients))
	for _, chatID := range recipients {
		err := d.sender.SendMessage(ctx, telegram.SendMessageRequest{
			ChatID:      chatID,
			Text:        text,
			ReplyMarkup: markup,
		})
		outcomes = append(outcomes, Outcome{ChatID: chatID, Err: err})
		if err != nil && d.log != nil {
			d.log.WithFields(map[string]interface{}{
				"event":   string(event),
				"request": req.ID,
				"chat_id": chatID,
			}).Warnf("notification delivery failed: %v", err)
		}
	}
	return outcomes
}

// resolve 事件 → (收件人, 文案, 键盘)。
func (d *Dispatcher) resolve(ctx context.Context, event Event, req *request.Request) ([]int64, string, interface{}) {
	card := RenderCard(req)

	switch event {
	case EventCreated:
		return d.roleChats(ctx, user.RoleValet),
			"🔔 Nuova richiesta\n\n" + card,
			ClaimKeyboard(req.ID)

	case EventClaimed:
		return d.roleChats(ctx, user.RoleReception),
			fmt.Sprintf("🧾 Richiesta #%d presa in carico (ritiro %s)\n\n%s", req.ID, req.PickupETA, card),
			nil

	case EventDeparted:
		return d.roleChats(ctx, user.RoleReception),
			fmt.Sprintf("🚗 L'auto della richiesta #%d è partita\n\n%s", req.ID, card),
			nil

	case EventCompleted:
		return d.roleChats(ctx, user.RoleReception),
			fmt.Sprintf("✅ Servizio completato per la richiesta #%d\n\n%s", req.ID, card),
			nil

	case EventReturnRequested:
		if req.Assignee == nil {
			return nil, "", nil
		}
		return []int64{*req.Assignee},
			fmt.Sprintf("📣 La reception chiede la riconsegna dell'auto #%d\n\n%s", req.ID, card),
			returnETAKeyboard(req.ID)

	case EventReturnETASet:
		return d.roleChats(ctx, user.RoleReception),
			fmt.Sprintf("🔁 Riconsegna in corso per la richiesta #%d (%s)\n\n%s", req.ID, req.ReturnETA, card),
			confirmReturnKeyboard(req.ID)

	case EventReturned:
		return nil, "", nil
	}
	return nil, "", nil
}

// roleChats 某角色全部在岗用户的 chat id；查询失败按空集处理（尽力而为）。
func (d *Dispatcher) roleChats(ctx context.Context, role user.Role) []int64 {
	if d.users == nil {
		return nil
	}
	list, err := d.users.ActiveByRole(ctx, role)
	if err != nil {
		if d.log != nil {
			d.log.Warnf("failed to resolve %s recipients: %v", role, err)
		}
		return nil
	}
	chats := make([]int64, 0, len(list))
	for _, u := range list {
		chats = append(chats, u.TelegramID)
	}
	return chats
}
