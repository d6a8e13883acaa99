package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
	"github.com/ValetFlow/ValetFlow/internal/notify"
	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/ValetFlow/ValetFlow/internal/user"
)

// handleText 文本入口：命令 → 会话流程 → 菜单按钮。
func (b *Bot) handleText(ctx context.Context, msg *telegram.Message) error {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch {
	case text == "/start":
		return b.cmdStart(ctx, chatID)
	case text == "/help":
		return b.cmdHelp(ctx, chatID)
	case text == "/register":
		return b.cmdRegister(ctx, chatID)
	case text == "/annulla":
		b.sessions.Clear(chatID)
		b.reply(ctx, chatID, "Operazione annullata.", nil)
		return nil
	}

	// 进行中的多步流程优先于菜单
	sess := b.sessions.Get(chatID)
	if sess.State != StateIdle {
		return b.advanceSession(ctx, sess, text)
	}

	switch text {
	case menuNewRequest:
		return b.startIntake(ctx, chatID)
	case menuReturn:
		return b.startReturn(ctx, chatID)
	case menuActive:
		return b.listActive(ctx, chatID)
	case menuOpen:
		return b.listOpen(ctx, chatID)
	case menuMine:
		return b.listMine(ctx, chatID)
	}

	// 闲聊兜底：已注册给菜单，未注册给注册引导
	u, err := b.users.Get(ctx, chatID)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	b.reply(ctx, chatID, "Scegli un'azione dal menu.", mainMenu(u.Role))
	return nil
}

func (b *Bot) cmdStart(ctx context.Context, chatID int64) error {
	u, err := b.users.Get(ctx, chatID)
	if err != nil {
		b.reply(ctx, chatID, "Benvenuto! "+userMessage(err), nil)
		return nil
	}
	b.reply(ctx, chatID, fmt.Sprintf("Ciao %s 👋", u.Name), mainMenu(u.Role))
	return nil
}

func (b *Bot) cmdHelp(ctx context.Context, chatID int64) error {
	role := user.Role("")
	if u, err := b.users.Get(ctx, chatID); err == nil {
		role = u.Role
	}
	b.reply(ctx, chatID, helpText(role), nil)
	return nil
}

func (b *Bot) cmdRegister(ctx context.Context, chatID int64) error {
	sess := &Session{ChatID: chatID, State: StateRegisterName}
	b.sessions.Put(sess)
	b.reply(ctx, chatID, "Come ti chiami?", nil)
	return nil
}

// startIntake 前台发起新请求录入流程。
func (b *Bot) startIntake(ctx context.Context, chatID int64) error {
	if err := b.requireRole(ctx, chatID, user.RoleReception); err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	b.sessions.Put(&Session{ChatID: chatID, State: StateIntakePlate})
	b.reply(ctx, chatID, "Targa dell'auto?", nil)
	return nil
}

// startReturn 前台发起还车流程（按车牌检索）。
func (b *Bot) startReturn(ctx context.Context, chatID int64) error {
	if err := b.requireRole(ctx, chatID, user.RoleReception); err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	b.sessions.Put(&Session{ChatID: chatID, State: StateReturnPlate})
	b.reply(ctx, chatID, "Targa dell'auto da riconsegnare?", nil)
	return nil
}

// advanceSession 会话流程推进：一问一答逐字段收集。
func (b *Bot) advanceSession(ctx context.Context, sess *Session, text string) error {
	chatID := sess.ChatID

	switch sess.State {
	case StateRegisterName:
		if text == "" {
			b.reply(ctx, chatID, "Inserisci un nome valido.", nil)
			return nil
		}
		sess.Name = text
		sess.State = StateRegisterRole
		b.sessions.Put(sess)
		b.reply(ctx, chatID, "Qual è il tuo ruolo?", roleKeyboard())
		return nil

	case StateIntakePlate:
		sess.Draft.Plate = text
		sess.State = StateIntakeGuest
		b.sessions.Put(sess)
		b.reply(ctx, chatID, "Nome dell'ospite?", nil)
		return nil

	case StateIntakeGuest:
		sess.Draft.Guest = text
		sess.State = StateIntakeRoom
		b.sessions.Put(sess)
		b.reply(ctx, chatID, "Numero di camera?", nil)
		return nil

	case StateIntakeRoom:
		sess.Draft.Room = text
		sess.State = StateIntakeSvc
		b.sessions.Put(sess)
		b.reply(ctx, chatID, "Che servizio serve?", serviceKeyboard())
		return nil

	case StateIntakeSvc:
		svc, ok := matchService(text)
		if !ok {
			b.reply(ctx, chatID, "Scegli uno dei servizi proposti.", serviceKeyboard())
			return nil
		}
		sess.Draft.Service = svc
		req, err := b.requests.Create(ctx, chatID, sess.Draft)
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.sessions.Clear(chatID)
		b.dispatcher.Notify(ctx, notify.EventCreated, req)
		b.reply(ctx, chatID, "Richiesta creata ✅\n\n"+notify.RenderCard(req), mainMenu(user.RoleReception))
		return nil

	case StateReturnPlate:
		req, err := b.requests.FindReturnable(ctx, chatID, text)
		if err != nil {
			b.sessions.Clear(chatID)
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.sessions.Clear(chatID)
		if req.Status == request.StatusReturned {
			b.reply(ctx, chatID, "Quest'auto risulta già riconsegnata.\n\n"+notify.RenderCard(req), nil)
			return nil
		}
		snapshot, err := b.requests.RequestReturn(ctx, chatID, req.ID)
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.dispatcher.Notify(ctx, notify.EventReturnRequested, snapshot)
		b.reply(ctx, chatID, "Riconsegna richiesta, il valet è stato avvisato. 📣", nil)
		return nil
	}

	// 状态无法识别：清掉会话，避免把用户卡死
	b.sessions.Clear(chatID)
	b.reply(ctx, chatID, "Operazione interrotta, riparti dal menu.", nil)
	return nil
}

// listActive 前台视图：全部非终态请求。
func (b *Bot) listActive(ctx context.Context, chatID int64) error {
	if err := b.requireRole(ctx, chatID, user.RoleReception); err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	list, err := b.requests.List(ctx, request.ListFilter{Statuses: request.ActiveStatuses, Limit: 20})
	if err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	if len(list) == 0 {
		b.reply(ctx, chatID, "Nessuna richiesta attiva.", nil)
		return nil
	}
	for i := range list {
		b.reply(ctx, chatID, notify.RenderCard(&list[i]), nil)
	}
	return nil
}

// listOpen 泊车员视图：待认领的新请求（附认领按钮）。
func (b *Bot) listOpen(ctx context.Context, chatID int64) error {
	if err := b.requireRole(ctx, chatID, user.RoleValet); err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	list, err := b.requests.List(ctx, request.ListFilter{Statuses: []request.Status{request.StatusNew}, Limit: 20})
	if err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	if len(list) == 0 {
		b.reply(ctx, chatID, "Nessuna richiesta da prendere in carico.", nil)
		return nil
	}
	for i := range list {
		req := &list[i]
		b.reply(ctx, chatID, notify.RenderCard(req), notify.ClaimKeyboard(req.ID))
	}
	return nil
}

// listMine 泊车员视图：自己名下的进行中请求（附下一步按钮）。
func (b *Bot) listMine(ctx context.Context, chatID int64) error {
	if err := b.requireRole(ctx, chatID, user.RoleValet); err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	list, err := b.requests.List(ctx, request.ListFilter{Statuses: request.ActiveStatuses, Assignee: chatID, Limit: 20})
	if err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	if len(list) == 0 {
		b.reply(ctx, chatID, "Non hai richieste in corso.", nil)
		return nil
	}
	for i := range list {
		req := &list[i]
		b.reply(ctx, chatID, notify.RenderCard(req), assigneeKeyboard(req))
	}
	return nil
}

// requireRole bot 层的角色预检（引擎内还会再查一次，这里只为提前给出提示）。
func (b *Bot) requireRole(ctx context.Context, chatID int64, want user.Role) error {
	u, err := b.users.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if u.Role != want {
		return apperr.Unauthorizedf("operation requires role %s, caller is %s", want, u.Role)
	}
	return nil
}

// matchService 把用户文本匹配到固定服务集合。
func matchService(text string) (request.ServiceType, bool) {
	needle := strings.ToLower(strings.TrimSpace(text))
	for _, svc := range request.ServiceTypes {
		if strings.ToLower(string(svc)) == needle {
			return svc, true
		}
	}
	return "", false
}
