package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
	"github.com/ValetFlow/ValetFlow/internal/notify"
	"github.com/ValetFlow/ValetFlow/internal/photo"
	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/ValetFlow/ValetFlow/internal/user"
)

// handleCallback 按钮回调入口。
func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	chatID := cb.From.ID

	// 先应答回调，停止客户端的加载状态（失败不影响处理）
	if err := b.tg.AnswerCallback(ctx, telegram.AnswerCallbackRequest{CallbackQueryID: cb.ID}); err != nil {
		b.log.Warnf("answerCallback failed: %v", err)
	}

	// 注册流程的角色选择走独立前缀
	if role, ok := strings.CutPrefix(cb.Data, "role:"); ok {
		return b.finishRegistration(ctx, chatID, role)
	}

	action, id, arg, err := notify.DecodeAction(cb.Data)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}

	switch action {
	case notify.ActionClaim:
		minutes, convErr := strconv.Atoi(arg)
		if convErr != nil {
			b.reply(ctx, chatID, userMessage(apperr.MalformedInputf("eta minutes %q", arg)), nil)
			return nil
		}
		req, err := b.requests.Claim(ctx, chatID, id, request.ETALabel(minutes))
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.dispatcher.Notify(ctx, notify.EventClaimed, req)
		b.reply(ctx, chatID, fmt.Sprintf("Richiesta #%d presa in carico 🧾", req.ID), assigneeKeyboard(req))
		return nil

	case notify.ActionBegin:
		req, err := b.requests.Begin(ctx, chatID, id)
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.reply(ctx, chatID, fmt.Sprintf("Servizio iniziato per la #%d 🧽", req.ID), assigneeKeyboard(req))
		return nil

	case notify.ActionDeparted:
		req, err := b.requests.MarkDeparted(ctx, chatID, id)
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.dispatcher.Notify(ctx, notify.EventDeparted, req)
		b.reply(ctx, chatID, fmt.Sprintf("Partenza registrata per la #%d 🚗", req.ID), assigneeKeyboard(req))
		return nil

	case notify.ActionCompleted:
		req, err := b.requests.Complete(ctx, chatID, id)
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.dispatcher.Notify(ctx, notify.EventCompleted, req)
		b.reply(ctx, chatID, fmt.Sprintf("Servizio completato per la #%d ✅", req.ID), nil)
		return nil

	case notify.ActionReturnETA:
		minutes, convErr := strconv.Atoi(arg)
		if convErr != nil {
			b.reply(ctx, chatID, userMessage(apperr.MalformedInputf("eta minutes %q", arg)), nil)
			return nil
		}
		req, err := b.requests.SetReturnETA(ctx, chatID, id, request.ETALabel(minutes))
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.dispatcher.Notify(ctx, notify.EventReturnETASet, req)
		b.reply(ctx, chatID, fmt.Sprintf("Riconsegna avviata per la #%d 🔁", req.ID), nil)
		return nil

	case notify.ActionConfirmReturn:
		req, err := b.requests.ConfirmReturn(ctx, chatID, id)
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.dispatcher.Notify(ctx, notify.EventReturned, req)
		b.reply(ctx, chatID, fmt.Sprintf("Auto della #%d riconsegnata, richiesta chiusa 🏁", req.ID), nil)
		return nil

	case notify.ActionCancel:
		req, err := b.requests.Cancel(ctx, chatID, id)
		if err != nil {
			b.reply(ctx, chatID, userMessage(err), nil)
			return nil
		}
		b.reply(ctx, chatID, fmt.Sprintf("Richiesta #%d annullata ❌", req.ID), nil)
		return nil
	}

	b.reply(ctx, chatID, userMessage(apperr.MalformedInputf("unknown action %q", action)), nil)
	return nil
}

// finishRegistration 注册流程收尾：会话里有姓名，回调里有角色。
func (b *Bot) finishRegistration(ctx context.Context, chatID int64, roleToken string) error {
	sess := b.sessions.Get(chatID)
	if sess.State != StateRegisterRole || sess.Name == "" {
		b.reply(ctx, chatID, "Registrazione scaduta, riparti con /register.", nil)
		return nil
	}
	role, ok := user.ParseRole(roleToken)
	if !ok {
		b.reply(ctx, chatID, userMessage(apperr.MalformedInputf("role %q", roleToken)), nil)
		return nil
	}
	u, err := b.users.Register(ctx, chatID, sess.Name, role)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}
	b.sessions.Clear(chatID)
	b.reply(ctx, chatID, fmt.Sprintf("Registrato come %s (%s) ✅", u.Name, u.Role), mainMenu(u.Role))
	return nil
}

// handlePhoto 照片入口：按说明文字挂到请求。
func (b *Bot) handlePhoto(ctx context.Context, msg *telegram.Message) error {
	chatID := msg.Chat.ID

	if _, err := b.users.Get(ctx, chatID); err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}

	// 取最大分辨率档的 file id
	mediaRef := msg.Photo[len(msg.Photo)-1].FileID
	p, err := b.photos.AttachByCaption(ctx, chatID, mediaRef, msg.Caption)
	if err != nil {
		b.reply(ctx, chatID, userMessage(err), nil)
		return nil
	}

	label := "dopo"
	if p.Category == photo.CategoryBefore {
		label = "prima"
	}
	b.reply(ctx, chatID, fmt.Sprintf("Foto \"%s\" salvata per la richiesta #%d 📷", label, p.RequestID), nil)
	return nil
}
