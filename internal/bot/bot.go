package bot

import (
	"context"
	"time"

	"github.com/ValetFlow/ValetFlow/internal/common/logger"
	"github.com/ValetFlow/ValetFlow/internal/notify"
	"github.com/ValetFlow/ValetFlow/internal/photo"
	"github.com/ValetFlow/ValetFlow/internal/request"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/ValetFlow/ValetFlow/internal/user"
)

// Transport bot 对聊天通道的依赖面（由 telegram.Client 提供）。
type Transport interface {
	GetUpdates(ctx context.Context) ([]telegram.Update, error)
	SendMessage(ctx context.Context, req telegram.SendMessageRequest) error
	AnswerCallback(ctx context.Context, req telegram.AnswerCallbackRequest) error
}

// Bot 把入站更新路由到注册/录入/生命周期/照片各处理器。
type Bot struct {
	tg         Transport
	users      *user.Service
	requests   *request.Service
	photos     *photo.Service
	dispatcher *notify.Dispatcher
	sessions   *SessionStore
	log        logger.Logger

	handler UpdateHandler
}

// New 组装 bot，按恢复→追踪→访问日志的顺序包好处理链。
func New(tg Transport, users *user.Service, requests *request.Service, photos *photo.Service, dispatcher *notify.Dispatcher, serviceName string, log logger.Logger) *Bot {
	b := &Bot{
		tg:         tg,
		users:      users,
		requests:   requests,
		photos:     photos,
		dispatcher: dispatcher,
		sessions:   NewSessionStore(),
		log:        log,
	}
	b.handler = Chain(
		b.route,
		Recovery(log),
		Tracing(serviceName),
		AccessLog(log),
	)
	return b
}

// Run 长轮询主循环；每条更新各自处理，不同请求的流转允许并发交错。
func (b *Bot) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.tg.GetUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warnf("getUpdates failed: %v", err)
			time.Sleep(3 * time.Second)
			continue
		}

		for i := range updates {
			upd := updates[i]
			go func() {
				_ = b.handler(ctx, &upd)
			}()
		}
	}
}

// route 按更新种类分发；错误在这里转成用户提示，不再向上传播。
func (b *Bot) route(ctx context.Context, upd *telegram.Update) error {
	switch {
	case upd == nil:
		return nil
	case upd.CallbackQuery != nil:
		return b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && len(upd.Message.Photo) > 0:
		return b.handlePhoto(ctx, upd.Message)
	case upd.Message != nil:
		return b.handleText(ctx, upd.Message)
	}
	return nil
}

// reply 给用户回一条文本（可带键盘）。
func (b *Bot) reply(ctx context.Context, chatID int64, text string, markup interface{}) {
	err := b.tg.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil && b.log != nil {
		b.log.Warnf("reply to %d failed: %v", chatID, err)
	}
}
