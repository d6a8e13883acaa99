package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ValetFlow/ValetFlow/internal/common/logger"
	"github.com/ValetFlow/ValetFlow/internal/telegram"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// UpdateHandler 处理一条入站更新。
type UpdateHandler func(ctx context.Context, upd *telegram.Update) error

// UpdateMiddleware 更新处理中间件。
type UpdateMiddleware func(next UpdateHandler) UpdateHandler

// Chain 将多个中间件串起来（按传入顺序执行）。
func Chain(h UpdateHandler, middlewares ...UpdateMiddleware) UpdateHandler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		h = middlewares[i](h)
	}
	return h
}

// Recovery 防止单条更新的 panic 把轮询进程打崩，并记录栈信息。
func Recovery(log logger.Logger) UpdateMiddleware {
	return func(next UpdateHandler) UpdateHandler {
		return func(ctx context.Context, upd *telegram.Update) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if log != nil {
						log.Errorf("panic in update=%d err=%v stack=%s", upd.UpdateID, r, string(debug.Stack()))
					}
					err = fmt.Errorf("internal error")
				}
			}()
			return next(ctx, upd)
		}
	}
}

// Tracing 为每条更新创建 OpenTracing span。
func Tracing(serviceName string) UpdateMiddleware {
	return func(next UpdateHandler) UpdateHandler {
		return func(ctx context.Context, upd *telegram.Update) error {
			tracer := opentracing.GlobalTracer()
			span := tracer.StartSpan(operationName(upd))
			defer span.Finish()

			ext.SpanKindConsumer.Set(span)
			ext.Component.Set(span, "telegram")
			if serviceName != "" {
				span.SetTag("service", serviceName)
			}
			span.SetTag("update_id", upd.UpdateID)
			if chat := chatOf(upd); chat != 0 {
				span.SetTag("chat_id", chat)
			}

			ctx = opentracing.ContextWithSpan(ctx, span)
			err := next(ctx, upd)
			if err != nil {
				ext.Error.Set(span, true)
				span.SetTag("error.message", err.Error())
			}
			return err
		}
	}
}

// AccessLog 记录每条更新的耗时/结果，附相关性 ID。
func AccessLog(log logger.Logger) UpdateMiddleware {
	return func(next UpdateHandler) UpdateHandler {
		return func(ctx context.Context, upd *telegram.Update) error {
			start := time.Now()
			err := next(ctx, upd)
			cost := time.Since(start)

			if log != nil {
				fields := map[string]interface{}{
					"correlation": uuid.NewString(),
					"update_id":   upd.UpdateID,
					"kind":        operationName(upd),
					"chat_id":     chatOf(upd),
					"cost":        cost.String(),
				}
				if err != nil {
					fields["error"] = err.Error()
					log.WithFields(fields).Warn("update failed")
				} else {
					log.WithFields(fields).Info("update ok")
				}
			}
			return err
		}
	}
}

// operationName 更新的种类标签。
func operationName(upd *telegram.Update) string {
	switch {
	case upd == nil:
		return "update/nil"
	case upd.CallbackQuery != nil:
		return "update/callback"
	case upd.Message != nil && len(upd.Message.Photo) > 0:
		return "update/photo"
	case upd.Message != nil:
		return "update/message"
	}
	return "update/other"
}

// chatOf 提取发起者 chat id；取不到返回 0。
func chatOf(upd *telegram.Update) int64 {
	switch {
	case upd == nil:
		return 0
	case upd.CallbackQuery != nil:
		return upd.CallbackQuery.From.ID
	case upd.Message != nil:
		return upd.Message.Chat.ID
	}
	return 0
}
