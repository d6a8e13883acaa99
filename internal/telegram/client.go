package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ValetFlow/ValetFlow/internal/common/logger"
	"github.com/ValetFlow/ValetFlow/internal/common/middleware"
)

// Client Bot API 客户端：长轮询拉取更新、发送消息/回调应答。
// 出站请求先过令牌桶（Bot API 对全局发送频率有约 30 msg/s 的硬限制）。
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	limiter  *middleware.TokenBucket
	log      logger.Logger

	pollTimeout int
	offset      int64
}

// Options Client 可调参数。
type Options struct {
	Endpoint       string // 默认 https://api.telegram.org
	PollTimeout    int    // getUpdates 长轮询秒数
	RequestTimeout int    // 单次 HTTP 请求超时秒数
	SendRate       int64  // 每秒出站消息数
	SendBurst      int64  // 突发容量
}

// NewClient 创建 Bot API 客户端。
func NewClient(token string, opts Options, log logger.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is empty")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "https://api.telegram.org"
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = opts.PollTimeout + 10
	}
	if opts.SendRate <= 0 {
		opts.SendRate = 25
	}
	if opts.SendBurst <= 0 {
		opts.SendBurst = opts.SendRate
	}

	return &Client{
		endpoint:    opts.Endpoint,
		token:       token,
		http:        &http.Client{Timeout: time.Duration(opts.RequestTimeout) * time.Second},
		limiter:     middleware.NewTokenBucket(opts.SendBurst, opts.SendRate),
		log:         log,
		pollTimeout: opts.PollTimeout,
	}, nil
}

// GetUpdates 长轮询拉取一批更新，内部维护 offset 去重。
func (c *Client) GetUpdates(ctx context.Context) ([]Update, error) {
	payload := map[string]interface{}{
		"offset":  c.offset,
		"timeout": c.pollTimeout,
		"allowed_updates": []string{"message", "callback_query"},
	}

	var result struct {
		apiResponse
		Result []Update `json:"result"`
	}
	if err := c.call(ctx, "getUpdates", payload, &result); err != nil {
		return nil, err
	}

	for _, u := range result.Result {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
	}
	return result.Result, nil
}

// SendMessage 发送文本消息（可带键盘）。
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var result apiResponse
	return c.call(ctx, "sendMessage", req, &result)
}

// AnswerCallback 应答按钮回调（停止客户端的加载转圈）。
func (c *Client) AnswerCallback(ctx context.Context, req AnswerCallbackRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var result apiResponse
	return c.call(ctx, "answerCallbackQuery", req, &result)
}

// call 执行一次 Bot API 方法调用并解析信封。
func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.endpoint, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()
	if c.log != nil {
		c.log.Debugf("bot api %s -> %d", method, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	// 统一信封校验：out 必须内嵌 apiResponse 或就是 apiResponse
	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err == nil && !envelope.OK {
		return fmt.Errorf("%s failed: [%d] %s", method, envelope.ErrorCode, envelope.Description)
	}
	return nil
}
