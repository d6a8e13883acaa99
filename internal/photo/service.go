package photo

import (
	"context"
	"fmt"
	"strings"
)

// Store 照片存储契约。
type Store interface {
	Create(ctx context.Context, p *Photo) error
	ListByRequest(ctx context.Context, requestID uint64) ([]Photo, error)
}

// RequestChecker 校验目标请求存在（由 request.Service 提供）。
type RequestChecker interface {
	Exists(ctx context.Context, id uint64) error
}

// Service 照片附件用例：解析说明文字、校验请求、落库。
type Service struct {
	store    Store
	requests RequestChecker
}

func NewService(store Store, requests RequestChecker) *Service {
	return &Service{store: store, requests: requests}
}

// AttachByCaption 根据说明文字把照片挂到请求上。
// 格式错误 → MalformedInput；请求不存在 → NotFound；两者都不落库。
func (s *Service) AttachByCaption(ctx context.Context, uploader int64, mediaRef, caption string) (*Photo, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	requestID, category, err := ParseCaption(caption)
	if err != nil {
		return nil, err
	}
	if s.requests != nil {
		if err := s.requests.Exists(ctx, requestID); err != nil {
			return nil, err
		}
	}

	p := &Photo{
		RequestID: requestID,
		MediaRef:  strings.TrimSpace(mediaRef),
		Category:  category,
		Uploader:  uploader,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListByRequest 某请求的照片记录。
func (s *Service) ListByRequest(ctx context.Context, requestID uint64) ([]Photo, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("service not initialized")
	}
	return s.store.ListByRequest(ctx, requestID)
}
