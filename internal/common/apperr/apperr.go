package apperr

import (
	"errors"
	"fmt"
)

// 业务错误分类（见聊天边界的用户提示映射）。
// 统一用 sentinel + %w 包装，边界侧用 errors.Is 判断类别。
var (
	ErrUnauthenticated = errors.New("unauthenticated")  // 未注册用户
	ErrUnauthorized    = errors.New("unauthorized")     // 角色不允许该操作
	ErrInvalidState    = errors.New("invalid state")    // 状态机不允许该流转
	ErrNotFound        = errors.New("not found")        // 请求/记录不存在
	ErrMalformedInput  = errors.New("malformed input")  // 输入格式不合法
)

// Unauthenticatedf 包装 ErrUnauthenticated。
func Unauthenticatedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrUnauthenticated}, args...)...)
}

// Unauthorizedf 包装 ErrUnauthorized。
func Unauthorizedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrUnauthorized}, args...)...)
}

// InvalidStatef 包装 ErrInvalidState。
func InvalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidState}, args...)...)
}

// NotFoundf 包装 ErrNotFound。
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// MalformedInputf 包装 ErrMalformedInput。
func MalformedInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrMalformedInput}, args...)...)
}
