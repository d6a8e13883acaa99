package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
)

// 按钮回调载荷："<action>:<requestID>[:<arg>]"。
// 由这里编码、bot 侧解码，保持格式单点定义。
const (
	ActionClaim         = "claim"    // arg: 取车分钟数
	ActionBegin         = "begin"    //
	ActionDeparted      = "depart"   //
	ActionCompleted     = "complete" //
	ActionReturnETA     = "reta"     // arg: 还车分钟数
	ActionConfirmReturn = "arrived"  //
	ActionCancel        = "cancel"   //
)

// EncodeAction 编码按钮载荷。
func EncodeAction(action string, requestID uint64, arg string) string {
	if arg == "" {
		return fmt.Sprintf("%s:%d", action, requestID)
	}
	return fmt.Sprintf("%s:%d:%s", action, requestID, arg)
}

// DecodeAction 解码按钮载荷；格式不符返回 MalformedInput。
func DecodeAction(payload string) (action string, requestID uint64, arg string, err error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) < 2 {
		return "", 0, "", apperr.MalformedInputf("callback payload %q", payload)
	}
	id, parseErr := strconv.ParseUint(parts[1], 10, 64)
	if parseErr != nil {
		return "", 0, "", apperr.MalformedInputf("callback payload id %q", parts[1])
	}
	if len(parts) == 3 {
		arg = parts[2]
	}
	return parts[0], id, arg, nil
}
