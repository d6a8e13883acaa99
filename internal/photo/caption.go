package photo

import (
	"strconv"
	"strings"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
)

// ParseCaption 解析照片说明文字，格式 "#<id> [etichetta]"。
// 例："#42 prima" → 请求 42、before；"#42 dopo" → after。
// 没有显式 before 标记时一律归为 after（含无标记）。
func ParseCaption(caption string) (requestID uint64, category Category, err error) {
	fields := strings.Fields(strings.TrimSpace(caption))
	if len(fields) == 0 {
		return 0, "", apperr.MalformedInputf("empty caption, expected e.g. \"#42 prima\"")
	}

	idToken := strings.TrimPrefix(fields[0], "#")
	if idToken == fields[0] || idToken == "" {
		return 0, "", apperr.MalformedInputf("caption must start with #<id>, e.g. \"#42 prima\"")
	}
	id, parseErr := strconv.ParseUint(idToken, 10, 64)
	if parseErr != nil {
		return 0, "", apperr.MalformedInputf("invalid request id %q, expected e.g. \"#42 prima\"", idToken)
	}

	category = CategoryAfter
	if len(fields) > 1 {
		switch strings.ToLower(fields[1]) {
		case "prima", "before":
			category = CategoryBefore
		}
	}
	return id, category, nil
}
