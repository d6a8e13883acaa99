package request

import (
	"time"

	"github.com/ValetFlow/ValetFlow/internal/common/apperr"
)

// AllowTransition 定义请求状态机的允许流转关系。
// 图刻意保持线性 + 单一逃生口（cancelled）：实际流程（取车→服务→出发→
// 完成→还车）本身就是顺序的。
// 注意 assigned -> assigned：二次认领覆盖受派人与 ETA（接受的竞态，
// 认领由人触发、节奏很慢，不加悲观锁）。
var AllowTransition = map[Status][]Status{
	StatusNew:              {StatusAssigned, StatusCancelled},
	StatusAssigned:         {StatusAssigned, StatusInProgress, StatusDeparted, StatusCancelled},
	StatusInProgress:       {StatusDeparted, StatusCompleted, StatusCancelled},
	StatusDeparted:         {StatusCompleted, StatusCancelled},
	StatusCompleted:        {StatusReturnInProgress, StatusCancelled},
	StatusReturnInProgress: {StatusReturned, StatusCancelled},
	// 终态：不允许从 returned / cancelled 再流转（含重复取消）
	StatusReturned:  {},
	StatusCancelled: {},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
func CanTransition(from, to Status) bool {
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyTransition 对请求应用状态变更，并维护关键时间字段。
// 时间戳只在产生它的那次流转写入，之后不再改写（陈旧覆盖无法重写）。
func ApplyTransition(r *Request, to Status, now time.Time) error {
	if r == nil {
		return apperr.NotFoundf("request is nil")
	}
	from := r.Status
	if !CanTransition(from, to) {
		return apperr.InvalidStatef("request status transition %s -> %s", from, to)
	}

	r.Status = to

	switch to {
	case StatusDeparted:
		if r.DepartedAt == nil {
			t := now
			r.DepartedAt = &t
		}
	case StatusReturned:
		if r.ArrivedAt == nil {
			t := now
			r.ArrivedAt = &t
		}
		if r.CompletedAt == nil {
			t := now
			r.CompletedAt = &t
		}
	}
	return nil
}
