package request

import (
	"strings"
	"time"
)

// Status 请求状态枚举（持久化为字符串）。
type Status string

const (
	StatusNew              Status = "new"                // 新建，等待泊车员认领
	StatusAssigned         Status = "assigned"           // 已认领，附取车 ETA
	StatusInProgress       Status = "in_progress"        // 服务进行中
	StatusDeparted         Status = "departed"           // 车辆已离开酒店
	StatusCompleted        Status = "completed"          // 服务完成，车辆待还
	StatusReturnInProgress Status = "return_in_progress" // 还车途中，附还车 ETA
	StatusReturned         Status = "returned"           // 已还车（终态）
	StatusCancelled        Status = "cancelled"          // 已取消（终态）
)

// IsTerminal 终态判断。
func (s Status) IsTerminal() bool {
	return s == StatusReturned || s == StatusCancelled
}

// Emoji 渲染请求卡片时使用的状态图标（封闭映射，不做兜底字典）。
func (s Status) Emoji() string {
	switch s {
	case StatusNew:
		return "🆕"
	case StatusAssigned:
		return "🧾"
	case StatusInProgress:
		return "🧽"
	case StatusDeparted:
		return "🚗"
	case StatusCompleted:
		return "✅"
	case StatusReturnInProgress:
		return "🔁"
	case StatusReturned:
		return "🏁"
	case StatusCancelled:
		return "❌"
	}
	return "❓"
}

// ServiceType 服务类型（固定选项集合内的自由文本）。
type ServiceType string

const (
	ServiceExteriorWash ServiceType = "lavaggio esterno"
	ServiceFullWash     ServiceType = "lavaggio completo"
	ServiceMechanic     ServiceType = "officina"
	ServiceRefuel       ServiceType = "rifornimento"
)

// ServiceTypes 提供给前台选择的固定集合。
var ServiceTypes = []ServiceType{
	ServiceExteriorWash,
	ServiceFullWash,
	ServiceMechanic,
	ServiceRefuel,
}

// Request 是 requests 表的 GORM 模型。
// Creator/Assignee 是对 users 的弱引用（只存标识，不做外键级联）。
type Request struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Plate   string      `gorm:"size:16;index;not null"` // 车牌，始终存归一化大写形式
	Guest   string      `gorm:"size:64;not null"`       // 客人姓名，保留原始大小写
	Room    string      `gorm:"size:16;not null"`       // 房间号
	Service ServiceType `gorm:"size:32;not null"`       // 服务类型
	Status  Status      `gorm:"type:varchar(24);index;not null"`

	PickupETA string `gorm:"size:32"` // 取车承诺（自由文本，如 "10 min ca."）
	ReturnETA string `gorm:"size:32"` // 还车承诺

	Creator  int64  `gorm:"index;not null"` // 创建者（前台）
	Assignee *int64 `gorm:"index"`          // 当前泊车员；离开 new 后恒非空

	DepartedAt  *time.Time // 确认出发时间（只写一次）
	ArrivedAt   *time.Time // 确认还车到达时间（只写一次）
	CompletedAt *time.Time // 生命周期完结时间（与 ArrivedAt 同时写入）
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`

	Note string `gorm:"size:255"` // 备注（当前流程未使用，schema 预留）
}

func (Request) TableName() string { return "requests" }

// AssignedTo 判断 u 是否是当前受派人。
func (r *Request) AssignedTo(telegramID int64) bool {
	return r != nil && r.Assignee != nil && *r.Assignee == telegramID
}

// NormalizePlate 车牌归一化：去空格、转大写。存储与检索都走这里。
func NormalizePlate(plate string) string {
	plate = strings.TrimSpace(plate)
	plate = strings.ReplaceAll(plate, " ", "")
	return strings.ToUpper(plate)
}
