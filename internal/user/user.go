package user

import (
	"strings"
	"time"
)

// Role 员工角色枚举（持久化为字符串）。
type Role string

const (
	RoleReception Role = "reception" // 前台：创建请求、发起/确认还车
	RoleValet     Role = "valet"     // 泊车员：认领、服务、送回车辆
)

// ParseRole 解析角色输入；无法识别返回 false。
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleReception:
		return RoleReception, true
	case RoleValet:
		return RoleValet, true
	}
	return "", false
}

// User 是 users 表的 GORM 模型。
// TelegramID 即外部身份标识（chat id），同时作为通知投递地址。
type User struct {
	TelegramID int64     `gorm:"primaryKey;autoIncrement:false"`
	Name       string    `gorm:"size:64;not null"`
	Role       Role      `gorm:"type:varchar(16);index;not null"`
	Active     bool      `gorm:"not null;default:true"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }
