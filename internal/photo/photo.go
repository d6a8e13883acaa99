package photo

import "time"

// Category 照片类别。
type Category string

const (
	CategoryBefore Category = "before" // 取车时拍摄
	CategoryAfter  Category = "after"  // 服务后拍摄（默认）
)

// Photo 是 photos 表的 GORM 模型；创建后不可变，也不删除。
type Photo struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	RequestID uint64    `gorm:"index;not null"` // 所属请求（弱引用）
	MediaRef  string    `gorm:"size:128;not null"` // 聊天平台的 file id
	Category  Category  `gorm:"type:varchar(8);not null"`
	Uploader  int64     `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Photo) TableName() string { return "photos" }
