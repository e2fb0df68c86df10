package model

import "time"

// 表单条目类型
const (
	FormItemList           = "LIST"
	FormItemMultipleChoice = "MULTIPLE_CHOICE"
	FormItemCheckbox       = "CHECKBOX"
	FormItemText           = "TEXT"
	FormItemDate           = "DATE"
)

// FormItem 表单定义中的一个条目，Position 为表单声明顺序
type FormItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ItemID    string    `json:"item_id" gorm:"type:varchar(64)"`
	Title     string    `json:"title" gorm:"type:varchar(512);not null"`
	Type      string    `json:"type" gorm:"type:varchar(32);not null"`
	Choices   []string  `json:"choices" gorm:"type:text;serializer:json"`
	Position  int       `json:"position" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (FormItem) TableName() string {
	return "form_items"
}

// ResponseColumn 表单回复工作表的表头，Position 从 1 开始
type ResponseColumn struct {
	Position  int       `json:"position" gorm:"primaryKey;autoIncrement:false"`
	Title     string    `json:"title" gorm:"type:varchar(512)"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (ResponseColumn) TableName() string {
	return "response_columns"
}
