package model

import "time"

// FieldMapping 字段映射表：表单字段名 -> 目标字段显示名
type FieldMapping struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SourceName string    `json:"source_name" gorm:"type:varchar(512);not null;uniqueIndex"`
	Target     string    `json:"target" gorm:"type:varchar(256)"`
	RowIndex   int       `json:"row_index" gorm:"not null;index"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (FieldMapping) TableName() string {
	return "field_mappings"
}

// PackageMapping 套餐映射表：表单选项 -> "<name> (ID: <id>)"
type PackageMapping struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SourceName string    `json:"source_name" gorm:"type:varchar(512);not null;uniqueIndex"`
	Target     string    `json:"target" gorm:"type:varchar(512)"`
	RowIndex   int       `json:"row_index" gorm:"not null;index"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (PackageMapping) TableName() string {
	return "package_mappings"
}

// GenderMapping 性别映射表（可选）：表单取值 -> 远端性别 ID
type GenderMapping struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	// FormValue 非空值在表内唯一；先填第 2 列时允许暂为空
	FormValue      string    `json:"form_value" gorm:"type:varchar(256);not null;index:idx_gender_form_value"`
	RemoteGenderID string    `json:"remote_gender_id" gorm:"type:varchar(64)"`
	RowIndex       int       `json:"row_index" gorm:"not null;index"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (GenderMapping) TableName() string {
	return "gender_mappings"
}
