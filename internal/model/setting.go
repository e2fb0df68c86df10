package model

import "time"

// Setting 设置表（Settings 工作表）：设置名 -> 值
type Setting struct {
	Name      string    `json:"name" gorm:"primaryKey;type:varchar(128)"`
	Value     string    `json:"value" gorm:"type:text"`
	Note      string    `json:"note" gorm:"type:text"`
	RowIndex  int       `json:"row_index" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Setting) TableName() string {
	return "settings"
}

// SettingAPIKey API Key 设置行名称
const SettingAPIKey = "API Key"

// 工作表名称，用于错误定位
const (
	SheetSettings        = "Settings"
	SheetFieldMappings   = "Field mappings"
	SheetPackageMappings = "Package mappings"
	SheetGenderMappings  = "Gender mappings"
	SheetFormResponses   = "Form responses"
)

// FirstDataRow 表头占第 1 行，数据从第 2 行开始
const FirstDataRow = 2
