package model

import "time"

// Cell 提交行中的一个带类型单元格
type Cell struct {
	Field string `json:"field"`
	// Type: string | number | date，空值用 string + 空文本表示
	Type   string     `json:"type"`
	Text   string     `json:"text,omitempty"`
	Number float64    `json:"number,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
	// Column 单元格所在列（从 1 开始）
	Column int `json:"column,omitempty"`
}

// 单元格类型
const (
	CellString = "string"
	CellNumber = "number"
	CellDate   = "date"
)

// Submission 一次表单提交（回复表中的一行）及其处理状态
type Submission struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	RowNumber    int       `json:"row_number" gorm:"not null;index"`
	Cells        []Cell    `json:"cells" gorm:"type:text;serializer:json"`
	State        string    `json:"state" gorm:"type:varchar(32);not null;default:'received'"`
	Status       string    `json:"status" gorm:"type:text"`
	StatusLink   string    `json:"status_link" gorm:"type:varchar(512)"`
	StatusColumn int       `json:"status_column"`
	MemberID     int64     `json:"member_id"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Submission) TableName() string {
	return "submissions"
}

// 提交处理状态
const (
	SubmissionReceived         = "received"
	SubmissionFieldsResolved   = "fields_resolved"
	SubmissionSpaceResolved    = "space_resolved"
	SubmissionMemberCreated    = "member_created"
	SubmissionPackagesAssigned = "packages_assigned"
	SubmissionReported         = "reported"
	SubmissionDuplicate        = "duplicate"
	SubmissionFailed           = "failed"
)
