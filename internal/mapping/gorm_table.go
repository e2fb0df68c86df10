package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fabsignup/fabsignup/internal/model"
	"gorm.io/gorm"
)

// record field_mappings 与 package_mappings 共用的行结构
type record struct {
	ID         uint `gorm:"primaryKey"`
	SourceName string
	Target     string
	RowIndex   int
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// ErrRowNotFound 指定行不存在
var ErrRowNotFound = errors.New("mapping row not found")

// GormTable 基于 gorm 的映射表
type GormTable struct {
	db    *gorm.DB
	table string
}

// NewFieldTable 字段映射表
func NewFieldTable(db *gorm.DB) *GormTable {
	return &GormTable{db: db, table: model.FieldMapping{}.TableName()}
}

// NewPackageTable 套餐映射表
func NewPackageTable(db *gorm.DB) *GormTable {
	return &GormTable{db: db, table: model.PackageMapping{}.TableName()}
}

func (t *GormTable) scoped(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Table(t.table)
}

// Rows 实现 Table
func (t *GormTable) Rows(ctx context.Context) ([]Row, error) {
	var recs []record
	if err := t.scoped(ctx).Order("row_index ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load %s: %w", t.table, err)
	}
	rows := make([]Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, Row{SourceName: r.SourceName, Target: r.Target, RowIndex: r.RowIndex})
	}
	return rows, nil
}

// DeleteRow 实现 Table：删除后其后的行号减一，与工作表删行一致
func (t *GormTable) DeleteRow(ctx context.Context, rowIndex int) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(t.table).Where("row_index = ?", rowIndex).Delete(&record{}).Error; err != nil {
			return err
		}
		return tx.Table(t.table).Where("row_index > ?", rowIndex).
			UpdateColumn("row_index", gorm.Expr("row_index - 1")).Error
	})
}

// AppendRow 实现 Table
func (t *GormTable) AppendRow(ctx context.Context, name, target string) error {
	var last int
	if err := t.scoped(ctx).Select("COALESCE(MAX(row_index), 0)").Scan(&last).Error; err != nil {
		return err
	}
	next := last + 1
	if next < model.FirstDataRow {
		next = model.FirstDataRow
	}
	rec := record{SourceName: name, Target: target, RowIndex: next}
	return t.scoped(ctx).Create(&rec).Error
}

// Get 按行号读取
func (t *GormTable) Get(ctx context.Context, rowIndex int) (Row, error) {
	var rec record
	err := t.scoped(ctx).Where("row_index = ?", rowIndex).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Row{}, ErrRowNotFound
	}
	if err != nil {
		return Row{}, err
	}
	return Row{SourceName: rec.SourceName, Target: rec.Target, RowIndex: rec.RowIndex}, nil
}

// SetTarget 修改某行的目标
func (t *GormTable) SetTarget(ctx context.Context, rowIndex int, target string) error {
	res := t.scoped(ctx).Where("row_index = ?", rowIndex).
		Updates(map[string]interface{}{"target": target, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRowNotFound
	}
	return nil
}
