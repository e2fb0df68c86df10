// Package mapping 维护“名称 -> 目标”映射表与当前权威名称列表的同步。
package mapping

import (
	"context"

	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/pkg/logger"
)

// Row 映射表中的一行
type Row struct {
	SourceName string `json:"source_name"`
	Target     string `json:"target"`
	RowIndex   int    `json:"row_index"`
}

// Table 按 RowIndex 排序的持久化映射表
type Table interface {
	// Rows 返回按 RowIndex 升序排列的所有行
	Rows(ctx context.Context) ([]Row, error)
	// DeleteRow 删除一行，之后的行依次上移
	DeleteRow(ctx context.Context, rowIndex int) error
	// AppendRow 在表尾追加一行
	AppendRow(ctx context.Context, name, target string) error
}

// Reconcile 使表中的名称与 names 一致：删除消失的名称，追加新出现的名称。
// 保留下来的名称保持原目标与相对顺序；返回是否发生了结构变化。
func Reconcile(ctx context.Context, t Table, names []string, defaultTarget string, description string) (bool, error) {
	existing, err := t.Rows(ctx)
	if err != nil {
		return false, err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	changed := false
	// 倒序删除，前面行的序号不受影响
	for i := len(existing) - 1; i >= 0; i-- {
		row := existing[i]
		if _, ok := wanted[row.SourceName]; ok {
			continue
		}
		logger.Info("Deleting mapping row", "row", row.RowIndex, "kind", description, "name", row.SourceName)
		if err := t.DeleteRow(ctx, row.RowIndex); err != nil {
			return changed, err
		}
		changed = true
	}

	present := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		present[row.SourceName] = struct{}{}
	}
	for _, n := range names {
		if _, ok := present[n]; ok {
			continue
		}
		logger.Info("Appending mapping row", "kind", description, "name", n, "target", defaultTarget)
		if err := t.AppendRow(ctx, n, defaultTarget); err != nil {
			return changed, err
		}
		present[n] = struct{}{}
		changed = true
	}
	return changed, nil
}

// ReconcileRows 是 Reconcile 的纯内存版本，行号从 model.FirstDataRow 连续编号
func ReconcileRows(rows []Row, names []string, defaultTarget string) ([]Row, bool) {
	mem := NewMemoryTable(rows)
	changed, _ := Reconcile(context.Background(), mem, names, defaultTarget, "row")
	return mem.rows, changed
}

// MemoryTable 内存映射表
type MemoryTable struct {
	rows []Row
}

// NewMemoryTable 复制 rows 并按顺序重新编号
func NewMemoryTable(rows []Row) *MemoryTable {
	m := &MemoryTable{rows: make([]Row, len(rows))}
	copy(m.rows, rows)
	m.renumber()
	return m
}

func (m *MemoryTable) renumber() {
	for i := range m.rows {
		m.rows[i].RowIndex = model.FirstDataRow + i
	}
}

// Rows 实现 Table
func (m *MemoryTable) Rows(context.Context) ([]Row, error) {
	out := make([]Row, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// DeleteRow 实现 Table
func (m *MemoryTable) DeleteRow(_ context.Context, rowIndex int) error {
	i := rowIndex - model.FirstDataRow
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	m.renumber()
	return nil
}

// AppendRow 实现 Table
func (m *MemoryTable) AppendRow(_ context.Context, name, target string) error {
	m.rows = append(m.rows, Row{SourceName: name, Target: target, RowIndex: model.FirstDataRow + len(m.rows)})
	return nil
}
