package mapping

import (
	"context"
	"testing"

	"github.com/fabsignup/fabsignup/internal/config"
	"github.com/fabsignup/fabsignup/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(pairs ...string) []Row {
	out := make([]Row, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Row{SourceName: pairs[i], Target: pairs[i+1]})
	}
	return out
}

func names(rs []Row) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.SourceName)
	}
	return out
}

func TestReconcileRowsInsertsInNameOrder(t *testing.T) {
	got, changed := ReconcileRows(nil, []string{"Timestamp", "First name", "Email"}, "ignore")
	assert.True(t, changed)
	assert.Equal(t, []string{"Timestamp", "First name", "Email"}, names(got))
	for i, r := range got {
		assert.Equal(t, "ignore", r.Target)
		assert.Equal(t, 2+i, r.RowIndex)
	}
}

func TestReconcileRowsPreservesTargetsAndOrder(t *testing.T) {
	existing := rows("B", "Last name", "Old", "Phone", "A", "First name")
	got, changed := ReconcileRows(existing, []string{"A", "C", "B"}, "ignore")
	assert.True(t, changed)
	// 保留行维持原相对顺序，新名称追加在末尾
	assert.Equal(t, []string{"B", "A", "C"}, names(got))
	assert.Equal(t, "Last name", got[0].Target)
	assert.Equal(t, "First name", got[1].Target)
	assert.Equal(t, "ignore", got[2].Target)
	assert.Equal(t, []int{2, 3, 4}, []int{got[0].RowIndex, got[1].RowIndex, got[2].RowIndex})
}

func TestReconcileRowsIdempotent(t *testing.T) {
	cases := []struct {
		existing []Row
		names    []string
	}{
		{nil, nil},
		{nil, []string{"x"}},
		{rows("a", "1", "b", "2", "c", "3"), []string{"c", "a"}},
		{rows("a", "1", "b", "2"), []string{"d", "b", "e", "a"}},
		{rows("", "ignore", "a", "1"), []string{"a"}},
	}
	for _, tc := range cases {
		once, _ := ReconcileRows(tc.existing, tc.names, "ignore")
		twice, changed := ReconcileRows(once, tc.names, "ignore")
		assert.False(t, changed)
		assert.Equal(t, once, twice)
	}
}

func TestReconcileRowsNoChange(t *testing.T) {
	existing := rows("a", "1", "b", "2")
	_, changed := ReconcileRows(existing, []string{"b", "a"}, "ignore")
	assert.False(t, changed)
}

func TestReconcileRowsDeleteOnly(t *testing.T) {
	got, changed := ReconcileRows(rows("a", "1", "b", "2", "c", "3"), []string{"b"}, "ignore")
	assert.True(t, changed)
	assert.Equal(t, []Row{{SourceName: "b", Target: "2", RowIndex: 2}}, got)
}

func TestReconcileRowsDuplicateNames(t *testing.T) {
	got, _ := ReconcileRows(nil, []string{"a", "a", "b"}, "")
	assert.Equal(t, []string{"a", "b"}, names(got))
}

func TestGormTableMatchesMemory(t *testing.T) {
	db, err := database.Open(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	ctx := context.Background()
	tbl := NewFieldTable(db)

	changed, err := Reconcile(ctx, tbl, []string{"Timestamp", "First name", "Notes A", "Notes B"}, "ignore", "form field")
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, tbl.SetTarget(ctx, 3, "First name"))
	require.NoError(t, tbl.SetTarget(ctx, 5, "Notes"))

	newNames := []string{"First name", "Notes B", "Package"}
	changed, err = Reconcile(ctx, tbl, newNames, "ignore", "form field")
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := tbl.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{SourceName: "First name", Target: "First name", RowIndex: 2},
		{SourceName: "Notes B", Target: "Notes", RowIndex: 3},
		{SourceName: "Package", Target: "ignore", RowIndex: 4},
	}, got)

	changed, err = Reconcile(ctx, tbl, newNames, "ignore", "form field")
	require.NoError(t, err)
	assert.False(t, changed)

	row, err := tbl.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Notes B", row.SourceName)

	_, err = tbl.Get(ctx, 9)
	assert.ErrorIs(t, err, ErrRowNotFound)
	assert.ErrorIs(t, tbl.SetTarget(ctx, 9, "x"), ErrRowNotFound)
}

func TestGormTablesAreSeparate(t *testing.T) {
	db, err := database.Open(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = Reconcile(ctx, NewPackageTable(db), []string{"Starter"}, "", "form package option")
	require.NoError(t, err)

	fieldRows, err := NewFieldTable(db).Rows(ctx)
	require.NoError(t, err)
	assert.Empty(t, fieldRows)

	pkgRows, err := NewPackageTable(db).Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Row{{SourceName: "Starter", Target: "", RowIndex: 2}}, pkgRows)
}
