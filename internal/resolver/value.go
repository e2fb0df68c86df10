package resolver

import (
	"strconv"
	"strings"
	"time"
)

// ValueType 单元格的原始类型
type ValueType int

const (
	TypeString ValueType = iota
	TypeNumber
	TypeDate
)

// Value 提交行中一个带类型的原始值
type Value struct {
	Type   ValueType
	Text   string
	Number float64
	Date   time.Time
}

// String 字符串值
func String(s string) Value { return Value{Type: TypeString, Text: s} }

// Number 数值
func Number(f float64) Value { return Value{Type: TypeNumber, Number: f} }

// DateValue 日期值，保留其时区，按该时区的日历日取值
func DateValue(t time.Time) Value { return Value{Type: TypeDate, Date: t} }

// IsEmpty 空字符串或零时间
func (v Value) IsEmpty() bool {
	switch v.Type {
	case TypeDate:
		return v.Date.IsZero()
	case TypeNumber:
		return false
	default:
		return v.Text == ""
	}
}

// Plain 数值转为字符串，其余原样返回
func (v Value) Plain() string {
	switch v.Type {
	case TypeNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case TypeDate:
		return v.Date.Format(time.RFC3339)
	default:
		return v.Text
	}
}

// 宽松解析时尝试的格式，按顺序
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"02.01.2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon Jan 2 2006",
	time.RFC1123,
	time.RFC1123Z,
}

// CalendarDate 按值自身的日历日格式化为 YYYY-MM-DD，不做 UTC 换算
func (v Value) CalendarDate() (string, bool) {
	var t time.Time
	switch v.Type {
	case TypeDate:
		t = v.Date
	case TypeString:
		s := strings.TrimSpace(v.Text)
		parsed := false
		for _, layout := range dateLayouts {
			if p, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				t, parsed = p, true
				break
			}
		}
		if !parsed {
			return "", false
		}
	default:
		return "", false
	}
	y, m, d := t.Date()
	return formatDate(y, m, d), true
}

func formatDate(y int, m time.Month, d int) string {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}

// Field 提交行中的一个字段
type Field struct {
	Name  string
	Value Value
}

// Row 一次提交，按事件给出的顺序
type Row []Field
