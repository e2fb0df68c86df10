package resolver

import (
	"errors"
	"fmt"

	"github.com/fabsignup/fabsignup/pkg/fabman"
)

// Category 错误分类，决定错误如何上报
type Category string

const (
	// CategoryConfiguration 映射配置问题，需人工修正后重试
	CategoryConfiguration Category = "configuration"
	// CategoryRemoteAPI 远端返回非 2xx
	CategoryRemoteAPI Category = "remote_api"
	// CategoryMalformedInput 提交内容无法解析
	CategoryMalformedInput Category = "malformed_input"
	// CategoryDuplicateMember 邮箱已注册，可恢复
	CategoryDuplicateMember Category = "duplicate_member"
)

// Categorized 带分类的错误
type Categorized interface {
	error
	Category() Category
}

// CategoryOf 返回错误分类，无法识别时返回空串
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var c Categorized
	if errors.As(err, &c) {
		return c.Category()
	}
	var apiErr *fabman.APIError
	if errors.As(err, &apiErr) {
		return CategoryRemoteAPI
	}
	return ""
}

// UnmappedGenderError 性别取值不在性别映射表中
type UnmappedGenderError struct {
	Value string
}

func (e *UnmappedGenderError) Error() string {
	return fmt.Sprintf("Could not find a mapping for gender name %q.", e.Value)
}

// Category 实现 Categorized
func (e *UnmappedGenderError) Category() Category { return CategoryConfiguration }

// UnmappedPackageError 套餐名没有匹配项或没有配置远端 ID
type UnmappedPackageError struct {
	Name string
}

func (e *UnmappedPackageError) Error() string {
	return fmt.Sprintf("Could not find a mapping for package name %q.", e.Name)
}

// Category 实现 Categorized
func (e *UnmappedPackageError) Category() Category { return CategoryConfiguration }

// MissingNameError 提交后既没有名也没有姓
type MissingNameError struct{}

func (e *MissingNameError) Error() string {
	return "A member must have at least a first name or a last name"
}

// Category 实现 Categorized
func (e *MissingNameError) Category() Category { return CategoryConfiguration }

// AmbiguousSpaceError 账户下场地数不为 1 且未映射场地字段
type AmbiguousSpaceError struct {
	Account int64
	Count   int
}

func (e *AmbiguousSpaceError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("Account %d has no spaces.", e.Account)
	}
	return fmt.Sprintf("Account %d contains %d spaces, so you need to specify one.", e.Account, e.Count)
}

// Category 实现 Categorized
func (e *AmbiguousSpaceError) Category() Category { return CategoryConfiguration }

// UnknownSpaceError 提交中指定的场地不属于该账户
type UnknownSpaceError struct {
	Space string
}

func (e *UnknownSpaceError) Error() string {
	return fmt.Sprintf("Space %q does not exist in this account.", e.Space)
}

// Category 实现 Categorized
func (e *UnknownSpaceError) Category() Category { return CategoryConfiguration }

// UnsupportedTargetError 字段映射到了存在缺陷的目标
type UnsupportedTargetError struct {
	Field  string
	Target string
	Reason string
}

func (e *UnsupportedTargetError) Error() string {
	return fmt.Sprintf("Form field %q is mapped to %q: %s", e.Field, e.Target, e.Reason)
}

// Category 实现 Categorized
func (e *UnsupportedTargetError) Category() Category { return CategoryConfiguration }

// MalformedPackageListError 套餐列表中匹配项之后不是 ", " 分隔符
type MalformedPackageListError struct {
	Value    string
	Fragment string
}

func (e *MalformedPackageListError) Error() string {
	return fmt.Sprintf("Could not parse package list %q near %q", e.Value, e.Fragment)
}

// Category 实现 Categorized
func (e *MalformedPackageListError) Category() Category { return CategoryMalformedInput }

// InvalidDateError 日期字段无法解析
type InvalidDateError struct {
	Field string
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("Could not parse %q in form field %q as a date", e.Value, e.Field)
}

// Category 实现 Categorized
func (e *InvalidDateError) Category() Category { return CategoryMalformedInput }

// DuplicateMemberError 邮箱已注册；NotifyErr 记录通知发送失败（不影响流程完成）
type DuplicateMemberError struct {
	Email     string
	Space     string
	NotifyErr error
}

func (e *DuplicateMemberError) Error() string {
	return fmt.Sprintf("A member with the email address %q is already registered at %s", e.Email, e.Space)
}

// Category 实现 Categorized
func (e *DuplicateMemberError) Category() Category { return CategoryDuplicateMember }

// Unwrap 暴露通知错误
func (e *DuplicateMemberError) Unwrap() error { return e.NotifyErr }
