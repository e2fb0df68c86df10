package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabsignup/fabsignup/internal/catalog"
	"github.com/fabsignup/fabsignup/internal/mapping"
	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/internal/validation"
	"github.com/fabsignup/fabsignup/pkg/logger"
)

// PackageInstruction 未映射套餐字段时套餐表中唯一的一行
var PackageInstruction = fmt.Sprintf(`Please go to %q and map one of your form fields to the field %q before configuring the package mappings.`,
	model.SheetFieldMappings, catalog.NamePackage)

// MissingAPIKeyHelp 未填写 API Key 时套餐列唯一允许的值
const MissingAPIKeyHelp = `Please enter a valid API key on the "Settings" sheet first!`

// FieldUpdate 字段映射表更新结果
type FieldUpdate struct {
	Changed bool     `json:"changed"`
	Allowed []string `json:"allowed"`
}

// PackageUpdate 套餐映射表更新结果
type PackageUpdate struct {
	Changed     bool     `json:"changed"`
	Instruction bool     `json:"instruction"`
	Field       string   `json:"field,omitempty"`
	Allowed     []string `json:"allowed"`
}

// UpdateFieldMappings 以回复表表头为准同步字段映射表
func (s *SignupService) UpdateFieldMappings(ctx context.Context) (*FieldUpdate, error) {
	header, err := s.ResponseHeader(ctx)
	if err != nil {
		return nil, err
	}
	// 末尾无标题的列是状态列
	if n := len(header); n > 0 && header[n-1] == "" {
		header = header[:n-1]
	}
	changed, err := mapping.Reconcile(ctx, s.fields, header, catalog.Ignore, "form field")
	if err != nil {
		return nil, fmt.Errorf("update field mappings: %w", err)
	}
	return &FieldUpdate{Changed: changed, Allowed: catalog.Names()}, nil
}

// packageField 第一个映射到套餐属性的字段行
func (s *SignupService) packageField(ctx context.Context) (mapping.Row, bool, error) {
	rows, err := s.fields.Rows(ctx)
	if err != nil {
		return mapping.Row{}, false, err
	}
	for _, r := range rows {
		if t, ok := catalog.Lookup(r.Target); ok && catalog.IsPackage(t) {
			return r, true, nil
		}
	}
	return mapping.Row{}, false, nil
}

// UpdatePackageMappings 以套餐字段的表单选项为准同步套餐映射表
func (s *SignupService) UpdatePackageMappings(ctx context.Context) (*PackageUpdate, error) {
	logger.Info("Updating package mappings")
	apiKey, err := s.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	field, ok, err := s.packageField(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		changed, err := mapping.Reconcile(ctx, s.packages, []string{PackageInstruction}, "", "form package option")
		if err != nil {
			return nil, err
		}
		return &PackageUpdate{Changed: changed, Instruction: true}, nil
	}

	items, err := s.FormItems(ctx)
	if err != nil {
		return nil, err
	}
	item, err := findFormItem(items, field.SourceName)
	if err != nil {
		return nil, &validation.Issue{
			Sheet:   model.SheetFieldMappings,
			Row:     field.RowIndex,
			Title:   "Package field not found",
			Message: fmt.Sprintf("The form has no item titled %q.", field.SourceName),
		}
	}
	if item.Type != model.FormItemList && item.Type != model.FormItemMultipleChoice {
		return nil, &validation.Issue{
			Sheet:   model.SheetFieldMappings,
			Row:     field.RowIndex,
			Title:   "Invalid package field",
			Message: "This form field must be a list or multiple-choice item to be mapped to the package name.",
		}
	}

	changed, err := mapping.Reconcile(ctx, s.packages, item.Choices, "", "form package option")
	if err != nil {
		return nil, err
	}
	allowed, err := s.allowedPackages(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &PackageUpdate{Changed: changed, Field: field.SourceName, Allowed: allowed}, nil
}

// allowedPackages 套餐列允许的显示串
func (s *SignupService) allowedPackages(ctx context.Context, apiKey string) ([]string, error) {
	if apiKey == "" {
		return []string{MissingAPIKeyHelp}, nil
	}
	pkgs, err := s.remote(apiKey).FetchPackages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		out = append(out, p.DisplayName())
	}
	return out, nil
}

// SetFieldTarget 修改字段映射的目标，目标必须在登记表中
func (s *SignupService) SetFieldTarget(ctx context.Context, row int, target string) (*PackageUpdate, error) {
	if _, ok := catalog.Find(target); !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotAllowed, target)
	}
	if err := s.fields.SetTarget(ctx, row, target); err != nil {
		return nil, err
	}
	if t, ok := catalog.Lookup(target); ok && catalog.IsPackage(t) {
		return s.UpdatePackageMappings(ctx)
	}
	return nil, nil
}

// SetPackageTarget 修改套餐映射的目标；空值表示清除
func (s *SignupService) SetPackageTarget(ctx context.Context, row int, display string) error {
	if display != "" {
		apiKey, err := s.APIKey(ctx)
		if err != nil {
			return err
		}
		if apiKey == "" {
			return ErrNoAPIKey
		}
		allowed, err := s.allowedPackages(ctx, apiKey)
		if err != nil {
			return err
		}
		if !contains(allowed, display) {
			return fmt.Errorf("%w: %q", ErrNotAllowed, display)
		}
	}
	err := s.packages.SetTarget(ctx, row, display)
	if errors.Is(err, mapping.ErrRowNotFound) {
		return fmt.Errorf("package mapping row %d: %w", row, err)
	}
	return err
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
