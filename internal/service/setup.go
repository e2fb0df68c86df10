package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/internal/validation"
	"github.com/fabsignup/fabsignup/pkg/logger"
)

// SetupResult 安装结果
type SetupResult struct {
	Fields   *FieldUpdate   `json:"fields,omitempty"`
	Packages *PackageUpdate `json:"packages,omitempty"`
	// Message 非空表示流程提前结束的原因
	Message string `json:"message,omitempty"`
}

// Setup 安装：建立设置行，同步字段映射，校验 API Key，再同步套餐映射
func (s *SignupService) Setup(ctx context.Context) (*SetupResult, error) {
	logger.Info("Running setup")
	if _, err := s.FormItems(ctx); err != nil {
		return nil, err
	}
	if err := s.EnsureSettings(ctx); err != nil {
		return nil, err
	}

	res := &SetupResult{}
	fields, err := s.UpdateFieldMappings(ctx)
	if err != nil {
		return nil, err
	}
	res.Fields = fields

	apiKey, err := s.APIKey(ctx)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		if _, err := s.ValidateAPIKey(ctx, apiKey); err != nil {
			res.Message = err.Error()
			return res, nil
		}
	}

	packages, err := s.UpdatePackageMappings(ctx)
	if err != nil {
		return nil, err
	}
	res.Packages = packages
	return res, nil
}

// UpdateFromForm 菜单：表单字段变化后同步两张映射表
func (s *SignupService) UpdateFromForm(ctx context.Context) (*SetupResult, error) {
	fields, err := s.UpdateFieldMappings(ctx)
	if err != nil {
		return nil, err
	}
	packages, err := s.UpdatePackageMappings(ctx)
	if err != nil {
		return nil, err
	}
	return &SetupResult{Fields: fields, Packages: packages}, nil
}

// UpdateFromRemote 菜单：远端套餐变化后同步套餐映射表
func (s *SignupService) UpdateFromRemote(ctx context.Context) (*SetupResult, error) {
	packages, err := s.UpdatePackageMappings(ctx)
	if err != nil {
		return nil, err
	}
	return &SetupResult{Packages: packages}, nil
}

// Validate 菜单：校验设置，返回第一个问题；全部通过返回 nil
func (s *SignupService) Validate(ctx context.Context) (*validation.Issue, error) {
	apiKey, err := s.APIKey(ctx)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		if _, err := s.ValidateAPIKey(ctx, apiKey); err != nil {
			return &validation.Issue{
				Sheet:   model.SheetSettings,
				Row:     s.apiKeyRow(ctx),
				Title:   "Invalid API Key",
				Message: err.Error(),
			}, nil
		}
	}

	in := validation.Input{}
	if in.Fields, err = s.FieldRows(ctx); err != nil {
		return nil, err
	}
	if in.Packages, err = s.PackageRows(ctx); err != nil {
		return nil, err
	}
	if in.Genders, err = s.GenderRows(ctx); err != nil {
		return nil, err
	}
	if validation.NeedsRemotePackages(in.Fields) {
		if apiKey == "" {
			return &validation.Issue{
				Sheet:   model.SheetSettings,
				Row:     s.apiKeyRow(ctx),
				Title:   "API Key missing",
				Message: MissingAPIKeyHelp,
			}, nil
		}
		if in.RemotePackages, err = s.remote(apiKey).FetchPackages(ctx); err != nil {
			return nil, err
		}
	}
	return validation.Check(in), nil
}

// Edit 宿主表格中的一次单元格编辑，行列从 1 开始
type Edit struct {
	Sheet  string `json:"sheet" binding:"required"`
	Row    int    `json:"row" binding:"required,min=1"`
	Column int    `json:"column" binding:"required,min=1"`
	Value  string `json:"value"`
}

// EditResult 编辑触发的后续动作
type EditResult struct {
	Action   string         `json:"action"`
	Fields   *FieldUpdate   `json:"fields,omitempty"`
	Packages *PackageUpdate `json:"packages,omitempty"`
}

// 编辑处理动作
const (
	EditIgnored        = "ignored"
	EditHeaderUpdated  = "field_mappings_updated"
	EditAPIKeyUpdated  = "api_key_updated"
	EditFieldTarget    = "field_target_updated"
	EditPackageTarget  = "package_target_updated"
	EditGenderMapping  = "gender_mapping_updated"
	settingsValueCol   = 2
	mappingsTargetCol  = 2
	formResponseHeader = 1
)

// HandleEdit 处理宿主的编辑触发
func (s *SignupService) HandleEdit(ctx context.Context, e Edit) (*EditResult, error) {
	switch e.Sheet {
	case model.SheetFormResponses:
		if e.Row != formResponseHeader {
			return &EditResult{Action: EditIgnored}, nil
		}
		if err := s.SetResponseColumn(ctx, e.Column, e.Value); err != nil {
			return nil, err
		}
		fields, err := s.UpdateFieldMappings(ctx)
		if err != nil {
			return nil, err
		}
		return &EditResult{Action: EditHeaderUpdated, Fields: fields}, nil

	case model.SheetSettings:
		if e.Row != s.apiKeyRow(ctx) || e.Column != settingsValueCol {
			return &EditResult{Action: EditIgnored}, nil
		}
		if err := s.SetAPIKey(ctx, e.Value); err != nil {
			return nil, err
		}
		packages, err := s.UpdatePackageMappings(ctx)
		if err != nil {
			return nil, err
		}
		return &EditResult{Action: EditAPIKeyUpdated, Packages: packages}, nil

	case model.SheetFieldMappings:
		if e.Column != mappingsTargetCol {
			return &EditResult{Action: EditIgnored}, nil
		}
		packages, err := s.SetFieldTarget(ctx, e.Row, e.Value)
		if err != nil {
			return nil, err
		}
		return &EditResult{Action: EditFieldTarget, Packages: packages}, nil

	case model.SheetPackageMappings:
		if e.Column != mappingsTargetCol {
			return &EditResult{Action: EditIgnored}, nil
		}
		if err := s.SetPackageTarget(ctx, e.Row, e.Value); err != nil {
			return nil, err
		}
		return &EditResult{Action: EditPackageTarget}, nil

	case model.SheetGenderMappings:
		if e.Row < model.FirstDataRow {
			return &EditResult{Action: EditIgnored}, nil
		}
		if err := s.setGenderCell(ctx, e.Row, e.Column, e.Value); err != nil {
			return nil, err
		}
		return &EditResult{Action: EditGenderMapping}, nil
	}
	return nil, fmt.Errorf("unknown sheet %q", e.Sheet)
}

// IsNoForm 是否为未登记表单
func IsNoForm(err error) bool {
	return errors.Is(err, ErrNoForm)
}
