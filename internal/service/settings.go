package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fabsignup/fabsignup/internal/database"
	"github.com/fabsignup/fabsignup/internal/mapping"
	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/internal/resolver"
	"github.com/fabsignup/fabsignup/internal/validation"
	"github.com/fabsignup/fabsignup/pkg/fabman"
	"github.com/fabsignup/fabsignup/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvalidAPIKeyError API Key 无法通过 /user/me 校验
type InvalidAPIKeyError struct {
	Err error
}

func (e *InvalidAPIKeyError) Error() string {
	return "The API key appears to be invalid."
}

func (e *InvalidAPIKeyError) Unwrap() error { return e.Err }

// Category 实现 resolver.Categorized
func (e *InvalidAPIKeyError) Category() resolver.Category { return resolver.CategoryConfiguration }

// EnsureSettings 确保 Settings 表有 API Key 行
func (s *SignupService) EnsureSettings(ctx context.Context) error {
	row := model.Setting{Name: model.SettingAPIKey, RowIndex: model.FirstDataRow}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// Settings 全部设置；API Key 只返回是否已填写
func (s *SignupService) Settings(ctx context.Context) ([]model.Setting, error) {
	var rows []model.Setting
	if err := s.db.WithContext(ctx).Order("row_index ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Name == model.SettingAPIKey && rows[i].Value != "" {
			rows[i].Value = "********"
		}
	}
	return rows, nil
}

// APIKey 读取并解封 API Key，未填写时返回空串
func (s *SignupService) APIKey(ctx context.Context) (string, error) {
	var row model.Setting
	err := s.db.WithContext(ctx).Where("name = ?", model.SettingAPIKey).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.secretBox().Open(strings.TrimSpace(row.Value))
}

// ValidateAPIKey 用 /user/me 校验 API Key
func (s *SignupService) ValidateAPIKey(ctx context.Context, apiKey string) (*fabman.Me, error) {
	me, err := s.remote(apiKey).FetchMe(ctx)
	if err != nil {
		logger.Warn("API key validation failed", "error", err)
		return nil, &InvalidAPIKeyError{Err: err}
	}
	return me, nil
}

// SetAPIKey 校验后密封保存；空值表示清除
func (s *SignupService) SetAPIKey(ctx context.Context, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey != "" {
		if _, err := s.ValidateAPIKey(ctx, apiKey); err != nil {
			return err
		}
	}
	sealed, err := s.secretBox().Seal(apiKey)
	if err != nil {
		return err
	}
	if err := s.EnsureSettings(ctx); err != nil {
		return err
	}
	return database.WithRetry(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Model(&model.Setting{}).Where("name = ?", model.SettingAPIKey).Update("value", sealed).Error
	}, 3, 0)
}

// apiKeyRow Settings 表中 API Key 所在行
func (s *SignupService) apiKeyRow(ctx context.Context) int {
	var row model.Setting
	if err := s.db.WithContext(ctx).Where("name = ?", model.SettingAPIKey).Take(&row).Error; err != nil {
		return model.FirstDataRow
	}
	return row.RowIndex
}

// FieldRows 字段映射表
func (s *SignupService) FieldRows(ctx context.Context) ([]mapping.Row, error) {
	return s.fields.Rows(ctx)
}

// PackageRows 套餐映射表
func (s *SignupService) PackageRows(ctx context.Context) ([]mapping.Row, error) {
	return s.packages.Rows(ctx)
}

// GenderRows 性别映射表
func (s *SignupService) GenderRows(ctx context.Context) ([]model.GenderMapping, error) {
	var rows []model.GenderMapping
	err := s.db.WithContext(ctx).Order("row_index ASC").Find(&rows).Error
	return rows, err
}

// GenderInput 性别映射的一行
type GenderInput struct {
	FormValue      string `json:"form_value" binding:"required"`
	RemoteGenderID string `json:"remote_gender_id"`
}

// ReplaceGenderMappings 整表替换性别映射；空列表表示不使用性别映射
func (s *SignupService) ReplaceGenderMappings(ctx context.Context, rows []GenderInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.GenderMapping{}).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(rows))
		for i, r := range rows {
			if r.FormValue != "" {
				if _, dup := seen[r.FormValue]; dup {
					return duplicateGender(model.FirstDataRow+i, r.FormValue)
				}
				seen[r.FormValue] = struct{}{}
			}
			g := model.GenderMapping{FormValue: r.FormValue, RemoteGenderID: r.RemoteGenderID, RowIndex: model.FirstDataRow + i}
			if err := tx.Create(&g).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// setGenderCell 编辑性别表的单元格：第 1 列为表单取值，第 2 列为远端 ID
func (s *SignupService) setGenderCell(ctx context.Context, row, column int, value string) error {
	var g model.GenderMapping
	err := s.db.WithContext(ctx).Where("row_index = ?", row).Take(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		g = model.GenderMapping{RowIndex: row}
	} else if err != nil {
		return err
	}
	switch column {
	case 1:
		if value != "" {
			var n int64
			err := s.db.WithContext(ctx).Model(&model.GenderMapping{}).
				Where("form_value = ? AND row_index <> ?", value, row).Count(&n).Error
			if err != nil {
				return err
			}
			if n > 0 {
				return duplicateGender(row, value)
			}
		}
		g.FormValue = value
	case 2:
		g.RemoteGenderID = value
	default:
		return nil
	}
	return s.db.WithContext(ctx).Save(&g).Error
}

func duplicateGender(row int, value string) *validation.Issue {
	return &validation.Issue{
		Sheet:   model.SheetGenderMappings,
		Row:     row,
		Title:   "Duplicate gender",
		Message: fmt.Sprintf("The form value %q is already mapped in another row", value),
	}
}

// LoadConfig 为一次调用构造解析配置
func (s *SignupService) LoadConfig(ctx context.Context) (resolver.Config, error) {
	var cfg resolver.Config
	apiKey, err := s.APIKey(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.APIKey = apiKey

	fields, err := s.fields.Rows(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.FieldMap = make(map[string]string, len(fields))
	for _, f := range fields {
		cfg.FieldMap[f.SourceName] = f.Target
	}

	packages, err := s.packages.Rows(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.PackageMap = make(map[string]string, len(packages))
	for _, p := range packages {
		cfg.PackageMap[p.SourceName] = p.Target
	}

	genders, err := s.GenderRows(ctx)
	if err != nil {
		return cfg, err
	}
	// 表单取值为空的行尚未填写完整，不参与映射
	for _, g := range genders {
		if g.FormValue == "" {
			continue
		}
		if cfg.GenderMap == nil {
			cfg.GenderMap = make(map[string]string, len(genders))
		}
		cfg.GenderMap[g.FormValue] = g.RemoteGenderID
	}
	return cfg, nil
}
