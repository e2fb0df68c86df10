package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/pkg/logger"
	"gorm.io/gorm"
)

// RegisterForm 整体替换表单定义，条目顺序即声明顺序
func (s *SignupService) RegisterForm(ctx context.Context, items []model.FormItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.FormItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			item := items[i]
			item.ID = 0
			item.Position = i
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("save form item %q: %w", item.Title, err)
			}
		}
		return nil
	})
}

func (s *SignupService) loadFormItems(ctx context.Context) ([]model.FormItem, error) {
	var items []model.FormItem
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoForm
	}
	return items, nil
}

// FormItems 读取表单定义；数据库读取失败时按固定间隔重试有限次数，未登记表单直接返回 ErrNoForm
func (s *SignupService) FormItems(ctx context.Context) ([]model.FormItem, error) {
	cfg := s.conf().Form
	attempts := cfg.LookupAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		items, err := s.loadFormItems(ctx)
		if err == nil {
			return items, nil
		}
		if errors.Is(err, ErrNoForm) {
			return nil, err
		}
		lastErr = err
		if i < attempts-1 {
			logger.Warn("Form lookup failed, retrying", "attempt", i+1, "error", err)
			s.sleep(cfg.LookupBackoff)
		}
	}
	return nil, lastErr
}

// formOrder 表单条目标题的声明顺序
func (s *SignupService) formOrder(ctx context.Context) ([]string, error) {
	items, err := s.FormItems(ctx)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(items))
	for _, it := range items {
		order = append(order, it.Title)
	}
	return order, nil
}

// SetResponseHeader 整体替换回复表表头
func (s *SignupService) SetResponseHeader(ctx context.Context, titles []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.ResponseColumn{}).Error; err != nil {
			return err
		}
		for i, t := range titles {
			if err := tx.Create(&model.ResponseColumn{Position: i + 1, Title: t}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SetResponseColumn 修改表头中的一列（列号从 1 开始），中间缺失的列补空标题
func (s *SignupService) SetResponseColumn(ctx context.Context, column int, title string) error {
	if column < 1 {
		return fmt.Errorf("invalid column %d", column)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&model.ResponseColumn{}).Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
			return err
		}
		for p := last + 1; p < column; p++ {
			if err := tx.Create(&model.ResponseColumn{Position: p}).Error; err != nil {
				return err
			}
		}
		return tx.Save(&model.ResponseColumn{Position: column, Title: title}).Error
	})
}

// ResponseHeader 回复表表头，按列顺序
func (s *SignupService) ResponseHeader(ctx context.Context) ([]string, error) {
	var cols []model.ResponseColumn
	if err := s.db.WithContext(ctx).Order("position ASC").Find(&cols).Error; err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(cols))
	for _, c := range cols {
		titles = append(titles, c.Title)
	}
	return titles, nil
}

// findFormItem 按标题查找表单条目
func findFormItem(items []model.FormItem, title string) (model.FormItem, error) {
	for _, it := range items {
		if it.Title == title {
			return it, nil
		}
	}
	return model.FormItem{}, errors.New("form item not found")
}
