package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fabsignup/fabsignup/pkg/logger"
	"gopkg.in/yaml.v3"
)

type exportRow struct {
	Row    int    `yaml:"row"`
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
}

// MappingSnapshot 映射表导出内容；不包含 API Key
type MappingSnapshot struct {
	ExportedAt      time.Time   `yaml:"exported_at"`
	FieldMappings   []exportRow `yaml:"field_mappings"`
	PackageMappings []exportRow `yaml:"package_mappings"`
	GenderMappings  []exportRow `yaml:"gender_mappings,omitempty"`
}

// Snapshot 读取当前映射表
func (s *SignupService) Snapshot(ctx context.Context) (*MappingSnapshot, error) {
	snap := &MappingSnapshot{ExportedAt: s.now().UTC()}
	fields, err := s.FieldRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		snap.FieldMappings = append(snap.FieldMappings, exportRow{Row: f.RowIndex, Name: f.SourceName, Target: f.Target})
	}
	packages, err := s.PackageRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range packages {
		snap.PackageMappings = append(snap.PackageMappings, exportRow{Row: p.RowIndex, Name: p.SourceName, Target: p.Target})
	}
	genders, err := s.GenderRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range genders {
		snap.GenderMappings = append(snap.GenderMappings, exportRow{Row: g.RowIndex, Name: g.FormValue, Target: g.RemoteGenderID})
	}
	return snap, nil
}

// ExportMappings 把映射表以 YAML 写到本地目录或 MinIO；backend 为空时使用配置
func (s *SignupService) ExportMappings(ctx context.Context, backend string) (StoredObject, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return StoredObject{}, err
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return StoredObject{}, fmt.Errorf("marshal mappings: %w", err)
	}
	if backend == "" {
		backend = s.conf().Export.Backend
	}
	meta := StorageMeta{
		DateYYYYMMDD: snap.ExportedAt.Format("20060102"),
		FileName:     fmt.Sprintf("mappings_%s.yaml", snap.ExportedAt.Format("150405")),
		Backend:      backend,
	}
	obj, err := s.writer.Write(ctx, meta, data, "application/yaml; charset=utf-8")
	if err != nil && obj.URI == "" {
		return StoredObject{}, err
	}
	if err != nil {
		logger.Warn("Mapping export completed with warning", "uri", obj.URI, "error", err)
	}
	logger.Info("Mappings exported", "uri", obj.URI, "size", obj.Size)
	return obj, nil
}
