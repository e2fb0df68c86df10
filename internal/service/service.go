package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fabsignup/fabsignup/internal/config"
	"github.com/fabsignup/fabsignup/internal/database"
	"github.com/fabsignup/fabsignup/internal/mapping"
	"github.com/fabsignup/fabsignup/internal/notify"
	"github.com/fabsignup/fabsignup/pkg/fabman"
	"github.com/fabsignup/fabsignup/pkg/secret"
	"gorm.io/gorm"
)

var (
	// ErrNoForm 尚未登记表单定义
	ErrNoForm = errors.New("no form document found")
	// ErrNoAPIKey Settings 中没有 API Key
	ErrNoAPIKey = errors.New(`please enter a valid API key on the "Settings" sheet first`)
	// ErrNotAllowed 值不在允许列表中
	ErrNotAllowed = errors.New("value is not in the list of allowed values")
)

// RemoteAPI 编排层用到的远端接口
type RemoteAPI interface {
	FetchMe(ctx context.Context) (*fabman.Me, error)
	FetchPackages(ctx context.Context) ([]fabman.Package, error)
	FetchSpaces(ctx context.Context) ([]fabman.Space, error)
	CreateMember(ctx context.Context, body map[string]interface{}) (*fabman.Member, error)
	CreateMemberPackage(ctx context.Context, memberID int64, body fabman.MemberPackage) error
}

// RemoteFactory 按 API Key 创建远端客户端
type RemoteFactory func(apiKey string) RemoteAPI

// NewRemoteFactory 基于配置的默认工厂
func NewRemoteFactory(cfg config.FabmanConfig) RemoteFactory {
	return func(apiKey string) RemoteAPI {
		return fabman.NewClient(fabman.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    apiKey,
			PageSize:  cfg.PageSize,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			RateBurst: cfg.RateBurst,
		})
	}
}

// Options 可替换的协作方，零值使用默认实现
type Options struct {
	Notifier notify.Notifier
	Remote   RemoteFactory
	Writer   StorageWriter
	Now      func() time.Time
	Sleep    func(time.Duration)
}

// SignupService 报名同步编排：安装、编辑触发、菜单操作、提交处理、导出
type SignupService struct {
	mu       sync.RWMutex
	cfg      *config.Config
	db       *gorm.DB
	box      *secret.Box
	fields   *mapping.GormTable
	packages *mapping.GormTable
	notifier notify.Notifier
	remote   RemoteFactory
	writer   StorageWriter
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewSignupService 创建服务
func NewSignupService(cfg *config.Config, db *gorm.DB, opts Options) *SignupService {
	s := &SignupService{
		cfg:      cfg,
		db:       db,
		box:      secret.New(cfg.Security.SecretKey),
		fields:   mapping.NewFieldTable(db),
		packages: mapping.NewPackageTable(db),
		notifier: opts.Notifier,
		remote:   opts.Remote,
		writer:   opts.Writer,
		now:      opts.Now,
		sleep:    opts.Sleep,
	}
	if s.notifier == nil {
		s.notifier = notify.New(cfg.Notify)
	}
	if s.remote == nil {
		s.remote = func(apiKey string) RemoteAPI {
			return NewRemoteFactory(s.conf().Fabman)(apiKey)
		}
	}
	if s.writer == nil {
		s.writer = NewStorageWriter(cfg)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	return s
}

// conf 当前配置
func (s *SignupService) conf() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *SignupService) secretBox() *secret.Box {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.box
}

// UpdateConfig 热加载后替换配置；数据库与存储连接保持不变
func (s *SignupService) UpdateConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.box = secret.New(cfg.Security.SecretKey)
}

// Health 数据库连通性
func (s *SignupService) Health() error {
	return database.Health(s.db)
}
