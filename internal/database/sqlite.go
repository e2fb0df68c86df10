package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fabsignup/fabsignup/internal/config"
	"github.com/fabsignup/fabsignup/internal/model"
	"github.com/fabsignup/fabsignup/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

var db *gorm.DB

// InitSQLite 初始化全局 SQLite 数据库
func InitSQLite(cfg config.SQLiteConfig) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}
	db = conn
	logger.Info("SQLite database initialized successfully", "path", cfg.Path)
	return nil
}

// Open 打开数据库并完成迁移，返回独立连接（测试使用 ":memory:"）
func Open(cfg config.SQLiteConfig) (*gorm.DB, error) {
	memory := cfg.Path == "" || cfg.Path == ":memory:"
	path := cfg.Path
	if memory {
		path = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	level := gormLogger.Silent
	if cfg.LogSQL {
		level = gormLogger.Info
	}
	gormConfig := &gorm.Config{
		Logger: gormLogger.New(
			logger.GetLogger(),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
		SkipDefaultTransaction: true,
	}

	dsn := path + "?_pragma=busy_timeout(15000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	conn, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dsn,
	}, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// 单连接：PRAGMA 生效且内存库不会丢失
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	if !memory {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := autoMigrate(conn); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return conn, nil
}

const legacyGenderIndex = "idx_gender_mappings_form_value"

// autoMigrate 自动迁移数据库表
func autoMigrate(conn *gorm.DB) error {
	// 旧版本在 form_value 上建有唯一索引，空值行会互相冲突
	if m := conn.Migrator(); m.HasIndex(&model.GenderMapping{}, legacyGenderIndex) {
		if err := m.DropIndex(&model.GenderMapping{}, legacyGenderIndex); err != nil {
			return fmt.Errorf("drop %s: %w", legacyGenderIndex, err)
		}
	}
	return conn.AutoMigrate(
		&model.Setting{},
		&model.FieldMapping{},
		&model.PackageMapping{},
		&model.GenderMapping{},
		&model.FormItem{},
		&model.ResponseColumn{},
		&model.Submission{},
	)
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return db
}

// IsBusyError 判断是否为 SQLite 并发锁相关错误
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "cannot start a transaction within a transaction")
}

// WithRetry 在检测到并发锁错误时进行短暂重试
func WithRetry(conn *gorm.DB, fn func(*gorm.DB) error, attempts int, sleep time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = 50 * time.Millisecond
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(conn)
		if err == nil {
			return nil
		}
		if !IsBusyError(err) {
			return err
		}
		time.Sleep(sleep)
		if sleep < 500*time.Millisecond {
			sleep *= 2
		}
	}
	return err
}

// Close 关闭数据库连接
func Close() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func Health(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
