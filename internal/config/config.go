package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Fabman   FabmanConfig   `mapstructure:"fabman"`
	Form     FormConfig     `mapstructure:"form"`
	Member   MemberConfig   `mapstructure:"member"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Export   ExportConfig   `mapstructure:"export"`
	Security SecurityConfig `mapstructure:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// LogSQL 是否把 gorm 的 SQL 日志输出到应用日志
	LogSQL bool `mapstructure:"log_sql"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// FabmanConfig 远端会员管理 API 配置
type FabmanConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// PageSize 分页拉取时每页条数（limit 参数）
	PageSize int `mapstructure:"page_size"`
	// Timeout 单次请求超时，0 表示使用传输层默认
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	// ManageURL 管理后台会员链接前缀：{manage_url}/{account}/members/{id}
	ManageURL string `mapstructure:"manage_url"`
	// MembersURL 会员自助门户前缀：{members_url}/{account}/login
	MembersURL string `mapstructure:"members_url"`
}

// FormConfig 表单定义查询配置
type FormConfig struct {
	// LookupAttempts 表单定义查询总尝试次数（含首次）
	LookupAttempts int           `mapstructure:"lookup_attempts"`
	LookupBackoff  time.Duration `mapstructure:"lookup_backoff"`
}

// MemberConfig 新建会员时附带的默认内容
type MemberConfig struct {
	DefaultNote string `mapstructure:"default_note"`
	PackageNote string `mapstructure:"package_note"`
}

// NotifyConfig 通知配置（重复邮箱提醒）
type NotifyConfig struct {
	// Backend: smtp | log
	Backend string     `mapstructure:"backend"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// ExportConfig 映射表导出配置
type ExportConfig struct {
	// Backend 默认导出后端：local | minio
	Backend string            `mapstructure:"backend"`
	Prefix  string            `mapstructure:"prefix"`
	Local   LocalExportConfig `mapstructure:"local"`
	Minio   MinioConfig       `mapstructure:"minio"`
}

// LocalExportConfig 本地导出目录
type LocalExportConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// SecurityConfig 凭据保护配置
type SecurityConfig struct {
	// SecretKey 非空时，API Key 以 secretbox 密封后落库
	SecretKey string `mapstructure:"secret_key"`
}

var globalConfig *Config

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("FABSIGNUP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时完全使用默认值与环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = replaceEnvVars(config)
	normalize(&config)

	globalConfig = &config
	return &config, nil
}

// Default 返回仅由默认值构成的配置（测试与无配置文件场景）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	normalize(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	// 分页拉取可能较慢，写超时放宽
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("database.sqlite.path", "./data/fabsignup.db")
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)
	v.SetDefault("database.sqlite.log_sql", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/fabsignup.log")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("fabman.base_url", "https://fabman.io/api/v1")
	v.SetDefault("fabman.page_size", 1000)
	v.SetDefault("fabman.timeout", 0)
	v.SetDefault("fabman.rate_limit", 10.0)
	v.SetDefault("fabman.rate_burst", 5)
	v.SetDefault("fabman.manage_url", "https://fabman.io/manage")
	v.SetDefault("fabman.members_url", "https://fabman.io/members")

	// 表单定义查询：首次 + 3 次重试，固定 2 秒退避
	v.SetDefault("form.lookup_attempts", 4)
	v.SetDefault("form.lookup_backoff", 2*time.Second)

	v.SetDefault("member.default_note", `Added via "Fabman Self Sign-Up"`)
	v.SetDefault("member.package_note", "Assigned during self sign-up")

	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.smtp.port", 587)

	v.SetDefault("export.backend", "local")
	v.SetDefault("export.prefix", "mappings")
	v.SetDefault("export.local.base_dir", "./data/exports")
	v.SetDefault("export.local.mkdir_if_missing", true)
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// replaceEnvVars 替换 ${VAR} 形式的敏感配置
func replaceEnvVars(config Config) Config {
	config.Security.SecretKey = expandEnv(config.Security.SecretKey)
	config.Notify.SMTP.Password = expandEnv(config.Notify.SMTP.Password)
	config.Export.Minio.SecretKey = expandEnv(config.Export.Minio.SecretKey)
	return config
}

func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
	}
	return s
}

func normalize(cfg *Config) {
	cfg.Fabman.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Fabman.BaseURL), "/")
	cfg.Fabman.ManageURL = strings.TrimRight(strings.TrimSpace(cfg.Fabman.ManageURL), "/")
	cfg.Fabman.MembersURL = strings.TrimRight(strings.TrimSpace(cfg.Fabman.MembersURL), "/")
	if cfg.Fabman.PageSize <= 0 {
		cfg.Fabman.PageSize = 1000
	}
	if cfg.Form.LookupAttempts < 1 {
		cfg.Form.LookupAttempts = 1
	}
	cfg.Export.Backend = strings.ToLower(strings.TrimSpace(cfg.Export.Backend))
	cfg.Notify.Backend = strings.ToLower(strings.TrimSpace(cfg.Notify.Backend))
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
