package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Export   ExportConfig   `mapstructure:"export"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// CookieSecure 会话 Cookie 是否仅在 HTTPS 下发送
	CookieSecure bool `mapstructure:"cookie_secure"`
}

// 数据网关提供方
const (
	ProviderLocal    = "local"
	ProviderSupabase = "supabase"
)

// BackendConfig 数据网关配置（托管后端或本地数据库）
type BackendConfig struct {
	// Provider local | supabase
	Provider string `mapstructure:"provider"`
	// URL 托管后端地址，例如 https://xyz.supabase.co
	URL string `mapstructure:"url"`
	// AnonKey 公开 API Key（随每个请求发送）
	AnonKey string `mapstructure:"anon_key"`
	// ServiceKey 管理操作使用的服务密钥（创建/删除/列出账号）
	ServiceKey string        `mapstructure:"service_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 数据库配置（仅 local 提供方使用）
type DatabaseConfig struct {
	// Driver sqlite | postgres | mysql
	Driver string       `mapstructure:"driver"`
	DSN    string       `mapstructure:"dsn"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	MinPasswordLen int           `mapstructure:"min_password_len"`
}

// ExportConfig 设备清单导出配置
type ExportConfig struct {
	// StorageBackend 默认存储后端：local | minio
	StorageBackend string            `mapstructure:"storage_backend"`
	Prefix         string            `mapstructure:"prefix"`
	Local          LocalExportConfig `mapstructure:"local"`
	Minio          MinioConfig       `mapstructure:"minio"`
}

// LocalExportConfig 本地存储配置
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

var globalConfig *Config

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// 设置环境变量前缀
	v.SetEnvPrefix("NETDEV_CONSOLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// 未找到配置文件时仅依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = replaceEnvVars(config)
	config.Backend.Provider = strings.ToLower(strings.TrimSpace(config.Backend.Provider))
	config.Database.Driver = strings.ToLower(strings.TrimSpace(config.Database.Driver))

	if err := config.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &config
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.cookie_secure", false)

	v.SetDefault("backend.provider", ProviderLocal)
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "./data/console.db")
	v.SetDefault("database.sqlite.max_idle_conns", 1)
	v.SetDefault("database.sqlite.max_open_conns", 1)
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	v.SetDefault("auth.session_ttl", 24*time.Hour)
	// 与托管身份服务默认的最短密码长度保持一致
	v.SetDefault("auth.min_password_len", 6)

	v.SetDefault("export.storage_backend", "local")
	v.SetDefault("export.prefix", "exports")
	v.SetDefault("export.local.base_dir", "./data")
	v.SetDefault("export.local.mkdir_if_missing", true)
	v.SetDefault("export.minio.port", 9000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "./logs/console.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
}

// Validate 校验启动必需的配置，缺失即视为致命错误
func (c *Config) Validate() error {
	switch c.Backend.Provider {
	case ProviderSupabase:
		if strings.TrimSpace(c.Backend.URL) == "" {
			return fmt.Errorf("backend.url is required for provider %q", ProviderSupabase)
		}
		if strings.TrimSpace(c.Backend.AnonKey) == "" {
			return fmt.Errorf("backend.anon_key is required for provider %q", ProviderSupabase)
		}
	case ProviderLocal:
		switch c.Database.Driver {
		case "sqlite":
			if strings.TrimSpace(c.Database.SQLite.Path) == "" {
				return fmt.Errorf("database.sqlite.path is required")
			}
		case "postgres", "mysql":
			if strings.TrimSpace(c.Database.DSN) == "" {
				return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
			}
		default:
			return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported backend provider: %s", c.Backend.Provider)
	}
	if c.Auth.MinPasswordLen <= 0 {
		c.Auth.MinPasswordLen = 6
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// replaceEnvVars 替换 ${VAR} 形式的密钥引用
func replaceEnvVars(config Config) Config {
	config.Backend.AnonKey = expandRef(config.Backend.AnonKey)
	config.Backend.ServiceKey = expandRef(config.Backend.ServiceKey)
	config.Database.DSN = expandRef(config.Database.DSN)
	config.Export.Minio.AccessKey = expandRef(config.Export.Minio.AccessKey)
	config.Export.Minio.SecretKey = expandRef(config.Export.Minio.SecretKey)
	return config
}

func expandRef(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		// 未设置的引用按空值处理，避免把占位符当作密钥发送
		envVar := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
		return os.Getenv(envVar)
	}
	return s
}

// GetServerAddr 获取服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
