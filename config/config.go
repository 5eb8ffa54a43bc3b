// Package config 从 TOML 文件加载 relmap 的运行配置
//
// 多个文件按顺序解码到同一个 Config 上，后面的文件覆盖前面的值，
// 全部加载完成后统一校验。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"relmap/data/db"
	"relmap/errors"
	"relmap/logging"
)

// Duration 以 "1s"、"500ms" 这样的文本出现在配置中
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config 顶层配置
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Cache    CacheConfig    `toml:"cache"`
	Audit    AuditConfig    `toml:"audit"`
	Tenant   TenantConfig   `toml:"tenant"`
}

// DatabaseConfig 数据库连接
type DatabaseConfig struct {
	// Driver 为 database/sql 注册名：sqlite、mysql、pgx
	Driver          string   `toml:"driver"`
	DSN             string   `toml:"dsn"`
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Name            string   `toml:"name"`
	Username        string   `toml:"username"`
	Password        string   `toml:"password"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `toml:"conn_max_idle_time"`
	// CreateSchema 启动时建立缺失的表
	CreateSchema bool `toml:"create_schema"`
}

// LoggingConfig 日志
type LoggingConfig struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
	// SlowThreshold 超过该耗时的操作以 Warn 级别记录，0 表示关闭
	SlowThreshold Duration `toml:"slow_threshold"`
}

// CacheConfig 行数缓存
type CacheConfig struct {
	Enabled bool     `toml:"enabled"`
	Backend string   `toml:"backend"` // local | redis
	MaxSize int      `toml:"max_size"`
	TTL     Duration `toml:"ttl"`
	Redis   Redis    `toml:"redis"`
}

// Redis 连接参数
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// AuditConfig 写操作审计
type AuditConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	Name          string `toml:"name"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// TenantConfig 租户行过滤；Member 为空时不启用
type TenantConfig struct {
	Member string `toml:"member"`
}

// Default 默认配置：内存 sqlite，本地行数缓存
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          ":memory:",
			MaxOpenConns: 1,
			CreateSchema: true,
		},
		Logging: LoggingConfig{
			Level:         "info",
			SlowThreshold: Duration{200 * time.Millisecond},
		},
		Cache: CacheConfig{
			Backend: "local",
			MaxSize: 1024,
			TTL:     Duration{time.Minute},
			Redis:   Redis{Addr: "localhost:6379", Prefix: "relmap"},
		},
		Audit: AuditConfig{
			Name:          "relmap",
			SubjectPrefix: "relmap.audit",
		},
	}
}

// Load 在默认配置上依次解码 files，然后校验
func Load(files ...string) (*Config, error) {
	cfg := Default()
	for _, f := range files {
		if _, err := toml.DecodeFile(f, cfg); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeConfig, fmt.Sprintf("load %s", f))
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse 在默认配置上解码 TOML 文本，然后校验
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfig, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf(errors.ErrCodeConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置的一致性
func (c *Config) Validate() error {
	var problems []string
	if c.Database.Driver == "" {
		problems = append(problems, "database.driver is required")
	}
	if c.Database.DSN == "" && c.Database.Host == "" {
		problems = append(problems, "database.dsn or database.host is required")
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "local":
			if c.Cache.MaxSize < 0 {
				problems = append(problems, "cache.max_size must not be negative")
			}
		case "redis":
			if c.Cache.Redis.Addr == "" {
				problems = append(problems, "cache.redis.addr is required for the redis backend")
			}
		default:
			problems = append(problems, fmt.Sprintf("cache.backend %q is not one of local, redis", c.Cache.Backend))
		}
	}
	if c.Audit.Enabled && c.Audit.URL == "" {
		problems = append(problems, "audit.url is required when audit is enabled")
	}
	if len(problems) > 0 {
		return errors.Errorf(errors.ErrCodeConfig, "invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ToDBConfig 转换为执行器使用的连接配置
func (c *Config) ToDBConfig() db.DBConfig {
	d := c.Database
	return db.DBConfig{
		Driver:          d.Driver,
		DSN:             d.DSN,
		Host:            d.Host,
		Port:            d.Port,
		Database:        d.Name,
		Username:        d.Username,
		Password:        d.Password,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: int(d.ConnMaxLifetime.Seconds()),
		ConnMaxIdleTime: int(d.ConnMaxIdleTime.Seconds()),
	}
}

// Logger 按日志配置创建 Logger
func (c *Config) Logger(opts ...logging.Option) logging.Logger {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.NewStdLogger(c.Logging.Prefix, append([]logging.Option{logging.WithLevel(level)}, opts...)...)
}
