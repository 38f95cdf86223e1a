// Package config 提供了统一的配置加载与管理能力.
// 配置来源依次为：内置默认值、TOML 文件、APP_ 前缀环境变量。
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/quant/logging"
)

// Config 全局顶级配置结构.
type Config struct {
	Version string        `mapstructure:"version" toml:"version" json:"version"`
	Log     LogConfig     `mapstructure:"log"     toml:"log"     json:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics" json:"metrics"`
	Cache   CacheConfig   `mapstructure:"cache"   toml:"cache"   json:"cache"`
	Pricing PricingConfig `mapstructure:"pricing" toml:"pricing" json:"pricing"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Service    string `mapstructure:"service"     toml:"service"     json:"service"`
	Level      string `mapstructure:"level"       toml:"level"       json:"level"       validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"        toml:"file"        json:"file"`        // 日志文件路径，为空则只输出到 stdout。
	Console    bool   `mapstructure:"console"     toml:"console"     json:"console"`     // 写文件时是否同时输出到 stdout。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"    json:"max_size"    validate:"gte=0"` // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"     json:"max_age"     validate:"gte=0"` // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"    json:"compress"`
}

// Logging 转换为 logging 包的配置.
func (c LogConfig) Logging(module string) logging.Config {
	return logging.Config{
		Service:    c.Service,
		Module:     module,
		Level:      c.Level,
		File:       c.File,
		Console:    c.Console,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// MetricsConfig 普罗米修斯监控指标配置.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"   toml:"enabled"   json:"enabled"`
	Namespace string `mapstructure:"namespace" toml:"namespace" json:"namespace"`
}

// CacheConfig 定价结果本地缓存（bigcache）参数.
type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled"             toml:"enabled"             json:"enabled"`
	LifeWindow       time.Duration `mapstructure:"life_window"         toml:"life_window"         json:"life_window"         validate:"gte=0"`
	CleanWindow      time.Duration `mapstructure:"clean_window"        toml:"clean_window"        json:"clean_window"`
	Shards           int           `mapstructure:"shards"              toml:"shards"              json:"shards"              validate:"gte=0"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"      json:"max_entry_size"      validate:"gte=0"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size" json:"hard_max_cache_size" validate:"gte=0"` // MB，0 表示不限制。
}

// PricingConfig 定价引擎默认参数.
type PricingConfig struct {
	DefaultSteps       int    `mapstructure:"default_steps"       toml:"default_steps"       json:"default_steps"       validate:"min=1,max=5000"`
	DefaultSimulations int    `mapstructure:"default_simulations" toml:"default_simulations" json:"default_simulations" validate:"min=1"`
	RoundDigits        int    `mapstructure:"round_digits"        toml:"round_digits"        json:"round_digits"        validate:"min=0,max=15"`
	Workers            int    `mapstructure:"workers"             toml:"workers"             json:"workers"             validate:"min=1,max=256"`
	Seed               uint64 `mapstructure:"seed"                toml:"seed"                json:"seed"` // 0 表示使用 crypto/rand。
	BatchConcurrency   int    `mapstructure:"batch_concurrency"   toml:"batch_concurrency"   json:"batch_concurrency"   validate:"min=1"`
}

// Default 返回内置默认配置.
func Default() *Config {
	return &Config{
		Version: "dev",
		Log: LogConfig{
			Service:    "quant",
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Metrics: MetricsConfig{Enabled: true, Namespace: "quant"},
		Cache: CacheConfig{
			Enabled:          true,
			LifeWindow:       10 * time.Minute,
			CleanWindow:      time.Minute,
			Shards:           64,
			MaxEntrySize:     64,
			HardMaxCacheSize: 64,
		},
		Pricing: PricingConfig{
			DefaultSteps:       500,
			DefaultSimulations: 100000,
			RoundDigits:        4,
			Workers:            1,
			BatchConcurrency:   8,
		},
	}
}

var validate = validator.New()

// Validate 校验配置字段约束.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Manager 持有一份已加载的配置，并在文件变化时热更新.
type Manager struct {
	v *viper.Viper

	mu       sync.RWMutex
	current  *Config
	onReload []func(*Config)
}

// Load 加载配置. path 为空时只使用默认值与环境变量.
func Load(path string) (*Manager, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config error: %w", err)
		}
	}

	conf, err := decode(v)
	if err != nil {
		return nil, err
	}

	return &Manager{v: v, current: conf}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setDefaults 为每个键注册默认值，使 AutomaticEnv 覆盖在 Unmarshal 时可见.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)

	v.SetDefault("log.service", d.Log.Service)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.console", d.Log.Console)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.life_window", d.Cache.LifeWindow)
	v.SetDefault("cache.clean_window", d.Cache.CleanWindow)
	v.SetDefault("cache.shards", d.Cache.Shards)
	v.SetDefault("cache.max_entry_size", d.Cache.MaxEntrySize)
	v.SetDefault("cache.hard_max_cache_size", d.Cache.HardMaxCacheSize)

	v.SetDefault("pricing.default_steps", d.Pricing.DefaultSteps)
	v.SetDefault("pricing.default_simulations", d.Pricing.DefaultSimulations)
	v.SetDefault("pricing.round_digits", d.Pricing.RoundDigits)
	v.SetDefault("pricing.workers", d.Pricing.Workers)
	v.SetDefault("pricing.seed", d.Pricing.Seed)
	v.SetDefault("pricing.batch_concurrency", d.Pricing.BatchConcurrency)
}

// Get 返回当前生效的配置快照，调用方不应修改.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// RegisterReloadHook 注册配置热更新回调。
func (m *Manager) RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	m.onReload = append(m.onReload, hook)
	m.mu.Unlock()
}

// Watch 监听配置文件变化并热更新.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		if err := m.reload(); err != nil {
			slog.Error("config reload rejected", "error", err)
		}
	})
	m.v.WatchConfig()
}

// reload 重新读取文件；校验失败时保留旧配置.
func (m *Manager) reload() error {
	if err := m.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}
	conf, err := decode(m.v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = conf
	hooks := append([]func(*Config){}, m.onReload...)
	m.mu.Unlock()

	logging.SetLevel(conf.Log.Level)
	slog.Info("config hot-reloaded and validated successfully")

	for _, hook := range hooks {
		hook(conf)
	}
	return nil
}

// PrintWithMask 将配置以缩进 JSON 写入 w，名称含 password/secret/dsn/key/token 的字段脱敏.
func PrintWithMask(w io.Writer, conf any) error {
	data, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal config error: %w", err)
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		return fmt.Errorf("unmarshal config for masking error: %w", err)
	}

	mask(configMap)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(configMap)
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)

			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}

			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"

				break
			}
		}
	}
}
