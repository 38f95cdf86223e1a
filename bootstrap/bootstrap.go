// Package bootstrap 按配置装配定价引擎所需的基础设施：配置、日志、指标、缓存。
package bootstrap

import (
	"errors"
	"io"

	"github.com/wyfcoding/quant/cache"
	"github.com/wyfcoding/quant/config"
	"github.com/wyfcoding/quant/logging"
	"github.com/wyfcoding/quant/metrics"
	"github.com/wyfcoding/quant/pricing"
)

// Options 启动参数
type Options struct {
	ConfigPath string    // 为空时只使用默认值与 APP_ 环境变量
	Watch      bool      // 是否监听配置文件热更新
	LogOutput  io.Writer // 覆盖日志的标准输出目标，CLI 用 stderr 避免与结果混排
}

// Bootstrapper 持有已初始化的组件
type Bootstrapper struct {
	ServiceName string
	Version     string

	Config  *config.Manager
	Logger  *logging.Logger
	Metrics *metrics.Metrics // metrics.enabled = false 时为 nil
	Cache   *cache.PriceCache
	Engine  *pricing.Engine
}

// New 创建一个新的引导器实例
func New(serviceName, version string) *Bootstrapper {
	return &Bootstrapper{
		ServiceName: serviceName,
		Version:     version,
	}
}

// Initialize 加载配置并依次初始化日志、指标、缓存与定价引擎。
func (b *Bootstrapper) Initialize(opts Options) error {
	mgr, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	b.Config = mgr
	cfg := mgr.Get()

	logCfg := cfg.Log.Logging("pricer")
	if logCfg.Service == "" {
		logCfg.Service = b.ServiceName
	}
	logCfg.Output = opts.LogOutput
	b.Logger = logging.NewFromConfig(logCfg)

	engineOpts := []pricing.Option{pricing.WithLogger(b.Logger)}

	if cfg.Metrics.Enabled {
		b.Metrics = metrics.NewMetrics(cfg.Metrics.Namespace)
		version := b.Version
		if cfg.Version != "" {
			version = cfg.Version
		}
		b.Metrics.RegisterBuildInfo(b.ServiceName, version)
		engineOpts = append(engineOpts, pricing.WithMetrics(b.Metrics))
	}

	if cfg.Cache.Enabled {
		pc, err := cache.NewPriceCache(cfg.Cache)
		if err != nil {
			b.Logger.Error("failed to init price cache", "error", err)
			return err
		}
		b.Cache = pc
		engineOpts = append(engineOpts, pricing.WithCache(pc))
	}

	b.Engine = pricing.NewEngine(cfg.Pricing, engineOpts...)
	mgr.RegisterReloadHook(func(c *config.Config) {
		b.Engine.UpdateConfig(c.Pricing)
	})

	if opts.Watch && opts.ConfigPath != "" {
		mgr.Watch()
	}

	b.Logger.Debug("bootstrap completed", "config", opts.ConfigPath, "metrics", cfg.Metrics.Enabled, "cache", cfg.Cache.Enabled)
	return nil
}

// Close 释放缓存与日志文件。
func (b *Bootstrapper) Close() error {
	var errs []error
	if b.Cache != nil {
		errs = append(errs, b.Cache.Close())
	}
	if b.Logger != nil {
		errs = append(errs, b.Logger.Close())
	}
	return errors.Join(errs...)
}
