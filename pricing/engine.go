// Package pricing 提供统一的期权定价入口：请求校验、方法分发、结果缓存、批量并发定价与多方法对比。
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/quant/algorithm/finance"
	"github.com/wyfcoding/quant/algorithm/sim"
	"github.com/wyfcoding/quant/algorithm/types"
	"github.com/wyfcoding/quant/cache"
	"github.com/wyfcoding/quant/config"
	"github.com/wyfcoding/quant/logging"
	"github.com/wyfcoding/quant/metrics"
	"github.com/wyfcoding/quant/xerrors"
)

// Method 定价方法。
type Method string

const (
	MethodBinomial     Method = "binomial"
	MethodMonteCarlo   Method = "monte_carlo"
	MethodBlackScholes Method = "black_scholes"
)

// Methods 按对比输出顺序列出全部方法。
var Methods = []Method{MethodBinomial, MethodMonteCarlo, MethodBlackScholes}

// Request 单次定价请求。Steps、Simulations、RoundDigits、Seed 为零值时取引擎配置。
type Request struct {
	Method     Method           `json:"method"      validate:"required,oneof=binomial monte_carlo black_scholes"`
	OptionType types.OptionType `json:"option_type"`
	Product    types.Product    `json:"product,omitempty"` // 为空时持有成本 b = Rate - Dividend
	Spot       float64          `json:"spot"        validate:"gt=0"`
	Strike     float64          `json:"strike"      validate:"gt=0"`
	Rate       float64          `json:"rate"`
	Expiry     float64          `json:"expiry"      validate:"gt=0"`
	Volatility float64          `json:"volatility"  validate:"gte=0"`
	Dividend   float64          `json:"dividend"`

	Steps       int    `json:"steps,omitempty"        validate:"gte=0,max=5000"` // 上限同 finance.MaxSteps
	Simulations int    `json:"simulations,omitempty"  validate:"gte=0"`
	RoundDigits *int   `json:"round_digits,omitempty" validate:"omitempty,min=0,max=15"`
	Seed        uint64 `json:"seed,omitempty"`
}

// Result 定价结果。
type Result struct {
	Method      Method           `json:"method"`
	OptionType  types.OptionType `json:"option_type"`
	Price       float64          `json:"price"`
	Delta       *float64         `json:"delta,omitempty"` // 仅 black_scholes 且波动率为正时给出
	Steps       int              `json:"steps,omitempty"`
	Simulations int              `json:"simulations,omitempty"`
	Cached      bool             `json:"cached"`
	Elapsed     time.Duration    `json:"elapsed"`
}

// Engine 定价引擎，可并发使用。
type Engine struct {
	mu  sync.RWMutex
	cfg config.PricingConfig

	cache   *cache.PriceCache
	metrics *metrics.Metrics
	logger  *logging.Logger
	bs      *finance.BlackScholesCalculator
}

// Option 定义引擎配置选项。
type Option func(*Engine)

// WithCache 启用结果缓存。
func WithCache(c *cache.PriceCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics 启用指标采集。
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger 指定日志记录器，默认使用全局 logger。
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

var validate = validator.New()

// NewEngine 创建定价引擎。
func NewEngine(cfg config.PricingConfig, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, bs: finance.NewBlackScholesCalculator()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	return e
}

// UpdateConfig 替换默认参数并清空缓存，用作配置热更新回调。
func (e *Engine) UpdateConfig(cfg config.PricingConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	if e.cache != nil {
		if err := e.cache.Reset(); err != nil {
			e.logger.Warn("reset price cache failed", "error", err)
		}
	}
	e.logger.Info("pricing config updated", "steps", cfg.DefaultSteps, "simulations", cfg.DefaultSimulations, "workers", cfg.Workers)
}

func (e *Engine) config() config.PricingConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// resolved 是补全默认值之后的请求。
type resolved struct {
	Request
	carry  float64
	yield  float64 // 蒙特卡洛使用的连续收益率 q，b = r - q
	digits int
}

// Price 校验并定价单个请求。失败时不返回部分结果。
func (e *Engine) Price(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := e.price(ctx, req)
	elapsed := time.Since(start)

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
		e.logger.WarnContext(ctx, "pricing failed", "method", req.Method, "option_type", req.OptionType, "error", err)
	} else {
		res.Elapsed = elapsed
		e.logger.DebugContext(ctx, "option priced",
			"method", res.Method, "option_type", res.OptionType, "price", res.Price, "cached", res.Cached, "elapsed", elapsed)
	}

	if e.metrics != nil {
		e.metrics.RequestsTotal.WithLabelValues(string(req.Method), string(req.OptionType), status).Inc()
		if err == nil {
			e.metrics.RequestDuration.WithLabelValues(string(req.Method)).Observe(elapsed.Seconds())
			if res.Cached {
				e.metrics.CacheHitsTotal.WithLabelValues(string(req.Method)).Inc()
			}
		}
	}
	return res, err
}

func (e *Engine) price(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Aborted(err)
	}
	r, err := e.resolve(req)
	if err != nil {
		return nil, err
	}

	res := &Result{Method: r.Method, OptionType: r.OptionType}
	switch r.Method {
	case MethodBinomial:
		res.Steps = r.Steps
	case MethodMonteCarlo:
		res.Simulations = r.Simulations
	}

	if r.Method == MethodBlackScholes && r.Volatility > 0 {
		delta, err := e.bs.Delta(r.OptionType, r.bsParams())
		if err != nil {
			return nil, err
		}
		delta = finance.Round(delta, r.digits)
		res.Delta = &delta
	}

	key, cacheable := e.cacheKey(r)
	if cacheable {
		price, ok, err := e.cache.Get(key)
		if err != nil {
			e.logger.WarnContext(ctx, "price cache read failed", "error", xerrors.WrapInternal(err, "read price cache"))
		} else if ok {
			res.Price = price
			res.Cached = true
			return res, nil
		}
	}

	price, err := e.dispatch(r)
	if err != nil {
		return nil, err
	}
	res.Price = price

	if cacheable {
		if err := e.cache.Set(key, price); err != nil {
			e.logger.WarnContext(ctx, "price cache write failed", "error", xerrors.WrapInternal(err, "write price cache"))
		}
	}
	return res, nil
}

// resolve 校验请求并补全默认参数。
func (e *Engine) resolve(req Request) (*resolved, error) {
	if !req.OptionType.IsValid() {
		return nil, xerrors.InvalidOptionType(string(req.OptionType))
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	cfg := e.config()
	r := &resolved{Request: req, digits: cfg.RoundDigits}
	if r.Steps == 0 {
		r.Steps = cfg.DefaultSteps
	}
	if r.Simulations == 0 {
		r.Simulations = cfg.DefaultSimulations
	}
	if r.Seed == 0 {
		r.Seed = cfg.Seed
	}
	if r.RoundDigits != nil {
		r.digits = *r.RoundDigits
	}

	if r.Product == "" {
		r.carry, r.yield = r.Rate-r.Dividend, r.Dividend
	} else {
		carry, err := finance.CostOfCarry(r.Product, r.Rate, r.Dividend)
		if err != nil {
			return nil, err
		}
		r.carry, r.yield = carry, r.Rate-carry
	}
	return r, nil
}

func (r *resolved) bsParams() finance.BlackScholesParams {
	return finance.BlackScholesParams{
		Spot:        r.Spot,
		Strike:      r.Strike,
		Rate:        r.Rate,
		Expiry:      r.Expiry,
		Volatility:  r.Volatility,
		CostOfCarry: r.carry,
	}
}

func (e *Engine) dispatch(r *resolved) (float64, error) {
	switch r.Method {
	case MethodBinomial:
		bt, err := finance.NewBinomialTreeWithCarry(r.Spot, r.Strike, r.Rate, r.carry, r.Expiry, r.Volatility, r.Steps)
		if err != nil {
			return 0, err
		}
		return bt.Price(r.OptionType, r.digits)

	case MethodMonteCarlo:
		factory := sim.CryptoFactory()
		if r.Seed != 0 {
			factory = sim.SeededFactory(r.Seed)
		}
		pricer := finance.NewMonteCarloPricer(finance.WithWorkers(max(e.config().Workers, 1), factory))
		return pricer.Price(finance.MonteCarloParams{
			OptionType:  r.OptionType,
			Spot:        r.Spot,
			Strike:      r.Strike,
			Rate:        r.Rate,
			Expiry:      r.Expiry,
			Volatility:  r.Volatility,
			Dividend:    r.yield,
			Simulations: r.Simulations,
		})

	case MethodBlackScholes:
		price, err := e.bs.Price(r.OptionType, r.bsParams())
		if err != nil {
			return 0, err
		}
		return finance.Round(price, r.digits), nil
	}
	return 0, xerrors.InvalidParameter("unknown method %q", r.Method)
}

// cacheKey 只为确定性请求生成键：蒙特卡洛仅在固定种子时可缓存。
func (e *Engine) cacheKey(r *resolved) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	base := []any{r.Method, r.OptionType, r.Spot, r.Strike, r.Rate, r.Expiry, r.Volatility, r.carry}
	switch r.Method {
	case MethodBinomial:
		return cache.Key(append(base, r.Steps, r.digits)...), true
	case MethodBlackScholes:
		return cache.Key(append(base, r.digits)...), true
	case MethodMonteCarlo:
		if r.Seed == 0 {
			return "", false
		}
		return cache.Key(append(base, r.Simulations, r.Seed, max(e.config().Workers, 1))...), true
	}
	return "", false
}

// PriceBatch 并发定价一组请求，并发度由 BatchConcurrency 限制。
// 任一请求失败即取消其余请求并返回该错误，错误的 Context 带有 index 与 method。
func (e *Engine) PriceBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.config().BatchConcurrency, 1))
	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Price(gctx, req)
			if err != nil {
				return xerrors.Wrap(err, xerrors.ErrInternal, fmt.Sprintf("request %d", i)).
					WithContext("index", i).
					WithContext("method", string(req.Method))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Compare 以全部方法为同一合约定价，结果顺序与 Methods 一致。
func (e *Engine) Compare(ctx context.Context, req Request) ([]*Result, error) {
	reqs := make([]Request, len(Methods))
	for i, m := range Methods {
		reqs[i] = req
		reqs[i].Method = m
	}
	return e.PriceBatch(ctx, reqs)
}

// maxConvergencePoints 限制一次收敛扫描的步数取值个数。
const maxConvergencePoints = 1000

// Converge 以 from、from+by、... 不超过 to 的步数依次为同一合约做二叉树定价，
// 结果按步数升序排列，用于观察价格随步数的收敛。
func (e *Engine) Converge(ctx context.Context, req Request, from, to, by int) ([]*Result, error) {
	switch {
	case from < 1:
		return nil, xerrors.InvalidParameter("from must be at least 1, got %d", from)
	case to < from:
		return nil, xerrors.InvalidParameter("to (%d) must not be less than from (%d)", to, from)
	case by < 1:
		return nil, xerrors.InvalidParameter("by must be at least 1, got %d", by)
	case to > finance.MaxSteps:
		return nil, xerrors.InvalidParameter("to must be at most %d, got %d", finance.MaxSteps, to)
	}
	if n := (to-from)/by + 1; n > maxConvergencePoints {
		return nil, xerrors.InvalidParameter("sweep has %d points, at most %d allowed", n, maxConvergencePoints)
	}

	var reqs []Request
	for steps := from; steps <= to; steps += by {
		r := req
		r.Method = MethodBinomial
		r.Steps = steps
		reqs = append(reqs, r)
	}
	return e.PriceBatch(ctx, reqs)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return xerrors.InvalidParameter("%v", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s violates %s (got %v)", fe.Field(), rule, fe.Value()))
	}
	return xerrors.InvalidParameter("%s", strings.Join(parts, "; "))
}
