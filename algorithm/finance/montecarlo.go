package finance

import (
	"math"

	"github.com/sourcegraph/conc"

	algomath "github.com/wyfcoding/quant/algorithm/math"
	"github.com/wyfcoding/quant/algorithm/sim"
	"github.com/wyfcoding/quant/algorithm/types"
	"github.com/wyfcoding/quant/xerrors"
)

// MonteCarloParams 蒙特卡洛定价参数。
type MonteCarloParams struct {
	OptionType  types.OptionType
	Spot        float64
	Strike      float64
	Rate        float64
	Expiry      float64
	Volatility  float64
	Dividend    float64 // 连续股息率，持有成本 b = Rate - Dividend
	Simulations int
}

// MonteCarloPricer 通过模拟期末价格估计欧式期权的风险中性贴现期望。
//
// 使用 WithSource 注入的随机流在多次 Price 调用之间持续推进，且不可并发使用；
// 使用 WithWorkers 时每次调用都会从工厂新建各 worker 的随机流，可并发调用。
type MonteCarloPricer struct {
	source  sim.UniformSource
	factory sim.SourceFactory
	workers int
}

// MonteCarloOption 定义配置选项。
type MonteCarloOption func(*MonteCarloPricer)

// WithSource 注入单一随机流，单 goroutine 执行全部模拟。
func WithSource(src sim.UniformSource) MonteCarloOption {
	return func(p *MonteCarloPricer) {
		p.source = src
		p.factory = nil
		p.workers = 1
	}
}

// WithWorkers 将模拟拆分到 n 个 goroutine，第 i 个 worker 使用 factory(i) 产生的随机流。
// 各 worker 的部分和按序号顺序累加，种子固定时结果可复现。
func WithWorkers(n int, factory sim.SourceFactory) MonteCarloOption {
	return func(p *MonteCarloPricer) {
		if n < 1 {
			n = 1
		}
		p.source = nil
		p.factory = factory
		p.workers = n
	}
}

// NewMonteCarloPricer 创建定价器；未指定随机源时使用 crypto/rand。
func NewMonteCarloPricer(opts ...MonteCarloOption) *MonteCarloPricer {
	p := &MonteCarloPricer{workers: 1}
	for _, opt := range opts {
		opt(p)
	}
	if p.source == nil && p.factory == nil {
		p.factory = sim.CryptoFactory()
	}
	return p
}

// Price 运行 params.Simulations 次独立模拟并返回贴现后的平均收益（不做舍入）。
func (p *MonteCarloPricer) Price(params MonteCarloParams) (float64, error) {
	if !params.OptionType.IsValid() {
		return 0, xerrors.InvalidOptionType(string(params.OptionType))
	}
	if err := validateContract(params.Spot, params.Strike, params.Rate, params.Expiry, params.Volatility); err != nil {
		return 0, err
	}
	if math.IsNaN(params.Dividend) || math.IsInf(params.Dividend, 0) {
		return 0, xerrors.InvalidParameter("dividend must be finite, got %v", params.Dividend)
	}
	if params.Simulations < 1 {
		return 0, xerrors.InvalidParameter("simulations must be at least 1, got %d", params.Simulations)
	}

	gbm := sim.NewGeometricBrownianMotion(params.Spot, params.Rate-params.Dividend, params.Volatility, params.Expiry)
	sign := params.OptionType.Sign()

	var (
		sum float64
		err error
	)
	if p.source != nil {
		sum, err = runTrials(gbm, p.source, sign, params.Strike, params.Simulations)
	} else {
		sum, err = p.runParallel(gbm, sign, params.Strike, params.Simulations)
	}
	if err != nil {
		return 0, err
	}

	return math.Exp(-params.Rate*params.Expiry) * sum / float64(params.Simulations), nil
}

// runParallel 按 worker 均分模拟次数，余数分给前几个 worker。
func (p *MonteCarloPricer) runParallel(gbm *sim.GeometricBrownianMotion, sign, strike float64, n int) (float64, error) {
	workers := min(p.workers, n)
	sums := make([]float64, workers)
	errs := make([]error, workers)

	var wg conc.WaitGroup
	for w := range workers {
		trials := n / workers
		if w < n%workers {
			trials++
		}
		src := p.factory(w)
		wg.Go(func() {
			sums[w], errs[w] = runTrials(gbm, src, sign, strike, trials)
		})
	}
	wg.Wait()

	total := 0.0
	for w := range workers {
		if errs[w] != nil {
			return 0, errs[w]
		}
		total += sums[w]
	}
	return total, nil
}

// runTrials 累加 n 次模拟的未贴现收益 max(sign·(S_T - K), 0)。
func runTrials(gbm *sim.GeometricBrownianMotion, src sim.UniformSource, sign, strike float64, n int) (float64, error) {
	sum := 0.0
	for range n {
		z, err := algomath.NormInv(src.Float64())
		if err != nil {
			return 0, err
		}
		sum += math.Max(sign*(gbm.Terminal(z)-strike), 0)
	}
	return sum, nil
}

// PriceMonteCarlo 用单一随机流做 simulations 次模拟定价；src 为 nil 时使用 crypto/rand。
func PriceMonteCarlo(simulations int, otype types.OptionType, spot, strike, rate, expiry, vol, dividend float64, src sim.UniformSource) (float64, error) {
	if src == nil {
		src = sim.NewCryptoSource()
	}
	return NewMonteCarloPricer(WithSource(src)).Price(MonteCarloParams{
		OptionType:  otype,
		Spot:        spot,
		Strike:      strike,
		Rate:        rate,
		Expiry:      expiry,
		Volatility:  vol,
		Dividend:    dividend,
		Simulations: simulations,
	})
}
