// Package finance - 欧式期权数值定价（二叉树、蒙特卡洛）与 Black-Scholes 解析解。
package finance

import (
	"math"

	"github.com/wyfcoding/quant/algorithm/types"
	"github.com/wyfcoding/quant/xerrors"
)

// LatticeNode 二叉树节点：标的价格与该节点的期权价值。
type LatticeNode struct {
	Spot        float64
	OptionValue float64
}

// MaxSteps 二叉树允许的最大步数。节点数为 (steps+1)(steps+2)/2，5000 步约占 200MB。
const MaxSteps = 5000

// BinomialTree 重组二叉树 (Cox-Ross-Rubinstein) 定价器。
//
// 节点以扁平数组存放，第 i 层第 j 个节点位于 i*(i+1)/2 + j。
// 约定 j 为下行次数、i-j 为上行次数，即 spot(i, j) = S0 · u^(i-j) · d^j，
// 其上行子节点为 (i+1, j)，下行子节点为 (i+1, j+1)。
//
// 树在构造时一次性建好，Price 只回填 OptionValue，因此同一实例不可并发调用 Price。
type BinomialTree struct {
	nodes  []LatticeNode
	strike float64
	rate   float64
	expiry float64
	steps  int

	u    float64 // 上行因子
	d    float64 // 下行因子 1/u
	a    float64 // 单步持有成本增长因子 exp(b·Δt)
	disc float64 // 单步贴现除数 exp(r·Δt)
	p    float64 // 风险中性上行概率

	degenerate bool // 波动率为 0，u = d = 1
}

// NewBinomialTree 校验参数、计算 Δt/u/d/a/p 并构建完整的价格树，持有成本等于无风险利率。
func NewBinomialTree(spot, strike, rate, expiry, vol float64, steps int) (*BinomialTree, error) {
	return NewBinomialTreeWithCarry(spot, strike, rate, rate, expiry, vol, steps)
}

// NewBinomialTreeWithCarry 以持有成本 carry 构建价格树：a = exp(b·Δt) 决定 p，贴现仍按 exp(r·Δt)。
func NewBinomialTreeWithCarry(spot, strike, rate, carry, expiry, vol float64, steps int) (*BinomialTree, error) {
	if err := validateContract(spot, strike, rate, expiry, vol); err != nil {
		return nil, err
	}
	if math.IsNaN(carry) || math.IsInf(carry, 0) {
		return nil, xerrors.InvalidParameter("cost of carry must be finite, got %v", carry)
	}
	if steps < 1 || steps > MaxSteps {
		return nil, xerrors.InvalidParameter("steps must be in [1, %d], got %d", MaxSteps, steps)
	}

	deltaT := expiry / float64(steps)
	bt := &BinomialTree{
		strike: strike,
		rate:   rate,
		expiry: expiry,
		steps:  steps,
		u:      math.Exp(vol * math.Sqrt(deltaT)),
		a:      math.Exp(carry * deltaT),
		disc:   math.Exp(rate * deltaT),
	}
	bt.d = 1 / bt.u

	if vol == 0 {
		// u == d，(a-d)/(u-d) 无定义；整棵树退化为常数价格。
		bt.degenerate = true
	} else {
		bt.p = (bt.a - bt.d) / (bt.u - bt.d)
		if math.IsNaN(bt.p) || bt.p < 0 || bt.p > 1 {
			return nil, xerrors.InvalidModelState(
				"risk-neutral probability %v outside [0, 1] (carry=%v vol=%v dt=%v)", bt.p, carry, vol, deltaT)
		}
	}

	bt.build(spot)
	return bt, nil
}

// build 自根向下逐层生成节点价格。
func (bt *BinomialTree) build(spot float64) {
	bt.nodes = make([]LatticeNode, (bt.steps+1)*(bt.steps+2)/2)
	bt.nodes[0].Spot = spot

	for lv := 1; lv <= bt.steps; lv++ {
		parent := bt.level(lv - 1)
		cur := bt.level(lv)
		cur[0].Spot = parent[0].Spot * bt.u
		for k := 1; k <= lv; k++ {
			cur[k].Spot = parent[k-1].Spot * bt.d
		}
	}
}

// level 返回第 lv 层节点切片（共享底层数组）。
func (bt *BinomialTree) level(lv int) []LatticeNode {
	start := lv * (lv + 1) / 2
	return bt.nodes[start : start+lv+1]
}

// Price 自底向上逆向归纳，返回根节点期权价值（按 roundDigits 位小数四舍五入）。
func (bt *BinomialTree) Price(otype types.OptionType, roundDigits int) (float64, error) {
	if !otype.IsValid() {
		return 0, xerrors.InvalidOptionType(string(otype))
	}

	if bt.degenerate {
		// u = d = 1 时每个节点都等于期初价格，逆推只剩贴现。
		// 结果是 payoff(S0)·e^(-rT)，不同于 Black-Scholes 与蒙特卡洛的远期极限。
		v := intrinsic(otype, bt.nodes[0].Spot, bt.strike) * math.Exp(-bt.rate*bt.expiry)
		for i := range bt.nodes {
			bt.nodes[i].OptionValue = v
		}
		return Round(v, roundDigits), nil
	}

	leaves := bt.level(bt.steps)
	for j := range leaves {
		leaves[j].OptionValue = intrinsic(otype, leaves[j].Spot, bt.strike)
	}

	q := 1 - bt.p
	for lv := bt.steps - 1; lv >= 0; lv-- {
		next := bt.level(lv + 1)
		cur := bt.level(lv)
		for j := range cur {
			cur[j].OptionValue = (bt.p*next[j].OptionValue + q*next[j+1].OptionValue) / bt.disc
		}
	}

	return Round(bt.nodes[0].OptionValue, roundDigits), nil
}

// Node 返回第 level 层第 j 个节点。
func (bt *BinomialTree) Node(level, j int) (LatticeNode, bool) {
	if level < 0 || level > bt.steps || j < 0 || j > level {
		return LatticeNode{}, false
	}
	return bt.level(level)[j], true
}

// Steps 返回树的步数。
func (bt *BinomialTree) Steps() int { return bt.steps }

// UpFactor 返回上行因子 u。
func (bt *BinomialTree) UpFactor() float64 { return bt.u }

// DownFactor 返回下行因子 d。
func (bt *BinomialTree) DownFactor() float64 { return bt.d }

// Growth 返回单步持有成本增长因子 a。
func (bt *BinomialTree) Growth() float64 { return bt.a }

// Probability 返回风险中性上行概率 p；波动率为 0 时无定义，返回 NaN。
func (bt *BinomialTree) Probability() float64 {
	if bt.degenerate {
		return math.NaN()
	}
	return bt.p
}

// PriceBinomial 用 steps 步二叉树为欧式期权定价。
func PriceBinomial(spot, strike, rate, expiry, vol float64, steps int, otype types.OptionType, roundDigits int) (float64, error) {
	if !otype.IsValid() {
		return 0, xerrors.InvalidOptionType(string(otype))
	}
	bt, err := NewBinomialTree(spot, strike, rate, expiry, vol, steps)
	if err != nil {
		return 0, err
	}
	return bt.Price(otype, roundDigits)
}

// intrinsic 到期内在价值。
func intrinsic(otype types.OptionType, spot, strike float64) float64 {
	return math.Max(otype.Sign()*(spot-strike), 0)
}

// validateContract 校验两种数值方法共用的合约参数。
func validateContract(spot, strike, rate, expiry, vol float64) error {
	for _, f := range [...]struct {
		name string
		v    float64
	}{{"spot", spot}, {"strike", strike}, {"rate", rate}, {"expiry", expiry}, {"volatility", vol}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return xerrors.InvalidParameter("%s must be finite, got %v", f.name, f.v)
		}
	}
	switch {
	case spot <= 0:
		return xerrors.InvalidParameter("spot must be positive, got %v", spot)
	case strike <= 0:
		return xerrors.InvalidParameter("strike must be positive, got %v", strike)
	case expiry <= 0:
		return xerrors.InvalidParameter("expiry must be positive, got %v", expiry)
	case vol < 0:
		return xerrors.InvalidParameter("volatility must be non-negative, got %v", vol)
	}
	return nil
}
