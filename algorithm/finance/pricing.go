package finance

import (
	"math"

	algomath "github.com/wyfcoding/quant/algorithm/math"
	"github.com/wyfcoding/quant/algorithm/types"
	"github.com/wyfcoding/quant/xerrors"
)

// BlackScholesParams 广义 Black-Scholes 输入。
type BlackScholesParams struct {
	Spot        float64
	Strike      float64
	Rate        float64
	Expiry      float64
	Volatility  float64
	CostOfCarry float64 // b：股票 b=r，含股息 b=r-q，期货 b=0，外汇 b=r-rf
}

// CostOfCarry 按产品类别确定持有成本 b。
// 对外汇期权，dividend 表示外币无风险利率 rf。
func CostOfCarry(product types.Product, rate, dividend float64) (float64, error) {
	switch product {
	case types.ProductStock:
		return rate, nil
	case types.ProductStockWithDividend, types.ProductCurrency:
		return rate - dividend, nil
	case types.ProductFutures, types.ProductMarginedFutures:
		return 0, nil
	default:
		return 0, xerrors.InvalidParameter("unknown product %q, cannot decide cost of carry", product)
	}
}

// BlackScholesCalculator Black-Scholes 期权定价计算器。
type BlackScholesCalculator struct{}

// NewBlackScholesCalculator 创建 Black-Scholes 计算器。
func NewBlackScholesCalculator() *BlackScholesCalculator {
	return &BlackScholesCalculator{}
}

// Price 计算欧式期权理论价格（不做舍入）。
//
//	c = S·e^((b-r)T)·N(d1) - K·e^(-rT)·N(d2)
//	p = K·e^(-rT)·N(-d2) - S·e^((b-r)T)·N(-d1)
//
// 波动率为 0 时返回确定性极限 max(±(S·e^((b-r)T) - K·e^(-rT)), 0)。
func (bsc *BlackScholesCalculator) Price(otype types.OptionType, params BlackScholesParams) (float64, error) {
	if err := bsc.validate(otype, params); err != nil {
		return 0, err
	}
	s, k, t, r := params.Spot, params.Strike, params.Expiry, params.Rate
	carryDF := math.Exp((params.CostOfCarry - r) * t)
	df := math.Exp(-r * t)

	if params.Volatility == 0 {
		return math.Max(otype.Sign()*(s*carryDF-k*df), 0), nil
	}

	d1, d2 := bsc.d1d2(params)
	if otype == types.OptionTypeCall {
		return s*carryDF*algomath.NormCDF(d1) - k*df*algomath.NormCDF(d2), nil
	}
	return k*df*algomath.NormCDF(-d2) - s*carryDF*algomath.NormCDF(-d1), nil
}

// Delta 计算 Delta：看涨 e^((b-r)T)·N(d1)，看跌 e^((b-r)T)·(N(d1)-1)。
func (bsc *BlackScholesCalculator) Delta(otype types.OptionType, params BlackScholesParams) (float64, error) {
	if err := bsc.validate(otype, params); err != nil {
		return 0, err
	}
	if params.Volatility == 0 {
		return 0, xerrors.InvalidParameter("delta requires positive volatility")
	}
	carryDF := math.Exp((params.CostOfCarry - params.Rate) * params.Expiry)
	d1, _ := bsc.d1d2(params)
	if otype == types.OptionTypeCall {
		return carryDF * algomath.NormCDF(d1), nil
	}
	return carryDF * (algomath.NormCDF(d1) - 1), nil
}

func (bsc *BlackScholesCalculator) d1d2(params BlackScholesParams) (d1, d2 float64) {
	volSqrtT := params.Volatility * math.Sqrt(params.Expiry)
	d1 = (math.Log(params.Spot/params.Strike) + (params.CostOfCarry+params.Volatility*params.Volatility/2)*params.Expiry) / volSqrtT
	return d1, d1 - volSqrtT
}

func (bsc *BlackScholesCalculator) validate(otype types.OptionType, params BlackScholesParams) error {
	if !otype.IsValid() {
		return xerrors.InvalidOptionType(string(otype))
	}
	if err := validateContract(params.Spot, params.Strike, params.Rate, params.Expiry, params.Volatility); err != nil {
		return err
	}
	if math.IsNaN(params.CostOfCarry) || math.IsInf(params.CostOfCarry, 0) {
		return xerrors.InvalidParameter("cost of carry must be finite, got %v", params.CostOfCarry)
	}
	return nil
}
