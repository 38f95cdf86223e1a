// Package sim 提供蒙特卡洛模拟所需的随机源与资产价格过程.
package sim

import "math"

// GeometricBrownianMotion 风险中性测度下的几何布朗运动.
type GeometricBrownianMotion struct {
	spot      float64
	driftTerm float64 // (b - σ²/2)·T.
	volTerm   float64 // σ·√T.
}

// NewGeometricBrownianMotion 创建 GBM 过程，carry 为持有成本 (无股息时等于无风险利率).
func NewGeometricBrownianMotion(spot, carry, volatility, horizon float64) *GeometricBrownianMotion {
	return &GeometricBrownianMotion{
		spot:      spot,
		driftTerm: (carry - 0.5*volatility*volatility) * horizon,
		volTerm:   volatility * math.Sqrt(horizon),
	}
}

// Terminal 给定标准正态抽样 z，返回期末价格 S_T = S·exp((b - σ²/2)T + σ·z·√T).
func (gbm *GeometricBrownianMotion) Terminal(z float64) float64 {
	return gbm.spot * math.Exp(gbm.driftTerm+gbm.volTerm*z)
}

// TerminalPrice 是 Terminal 的一次性形式.
func TerminalPrice(spot, carry, volatility, horizon, z float64) float64 {
	return NewGeometricBrownianMotion(spot, carry, volatility, horizon).Terminal(z)
}
