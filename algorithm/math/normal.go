package math

import (
	"math"

	"github.com/wyfcoding/quant/xerrors"
)

// Acklam 有理逼近的系数，相对误差上界约 1.15e-9。
var (
	acklamA = [6]float64{
		-3.969683028665376e+01,
		2.209460984245205e+02,
		-2.759285104469687e+02,
		1.383577518672690e+02,
		-3.066479806614716e+01,
		2.506628277459239e+00,
	}
	acklamB = [5]float64{
		-5.447609879822406e+01,
		1.615858368580409e+02,
		-1.556989798598866e+02,
		6.680131188771972e+01,
		-1.328068155288572e+01,
	}
	acklamC = [6]float64{
		-7.784894002430293e-03,
		-3.223964580411365e-01,
		-2.400758277161838e+00,
		-2.549732539343734e+00,
		4.374664141464968e+00,
		2.938163982698783e+00,
	}
	acklamD = [4]float64{
		7.784695709041462e-03,
		3.224671290700398e-01,
		2.445134137142996e+00,
		3.754408661907416e+00,
	}
)

// 分区边界.
const (
	normInvLow  = 0.02425
	normInvHigh = 1 - normInvLow
)

// NormInv 计算标准正态分布的分位数 Φ⁻¹(p)。
// p 必须严格位于 (0, 1) 内，否则返回 xerrors.ErrDomain。
// 函数无状态，可并发调用。
func NormInv(p float64) (float64, error) {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, xerrors.Domain("NormInv: p must be in (0, 1), got %v", p)
	}
	return normInv(p), nil
}

// MustNormInv 与 NormInv 相同，但在定义域之外直接 panic。
// 仅用于调用方已保证 p ∈ (0, 1) 的热点循环。
func MustNormInv(p float64) float64 {
	z, err := NormInv(p)
	if err != nil {
		panic(err)
	}
	return z
}

func normInv(p float64) float64 {
	c, d := &acklamC, &acklamD

	switch {
	case p < normInvLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p > normInvHigh:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	}

	a, b := &acklamA, &acklamB
	q := p - 0.5
	r := q * q
	return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
		(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
}

// NormCDF 标准正态分布的累积分布函数。
func NormCDF(x float64) float64 {
	return (1.0 + math.Erf(x/math.Sqrt2)) / 2.0
}

// NormPDF 标准正态分布的概率密度函数。
func NormPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
