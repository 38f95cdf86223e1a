package finance

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultRoundDigits 价格默认保留的小数位数。
const DefaultRoundDigits = 4

// Round 将价格四舍五入（远离零）到 digits 位小数，digits 为负时舍入到整数位。
func Round(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(digits)).InexactFloat64()
}
