package types

// OptionType 定义期权类型。
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// IsValid 判断期权类型是否受支持。
func (t OptionType) IsValid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// Sign 返回收益方向：看涨 +1，看跌 -1，未知类型返回 0。
func (t OptionType) Sign() float64 {
	switch t {
	case OptionTypeCall:
		return 1
	case OptionTypePut:
		return -1
	default:
		return 0
	}
}

// Product 定义标的产品类别，决定广义 Black-Scholes 模型中的持有成本 (cost of carry)。
type Product string

const (
	ProductStock             Product = "stock_option"               // b = r
	ProductStockWithDividend Product = "stock_option_with_dividend" // b = r - q
	ProductFutures           Product = "futures_option"             // b = 0
	ProductMarginedFutures   Product = "margined_futures_option"    // b = 0, r = 0
	ProductCurrency          Product = "currency_option"            // b = r - rf
)
