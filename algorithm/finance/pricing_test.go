package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/quant/algorithm/types"
	"github.com/wyfcoding/quant/xerrors"
)

func mustCarry(t *testing.T, product types.Product, rate, dividend float64) float64 {
	t.Helper()
	b, err := CostOfCarry(product, rate, dividend)
	require.NoError(t, err)
	return b
}

func TestBlackScholes_Price(t *testing.T) {
	bsc := NewBlackScholesCalculator()

	cases := []struct {
		name   string
		otype  types.OptionType
		params BlackScholesParams
		want   float64
	}{
		{
			name:   "vanilla call",
			otype:  types.OptionTypeCall,
			params: BlackScholesParams{Spot: 60, Strike: 65, Rate: 0.08, Expiry: 0.25, Volatility: 0.3, CostOfCarry: mustCarry(t, types.ProductStock, 0.08, 0)},
			want:   2.1334,
		},
		{
			name:   "put with dividend yield",
			otype:  types.OptionTypePut,
			params: BlackScholesParams{Spot: 100, Strike: 95, Rate: 0.1, Expiry: 0.5, Volatility: 0.2, CostOfCarry: mustCarry(t, types.ProductStockWithDividend, 0.1, 0.05)},
			want:   2.4648,
		},
		{
			name:   "futures call",
			otype:  types.OptionTypeCall,
			params: BlackScholesParams{Spot: 19, Strike: 19, Rate: 0.1, Expiry: 0.75, Volatility: 0.28, CostOfCarry: mustCarry(t, types.ProductFutures, 0.1, 0.1)},
			want:   1.7011,
		},
		{
			name:   "futures put",
			otype:  types.OptionTypePut,
			params: BlackScholesParams{Spot: 19, Strike: 19, Rate: 0.1, Expiry: 0.75, Volatility: 0.28, CostOfCarry: mustCarry(t, types.ProductFutures, 0.1, 0.1)},
			want:   1.7011,
		},
		{
			name:   "fx call",
			otype:  types.OptionTypeCall,
			params: BlackScholesParams{Spot: 1.56, Strike: 1.6, Rate: 0.06, Expiry: 0.5, Volatility: 0.12, CostOfCarry: mustCarry(t, types.ProductCurrency, 0.06, 0.08)},
			want:   0.0291,
		},
		{
			name:   "fx put inverted quote",
			otype:  types.OptionTypePut,
			params: BlackScholesParams{Spot: 1 / 1.56, Strike: 1 / 1.6, Rate: 0.08, Expiry: 0.5, Volatility: 0.12, CostOfCarry: mustCarry(t, types.ProductCurrency, 0.08, 0.06)},
			want:   0.0117,
		},
		{
			name:   "stock put",
			otype:  types.OptionTypePut,
			params: BlackScholesParams{Spot: refSpot, Strike: refStrike, Rate: refRate, Expiry: refExpiry, Volatility: refVol, CostOfCarry: refRate},
			want:   6.7601,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := bsc.Price(tc.otype, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, Round(got, DefaultRoundDigits))
		})
	}
}

func TestBlackScholes_PutCallParity(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	params := BlackScholesParams{Spot: 100, Strike: 95, Rate: 0.1, Expiry: 0.5, Volatility: 0.2, CostOfCarry: 0.05}

	call, err := bsc.Price(types.OptionTypeCall, params)
	require.NoError(t, err)
	put, err := bsc.Price(types.OptionTypePut, params)
	require.NoError(t, err)

	want := params.Spot*math.Exp((params.CostOfCarry-params.Rate)*params.Expiry) - params.Strike*math.Exp(-params.Rate*params.Expiry)
	assert.InDelta(t, want, call-put, 1e-9)
}

func TestBlackScholes_Delta(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	futures := BlackScholesParams{Spot: 105, Strike: 100, Rate: 0.1, Expiry: 0.5, Volatility: 0.36, CostOfCarry: 0}

	call, err := bsc.Delta(types.OptionTypeCall, futures)
	require.NoError(t, err)
	assert.Equal(t, 0.5946, Round(call, 4))

	put, err := bsc.Delta(types.OptionTypePut, futures)
	require.NoError(t, err)
	assert.Equal(t, -0.3566, Round(put, 4))

	commodity := BlackScholesParams{Spot: 90, Strike: 40, Rate: 0.03, Expiry: 2, Volatility: 0.2, CostOfCarry: 0.09}
	delta, err := bsc.Delta(types.OptionTypeCall, commodity)
	require.NoError(t, err)
	assert.Equal(t, 1.1273, Round(delta, 4))

	// 深度实值时现货变动 1，期权价格约变动 Delta.
	base, err := bsc.Price(types.OptionTypeCall, commodity)
	require.NoError(t, err)
	commodity.Spot = 91
	bumped, err := bsc.Price(types.OptionTypeCall, commodity)
	require.NoError(t, err)
	assert.InDelta(t, delta, bumped-base, 1e-3)
}

func TestBlackScholes_ZeroVolatility(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	params := BlackScholesParams{Spot: 100, Strike: 90, Rate: 0.05, Expiry: 1, Volatility: 0, CostOfCarry: 0.05}

	call, err := bsc.Price(types.OptionTypeCall, params)
	require.NoError(t, err)
	assert.InDelta(t, 100-90*math.Exp(-0.05), call, 1e-12)

	put, err := bsc.Price(types.OptionTypePut, params)
	require.NoError(t, err)
	assert.Equal(t, 0.0, put)

	_, err = bsc.Delta(types.OptionTypeCall, params)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
}

func TestBlackScholes_Invalid(t *testing.T) {
	bsc := NewBlackScholesCalculator()
	good := BlackScholesParams{Spot: 100, Strike: 95, Rate: 0.1, Expiry: 0.5, Volatility: 0.2, CostOfCarry: 0.1}

	_, err := bsc.Price(types.OptionType("CHOOSER"), good)
	assert.ErrorIs(t, err, xerrors.ErrInvalidOptionType)

	bad := good
	bad.Expiry = 0
	_, err = bsc.Price(types.OptionTypeCall, bad)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)

	bad = good
	bad.CostOfCarry = math.Inf(-1)
	_, err = bsc.Price(types.OptionTypePut, bad)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
}

func TestCostOfCarry(t *testing.T) {
	cases := []struct {
		product types.Product
		want    float64
	}{
		{types.ProductStock, 0.08},
		{types.ProductStockWithDividend, 0.05},
		{types.ProductCurrency, 0.05},
		{types.ProductFutures, 0},
		{types.ProductMarginedFutures, 0},
	}
	for _, tc := range cases {
		got, err := CostOfCarry(tc.product, 0.08, 0.03)
		require.NoError(t, err, tc.product)
		assert.InDelta(t, tc.want, got, 1e-15, tc.product)
	}

	_, err := CostOfCarry(types.Product("swaption"), 0.08, 0.03)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
}
