package pricing

import (
	"encoding/json"
	"testing"

	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteSwapOutput_Scenario(t *testing.T) {
	got := QuoteSwapOutput(1, 10, 2000)
	assert.InDelta(t, 2000-(10*2000)/(0.99+10), got, 1e-9)
	assert.InDelta(t, 180.16, got, 0.01)
}

func TestQuoteSwapOutput_Properties(t *testing.T) {
	reserves := [][2]float64{{10, 2000}, {2000, 10}, {1, 1}, {0.5, 1e6}}
	for _, r := range reserves {
		assert.Equal(t, 0.0, QuoteSwapOutput(0, r[0], r[1]))

		prev := 0.0
		for _, in := range []float64{0.001, 0.1, 1, 10, 1000, 1e9} {
			out := QuoteSwapOutput(in, r[0], r[1])
			assert.Greater(t, out, prev, "monotonic at in=%v reserves=%v", in, r)
			assert.Less(t, out, r[1], "bounded by output reserve at in=%v", in)
			prev = out
		}
	}
}

func TestQuoteRedeemOutput(t *testing.T) {
	q, err := QuoteRedeemOutput(10, 100, 50, 500)
	require.NoError(t, err)
	assert.InDelta(t, 5, q.EthOut, 1e-12)
	assert.InDelta(t, 50, q.TokenOut, 1e-12)

	all, err := QuoteRedeemOutput(100, 100, 50, 500)
	require.NoError(t, err)
	assert.Equal(t, 50.0, all.EthOut)
	assert.Equal(t, 500.0, all.TokenOut)

	_, err = QuoteRedeemOutput(-1, 100, 50, 500)
	assert.ErrorIs(t, err, units.ErrInvalidAmount)
}

func TestRequiredCounterpart(t *testing.T) {
	assert.Equal(t, 200.0, RequiredCounterpartForAddLiquidity(1, 10, 2000))

	base := RequiredCounterpartForAddLiquidity(0.7, 13, 4100)
	for _, k := range []float64{2, 3.5, 10} {
		assert.InEpsilon(t, base*k, RequiredCounterpartForAddLiquidity(0.7*k, 13, 4100), 1e-12)
	}
}

func TestSpotPrice(t *testing.T) {
	p := SpotPrice(0, 100)
	assert.False(t, p.Available)
	assert.Equal(t, "NA", p.String())

	p = SpotPrice(10, 2000)
	assert.True(t, p.Available)
	assert.InDelta(t, QuoteSwapOutput(1, 10, 2000), p.Value, 1e-12)
}

func TestPriceJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Price `json:"a"`
		B Price `json:"b"`
	}{A: Unavailable, B: Of(2.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":2.5}`, string(b))

	var p Price
	require.NoError(t, json.Unmarshal([]byte("null"), &p))
	assert.False(t, p.Available)
}
