// Package pricing holds the display-side AMM quote math for the SimpleDEX pool.
// Results are approximate float64 values for user guidance; the pool program
// settles every trade on its own integer arithmetic.
package pricing

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
)

// FeeMultiplier is the share of the swap input that reaches the curve (1% fee).
const FeeMultiplier = 0.99

// SwapQuote is the expected output of a swap.
type SwapQuote struct {
	InputAmount  float64 `json:"input_amount"`
	OutputAmount float64 `json:"output_amount"`
}

// RedeemQuote is the expected payout of burning LP tokens.
type RedeemQuote struct {
	EthOut   float64 `json:"eth_out"`
	TokenOut float64 `json:"token_out"`
}

// QuoteSwapOutput applies the constant-product formula with the pool fee taken
// from the input. Callers must guard zero reserves.
func QuoteSwapOutput(inputAmount, inputReserve, outputReserve float64) float64 {
	effective := inputAmount * FeeMultiplier
	newOutputReserve := (inputReserve * outputReserve) / (effective + inputReserve)
	return outputReserve - newOutputReserve
}

// QuoteRedeemOutput returns the pro-rata share of both reserves for lpAmount.
// Callers must special-case a zero LP supply.
func QuoteRedeemOutput(lpAmount, lpSupply, ethReserve, tokenReserve float64) (RedeemQuote, error) {
	if lpAmount < 0 {
		return RedeemQuote{}, fmt.Errorf("%w: lp amount %v", units.ErrInvalidAmount, lpAmount)
	}
	return RedeemQuote{
		EthOut:   lpAmount * ethReserve / lpSupply,
		TokenOut: lpAmount * tokenReserve / lpSupply,
	}, nil
}

// RequiredCounterpartForAddLiquidity is the token amount that keeps the pool
// ratio unchanged when ethAmount is added.
func RequiredCounterpartForAddLiquidity(ethAmount, ethReserve, tokenReserve float64) float64 {
	return ethAmount * tokenReserve / ethReserve
}

// Price is a per-unit spot quote, or unavailable when the pool cannot price it.
type Price struct {
	Value     float64
	Available bool
}

// Unavailable is the marker for a reserve that cannot be priced.
var Unavailable = Price{}

// Of wraps a numeric price.
func Of(v float64) Price { return Price{Value: v, Available: true} }

func (p Price) String() string {
	if !p.Available {
		return "NA"
	}
	return strconv.FormatFloat(p.Value, 'f', -1, 64)
}

// MarshalJSON encodes an unavailable price as null.
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Available {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// UnmarshalJSON accepts a number or null.
func (p *Price) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = Unavailable
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Of(v)
	return nil
}

// SpotPrice quotes a nominal one-unit input. It is unavailable while the input
// reserve is empty.
func SpotPrice(inputReserve, outputReserve float64) Price {
	if inputReserve == 0 {
		return Unavailable
	}
	return Of(QuoteSwapOutput(1, inputReserve, outputReserve))
}
