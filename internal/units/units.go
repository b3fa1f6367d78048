package units

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the fixed-point precision used by ETH, the pool LP token and the paired ERC-20.
const Decimals = 18

// ErrInvalidAmount is returned for negative, NaN or infinite display values.
var ErrInvalidAmount = errors.New("invalid amount")

// ToDisplay converts an on-chain amount scaled by 10^18 into a display value.
func ToDisplay(fixed *big.Int) float64 {
	if fixed == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(fixed, -Decimals).Float64()
	return f
}

// ToFixed converts a display value into an on-chain amount scaled by 10^18.
// Digits beyond the 18th fractional place are truncated.
func ToFixed(display float64) (*big.Int, error) {
	if math.IsNaN(display) || math.IsInf(display, 0) || display < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, display)
	}
	// NewFromFloat keeps the shortest decimal form of the float, so 0.1 becomes
	// exactly 100000000000000000 rather than the binary expansion.
	return decimal.NewFromFloat(display).Shift(Decimals).BigInt(), nil
}

// Sanitize maps NaN and negative user input to zero.
func Sanitize(display float64) float64 {
	if math.IsNaN(display) || display < 0 {
		return 0
	}
	return display
}

// ParseDisplay parses free-form user input the way the amount fields do:
// anything unparseable, negative or NaN reads as zero.
func ParseDisplay(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return Sanitize(f)
}

// Format renders a fixed-point amount as an exact decimal string.
func Format(fixed *big.Int) string {
	if fixed == nil {
		return "0"
	}
	return decimal.NewFromBigInt(fixed, -Decimals).String()
}
