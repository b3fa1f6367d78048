package dexengine

import (
	"fmt"
	"math"

	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
)

func checkAmount(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s=%v", ErrInvalidAmount, name, v)
	}
	return nil
}

// ValidateAddLiquidity gates an add-liquidity request against the current
// reserves. The token amount must be at least the pool ratio; exactly the
// ratio is accepted. An empty pool accepts any ratio and sets the price.
func ValidateAddLiquidity(ethAmount, tokenAmount float64, reserves models.ReserveSnapshot) error {
	if err := checkAmount("eth", ethAmount); err != nil {
		return err
	}
	if err := checkAmount("token", tokenAmount); err != nil {
		return err
	}
	if ethAmount == 0 || tokenAmount == 0 {
		return fmt.Errorf("%w: eth and token amounts are both required", ErrZeroAmount)
	}
	if reserves.LPSupply > 0 {
		required := pricing.RequiredCounterpartForAddLiquidity(ethAmount, reserves.EthReserve, reserves.TokenReserve)
		if tokenAmount < required {
			return fmt.Errorf("%w: need at least %v tokens for %v ETH, got %v",
				ErrInsufficientCounterpart, required, ethAmount, tokenAmount)
		}
	}
	return nil
}

// ValidateRedeem gates a remove-liquidity request.
func ValidateRedeem(lpAmount float64, reserves models.ReserveSnapshot) error {
	if err := checkAmount("lp", lpAmount); err != nil {
		return err
	}
	if lpAmount == 0 {
		return fmt.Errorf("%w: lp amount is zero", ErrNothingToRedeem)
	}
	if reserves.LPSupply <= 0 {
		return fmt.Errorf("%w: pool has no LP supply", ErrNothingToRedeem)
	}
	return nil
}

// ValidateSwap gates a swap request. Swaps are refused while either spot
// price is unavailable.
func ValidateSwap(direction SwapDirection, amount float64, reserves models.ReserveSnapshot) error {
	switch direction {
	case EthToToken, TokenToEth:
	default:
		return fmt.Errorf("%w: unknown swap direction %s", ErrInvalidAmount, direction)
	}
	if err := checkAmount("amount", amount); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: swap amount is zero", ErrZeroAmount)
	}
	if !reserves.EthPerToken.Available || !reserves.TokenPerEth.Available {
		return ErrPoolUnavailable
	}
	return nil
}

// expectedSwapOutput quotes amount against the snapshot for direction.
func expectedSwapOutput(direction SwapDirection, amount float64, reserves models.ReserveSnapshot) float64 {
	switch direction {
	case EthToToken:
		return pricing.QuoteSwapOutput(amount, reserves.EthReserve, reserves.TokenReserve)
	case TokenToEth:
		return pricing.QuoteSwapOutput(amount, reserves.TokenReserve, reserves.EthReserve)
	default:
		return 0
	}
}
