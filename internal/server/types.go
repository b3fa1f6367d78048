package server

import (
	"github.com/aman-zulfiqar/simpledex-engine/internal/dexengine"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Kind    string `json:"kind,omitempty"`    // Stable error tag for engine failures
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK        bool `json:"ok"`        // Service health status
	Connected bool `json:"connected"` // Whether a signer is configured
	Pending   int  `json:"pending"`   // Operations in flight
}

// StateResponse carries both snapshots
type StateResponse struct {
	Reserves models.ReserveSnapshot `json:"reserves"`
	Wallet   models.WalletSnapshot  `json:"wallet"`
}

// SwapQuoteResponse represents a swap quote for the current reserves
type SwapQuoteResponse struct {
	Direction string  `json:"direction"`
	Input     float64 `json:"input"`
	Output    float64 `json:"output"`
	Source    string  `json:"source"` // snapshot or chain
}

// RedeemQuoteResponse represents the reserves returned for an LP amount
type RedeemQuoteResponse struct {
	LP       float64 `json:"lp"`
	EthOut   float64 `json:"eth_out"`
	TokenOut float64 `json:"token_out"`
}

// LiquidityQuoteResponse represents the token amount matching an ETH deposit
type LiquidityQuoteResponse struct {
	Eth           float64 `json:"eth"`
	RequiredToken float64 `json:"required_token"`
}

// AddLiquidityRequest represents a deposit of both assets
type AddLiquidityRequest struct {
	Eth   float64 `json:"eth"`   // ETH to deposit
	Token float64 `json:"token"` // Tokens to deposit, at least the pool ratio
}

// RemoveLiquidityRequest represents an LP redemption
type RemoveLiquidityRequest struct {
	LP float64 `json:"lp"` // LP tokens to burn
}

// SwapRequest represents a swap of one asset for the other
type SwapRequest struct {
	Direction string  `json:"direction"` // eth_to_token or token_to_eth
	Amount    float64 `json:"amount"`    // Amount of the input asset
}

// LiquidityInputRequest holds the liquidity form as typed. Unparseable,
// negative or empty amounts read as zero.
type LiquidityInputRequest struct {
	Eth   string `json:"eth"`
	Token string `json:"token"`
	LP    string `json:"lp"`
}

// SwapInputRequest holds the swap form as typed
type SwapInputRequest struct {
	Direction string `json:"direction"` // empty keeps eth_to_token
	Eth       string `json:"eth"`
	Token     string `json:"token"`
}

// SwapInputResponse is the stored swap form
type SwapInputResponse struct {
	Direction   string  `json:"direction"`
	EthAmount   float64 `json:"eth_amount"`
	TokenAmount float64 `json:"token_amount"`
}

// OperationResponse wraps a finished engine operation
type OperationResponse struct {
	Operation *dexengine.Result `json:"operation"`
	Error     string            `json:"error,omitempty"`
	Kind      string            `json:"kind,omitempty"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // Flag key (must match regex pattern)
	Value bool   `json:"value"` // Flag value (true/false)
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"` // New flag value
}
