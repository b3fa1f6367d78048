package dexengine

import (
	"context"
	"errors"

	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
)

var (
	// ErrInvalidAmount is a malformed or negative user amount.
	ErrInvalidAmount = units.ErrInvalidAmount

	ErrZeroAmount              = errors.New("amount must be greater than zero")
	ErrInsufficientCounterpart = errors.New("token amount below the pool ratio")
	ErrNothingToRedeem         = errors.New("nothing to redeem")
	ErrPoolUnavailable         = errors.New("pool has no liquidity to price this swap")
	ErrRiskRejected            = errors.New("risk check rejected")
	ErrOperationPaused         = errors.New("operation paused by operator")

	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrSigningRejected    = errors.New("signing rejected")

	ErrApprovalFailed      = errors.New("token approval failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrNetwork             = errors.New("network error")
	ErrSubmission          = errors.New("transaction submission failed")

	ErrQuoterUnavailable = errors.New("on-chain quoter not configured")
)

// kinds is ordered so that the outermost classification wins: an approval
// that failed on a network hiccup reports approval_failed.
var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrZeroAmount, "zero_amount"},
	{ErrInsufficientCounterpart, "insufficient_counterpart"},
	{ErrNothingToRedeem, "nothing_to_redeem"},
	{ErrPoolUnavailable, "pool_unavailable"},
	{ErrRiskRejected, "risk_rejected"},
	{ErrOperationPaused, "operation_paused"},
	{ErrApprovalFailed, "approval_failed"},
	{ErrTransactionReverted, "transaction_reverted"},
	{ErrWalletNotConnected, "wallet_not_connected"},
	{ErrSigningRejected, "signing_rejected"},
	{ErrSubmission, "submission_error"},
	{ErrNetwork, "network_error"},
	{ErrQuoterUnavailable, "quoter_unavailable"},
	// Caller gave up before the first submit.
	{context.Canceled, "cancelled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
}

// ErrorKind returns a stable tag for err, or "internal" when it matches none.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsValidation reports whether err was raised before any chain call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrZeroAmount) ||
		errors.Is(err, ErrInsufficientCounterpart) ||
		errors.Is(err, ErrNothingToRedeem) ||
		errors.Is(err, ErrPoolUnavailable) ||
		errors.Is(err, ErrRiskRejected) ||
		errors.Is(err, ErrOperationPaused) ||
		errors.Is(err, ErrWalletNotConnected)
}
