package dexengine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSwapDirection(t *testing.T) {
	for _, in := range []string{"eth_to_token", "E2T", " e2n "} {
		d, err := ParseSwapDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, EthToToken, d)
	}
	for _, in := range []string{"token_to_eth", "t2e", "N2E"} {
		d, err := ParseSwapDirection(in)
		require.NoError(t, err, in)
		assert.Equal(t, TokenToEth, d)
	}
	_, err := ParseSwapDirection("sideways")
	assert.Error(t, err)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateValidating))
	assert.True(t, CanTransition(StateValidating, StateActing))
	assert.True(t, CanTransition(StateAwaitingApproval, StateFailed))
	assert.True(t, CanTransition(StateSettling, StateIdle))

	assert.False(t, CanTransition(StateIdle, StateActing))
	assert.False(t, CanTransition(StateApproving, StateActing))
	assert.False(t, CanTransition(StateSettling, StateFailed))
	assert.False(t, CanTransition(StateFailed, StateValidating))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AwaitingConfirmation", StateAwaitingConfirmation.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestOperationKind_NeedsApproval(t *testing.T) {
	assert.True(t, KindAddLiquidity.NeedsApproval())
	assert.True(t, KindSwapTokenEth.NeedsApproval())
	assert.False(t, KindRedeem.NeedsApproval())
	assert.False(t, KindSwapEthToken.NeedsApproval())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
	assert.Equal(t, "zero_amount", ErrorKind(fmt.Errorf("wrapped: %w", ErrZeroAmount)))

	// approval outranks the underlying network failure
	err := fmt.Errorf("%w: %w", ErrApprovalFailed, ErrNetwork)
	assert.Equal(t, "approval_failed", ErrorKind(err))

	assert.Equal(t, "cancelled", ErrorKind(context.Canceled))
	assert.Equal(t, "deadline_exceeded", ErrorKind(context.DeadlineExceeded))
	// a wait that timed out is still a network failure
	assert.Equal(t, "network_error", ErrorKind(fmt.Errorf("%w: %w", ErrNetwork, context.DeadlineExceeded)))

	assert.True(t, IsValidation(ErrPoolUnavailable))
	assert.True(t, IsValidation(ErrOperationPaused))
	assert.False(t, IsValidation(ErrTransactionReverted))
}
