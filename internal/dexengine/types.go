package dexengine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/ethereum/go-ethereum/common"
)

// SwapDirection selects which asset is sold.
type SwapDirection int

const (
	EthToToken SwapDirection = iota + 1
	TokenToEth
)

func (d SwapDirection) String() string {
	switch d {
	case EthToToken:
		return "eth_to_token"
	case TokenToEth:
		return "token_to_eth"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseSwapDirection accepts "eth_to_token" / "token_to_eth" and the short
// forms "e2t" / "t2e".
func ParseSwapDirection(s string) (SwapDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eth_to_token", "e2t", "e2n":
		return EthToToken, nil
	case "token_to_eth", "t2e", "n2e":
		return TokenToEth, nil
	default:
		return 0, fmt.Errorf("unknown swap direction %q", s)
	}
}

// OperationKind names the four engine operations.
type OperationKind string

const (
	KindAddLiquidity OperationKind = "add_liquidity"
	KindRedeem       OperationKind = "redeem"
	KindSwapEthToken OperationKind = "swap_eth_to_token"
	KindSwapTokenEth OperationKind = "swap_token_to_eth"
)

// NeedsApproval reports whether the kind spends the signer's tokens.
func (k OperationKind) NeedsApproval() bool {
	return k == KindAddLiquidity || k == KindSwapTokenEth
}

func kindForDirection(d SwapDirection) OperationKind {
	if d == TokenToEth {
		return KindSwapTokenEth
	}
	return KindSwapEthToken
}

// State is a step of the operation state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateApproving
	StateAwaitingApproval
	StateActing
	StateAwaitingConfirmation
	StateSettling
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                 "Idle",
	StateValidating:           "Validating",
	StateApproving:            "Approving",
	StateAwaitingApproval:     "AwaitingApproval",
	StateActing:               "Acting",
	StateAwaitingConfirmation: "AwaitingConfirmation",
	StateSettling:             "Settling",
	StateFailed:               "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateIdle:                 {StateValidating},
	StateValidating:           {StateApproving, StateActing, StateFailed},
	StateApproving:            {StateAwaitingApproval, StateFailed},
	StateAwaitingApproval:     {StateActing, StateFailed},
	StateActing:               {StateAwaitingConfirmation, StateFailed},
	StateAwaitingConfirmation: {StateSettling, StateFailed},
	StateSettling:             {StateIdle},
	StateFailed:               {StateIdle},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Operation is a single in-flight state machine instance.
type Operation struct {
	ID        string
	Kind      OperationKind
	StartedAt time.Time

	EthAmount   float64
	TokenAmount float64
	LPAmount    float64
	ExpectedOut float64

	mu        sync.Mutex
	state     State
	history   []Transition
	approveTx common.Hash
	actionTx  common.Hash
	err       error
}

// OperationView is a point-in-time copy of an Operation.
type OperationView struct {
	ID        string        `json:"id"`
	Kind      OperationKind `json:"kind"`
	State     State         `json:"state"`
	ApproveTx string        `json:"approve_tx,omitempty"`
	ActionTx  string        `json:"action_tx,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	History   []Transition  `json:"history"`
}

func (op *Operation) State() State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// View copies the operation for readers outside the executor.
func (op *Operation) View() OperationView {
	op.mu.Lock()
	defer op.mu.Unlock()
	v := OperationView{
		ID:        op.ID,
		Kind:      op.Kind,
		State:     op.state,
		StartedAt: op.StartedAt,
		History:   append([]Transition(nil), op.history...),
	}
	if op.approveTx != (common.Hash{}) {
		v.ApproveTx = op.approveTx.Hex()
	}
	if op.actionTx != (common.Hash{}) {
		v.ActionTx = op.actionTx.Hex()
	}
	return v
}

func (op *Operation) record(success bool, finished time.Time) models.OperationRecord {
	v := op.View()
	rec := models.OperationRecord{
		ID:          v.ID,
		Kind:        string(v.Kind),
		Success:     success,
		EthAmount:   op.EthAmount,
		TokenAmount: op.TokenAmount,
		LPAmount:    op.LPAmount,
		ExpectedOut: op.ExpectedOut,
		ApproveTx:   v.ApproveTx,
		ActionTx:    v.ActionTx,
		StartedAt:   v.StartedAt,
		FinishedAt:  finished,
		DurationMS:  finished.Sub(v.StartedAt).Milliseconds(),
		State:       "succeeded",
	}
	for _, t := range v.History {
		rec.Steps = append(rec.Steps, t.To.String())
	}
	if !success {
		rec.State = "failed"
		op.mu.Lock()
		if op.err != nil {
			rec.Error = op.err.Error()
			rec.ErrorKind = ErrorKind(op.err)
		}
		op.mu.Unlock()
	}
	return rec
}

// LiquidityInput is the session's pending liquidity form.
type LiquidityInput struct {
	EthAmount   float64 `json:"eth_amount"`
	TokenAmount float64 `json:"token_amount"`
	LPAmount    float64 `json:"lp_amount"`
}

// SwapInput is the session's pending swap form.
type SwapInput struct {
	Direction   SwapDirection `json:"-"`
	EthAmount   float64       `json:"eth_amount"`
	TokenAmount float64       `json:"token_amount"`
}

// Result is returned to the caller when an operation finishes.
type Result struct {
	ID        string        `json:"id"`
	Kind      OperationKind `json:"kind"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`

	ApproveTx   string  `json:"approve_tx,omitempty"`
	ActionTx    string  `json:"action_tx,omitempty"`
	ExpectedOut float64 `json:"expected_out"`

	Steps    []string      `json:"steps"`
	Duration time.Duration `json:"duration"`

	// RefreshError is set when the chain mutation confirmed but re-reading
	// state afterwards failed.
	RefreshError string                  `json:"refresh_error,omitempty"`
	Reserves     *models.ReserveSnapshot `json:"reserves,omitempty"`
	Wallet       *models.WalletSnapshot  `json:"wallet,omitempty"`
}

// RiskCheckResult contains risk validation outcome
type RiskCheckResult struct {
	Allowed bool
	Reason  string

	ValueETH float64

	ExceedsMaxOperation bool
	MaxOperationETH     float64

	ExceedsDailyLimit bool
	DailyLimitETH     float64
	DailyUsedETH      float64
	DailyRemainingETH float64
}
