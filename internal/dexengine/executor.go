package dexengine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/contract"
	"github.com/aman-zulfiqar/simpledex-engine/internal/metrics"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
	"github.com/aman-zulfiqar/simpledex-engine/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Gateway is the write path of the pool and token. *contract.Gateway satisfies it.
type Gateway interface {
	ApprovePool(ctx context.Context, amount *big.Int) (*contract.Submission, error)
	AddLiquidity(ctx context.Context, tokenAmount, ethValue *big.Int) (*contract.Submission, error)
	RemoveLiquidity(ctx context.Context, lpAmount *big.Int) (*contract.Submission, error)
	SwapEthToToken(ctx context.Context, ethValue *big.Int) (*contract.Submission, error)
	SwapTokenToEth(ctx context.Context, tokenAmount *big.Int) (*contract.Submission, error)
}

// Snapshots is the synchronizer as seen by the engine. *state.Synchronizer satisfies it.
type Snapshots interface {
	Reserves() models.ReserveSnapshot
	Wallet() models.WalletSnapshot
	Connected() bool
	RefreshReserves(ctx context.Context) (models.ReserveSnapshot, error)
	RefreshWallet(ctx context.Context) (models.WalletSnapshot, error)
}

// PauseGuard reports operator switches. *flags.Store satisfies it.
type PauseGuard interface {
	Paused(ctx context.Context, kind string) (bool, error)
}

// TransitionObserver is called after every state change.
type TransitionObserver func(op OperationView, t Transition)

type plan struct {
	op *Operation

	// validate runs in Validating and converts amounts for the chain calls.
	validate func() error
	// riskValue returns the ETH value the operation moves; nil counts as zero.
	riskValue func() float64
	// approve returns the token allowance to confirm before act; nil skips approval.
	approve func() *big.Int
	act     func(ctx context.Context) (*contract.Submission, error)
	// settled runs once the confirmed operation has been re-read.
	settled func()
}

// Executor drives one operation through the state machine.
type Executor struct {
	gateway   Gateway
	snapshots Snapshots
	risk      *RiskManager
	guard     PauseGuard
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	observers []TransitionObserver
	onFinish  func(models.OperationRecord)
}

func NewExecutor(gateway Gateway, snapshots Snapshots, risk *RiskManager, m *metrics.Metrics, logger *logrus.Logger) *Executor {
	if risk == nil {
		risk = NewRiskManager(DefaultRiskConfig())
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Executor{
		gateway:   gateway,
		snapshots: snapshots,
		risk:      risk,
		metrics:   m,
		logger:    logger,
	}
}

// Execute runs p to completion. Once the first transaction is submitted the
// caller's cancellation is ignored and the operation runs to confirmation or
// failure.
func (x *Executor) Execute(ctx context.Context, p plan) (*Result, error) {
	op := p.op
	x.metrics.OperationStarted()
	defer x.metrics.OperationFinished()

	x.advance(op, StateValidating)
	if err := p.validate(); err != nil {
		return x.fail(op, err)
	}
	if !x.snapshots.Connected() {
		return x.fail(op, ErrWalletNotConnected)
	}
	if x.guard != nil {
		paused, err := x.guard.Paused(ctx, string(op.Kind))
		switch {
		case err != nil:
			x.logger.WithError(err).WithField("op", op.ID).Warn("pause switch unreadable, continuing")
		case paused:
			return x.fail(op, fmt.Errorf("%w: %s", ErrOperationPaused, op.Kind))
		}
	}
	value := 0.0
	if p.riskValue != nil {
		value = p.riskValue()
	}
	rc, release := x.risk.Reserve(value)
	if !rc.Allowed {
		return x.fail(op, fmt.Errorf("%w: %s", ErrRiskRejected, rc.Reason))
	}
	// The reservation counts against the daily limit unless the action confirms.
	confirmed := false
	defer func() {
		if !confirmed {
			release()
		}
	}()
	if err := ctx.Err(); err != nil {
		return x.fail(op, err)
	}

	wctx := context.WithoutCancel(ctx)

	if p.approve != nil {
		x.advance(op, StateApproving)
		allowance := p.approve()
		x.logger.WithFields(logrus.Fields{
			"op":        op.ID,
			"allowance": units.Format(allowance),
		}).Info("approving pool allowance")
		sub, err := x.gateway.ApprovePool(wctx, allowance)
		if err != nil {
			return x.fail(op, fmt.Errorf("%w: %w", ErrApprovalFailed, err))
		}
		op.setTx(&op.approveTx, sub.Hash)

		x.advance(op, StateAwaitingApproval)
		if _, err := sub.Wait(wctx); err != nil {
			return x.fail(op, fmt.Errorf("%w: %w", ErrApprovalFailed, err))
		}
	}

	x.advance(op, StateActing)
	sub, err := p.act(wctx)
	if err != nil {
		return x.fail(op, classifySubmitError(err))
	}
	op.setTx(&op.actionTx, sub.Hash)

	x.advance(op, StateAwaitingConfirmation)
	if _, err := sub.Wait(wctx); err != nil {
		return x.fail(op, classifyWaitError(err))
	}
	confirmed = true

	x.advance(op, StateSettling)
	reserves, w, refreshErr := x.settle(wctx, op)
	if p.settled != nil {
		p.settled()
	}
	x.advance(op, StateIdle)

	x.finish(op, true)
	res := x.result(op, true)
	res.Reserves = &reserves
	res.Wallet = &w
	if refreshErr != nil {
		res.RefreshError = refreshErr.Error()
	}
	return res, nil
}

// settle re-reads both snapshots exactly once. A failed refresh does not undo
// the confirmed operation; it is reported on the result.
func (x *Executor) settle(ctx context.Context, op *Operation) (models.ReserveSnapshot, models.WalletSnapshot, error) {
	reserves, rerr := x.snapshots.RefreshReserves(ctx)
	w, werr := x.snapshots.RefreshWallet(ctx)

	err := errors.Join(rerr, werr)
	if err != nil {
		x.logger.WithError(err).WithField("op", op.ID).Warn("post-settlement refresh failed")
	}
	return reserves, w, err
}

func (x *Executor) fail(op *Operation, err error) (*Result, error) {
	op.mu.Lock()
	op.err = err
	op.mu.Unlock()

	x.advance(op, StateFailed)
	x.logger.WithFields(logrus.Fields{
		"op":   op.ID,
		"kind": op.Kind,
		"err":  err.Error(),
	}).Warn("operation failed")
	x.advance(op, StateIdle)

	x.finish(op, false)
	return x.result(op, false), err
}

func (x *Executor) finish(op *Operation, success bool) {
	x.metrics.RecordOperation(string(op.Kind), success, time.Since(op.StartedAt))
	if x.onFinish != nil {
		x.onFinish(op.record(success, time.Now()))
	}
}

func (x *Executor) result(op *Operation, success bool) *Result {
	rec := op.record(success, time.Now())
	return &Result{
		ID:          rec.ID,
		Kind:        op.Kind,
		Success:     success,
		Error:       rec.Error,
		ErrorKind:   rec.ErrorKind,
		ApproveTx:   rec.ApproveTx,
		ActionTx:    rec.ActionTx,
		ExpectedOut: rec.ExpectedOut,
		Steps:       rec.Steps,
		Duration:    time.Since(op.StartedAt),
	}
}

func (x *Executor) advance(op *Operation, to State) {
	op.mu.Lock()
	from := op.state
	if !CanTransition(from, to) {
		x.logger.WithFields(logrus.Fields{"op": op.ID, "from": from, "to": to}).Error("illegal state transition")
	}
	t := Transition{From: from, To: to, At: time.Now()}
	op.state = to
	op.history = append(op.history, t)
	op.mu.Unlock()

	x.metrics.RecordTransition(to.String())
	x.logger.WithFields(logrus.Fields{
		"op":   op.ID,
		"kind": op.Kind,
		"from": from,
		"to":   to,
	}).Info("operation state changed")

	if len(x.observers) > 0 {
		view := op.View()
		for _, obs := range x.observers {
			obs(view, t)
		}
	}
}

func (op *Operation) setTx(dst *common.Hash, h common.Hash) {
	op.mu.Lock()
	*dst = h
	op.mu.Unlock()
}

func classifySubmitError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrSigningRejected):
		return fmt.Errorf("%w: %w", ErrSigningRejected, err)
	case errors.Is(err, wallet.ErrNotConnected):
		return fmt.Errorf("%w: %w", ErrWalletNotConnected, err)
	default:
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
}

func classifyWaitError(err error) error {
	if errors.Is(err, contract.ErrReverted) {
		return fmt.Errorf("%w: %w", ErrTransactionReverted, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
