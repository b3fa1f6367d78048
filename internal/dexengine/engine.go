package dexengine

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/contract"
	"github.com/aman-zulfiqar/simpledex-engine/internal/metrics"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
	"github.com/aman-zulfiqar/simpledex-engine/internal/storage"
	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
	"github.com/sirupsen/logrus"
)

// ChainQuoter asks the pool contract for a swap quote. *contract.Pool satisfies it.
type ChainQuoter interface {
	AmountOfTokens(ctx context.Context, input, inputReserve, outputReserve *big.Int) (*big.Int, error)
}

// Deps are the collaborators of an Engine. Gateway and Snapshots are required.
type Deps struct {
	Gateway   Gateway
	Snapshots Snapshots
	Quoter    ChainQuoter
	Guard     PauseGuard

	Cache storage.OperationCache
	Store storage.OperationStore

	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
	Observers []TransitionObserver
}

// EngineConfig holds engine tuning
type EngineConfig struct {
	Risk RiskConfig

	// HistorySize bounds the in-memory list of finished operations
	HistorySize int

	// JournalTimeout bounds each best-effort write to the cache and store
	JournalTimeout time.Duration
}

// DefaultEngineConfig returns sensible defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Risk:           DefaultRiskConfig(),
		HistorySize:    100,
		JournalTimeout: 5 * time.Second,
	}
}

// Engine is the session-level orchestrator: it gates, quotes and runs
// liquidity and swap operations against one pool.
type Engine struct {
	cfg       EngineConfig
	gateway   Gateway
	snapshots Snapshots
	quoter    ChainQuoter
	cache     storage.OperationCache
	store     storage.OperationStore
	risk      *RiskManager
	executor  *Executor
	logger    *logrus.Logger

	seq atomic.Uint64

	mu        sync.Mutex
	pending   map[string]*Operation
	history   []models.OperationRecord
	liquidity LiquidityInput
	swap      SwapInput
}

// New creates an engine from deps.
func New(deps Deps, cfg EngineConfig) (*Engine, error) {
	if deps.Gateway == nil {
		return nil, fmt.Errorf("dexengine: gateway is required")
	}
	if deps.Snapshots == nil {
		return nil, fmt.Errorf("dexengine: snapshots are required")
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.JournalTimeout <= 0 {
		cfg.JournalTimeout = 5 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	risk := NewRiskManager(cfg.Risk)
	e := &Engine{
		cfg:       cfg,
		gateway:   deps.Gateway,
		snapshots: deps.Snapshots,
		quoter:    deps.Quoter,
		cache:     deps.Cache,
		store:     deps.Store,
		risk:      risk,
		logger:    deps.Logger,
		pending:   make(map[string]*Operation),
		swap:      SwapInput{Direction: EthToToken},
	}

	e.executor = NewExecutor(deps.Gateway, deps.Snapshots, risk, deps.Metrics, deps.Logger)
	e.executor.guard = deps.Guard
	e.executor.observers = append(e.executor.observers, deps.Observers...)
	e.executor.onFinish = e.journal
	return e, nil
}

// AddLiquidity deposits ethAmount ETH and tokenAmount tokens. The token
// allowance is approved and confirmed before the deposit is submitted.
func (e *Engine) AddLiquidity(ctx context.Context, ethAmount, tokenAmount float64) (*Result, error) {
	op := e.newOperation(KindAddLiquidity)
	op.EthAmount = ethAmount
	op.TokenAmount = tokenAmount

	var ethWei, tokenWei *big.Int
	return e.run(ctx, plan{
		op: op,
		validate: func() (err error) {
			if err = ValidateAddLiquidity(ethAmount, tokenAmount, e.snapshots.Reserves()); err != nil {
				return err
			}
			if ethWei, err = units.ToFixed(ethAmount); err != nil {
				return err
			}
			tokenWei, err = units.ToFixed(tokenAmount)
			return err
		},
		riskValue: func() float64 { return ethAmount },
		approve:   func() *big.Int { return tokenWei },
		act: func(ctx context.Context) (*contract.Submission, error) {
			return e.gateway.AddLiquidity(ctx, tokenWei, ethWei)
		},
		settled: e.ClearLiquidityInput,
	})
}

// Redeem burns lpAmount LP tokens for the pro-rata share of both reserves.
func (e *Engine) Redeem(ctx context.Context, lpAmount float64) (*Result, error) {
	op := e.newOperation(KindRedeem)
	op.LPAmount = lpAmount

	var lpWei *big.Int
	var quote pricing.RedeemQuote
	return e.run(ctx, plan{
		op: op,
		validate: func() (err error) {
			reserves := e.snapshots.Reserves()
			if err = ValidateRedeem(lpAmount, reserves); err != nil {
				return err
			}
			quote, err = pricing.QuoteRedeemOutput(lpAmount, reserves.LPSupply, reserves.EthReserve, reserves.TokenReserve)
			if err != nil {
				return err
			}
			op.ExpectedOut = quote.EthOut
			lpWei, err = units.ToFixed(lpAmount)
			return err
		},
		act: func(ctx context.Context) (*contract.Submission, error) {
			return e.gateway.RemoveLiquidity(ctx, lpWei)
		},
		settled: e.ClearLiquidityInput,
	})
}

// Swap sells amount of the input asset selected by direction. Selling tokens
// requires a confirmed approval first.
func (e *Engine) Swap(ctx context.Context, direction SwapDirection, amount float64) (*Result, error) {
	op := e.newOperation(kindForDirection(direction))
	if direction == TokenToEth {
		op.TokenAmount = amount
	} else {
		op.EthAmount = amount
	}

	var amountWei *big.Int
	p := plan{
		op: op,
		validate: func() (err error) {
			reserves := e.snapshots.Reserves()
			if err = ValidateSwap(direction, amount, reserves); err != nil {
				return err
			}
			op.ExpectedOut = expectedSwapOutput(direction, amount, reserves)
			amountWei, err = units.ToFixed(amount)
			return err
		},
		settled: e.ClearSwapInput,
	}

	switch direction {
	case TokenToEth:
		// the ETH leg is the quoted output
		p.riskValue = func() float64 { return op.ExpectedOut }
		p.approve = func() *big.Int { return amountWei }
		p.act = func(ctx context.Context) (*contract.Submission, error) {
			return e.gateway.SwapTokenToEth(ctx, amountWei)
		}
	default:
		p.riskValue = func() float64 { return amount }
		p.act = func(ctx context.Context) (*contract.Submission, error) {
			return e.gateway.SwapEthToToken(ctx, amountWei)
		}
	}

	return e.run(ctx, p)
}

func (e *Engine) run(ctx context.Context, p plan) (*Result, error) {
	e.mu.Lock()
	e.pending[p.op.ID] = p.op
	e.mu.Unlock()

	return e.executor.Execute(ctx, p)
}

func (e *Engine) newOperation(kind OperationKind) *Operation {
	now := time.Now()
	return &Operation{
		ID:        fmt.Sprintf("op_%d_%d", now.UnixNano(), e.seq.Add(1)),
		Kind:      kind,
		StartedAt: now,
		state:     StateIdle,
	}
}

// journal keeps the finished record in memory and mirrors it best-effort.
func (e *Engine) journal(rec models.OperationRecord) {
	e.mu.Lock()
	delete(e.pending, rec.ID)
	e.history = append(e.history, rec)
	if over := len(e.history) - e.cfg.HistorySize; over > 0 {
		e.history = append([]models.OperationRecord(nil), e.history[over:]...)
	}
	e.mu.Unlock()

	if e.cache == nil && e.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.JournalTimeout)
	defer cancel()

	if e.cache != nil {
		if err := e.cache.AddRecentOperation(ctx, &rec); err != nil {
			e.logger.WithError(err).WithField("op", rec.ID).Warn("cache operation failed")
		}
		if err := e.cache.PublishOperation(ctx, &rec); err != nil {
			e.logger.WithError(err).WithField("op", rec.ID).Warn("publish operation failed")
		}
	}
	if e.store != nil {
		if err := e.store.InsertOperation(ctx, &rec); err != nil {
			e.logger.WithError(err).WithField("op", rec.ID).Warn("journal operation failed")
		}
	}
}

// QuoteSwap quotes amount of the input asset against the current reserves.
func (e *Engine) QuoteSwap(direction SwapDirection, amount float64) (pricing.SwapQuote, error) {
	reserves := e.snapshots.Reserves()
	if err := ValidateSwap(direction, amount, reserves); err != nil {
		return pricing.SwapQuote{}, err
	}
	return pricing.SwapQuote{
		InputAmount:  amount,
		OutputAmount: expectedSwapOutput(direction, amount, reserves),
	}, nil
}

// QuoteRedeem quotes the reserves returned for lpAmount. An empty pool quotes zero.
func (e *Engine) QuoteRedeem(lpAmount float64) (pricing.RedeemQuote, error) {
	if err := checkAmount("lp", lpAmount); err != nil {
		return pricing.RedeemQuote{}, err
	}
	reserves := e.snapshots.Reserves()
	if reserves.LPSupply <= 0 {
		return pricing.RedeemQuote{}, nil
	}
	return pricing.QuoteRedeemOutput(lpAmount, reserves.LPSupply, reserves.EthReserve, reserves.TokenReserve)
}

// RequiredTokenAmount returns the token amount that keeps the pool ratio for
// ethAmount. An empty pool accepts any ratio and returns zero.
func (e *Engine) RequiredTokenAmount(ethAmount float64) (float64, error) {
	if err := checkAmount("eth", ethAmount); err != nil {
		return 0, err
	}
	reserves := e.snapshots.Reserves()
	if reserves.LPSupply <= 0 || reserves.EthReserve <= 0 {
		return 0, nil
	}
	return pricing.RequiredCounterpartForAddLiquidity(ethAmount, reserves.EthReserve, reserves.TokenReserve), nil
}

// QuoteSwapOnChain asks the pool contract to price the swap, using the
// current reserve snapshot.
func (e *Engine) QuoteSwapOnChain(ctx context.Context, direction SwapDirection, amount float64) (float64, error) {
	if e.quoter == nil {
		return 0, ErrQuoterUnavailable
	}
	reserves := e.snapshots.Reserves()
	if err := ValidateSwap(direction, amount, reserves); err != nil {
		return 0, err
	}

	inR, outR := reserves.EthReserve, reserves.TokenReserve
	if direction == TokenToEth {
		inR, outR = outR, inR
	}

	vals := make([]*big.Int, 3)
	for i, v := range []float64{amount, inR, outR} {
		wei, err := units.ToFixed(v)
		if err != nil {
			return 0, err
		}
		vals[i] = wei
	}

	out, err := e.quoter.AmountOfTokens(ctx, vals[0], vals[1], vals[2])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return units.ToDisplay(out), nil
}

// SetLiquidityInput stores the pending liquidity form.
func (e *Engine) SetLiquidityInput(in LiquidityInput) {
	in.EthAmount = units.Sanitize(in.EthAmount)
	in.TokenAmount = units.Sanitize(in.TokenAmount)
	in.LPAmount = units.Sanitize(in.LPAmount)

	e.mu.Lock()
	e.liquidity = in
	e.mu.Unlock()
}

func (e *Engine) LiquidityInput() LiquidityInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.liquidity
}

func (e *Engine) ClearLiquidityInput() {
	e.mu.Lock()
	e.liquidity = LiquidityInput{}
	e.mu.Unlock()
}

// SetSwapInput stores the pending swap form.
func (e *Engine) SetSwapInput(in SwapInput) {
	in.EthAmount = units.Sanitize(in.EthAmount)
	in.TokenAmount = units.Sanitize(in.TokenAmount)
	if in.Direction != TokenToEth {
		in.Direction = EthToToken
	}

	e.mu.Lock()
	e.swap = in
	e.mu.Unlock()
}

func (e *Engine) SwapInput() SwapInput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swap
}

// ClearSwapInput resets the amounts and keeps the selected direction.
func (e *Engine) ClearSwapInput() {
	e.mu.Lock()
	e.swap = SwapInput{Direction: e.swap.Direction}
	e.mu.Unlock()
}

// Pending returns the operations that have not finished, oldest first.
func (e *Engine) Pending() []OperationView {
	e.mu.Lock()
	ops := make([]*Operation, 0, len(e.pending))
	for _, op := range e.pending {
		ops = append(ops, op)
	}
	e.mu.Unlock()

	views := make([]OperationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, op.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].StartedAt.Before(views[j].StartedAt) })
	return views
}

// RecentOperations returns up to limit finished records, newest first. The
// cache is preferred when configured since it outlives the process.
func (e *Engine) RecentOperations(ctx context.Context, limit int) ([]models.OperationRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	if e.cache != nil {
		recs, err := e.cache.GetRecentOperations(ctx, int64(limit))
		if err == nil {
			out := make([]models.OperationRecord, 0, len(recs))
			for _, r := range recs {
				if r != nil {
					out = append(out, *r)
				}
			}
			return out, nil
		}
		e.logger.WithError(err).Warn("recent operations from cache failed, using memory")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	n := min(limit, len(e.history))
	out := make([]models.OperationRecord, 0, n)
	for i := len(e.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, e.history[i])
	}
	return out, nil
}

// RiskStatus returns current risk limits and usage
func (e *Engine) RiskStatus() RiskStatus {
	return e.risk.Status()
}

// Snapshots exposes the synchronizer the engine reads from.
func (e *Engine) Snapshots() Snapshots {
	return e.snapshots
}

// Close releases the cache and store.
func (e *Engine) Close() error {
	var errs []error
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
