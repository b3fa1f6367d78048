package dexengine

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"

	"github.com/aman-zulfiqar/simpledex-engine/internal/contract"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
	"github.com/aman-zulfiqar/simpledex-engine/internal/rpc"
	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func poolOf(eth, token, lp float64) models.ReserveSnapshot {
	return models.ReserveSnapshot{
		EthReserve:   eth,
		TokenReserve: token,
		LPSupply:     lp,
		EthPerToken:  pricing.SpotPrice(token, eth),
		TokenPerEth:  pricing.SpotPrice(eth, token),
	}
}

func wei(v float64) *big.Int {
	out, _ := units.ToFixed(v)
	return out
}

// fakeChain is a Gateway whose submissions confirm through itself.
type fakeChain struct {
	mu     sync.Mutex
	calls  []string
	args   map[string][]*big.Int
	ctxErr map[string]error
	byHash map[common.Hash]string
	n      int64

	submitErr map[string]error
	waitErr   map[string]error
	reverts   map[string]bool

	// onWait runs before a receipt for method is returned.
	onWait func(method string)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		args:      make(map[string][]*big.Int),
		ctxErr:    make(map[string]error),
		byHash:    make(map[common.Hash]string),
		submitErr: make(map[string]error),
		waitErr:   make(map[string]error),
		reverts:   make(map[string]bool),
	}
}

func (f *fakeChain) submit(ctx context.Context, method string, args ...*big.Int) (*contract.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	f.args[method] = args
	f.ctxErr[method] = ctx.Err()
	if err := f.submitErr[method]; err != nil {
		return nil, err
	}
	f.n++
	h := common.BigToHash(big.NewInt(f.n))
	f.byHash[h] = method
	return contract.NewSubmission(method, h, f), nil
}

func (f *fakeChain) WaitForReceipt(_ context.Context, h common.Hash) (*rpc.Receipt, error) {
	f.mu.Lock()
	method := f.byHash[h]
	waitErr, reverted, hook := f.waitErr[method], f.reverts[method], f.onWait
	f.mu.Unlock()

	if hook != nil {
		hook(method)
	}
	if waitErr != nil {
		return nil, waitErr
	}
	r := &rpc.Receipt{TransactionHash: h, Status: 1}
	if reverted {
		r.Status = 0
	}
	return r, nil
}

func (f *fakeChain) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeChain) ApprovePool(ctx context.Context, amount *big.Int) (*contract.Submission, error) {
	return f.submit(ctx, "approve", amount)
}

func (f *fakeChain) AddLiquidity(ctx context.Context, tokenAmount, ethValue *big.Int) (*contract.Submission, error) {
	return f.submit(ctx, "addLiquidity", tokenAmount, ethValue)
}

func (f *fakeChain) RemoveLiquidity(ctx context.Context, lpAmount *big.Int) (*contract.Submission, error) {
	return f.submit(ctx, "removeLiquidity", lpAmount)
}

func (f *fakeChain) SwapEthToToken(ctx context.Context, ethValue *big.Int) (*contract.Submission, error) {
	return f.submit(ctx, "swapEthToToken", ethValue)
}

func (f *fakeChain) SwapTokenToEth(ctx context.Context, tokenAmount *big.Int) (*contract.Submission, error) {
	return f.submit(ctx, "swapTokenToEth", tokenAmount)
}

// fakeSnapshots counts refreshes and serves fixed snapshots.
type fakeSnapshots struct {
	mu        sync.Mutex
	reserves  models.ReserveSnapshot
	wallet    models.WalletSnapshot
	connected bool

	reserveRefreshes int
	walletRefreshes  int
	refreshErr       error
}

func newFakeSnapshots(reserves models.ReserveSnapshot) *fakeSnapshots {
	return &fakeSnapshots{
		reserves:  reserves,
		wallet:    models.WalletSnapshot{Connected: true, Address: "0xabc", EthBalance: 5},
		connected: true,
	}
}

func (f *fakeSnapshots) Reserves() models.ReserveSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserves
}

func (f *fakeSnapshots) Wallet() models.WalletSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wallet
}

func (f *fakeSnapshots) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSnapshots) RefreshReserves(context.Context) (models.ReserveSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserveRefreshes++
	return f.reserves, f.refreshErr
}

func (f *fakeSnapshots) RefreshWallet(context.Context) (models.WalletSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletRefreshes++
	return f.wallet, f.refreshErr
}

func (f *fakeSnapshots) refreshes() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reserveRefreshes, f.walletRefreshes
}

type fakeGuard struct {
	paused map[string]bool
	err    error
}

func (g *fakeGuard) Paused(_ context.Context, kind string) (bool, error) {
	return g.paused[kind], g.err
}

type fakeQuoter struct {
	in, inR, outR *big.Int
	out           *big.Int
}

func (q *fakeQuoter) AmountOfTokens(_ context.Context, input, inputReserve, outputReserve *big.Int) (*big.Int, error) {
	q.in, q.inR, q.outR = input, inputReserve, outputReserve
	if q.out == nil {
		return nil, errors.New("execution reverted")
	}
	return q.out, nil
}

// memJournal is an OperationCache and OperationStore kept in memory.
type memJournal struct {
	mu        sync.Mutex
	recent    []*models.OperationRecord
	published int
	inserted  int
	closed    int
}

func (m *memJournal) AddRecentOperation(_ context.Context, op *models.OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append([]*models.OperationRecord{op}, m.recent...)
	return nil
}

func (m *memJournal) GetRecentOperations(_ context.Context, limit int64) ([]*models.OperationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(len(m.recent)) < limit {
		limit = int64(len(m.recent))
	}
	return m.recent[:limit], nil
}

func (m *memJournal) PublishOperation(context.Context, *models.OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
	return nil
}

func (m *memJournal) InsertOperation(context.Context, *models.OperationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted++
	return nil
}

func (m *memJournal) Ping(context.Context) error { return nil }

func (m *memJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}
