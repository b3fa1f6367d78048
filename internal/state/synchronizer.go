// Package state owns the reserve and wallet snapshots. The Synchronizer is the
// only writer; everyone else reads copies or subscribes to updates.
package state

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/metrics"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
	"github.com/aman-zulfiqar/simpledex-engine/internal/storage"
	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PoolReader is the pool read path. *contract.Pool satisfies it.
type PoolReader interface {
	TotalSupply(ctx context.Context) (*big.Int, error)
	ETHsInContract(ctx context.Context) (*big.Int, error)
	TokensInContract(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// TokenReader is the token read path. *contract.Token satisfies it.
type TokenReader interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}

// Account is the signing capability seen from the read side. *wallet.Wallet satisfies it.
type Account interface {
	Address() common.Address
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	Network(ctx context.Context) (string, error)
}

// Config wires a Synchronizer.
type Config struct {
	Pool      PoolReader
	Token     TokenReader
	Account   Account                   // nil while no signer is configured
	Publisher storage.SnapshotPublisher // optional external fan-out
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger

	// SubscriberBuffer is the per-subscriber channel capacity.
	SubscriberBuffer int
}

// Synchronizer re-reads chain state and publishes consistent snapshots.
type Synchronizer struct {
	pool      PoolReader
	token     TokenReader
	account   Account
	publisher storage.SnapshotPublisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	bufSize   int

	mu       sync.RWMutex
	reserves models.ReserveSnapshot
	wallet   models.WalletSnapshot
	// Tickets are issued when a refresh starts. A result is published only if
	// its ticket is newer than the one behind the current snapshot.
	reserveIssued, reservePublished uint64
	walletIssued, walletPublished   uint64

	// Held from the ticket check through fan-out so subscribers and the
	// publisher see snapshots of one kind in ticket order.
	reserveOut, walletOut sync.Mutex

	subMu   sync.Mutex
	subs    map[int]chan models.SnapshotUpdate
	nextSub int
}

// NewSynchronizer creates a Synchronizer holding zeroed snapshots.
func NewSynchronizer(cfg Config) (*Synchronizer, error) {
	if cfg.Pool == nil || cfg.Token == nil {
		return nil, fmt.Errorf("state: pool and token readers are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 16
	}

	return &Synchronizer{
		pool:      cfg.Pool,
		token:     cfg.Token,
		account:   cfg.Account,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		bufSize:   cfg.SubscriberBuffer,
		reserves: models.ReserveSnapshot{
			EthPerToken: pricing.Unavailable,
			TokenPerEth: pricing.Unavailable,
		},
		wallet: models.DisconnectedWallet(),
		subs:   make(map[int]chan models.SnapshotUpdate),
	}, nil
}

// Reserves returns a copy of the current reserve snapshot.
func (s *Synchronizer) Reserves() models.ReserveSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reserves
}

// Wallet returns a copy of the current wallet snapshot.
func (s *Synchronizer) Wallet() models.WalletSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallet
}

// Connected reports whether a signer is configured.
func (s *Synchronizer) Connected() bool {
	return s.account != nil
}

// RefreshReserves reads LP supply and both pool reserves together. Any failed
// read discards the whole refresh and leaves the current snapshot in place.
func (s *Synchronizer) RefreshReserves(ctx context.Context) (models.ReserveSnapshot, error) {
	start := time.Now()
	ticket := s.issue(&s.reserveIssued)

	var supply, eth, tokens *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		supply, err = s.pool.TotalSupply(gctx)
		return err
	})
	g.Go(func() (err error) {
		eth, err = s.pool.ETHsInContract(gctx)
		return err
	})
	g.Go(func() (err error) {
		tokens, err = s.pool.TokensInContract(gctx)
		return err
	})

	err := g.Wait()
	s.metrics.RecordRefresh(string(models.SnapshotReserves), time.Since(start), err)
	if err != nil {
		s.logger.WithError(err).Warn("reserve refresh failed")
		return s.Reserves(), fmt.Errorf("refresh reserves: %w", err)
	}

	snap := models.ReserveSnapshot{
		EthReserve:   units.ToDisplay(eth),
		TokenReserve: units.ToDisplay(tokens),
		LPSupply:     units.ToDisplay(supply),
		UpdatedAt:    time.Now(),
	}
	snap.EthPerToken = pricing.SpotPrice(snap.TokenReserve, snap.EthReserve)
	snap.TokenPerEth = pricing.SpotPrice(snap.EthReserve, snap.TokenReserve)

	s.reserveOut.Lock()
	defer s.reserveOut.Unlock()

	s.mu.Lock()
	if ticket <= s.reservePublished {
		current := s.reserves
		s.mu.Unlock()
		s.metrics.RecordStale(string(models.SnapshotReserves))
		s.logger.WithField("ticket", ticket).Debug("discarding stale reserve refresh")
		return current, nil
	}
	s.reserves = snap
	s.reservePublished = ticket
	s.mu.Unlock()

	s.metrics.SetReserves(snap.EthReserve, snap.TokenReserve, snap.LPSupply)
	s.logger.WithFields(logrus.Fields{
		"eth":       snap.EthReserve,
		"token":     snap.TokenReserve,
		"lp_supply": snap.LPSupply,
	}).Debug("reserves refreshed")

	s.broadcast(ctx, models.SnapshotUpdate{Kind: models.SnapshotReserves, Reserves: &snap})
	return snap, nil
}

// RefreshWallet reads the signer's address, network and three balances. Any
// failed read discards the whole refresh. Without a signer the disconnected
// snapshot is published.
func (s *Synchronizer) RefreshWallet(ctx context.Context) (models.WalletSnapshot, error) {
	start := time.Now()
	ticket := s.issue(&s.walletIssued)

	snap := models.DisconnectedWallet()
	if s.account != nil {
		addr := s.account.Address()

		var (
			network           string
			eth, tokens, lpTk *big.Int
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			network, err = s.account.Network(gctx)
			return err
		})
		g.Go(func() (err error) {
			eth, err = s.account.Balance(gctx, addr)
			return err
		})
		g.Go(func() (err error) {
			tokens, err = s.token.BalanceOf(gctx, addr)
			return err
		})
		g.Go(func() (err error) {
			lpTk, err = s.pool.BalanceOf(gctx, addr)
			return err
		})

		err := g.Wait()
		s.metrics.RecordRefresh(string(models.SnapshotWallet), time.Since(start), err)
		if err != nil {
			s.logger.WithError(err).Warn("wallet refresh failed")
			return s.Wallet(), fmt.Errorf("refresh wallet: %w", err)
		}

		snap = models.WalletSnapshot{
			Connected:    true,
			Address:      addr.Hex(),
			Network:      network,
			EthBalance:   units.ToDisplay(eth),
			TokenBalance: units.ToDisplay(tokens),
			LPBalance:    units.ToDisplay(lpTk),
		}
	}
	snap.UpdatedAt = time.Now()

	s.walletOut.Lock()
	defer s.walletOut.Unlock()

	s.mu.Lock()
	if ticket <= s.walletPublished {
		current := s.wallet
		s.mu.Unlock()
		s.metrics.RecordStale(string(models.SnapshotWallet))
		s.logger.WithField("ticket", ticket).Debug("discarding stale wallet refresh")
		return current, nil
	}
	s.wallet = snap
	s.walletPublished = ticket
	s.mu.Unlock()

	s.broadcast(ctx, models.SnapshotUpdate{Kind: models.SnapshotWallet, Wallet: &snap})
	return snap, nil
}

// RefreshAll refreshes both snapshots concurrently. Each one publishes or
// fails on its own.
func (s *Synchronizer) RefreshAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.RefreshReserves(ctx)
		return err
	})
	g.Go(func() error {
		_, err := s.RefreshWallet(ctx)
		return err
	})
	return g.Wait()
}

// Subscribe returns a channel of snapshot updates and a cancel function.
// Slow subscribers miss updates rather than block publishing.
func (s *Synchronizer) Subscribe() (<-chan models.SnapshotUpdate, func()) {
	ch := make(chan models.SnapshotUpdate, s.bufSize)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Synchronizer) issue(counter *uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	*counter++
	return *counter
}

func (s *Synchronizer) broadcast(ctx context.Context, update models.SnapshotUpdate) {
	s.subMu.Lock()
	for id, ch := range s.subs {
		select {
		case ch <- update:
		default:
			s.logger.WithField("subscriber", id).Warn("subscriber full, dropping snapshot update")
		}
	}
	s.subMu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshot(context.WithoutCancel(ctx), &update); err != nil {
			s.logger.WithError(err).Warn("failed to publish snapshot")
		}
	}
}
