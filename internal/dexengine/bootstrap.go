package dexengine

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/simpledex-engine/internal/cache"
	"github.com/aman-zulfiqar/simpledex-engine/internal/config"
	"github.com/aman-zulfiqar/simpledex-engine/internal/contract"
	"github.com/aman-zulfiqar/simpledex-engine/internal/flags"
	"github.com/aman-zulfiqar/simpledex-engine/internal/metrics"
	"github.com/aman-zulfiqar/simpledex-engine/internal/rpc"
	"github.com/aman-zulfiqar/simpledex-engine/internal/state"
	"github.com/aman-zulfiqar/simpledex-engine/internal/storage"
	"github.com/aman-zulfiqar/simpledex-engine/internal/stream"
	"github.com/aman-zulfiqar/simpledex-engine/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Runtime is a fully wired engine with the infrastructure behind it.
type Runtime struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Metrics *metrics.Metrics

	Client  *rpc.Client
	Wallet  *wallet.Wallet // nil when no key is configured
	Gateway *contract.Gateway
	Sync    *state.Synchronizer
	Engine  *Engine
	Blocks  storage.BlockSource

	Redis      *cache.RedisCache      // nil when REDIS_ADDR is empty
	Flags      *flags.Store           // nil without Redis
	ClickHouse *cache.ClickHouseStore // nil when CLICKHOUSE_ADDR is empty
}

// Build wires every component from cfg. Redis and ClickHouse are optional;
// without a private key the engine runs read-only.
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger, Metrics: metrics.New("simpledex")}

	// 1. Chain access
	rt.Client = rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	// 2. Signer. The interfaces below must see a literal nil, not a typed
	// nil *wallet.Wallet, when no key is configured.
	var (
		sender  contract.Sender
		account state.Account
	)
	if cfg.HasWallet() {
		w, err := wallet.NewWallet(rt.Client, wallet.WalletConfig{
			PrivateKey:   cfg.WalletPrivateKey,
			ChainID:      cfg.ChainIDBig(),
			NetworkName:  cfg.NetworkName,
			PollInterval: cfg.ConfirmPollInterval,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		rt.Wallet = w
		sender, account = w, w
		logger.WithField("address", w.Address().Hex()).Info("wallet connected")
	} else {
		logger.Warn("WALLET_PRIVATE_KEY not set, running read-only")
	}

	// 3. Contracts
	gw, err := contract.NewGateway(
		common.HexToAddress(cfg.PoolAddress),
		common.HexToAddress(cfg.TokenAddress),
		rt.Client,
		sender,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind contracts: %w", err)
	}
	rt.Gateway = gw

	// 4. Optional Redis: snapshot fan-out, recent operations and pause switches
	var (
		publisher storage.SnapshotPublisher
		opCache   storage.OperationCache
		guard     PauseGuard
	)
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		fs, err := flags.NewStore(rc.Client())
		if err != nil {
			_ = rc.Close()
			return nil, fmt.Errorf("failed to create flags store: %w", err)
		}
		rt.Redis, rt.Flags = rc, fs
		publisher, opCache, guard = rc, rc, fs
	}

	// 5. Optional ClickHouse journal
	var opStore storage.OperationStore
	if cfg.ClickHouseAddr != "" {
		ch, err := cache.NewClickHouseStore(ctx, cache.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			rt.closeStores()
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		if err := ch.EnsureSchema(ctx); err != nil {
			_ = ch.Close()
			rt.closeStores()
			return nil, err
		}
		rt.ClickHouse = ch
		opStore = ch
	}

	// 6. Snapshots
	rt.Sync, err = state.NewSynchronizer(state.Config{
		Pool:      gw.Pool,
		Token:     gw.Token,
		Account:   account,
		Publisher: publisher,
		Metrics:   rt.Metrics,
		Logger:    logger,
	})
	if err != nil {
		rt.closeStores()
		return nil, err
	}

	// 7. Engine
	engCfg := DefaultEngineConfig()
	engCfg.Risk = RiskConfig{
		MaxOperationETH: cfg.RiskMaxOperationETH,
		DailyLimitETH:   cfg.RiskDailyLimitETH,
	}
	rt.Engine, err = New(Deps{
		Gateway:   gw,
		Snapshots: rt.Sync,
		Quoter:    gw.Pool,
		Guard:     guard,
		Cache:     opCache,
		Store:     opStore,
		Metrics:   rt.Metrics,
		Logger:    logger,
	}, engCfg)
	if err != nil {
		rt.closeStores()
		return nil, err
	}

	// 8. Block source
	if cfg.WSUrl != "" {
		rt.Blocks = stream.NewHeadStream(stream.HeadStreamConfig{URL: cfg.WSUrl, Metrics: rt.Metrics, Logger: logger})
	} else {
		rt.Blocks = stream.NewBlockPoller(stream.BlockPollerConfig{
			Client:       rt.Client,
			PollInterval: cfg.WatchInterval,
			Metrics:      rt.Metrics,
			Logger:       logger,
		})
	}

	return rt, nil
}

// Watch refreshes both snapshots on every new block until ctx ends.
func (rt *Runtime) Watch(ctx context.Context) error {
	return rt.Blocks.Start(ctx, func(ctx context.Context, block uint64) {
		if err := rt.Sync.RefreshAll(ctx); err != nil {
			rt.Logger.WithError(err).WithField("block", block).Warn("refresh on new block failed")
		}
	})
}

// TokenInfo reads the LP token metadata.
func (rt *Runtime) TokenInfo(ctx context.Context) (*contract.TokenInfo, error) {
	return rt.Gateway.Pool.Info(ctx)
}

// Close stops the block source and releases every connection.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Blocks != nil {
		if err := rt.Blocks.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("block source stop: %w", err))
		}
	}
	if rt.Wallet != nil {
		if err := rt.Wallet.Close(); err != nil {
			errs = append(errs, fmt.Errorf("wallet close: %w", err))
		}
	}
	if rt.Engine != nil {
		// the engine owns the cache and store from here on
		if err := rt.Engine.Close(); err != nil {
			errs = append(errs, err)
		}
	} else {
		rt.closeStores()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func (rt *Runtime) closeStores() {
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.ClickHouse != nil {
		_ = rt.ClickHouse.Close()
	}
}
