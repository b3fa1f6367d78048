// Command subscriber tails the snapshots and operation records an engine
// publishes to Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/simpledex-engine/internal/cache"
	"github.com/aman-zulfiqar/simpledex-engine/internal/config"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	kind := flag.String("kind", "", "only show operations of this kind (e.g. swap_eth_to_token)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg := config.Load()
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer rc.Close()

	logSnapshot := func(u *models.SnapshotUpdate) {
		switch {
		case u.Reserves != nil:
			logger.WithFields(logrus.Fields{
				"eth":           u.Reserves.EthReserve,
				"token":         u.Reserves.TokenReserve,
				"lp_supply":     u.Reserves.LPSupply,
				"token_per_eth": u.Reserves.TokenPerEth.String(),
			}).Info("reserves")
		case u.Wallet != nil:
			logger.WithFields(logrus.Fields{
				"address": u.Wallet.Address,
				"eth":     u.Wallet.EthBalance,
				"token":   u.Wallet.TokenBalance,
				"lp":      u.Wallet.LPBalance,
			}).Info("wallet")
		}
	}

	// Show the last published state before tailing
	for _, kind := range []models.SnapshotKind{models.SnapshotReserves, models.SnapshotWallet} {
		u, err := rc.LatestSnapshot(ctx, kind)
		switch {
		case errors.Is(err, cache.ErrCacheMiss):
			logger.WithField("kind", kind).Info("no snapshot published yet")
		case err != nil:
			logger.WithError(err).WithField("kind", kind).Warn("failed to read latest snapshot")
		default:
			logSnapshot(u)
		}
	}

	pubsub := cache.NewPubSubManager(rc.Client(), logger)
	logger.Info("subscriber running, press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pubsub.SubscribeSnapshots(gctx, logSnapshot)
	})
	g.Go(func() error {
		return pubsub.SubscribeOperations(gctx, *kind, func(op *models.OperationRecord) {
			entry := logger.WithFields(logrus.Fields{
				"id":          op.ID,
				"kind":        op.Kind,
				"action_tx":   op.ActionTx,
				"duration_ms": op.DurationMS,
			})
			if op.Success {
				entry.Info("operation settled")
				return
			}
			entry.WithField("error_kind", op.ErrorKind).Warn("operation failed")
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("subscriber stopped")
	}
	logger.Info("shutting down subscriber")
}
