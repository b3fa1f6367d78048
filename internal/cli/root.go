// Package cli implements the dexctl command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/aman-zulfiqar/simpledex-engine/internal/config"
	"github.com/aman-zulfiqar/simpledex-engine/internal/dexengine"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Engine is what the commands drive. *dexengine.Engine satisfies it.
type Engine interface {
	AddLiquidity(ctx context.Context, ethAmount, tokenAmount float64) (*dexengine.Result, error)
	Redeem(ctx context.Context, lpAmount float64) (*dexengine.Result, error)
	Swap(ctx context.Context, direction dexengine.SwapDirection, amount float64) (*dexengine.Result, error)
	QuoteSwap(direction dexengine.SwapDirection, amount float64) (pricing.SwapQuote, error)
	QuoteRedeem(lpAmount float64) (pricing.RedeemQuote, error)
	RequiredTokenAmount(ethAmount float64) (float64, error)
}

// Snapshots is the synchronizer as seen by the commands.
type Snapshots interface {
	Reserves() models.ReserveSnapshot
	Wallet() models.WalletSnapshot
	RefreshAll(ctx context.Context) error
}

// Backend is an opened engine with fresh snapshots.
type Backend struct {
	Engine Engine
	Sync   Snapshots
	Close  func() error
}

// Opener connects a Backend for one command run.
type Opener func(ctx context.Context, logger *logrus.Logger) (*Backend, error)

var logLevel string

// NewRootCmd builds the command tree around open.
func NewRootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "dexctl",
		Short: "dexctl - drive a SimpleDEX pool from the command line",
		Long: `dexctl reads pool and wallet state, quotes swaps and liquidity changes,
and submits add-liquidity, redeem and swap operations through the engine.
Configuration comes from the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newStateCmd(open),
		newQuoteCmd(open),
		newAddLiquidityCmd(open),
		newRedeemCmd(open),
		newSwapCmd(open),
	)
	return root
}

// Execute runs dexctl against the configured chain.
func Execute() {
	if err := NewRootCmd(OpenFromEnv).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// OpenFromEnv loads .env and the environment, wires the engine and performs
// the initial refresh.
func OpenFromEnv(ctx context.Context, logger *logrus.Logger) (*Backend, error) {
	loadEnv(logger)

	rt, err := dexengine.Build(ctx, config.Load(), logger)
	if err != nil {
		return nil, err
	}
	if err := rt.Sync.RefreshAll(ctx); err != nil {
		logger.WithError(err).Warn("initial refresh incomplete")
	}
	return &Backend{Engine: rt.Engine, Sync: rt.Sync, Close: rt.Close}, nil
}

func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Debugf("no .env file found at %s, using system environment variables", envPath)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// withBackend opens a backend, runs fn and closes it.
func withBackend(cmd *cobra.Command, open Opener, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := open(ctx, newLogger())
	if err != nil {
		return err
	}
	if b.Close != nil {
		defer func() { _ = b.Close() }()
	}
	return fn(ctx, b)
}
