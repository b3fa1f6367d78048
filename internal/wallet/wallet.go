package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotConnected is returned when no signing key is configured.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrSigningRejected is returned when the signer refuses or fails to sign.
	ErrSigningRejected = errors.New("signing rejected")
	// ErrGasEstimation is returned when the node refuses to estimate a call,
	// which usually means the call would revert.
	ErrGasEstimation = errors.New("gas estimation failed")
)

// knownNetworks mirrors the names ethers reports for common chain ids.
var knownNetworks = map[int64]string{
	1:        "homestead",
	5:        "goerli",
	137:      "matic",
	17000:    "holesky",
	80002:    "amoy",
	11155111: "sepolia",
}

type WalletConfig struct {
	PrivateKey string // hex-encoded secp256k1 key, with or without 0x

	ChainID     *big.Int // queried from the node when nil
	NetworkName string   // overrides knownNetworks

	GasLimitBufferPct uint64 // extra gas on top of the estimate, in percent

	PollInterval    time.Duration // first receipt poll delay
	MaxPollInterval time.Duration

	Logger *logrus.Logger
}

type Wallet struct {
	cfg     WalletConfig
	rpc     *rpc.Client
	key     *ecdsa.PrivateKey
	address common.Address

	chainMu sync.Mutex
	chainID *big.Int

	// sendMu serializes nonce assignment across concurrent operations.
	sendMu sync.Mutex
}

func NewWallet(client *rpc.Client, cfg WalletConfig) (*Wallet, error) {
	if client == nil {
		return nil, fmt.Errorf("wallet: rpc client is required")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required: %w", ErrNotConnected)
	}
	if cfg.GasLimitBufferPct == 0 {
		cfg.GasLimitBufferPct = 20
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxPollInterval == 0 {
		cfg.MaxPollInterval = 4 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	key, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		cfg:     cfg,
		rpc:     client,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: cfg.ChainID,
	}, nil
}

func (w *Wallet) Address() common.Address { return w.address }
func (w *Wallet) Close() error            { return nil }

// Balance returns the native balance of addr in wei.
func (w *Wallet) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	bal, err := w.rpc.GetBalance(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance failed: %w", err)
	}
	return bal, nil
}

// ChainID returns the configured chain id, asking the node once if unset.
func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	w.chainMu.Lock()
	defer w.chainMu.Unlock()
	if w.chainID != nil {
		return w.chainID, nil
	}
	id, err := w.rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_chainId failed: %w", err)
	}
	w.chainID = id
	return id, nil
}

// Network returns a "<name> (<chainId>)" label.
func (w *Wallet) Network(ctx context.Context) (string, error) {
	id, err := w.ChainID(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (%s)", NetworkName(id, w.cfg.NetworkName), id), nil
}

// NetworkName resolves a display name for id; override wins when set.
func NetworkName(id *big.Int, override string) string {
	if override != "" {
		return override
	}
	if id != nil && id.IsInt64() {
		if name, ok := knownNetworks[id.Int64()]; ok {
			return name
		}
	}
	return "unknown"
}

func parsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid hex private key: %w", err)
	}
	return key, nil
}
