package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/rpc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// Call describes a contract invocation to sign and broadcast
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// SendTransaction estimates, signs and broadcasts call, returning its hash as
// soon as the node accepts it
func (w *Wallet) SendTransaction(ctx context.Context, call Call) (common.Hash, error) {
	chainID, err := w.ChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	msg := rpc.CallMsg{
		From:  &w.address,
		To:    &call.To,
		Value: (*hexutil.Big)(value),
		Data:  call.Data,
	}

	gas, err := w.rpc.EstimateGas(ctx, msg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrGasEstimation, err)
	}
	gas += gas * w.cfg.GasLimitBufferPct / 100

	gasPrice, err := w.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_gasPrice failed: %w", err)
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	nonce, err := w.rpc.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_getTransactionCount failed: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &call.To,
		Value:    value,
		Data:     call.Data,
	})

	signed, err := w.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	hash, err := w.rpc.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendRawTransaction failed: %w", err)
	}

	w.cfg.Logger.WithFields(logrus.Fields{
		"tx":    hash.Hex(),
		"to":    call.To.Hex(),
		"nonce": nonce,
		"gas":   gas,
	}).Debug("transaction broadcast")

	return hash, nil
}

// SignTx signs a transaction with the wallet's private key
func (w *Wallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningRejected, err)
	}
	return signed, nil
}

// WaitForReceipt polls until the transaction is mined or ctx ends. A reverted
// transaction still returns its receipt; callers inspect Succeeded.
func (w *Wallet) WaitForReceipt(ctx context.Context, hash common.Hash) (*rpc.Receipt, error) {
	backoff := w.cfg.PollInterval
	maxBackoff := w.cfg.MaxPollInterval

	for {
		receipt, err := w.rpc.GetTransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, rpc.ErrReceiptNotFound) {
			return nil, fmt.Errorf("failed to fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
