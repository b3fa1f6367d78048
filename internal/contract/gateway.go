package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/rpc"
	"github.com/aman-zulfiqar/simpledex-engine/internal/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Caller runs read-only calls. *rpc.Client satisfies it.
type Caller interface {
	EthCall(ctx context.Context, msg rpc.CallMsg) ([]byte, error)
}

// Waiter blocks until a transaction has a receipt.
type Waiter interface {
	WaitForReceipt(ctx context.Context, hash common.Hash) (*rpc.Receipt, error)
}

// Sender signs, broadcasts and waits. *wallet.Wallet satisfies it.
type Sender interface {
	Waiter
	Address() common.Address
	SendTransaction(ctx context.Context, call wallet.Call) (common.Hash, error)
}

// Submission is a broadcast transaction that has not been confirmed yet.
type Submission struct {
	Op          string
	Hash        common.Hash
	SubmittedAt time.Time

	waiter Waiter
}

// NewSubmission wraps an already broadcast transaction.
func NewSubmission(op string, hash common.Hash, waiter Waiter) *Submission {
	return &Submission{Op: op, Hash: hash, SubmittedAt: time.Now(), waiter: waiter}
}

// Wait blocks until the transaction is mined. A reverted receipt is returned
// together with ErrReverted.
func (s *Submission) Wait(ctx context.Context) (*rpc.Receipt, error) {
	receipt, err := s.waiter.WaitForReceipt(ctx, s.Hash)
	if err != nil {
		return nil, &NetworkError{Op: s.Op + " wait", Err: err}
	}
	if !receipt.Succeeded() {
		return receipt, fmt.Errorf("%s %s: %w", s.Op, s.Hash.Hex(), ErrReverted)
	}
	return receipt, nil
}

// binding is the shared ABI plumbing behind Pool and Token.
type binding struct {
	address common.Address
	abi     abi.ABI
	caller  Caller
	sender  Sender
}

func newBinding(address common.Address, abiJSON string, caller Caller, sender Sender) (binding, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return binding{}, fmt.Errorf("failed to parse abi: %w", err)
	}
	if caller == nil {
		return binding{}, fmt.Errorf("contract: caller is required")
	}
	return binding{address: address, abi: parsed, caller: caller, sender: sender}, nil
}

func (b *binding) read(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	msg := rpc.CallMsg{To: &b.address, Data: data}
	if b.sender != nil {
		from := b.sender.Address()
		msg.From = &from
	}

	out, err := b.caller.EthCall(ctx, msg)
	if err != nil {
		return nil, &NetworkError{Op: method, Err: err}
	}

	values, err := b.abi.Unpack(method, out)
	if err != nil {
		return nil, &NetworkError{Op: method, Err: fmt.Errorf("failed to unpack: %w", err)}
	}
	if len(values) == 0 {
		return nil, &NetworkError{Op: method, Err: fmt.Errorf("empty result")}
	}
	return values, nil
}

func (b *binding) readUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	values, err := b.read(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, &NetworkError{Op: method, Err: fmt.Errorf("unexpected result type %T", values[0])}
	}
	return v, nil
}

func (b *binding) readString(ctx context.Context, method string) (string, error) {
	values, err := b.read(ctx, method)
	if err != nil {
		return "", err
	}
	v, ok := values[0].(string)
	if !ok {
		return "", &NetworkError{Op: method, Err: fmt.Errorf("unexpected result type %T", values[0])}
	}
	return v, nil
}

func (b *binding) write(ctx context.Context, method string, value *big.Int, args ...any) (*Submission, error) {
	if b.sender == nil {
		return nil, &SubmissionError{Op: method, Err: wallet.ErrNotConnected}
	}

	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, &SubmissionError{Op: method, Err: fmt.Errorf("failed to pack: %w", err)}
	}

	hash, err := b.sender.SendTransaction(ctx, wallet.Call{To: b.address, Value: value, Data: data})
	if err != nil {
		return nil, &SubmissionError{Op: method, Err: err}
	}

	return NewSubmission(method, hash, b.sender), nil
}

// Gateway pairs the pool with its token and exposes the procedures the
// transaction engine drives.
type Gateway struct {
	Pool  *Pool
	Token *Token
}

// NewGateway binds both programs. Pass a nil sender for read-only access.
func NewGateway(poolAddr, tokenAddr common.Address, caller Caller, sender Sender) (*Gateway, error) {
	pool, err := NewPool(poolAddr, caller, sender)
	if err != nil {
		return nil, fmt.Errorf("pool binding: %w", err)
	}
	token, err := NewToken(tokenAddr, caller, sender)
	if err != nil {
		return nil, fmt.Errorf("token binding: %w", err)
	}
	return &Gateway{Pool: pool, Token: token}, nil
}

// ApprovePool grants the pool an allowance of amount tokens.
func (g *Gateway) ApprovePool(ctx context.Context, amount *big.Int) (*Submission, error) {
	return g.Token.Approve(ctx, g.Pool.Address(), amount)
}

func (g *Gateway) AddLiquidity(ctx context.Context, tokenAmount, ethValue *big.Int) (*Submission, error) {
	return g.Pool.AddLiquidity(ctx, tokenAmount, ethValue)
}

func (g *Gateway) RemoveLiquidity(ctx context.Context, lpAmount *big.Int) (*Submission, error) {
	return g.Pool.RemoveLiquidity(ctx, lpAmount)
}

func (g *Gateway) SwapEthToToken(ctx context.Context, ethValue *big.Int) (*Submission, error) {
	return g.Pool.SwapEthToToken(ctx, ethValue)
}

func (g *Gateway) SwapTokenToEth(ctx context.Context, tokenAmount *big.Int) (*Submission, error) {
	return g.Pool.SwapTokenToEth(ctx, tokenAmount)
}
