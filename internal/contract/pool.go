package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool is the SimpleDEX pool program, which also issues the LP token.
type Pool struct {
	binding
}

// TokenInfo is the LP token metadata exposed by the pool.
type TokenInfo struct {
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	Owner    common.Address `json:"owner"`
}

// NewPool binds the pool at address. sender may be nil for a read-only pool.
func NewPool(address common.Address, caller Caller, sender Sender) (*Pool, error) {
	b, err := newBinding(address, SimpleDEXABI, caller, sender)
	if err != nil {
		return nil, err
	}
	return &Pool{binding: b}, nil
}

func (p *Pool) Address() common.Address { return p.address }

func (p *Pool) TokensInContract(ctx context.Context) (*big.Int, error) {
	return p.readUint(ctx, "getTokensInContract")
}

func (p *Pool) ETHsInContract(ctx context.Context) (*big.Int, error) {
	return p.readUint(ctx, "getETHsInContract")
}

// TotalSupply is the LP supply.
func (p *Pool) TotalSupply(ctx context.Context) (*big.Int, error) {
	return p.readUint(ctx, "totalSupply")
}

// BalanceOf is the LP balance of account.
func (p *Pool) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return p.readUint(ctx, "balanceOf", account)
}

// AmountOfTokens asks the pool for its own integer quote.
func (p *Pool) AmountOfTokens(ctx context.Context, input, inputReserve, outputReserve *big.Int) (*big.Int, error) {
	return p.readUint(ctx, "getAmountOfTokens", input, inputReserve, outputReserve)
}

func (p *Pool) Owner(ctx context.Context) (common.Address, error) {
	values, err := p.read(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, &NetworkError{Op: "owner", Err: fmt.Errorf("unexpected result type %T", values[0])}
	}
	return addr, nil
}

func (p *Pool) Name(ctx context.Context) (string, error)   { return p.readString(ctx, "name") }
func (p *Pool) Symbol(ctx context.Context) (string, error) { return p.readString(ctx, "symbol") }

func (p *Pool) Decimals(ctx context.Context) (uint8, error) {
	values, err := p.read(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := values[0].(uint8)
	if !ok {
		return 0, &NetworkError{Op: "decimals", Err: fmt.Errorf("unexpected result type %T", values[0])}
	}
	return d, nil
}

// Info reads all LP token metadata.
func (p *Pool) Info(ctx context.Context) (*TokenInfo, error) {
	var (
		info TokenInfo
		err  error
	)
	if info.Name, err = p.Name(ctx); err != nil {
		return nil, err
	}
	if info.Symbol, err = p.Symbol(ctx); err != nil {
		return nil, err
	}
	if info.Decimals, err = p.Decimals(ctx); err != nil {
		return nil, err
	}
	if info.Owner, err = p.Owner(ctx); err != nil {
		return nil, err
	}
	return &info, nil
}

// AddLiquidity deposits tokenAmount tokens together with ethValue wei.
// The pool must already hold an allowance for tokenAmount.
func (p *Pool) AddLiquidity(ctx context.Context, tokenAmount, ethValue *big.Int) (*Submission, error) {
	return p.write(ctx, "addLiquidity", ethValue, tokenAmount)
}

// RemoveLiquidity burns lpAmount LP tokens.
func (p *Pool) RemoveLiquidity(ctx context.Context, lpAmount *big.Int) (*Submission, error) {
	return p.write(ctx, "removeLiquidity", nil, lpAmount)
}

// SwapEthToToken sells ethValue wei for tokens.
func (p *Pool) SwapEthToToken(ctx context.Context, ethValue *big.Int) (*Submission, error) {
	return p.write(ctx, "swapEthToToken", ethValue)
}

// SwapTokenToEth sells tokenAmount tokens for ETH. Requires a prior allowance.
func (p *Pool) SwapTokenToEth(ctx context.Context, tokenAmount *big.Int) (*Submission, error) {
	return p.write(ctx, "swapTokenToEth", nil, tokenAmount)
}
