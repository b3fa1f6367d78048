package contract

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the ERC-20 paired with ETH in the pool.
type Token struct {
	binding
}

func NewToken(address common.Address, caller Caller, sender Sender) (*Token, error) {
	b, err := newBinding(address, ERC20ABI, caller, sender)
	if err != nil {
		return nil, err
	}
	return &Token{binding: b}, nil
}

func (t *Token) Address() common.Address { return t.address }

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.readUint(ctx, "balanceOf", account)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.readUint(ctx, "allowance", owner, spender)
}

func (t *Token) Symbol(ctx context.Context) (string, error) { return t.readString(ctx, "symbol") }

// Approve lets spender pull amount tokens from the signer.
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*Submission, error) {
	return t.write(ctx, "approve", nil, spender, amount)
}
