package contract

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/aman-zulfiqar/simpledex-engine/internal/rpc"
	"github.com/aman-zulfiqar/simpledex-engine/internal/wallet"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	userAddr  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

// fakeCaller answers eth_call by method selector.
type fakeCaller struct {
	t       *testing.T
	abi     abi.ABI
	results map[string][]any
	err     error
}

func newFakeCaller(t *testing.T, abiJSON string) *fakeCaller {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	require.NoError(t, err)
	return &fakeCaller{t: t, abi: parsed, results: map[string][]any{}}
}

func (f *fakeCaller) EthCall(_ context.Context, msg rpc.CallMsg) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	method, err := f.abi.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	out, err := method.Outputs.Pack(f.results[method.Name]...)
	require.NoError(f.t, err)
	return out, nil
}

type fakeSender struct {
	calls   []wallet.Call
	sendErr error
	receipt *rpc.Receipt
	waitErr error
}

func (f *fakeSender) Address() common.Address { return userAddr }

func (f *fakeSender) SendTransaction(_ context.Context, call wallet.Call) (common.Hash, error) {
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.calls = append(f.calls, call)
	return common.BigToHash(big.NewInt(int64(len(f.calls)))), nil
}

func (f *fakeSender) WaitForReceipt(_ context.Context, hash common.Hash) (*rpc.Receipt, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &rpc.Receipt{TransactionHash: hash, Status: 1}, nil
}

func TestPool_Reads(t *testing.T) {
	caller := newFakeCaller(t, SimpleDEXABI)
	caller.results["getTokensInContract"] = []any{big.NewInt(2000)}
	caller.results["getETHsInContract"] = []any{big.NewInt(10)}
	caller.results["totalSupply"] = []any{big.NewInt(100)}
	caller.results["balanceOf"] = []any{big.NewInt(7)}
	caller.results["name"] = []any{"SimpleDEX LP"}
	caller.results["symbol"] = []any{"SDLP"}
	caller.results["decimals"] = []any{uint8(18)}
	caller.results["owner"] = []any{userAddr}

	pool, err := NewPool(poolAddr, caller, nil)
	require.NoError(t, err)
	ctx := context.Background()

	tokens, err := pool.TokensInContract(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), tokens.Int64())

	eth, err := pool.ETHsInContract(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), eth.Int64())

	lp, err := pool.BalanceOf(ctx, userAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(7), lp.Int64())

	info, err := pool.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, &TokenInfo{Name: "SimpleDEX LP", Symbol: "SDLP", Decimals: 18, Owner: userAddr}, info)
}

func TestPool_ReadFailureIsNetworkError(t *testing.T) {
	caller := newFakeCaller(t, SimpleDEXABI)
	caller.err = errors.New("connection refused")

	pool, err := NewPool(poolAddr, caller, nil)
	require.NoError(t, err)

	_, err = pool.TotalSupply(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "totalSupply", netErr.Op)
}

func TestGateway_WriteWithoutSigner(t *testing.T) {
	gw, err := NewGateway(poolAddr, tokenAddr, newFakeCaller(t, SimpleDEXABI), nil)
	require.NoError(t, err)

	_, err = gw.SwapEthToToken(context.Background(), big.NewInt(1))
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestGateway_ApproveTargetsPool(t *testing.T) {
	sender := &fakeSender{}
	gw, err := NewGateway(poolAddr, tokenAddr, newFakeCaller(t, ERC20ABI), sender)
	require.NoError(t, err)

	sub, err := gw.ApprovePool(context.Background(), big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, "approve", sub.Op)
	require.Len(t, sender.calls, 1)

	call := sender.calls[0]
	assert.Equal(t, tokenAddr, call.To)

	parsed, err := abi.JSON(strings.NewReader(ERC20ABI))
	require.NoError(t, err)
	args, err := parsed.Methods["approve"].Inputs.Unpack(call.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, poolAddr, args[0])
	assert.Equal(t, int64(500), args[1].(*big.Int).Int64())
}

func TestGateway_AddLiquidityCarriesValue(t *testing.T) {
	sender := &fakeSender{}
	gw, err := NewGateway(poolAddr, tokenAddr, newFakeCaller(t, SimpleDEXABI), sender)
	require.NoError(t, err)

	_, err = gw.AddLiquidity(context.Background(), big.NewInt(200), big.NewInt(1))
	require.NoError(t, err)
	require.Len(t, sender.calls, 1)
	assert.Equal(t, poolAddr, sender.calls[0].To)
	assert.Equal(t, int64(1), sender.calls[0].Value.Int64())
}

func TestGateway_SendFailureIsSubmissionError(t *testing.T) {
	sender := &fakeSender{sendErr: wallet.ErrSigningRejected}
	gw, err := NewGateway(poolAddr, tokenAddr, newFakeCaller(t, SimpleDEXABI), sender)
	require.NoError(t, err)

	_, err = gw.RemoveLiquidity(context.Background(), big.NewInt(3))
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.ErrorIs(t, err, wallet.ErrSigningRejected)
}

func TestSubmission_Wait(t *testing.T) {
	hash := common.HexToHash("0x01")

	ok := NewSubmission("swapTokenToEth", hash, &fakeSender{})
	r, err := ok.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Succeeded())

	reverted := NewSubmission("approve", hash, &fakeSender{receipt: &rpc.Receipt{Status: 0}})
	r, err = reverted.Wait(context.Background())
	assert.ErrorIs(t, err, ErrReverted)
	assert.NotNil(t, r)

	lost := NewSubmission("approve", hash, &fakeSender{waitErr: errors.New("timeout")})
	_, err = lost.Wait(context.Background())
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}
