package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/dexengine"
	"github.com/aman-zulfiqar/simpledex-engine/internal/metrics"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu        sync.Mutex
	swapErr   error
	lastSwap  dexengine.SwapDirection
	lastAmt   float64
	quoteErr  error
	recent    []models.OperationRecord
	lastLimit int
	chainErr  error
	liquidity dexengine.LiquidityInput
	swapIn    dexengine.SwapInput
}

func (f *fakeEngine) AddLiquidity(_ context.Context, eth, token float64) (*dexengine.Result, error) {
	return &dexengine.Result{Kind: dexengine.KindAddLiquidity, Success: true}, nil
}

func (f *fakeEngine) Redeem(_ context.Context, lp float64) (*dexengine.Result, error) {
	if lp == 0 {
		err := fmt.Errorf("%w: lp amount is zero", dexengine.ErrNothingToRedeem)
		return &dexengine.Result{Kind: dexengine.KindRedeem, ErrorKind: dexengine.ErrorKind(err)}, err
	}
	return &dexengine.Result{Kind: dexengine.KindRedeem, Success: true, ExpectedOut: lp}, nil
}

func (f *fakeEngine) Swap(_ context.Context, d dexengine.SwapDirection, amount float64) (*dexengine.Result, error) {
	f.mu.Lock()
	f.lastSwap, f.lastAmt = d, amount
	err := f.swapErr
	f.mu.Unlock()
	if err != nil {
		return &dexengine.Result{Success: false, ErrorKind: dexengine.ErrorKind(err)}, err
	}
	return &dexengine.Result{Success: true, ActionTx: "0xabc"}, nil
}

func (f *fakeEngine) QuoteSwap(d dexengine.SwapDirection, amount float64) (pricing.SwapQuote, error) {
	if f.quoteErr != nil {
		return pricing.SwapQuote{}, f.quoteErr
	}
	return pricing.SwapQuote{InputAmount: amount, OutputAmount: amount * 2}, nil
}

func (f *fakeEngine) QuoteSwapOnChain(_ context.Context, d dexengine.SwapDirection, amount float64) (float64, error) {
	if f.chainErr != nil {
		return 0, f.chainErr
	}
	return amount * 1.9, nil
}

func (f *fakeEngine) LiquidityInput() dexengine.LiquidityInput { return f.liquidity }
func (f *fakeEngine) SetLiquidityInput(in dexengine.LiquidityInput) { f.liquidity = in }
func (f *fakeEngine) SwapInput() dexengine.SwapInput { return f.swapIn }
func (f *fakeEngine) SetSwapInput(in dexengine.SwapInput) { f.swapIn = in }

func (f *fakeEngine) QuoteRedeem(lp float64) (pricing.RedeemQuote, error) {
	return pricing.RedeemQuote{EthOut: lp, TokenOut: lp * 200}, nil
}

func (f *fakeEngine) RequiredTokenAmount(eth float64) (float64, error) {
	return eth * 200, nil
}

func (f *fakeEngine) RecentOperations(_ context.Context, limit int) ([]models.OperationRecord, error) {
	f.lastLimit = limit
	return f.recent, nil
}

func (f *fakeEngine) Pending() []dexengine.OperationView { return nil }

func (f *fakeEngine) RiskStatus() dexengine.RiskStatus {
	return dexengine.RiskStatus{DailyLimitETH: 10, DailyUsedETH: 1, DailyRemainingETH: 9}
}

type fakeSync struct {
	reserves models.ReserveSnapshot
	wallet   models.WalletSnapshot
	updates  chan models.SnapshotUpdate
	subbed   chan struct{}
	refresh  error
}

func newFakeSync() *fakeSync {
	return &fakeSync{
		reserves: models.ReserveSnapshot{EthReserve: 10, TokenReserve: 2000, LPSupply: 10},
		wallet:   models.WalletSnapshot{Connected: true, Address: "0xabc"},
		updates:  make(chan models.SnapshotUpdate, 4),
		subbed:   make(chan struct{}, 1),
	}
}

func (f *fakeSync) Reserves() models.ReserveSnapshot { return f.reserves }
func (f *fakeSync) Wallet() models.WalletSnapshot { return f.wallet }
func (f *fakeSync) RefreshAll(context.Context) error { return f.refresh }
func (f *fakeSync) Subscribe() (<-chan models.SnapshotUpdate, func()) {
	f.subbed <- struct{}{}
	return f.updates, func() {}
}

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *fakeEngine, *fakeSync) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	eng, snaps := &fakeEngine{}, newFakeSync()
	srv, err := NewServer(ServerDeps{
		Handlers: &Handlers{Engine: eng, Sync: snaps, Logger: logger},
		Config:   cfg,
	})
	require.NoError(t, err)
	return srv, eng, snaps
}

func do(srv *Server, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{})

	rec := do(srv, http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var out HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.OK)
	assert.True(t, out.Connected)
}

func TestState(t *testing.T) {
	srv, _, snaps := newTestServer(t, ServerConfig{})

	rec := do(srv, http.MethodGet, "/v1/state/pool", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pool models.ReserveSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	assert.Equal(t, 2000.0, pool.TokenReserve)

	rec = do(srv, http.MethodPost, "/v1/state/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	snaps.refresh = fmt.Errorf("rpc down")
	rec = do(srv, http.MethodPost, "/v1/state/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestQuoteSwap(t *testing.T) {
	srv, eng, _ := newTestServer(t, ServerConfig{})

	rec := do(srv, http.MethodGet, "/v1/quotes/swap?direction=eth_to_token&amount=1.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var q SwapQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "eth_to_token", q.Direction)
	assert.Equal(t, 3.0, q.Output)
	assert.Equal(t, "snapshot", q.Source)

	rec = do(srv, http.MethodGet, "/v1/quotes/swap?direction=sideways&amount=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodGet, "/v1/quotes/swap?direction=t2e&amount=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	eng.quoteErr = dexengine.ErrPoolUnavailable
	rec = do(srv, http.MethodGet, "/v1/quotes/swap?direction=t2e&amount=1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, "pool_unavailable", er.Kind)
}

func TestQuoteSwap_ChainSource(t *testing.T) {
	srv, eng, _ := newTestServer(t, ServerConfig{})

	rec := do(srv, http.MethodGet, "/v1/quotes/swap?direction=t2e&amount=2&source=chain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var q SwapQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "token_to_eth", q.Direction)
	assert.Equal(t, "chain", q.Source)
	assert.InDelta(t, 3.8, q.Output, 1e-9)

	rec = do(srv, http.MethodGet, "/v1/quotes/swap?direction=t2e&amount=2&source=oracle", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	eng.chainErr = dexengine.ErrQuoterUnavailable
	rec = do(srv, http.MethodGet, "/v1/quotes/swap?direction=t2e&amount=2&source=chain", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	eng.chainErr = fmt.Errorf("%w: eth_call failed", dexengine.ErrNetwork)
	rec = do(srv, http.MethodGet, "/v1/quotes/swap?direction=t2e&amount=2&source=chain", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestInputs(t *testing.T) {
	srv, eng, _ := newTestServer(t, ServerConfig{})

	rec := do(srv, http.MethodPut, "/v1/inputs/liquidity", `{"eth":" 1.5 ","token":"abc","lp":"-2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dexengine.LiquidityInput{EthAmount: 1.5}, eng.liquidity)

	rec = do(srv, http.MethodGet, "/v1/inputs/liquidity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var li dexengine.LiquidityInput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &li))
	assert.Equal(t, 1.5, li.EthAmount)

	rec = do(srv, http.MethodPut, "/v1/inputs/swap", `{"direction":"t2e","token":"200"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var si SwapInputResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &si))
	assert.Equal(t, SwapInputResponse{Direction: "token_to_eth", TokenAmount: 200}, si)

	rec = do(srv, http.MethodPut, "/v1/inputs/swap", `{"eth":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dexengine.EthToToken, eng.swapIn.Direction)

	rec = do(srv, http.MethodPut, "/v1/inputs/swap", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteRedeemAndLiquidity(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{})

	rec := do(srv, http.MethodGet, "/v1/quotes/redeem?lp=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rq RedeemQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rq))
	assert.Equal(t, 400.0, rq.TokenOut)

	rec = do(srv, http.MethodGet, "/v1/quotes/liquidity?eth=0.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var lq LiquidityQuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lq))
	assert.Equal(t, 100.0, lq.RequiredToken)

	rec = do(srv, http.MethodGet, "/v1/quotes/liquidity?eth=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwapEndpoint(t *testing.T) {
	srv, eng, _ := newTestServer(t, ServerConfig{WriteRate: 100, WriteBurst: 100})

	rec := do(srv, http.MethodPost, "/v1/swaps", `{"direction":"token_to_eth","amount":50}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dexengine.TokenToEth, eng.lastSwap)
	assert.Equal(t, 50.0, eng.lastAmt)

	var ok OperationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	require.NotNil(t, ok.Operation)
	assert.True(t, ok.Operation.Success)
	assert.Empty(t, ok.Kind)

	eng.swapErr = fmt.Errorf("%w: %w", dexengine.ErrTransactionReverted, fmt.Errorf("status 0"))
	rec = do(srv, http.MethodPost, "/v1/swaps", `{"direction":"eth_to_token","amount":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var failed OperationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, "transaction_reverted", failed.Kind)
	assert.False(t, failed.Operation.Success)

	rec = do(srv, http.MethodPost, "/v1/swaps", `{"direction":"up","amount":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/v1/swaps", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLiquidityEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{WriteRate: 100, WriteBurst: 100})

	rec := do(srv, http.MethodPost, "/v1/liquidity/add", `{"eth":1,"token":200}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodPost, "/v1/liquidity/remove", `{"lp":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var out OperationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "nothing_to_redeem", out.Kind)
}

func TestWriteRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{WriteRate: 0.001, WriteBurst: 1})

	rec := do(srv, http.MethodPost, "/v1/liquidity/remove", `{"lp":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(srv, http.MethodPost, "/v1/liquidity/remove", `{"lp":1}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// reads are not limited
	rec = do(srv, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecentOperations(t *testing.T) {
	srv, eng, _ := newTestServer(t, ServerConfig{})
	eng.recent = []models.OperationRecord{{ID: "op_1", Kind: "redeem", Success: true}}

	rec := do(srv, http.MethodGet, "/v1/operations/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, eng.lastLimit)
	assert.Contains(t, rec.Body.String(), `"op_1"`)

	rec = do(srv, http.MethodGet, "/v1/operations/recent?limit=500", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(srv, http.MethodGet, "/v1/operations/recent?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRisk(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{})
	rec := do(srv, http.MethodGet, "/v1/risk", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"daily_remaining_eth":9`)
}

func TestFlagsNotConfigured(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{})
	rec := do(srv, http.MethodGet, "/v1/flags", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenNotConfigured(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{})
	rec := do(srv, http.MethodGet, "/v1/token", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIKey(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{APIKey: "secret"})

	rec := do(srv, http.MethodGet, "/v1/health", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(srv, http.MethodGet, "/v1/health", "", "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNotFoundIsJSON(t *testing.T) {
	srv, _, _ := newTestServer(t, ServerConfig{})
	rec := do(srv, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
	assert.Equal(t, http.StatusNotFound, er.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New("test")
	m.SetLatestBlock(42)
	srv, _, _ := newTestServer(t, ServerConfig{Metrics: m})

	rec := do(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_chain_latest_block 42")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(dexengine.ErrOperationPaused))
	assert.Equal(t, http.StatusForbidden, statusFor(dexengine.ErrRiskRejected))
	assert.Equal(t, http.StatusConflict, statusFor(dexengine.ErrWalletNotConnected))
	assert.Equal(t, http.StatusBadRequest, statusFor(dexengine.ErrZeroAmount))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(dexengine.ErrApprovalFailed))
	assert.Equal(t, http.StatusBadGateway, statusFor(dexengine.ErrNetwork))
	assert.Equal(t, http.StatusNotImplemented, statusFor(dexengine.ErrQuoterUnavailable))
	assert.Equal(t, http.StatusRequestTimeout, statusFor(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}

func TestStream(t *testing.T) {
	srv, _, snaps := newTestServer(t, ServerConfig{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first, second models.SnapshotUpdate
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, models.SnapshotReserves, first.Kind)
	require.NotNil(t, first.Reserves)
	assert.Equal(t, 10.0, first.Reserves.EthReserve)
	assert.Equal(t, models.SnapshotWallet, second.Kind)

	<-snaps.subbed
	snap := models.ReserveSnapshot{EthReserve: 11, TokenReserve: 1819, LPSupply: 10}
	snaps.updates <- models.SnapshotUpdate{Kind: models.SnapshotReserves, Reserves: &snap}

	var pushed models.SnapshotUpdate
	require.NoError(t, conn.ReadJSON(&pushed))
	require.NotNil(t, pushed.Reserves)
	assert.Equal(t, 11.0, pushed.Reserves.EthReserve)
}
