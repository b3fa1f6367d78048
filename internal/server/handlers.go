package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/contract"
	"github.com/aman-zulfiqar/simpledex-engine/internal/dexengine"
	"github.com/aman-zulfiqar/simpledex-engine/internal/flags"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
	"github.com/aman-zulfiqar/simpledex-engine/internal/units"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Engine is the operation and quote surface. *dexengine.Engine satisfies it.
type Engine interface {
	AddLiquidity(ctx context.Context, ethAmount, tokenAmount float64) (*dexengine.Result, error)
	Redeem(ctx context.Context, lpAmount float64) (*dexengine.Result, error)
	Swap(ctx context.Context, direction dexengine.SwapDirection, amount float64) (*dexengine.Result, error)
	QuoteSwap(direction dexengine.SwapDirection, amount float64) (pricing.SwapQuote, error)
	QuoteSwapOnChain(ctx context.Context, direction dexengine.SwapDirection, amount float64) (float64, error)
	QuoteRedeem(lpAmount float64) (pricing.RedeemQuote, error)
	RequiredTokenAmount(ethAmount float64) (float64, error)
	RecentOperations(ctx context.Context, limit int) ([]models.OperationRecord, error)
	Pending() []dexengine.OperationView
	RiskStatus() dexengine.RiskStatus

	LiquidityInput() dexengine.LiquidityInput
	SetLiquidityInput(in dexengine.LiquidityInput)
	SwapInput() dexengine.SwapInput
	SetSwapInput(in dexengine.SwapInput)
}

// Snapshots is the read side of the synchronizer. *state.Synchronizer satisfies it.
type Snapshots interface {
	Reserves() models.ReserveSnapshot
	Wallet() models.WalletSnapshot
	RefreshAll(ctx context.Context) error
	Subscribe() (<-chan models.SnapshotUpdate, func())
}

// TokenReader reads LP token metadata. *contract.Pool satisfies it.
type TokenReader interface {
	Info(ctx context.Context) (*contract.TokenInfo, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine  Engine         // Operation orchestrator and quotes
	Sync    Snapshots      // Reserve and wallet snapshots
	Token   TokenReader    // LP token metadata (optional)
	Flags   *flags.Store   // Redis-backed pause switches (optional)
	DevMode bool           // Enable detailed error responses in development
	Logger  *logrus.Logger // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) log() *logrus.Logger {
	if h.Logger == nil {
		return logrus.StandardLogger()
	}
	return h.Logger
}

// amountParam parses a non-negative decimal query parameter
func amountParam(c echo.Context, name string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.QueryParam(name)), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Health returns the service status and in-flight operation count
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		OK:        true,
		Connected: h.Sync.Wallet().Connected,
		Pending:   len(h.Engine.Pending()),
	})
}

// PoolState returns the current reserve snapshot
func (h *Handlers) PoolState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Sync.Reserves())
}

// WalletState returns the current wallet snapshot
func (h *Handlers) WalletState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Sync.Wallet())
}

// TokenInfo returns the LP token metadata read from the pool
func (h *Handlers) TokenInfo(c echo.Context) error {
	if h.Token == nil {
		return h.err(c, http.StatusBadRequest, "token reader is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	info, err := h.Token.Info(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "failed to read token info", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, info)
}

// Refresh re-reads both snapshots. A partial failure still returns what is current.
func (h *Handlers) Refresh(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Sync.RefreshAll(ctx); err != nil {
		h.log().WithError(err).Warn("manual refresh failed")
		return h.err(c, http.StatusBadGateway, "refresh failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, StateResponse{Reserves: h.Sync.Reserves(), Wallet: h.Sync.Wallet()})
}

// QuoteSwap quotes a swap against the current reserves
// Accepts direction (eth_to_token|token_to_eth), amount and source (snapshot|chain) query parameters
func (h *Handlers) QuoteSwap(c echo.Context) error {
	dir, err := dexengine.ParseSwapDirection(c.QueryParam("direction"))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "eth_to_token or token_to_eth"})
	}
	amount, ok := amountParam(c, "amount")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be a non-negative number"})
	}

	switch source := c.QueryParam("source"); source {
	case "", "snapshot":
		q, err := h.Engine.QuoteSwap(dir, amount)
		if err != nil {
			return h.engineErr(c, err)
		}
		return c.JSON(http.StatusOK, SwapQuoteResponse{Direction: dir.String(), Input: q.InputAmount, Output: q.OutputAmount, Source: "snapshot"})

	case "chain":
		ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
		defer cancel()

		out, err := h.Engine.QuoteSwapOnChain(ctx, dir, amount)
		if err != nil {
			return h.engineErr(c, err)
		}
		return c.JSON(http.StatusOK, SwapQuoteResponse{Direction: dir.String(), Input: amount, Output: out, Source: "chain"})

	default:
		return h.err(c, http.StatusBadRequest, "invalid source", map[string]any{"source": "snapshot or chain"})
	}
}

// QuoteRedeem quotes the reserves returned for an LP amount
func (h *Handlers) QuoteRedeem(c echo.Context) error {
	lp, ok := amountParam(c, "lp")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid lp", map[string]any{"lp": "must be a non-negative number"})
	}

	q, err := h.Engine.QuoteRedeem(lp)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, RedeemQuoteResponse{LP: lp, EthOut: q.EthOut, TokenOut: q.TokenOut})
}

// QuoteLiquidity returns the token amount that keeps the pool ratio for an ETH deposit
func (h *Handlers) QuoteLiquidity(c echo.Context) error {
	eth, ok := amountParam(c, "eth")
	if !ok {
		return h.err(c, http.StatusBadRequest, "invalid eth", map[string]any{"eth": "must be a non-negative number"})
	}

	need, err := h.Engine.RequiredTokenAmount(eth)
	if err != nil {
		return h.engineErr(c, err)
	}
	return c.JSON(http.StatusOK, LiquidityQuoteResponse{Eth: eth, RequiredToken: need})
}

// LiquidityInput returns the stored liquidity form
func (h *Handlers) LiquidityInput(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Engine.LiquidityInput())
}

// PutLiquidityInput stores the liquidity form. It is cleared once a deposit
// or redemption settles.
func (h *Handlers) PutLiquidityInput(c echo.Context) error {
	var req LiquidityInputRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	h.Engine.SetLiquidityInput(dexengine.LiquidityInput{
		EthAmount:   units.ParseDisplay(req.Eth),
		TokenAmount: units.ParseDisplay(req.Token),
		LPAmount:    units.ParseDisplay(req.LP),
	})
	return c.JSON(http.StatusOK, h.Engine.LiquidityInput())
}

// SwapInput returns the stored swap form
func (h *Handlers) SwapInput(c echo.Context) error {
	return c.JSON(http.StatusOK, swapInputResponse(h.Engine.SwapInput()))
}

// PutSwapInput stores the swap form. Amounts are cleared once a swap settles;
// the direction is kept.
func (h *Handlers) PutSwapInput(c echo.Context) error {
	var req SwapInputRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	dir := dexengine.EthToToken
	if req.Direction != "" {
		d, err := dexengine.ParseSwapDirection(req.Direction)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "eth_to_token or token_to_eth"})
		}
		dir = d
	}
	h.Engine.SetSwapInput(dexengine.SwapInput{
		Direction:   dir,
		EthAmount:   units.ParseDisplay(req.Eth),
		TokenAmount: units.ParseDisplay(req.Token),
	})
	return c.JSON(http.StatusOK, swapInputResponse(h.Engine.SwapInput()))
}

func swapInputResponse(in dexengine.SwapInput) SwapInputResponse {
	return SwapInputResponse{Direction: in.Direction.String(), EthAmount: in.EthAmount, TokenAmount: in.TokenAmount}
}

// AddLiquidity approves the token allowance and deposits both assets
func (h *Handlers) AddLiquidity(c echo.Context) error {
	var req AddLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	res, err := h.Engine.AddLiquidity(c.Request().Context(), req.Eth, req.Token)
	return h.operation(c, res, err)
}

// RemoveLiquidity burns LP tokens for both reserves
func (h *Handlers) RemoveLiquidity(c echo.Context) error {
	var req RemoveLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	res, err := h.Engine.Redeem(c.Request().Context(), req.LP)
	return h.operation(c, res, err)
}

// Swap sells the input asset selected by direction
func (h *Handlers) Swap(c echo.Context) error {
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	dir, err := dexengine.ParseSwapDirection(req.Direction)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "eth_to_token or token_to_eth"})
	}
	res, err := h.Engine.Swap(c.Request().Context(), dir, req.Amount)
	return h.operation(c, res, err)
}

// RecentOperations returns finished operations, newest first
// Accepts limit query parameter (default: 20, range: 1-200)
func (h *Handlers) RecentOperations(c echo.Context) error {
	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Engine.RecentOperations(ctx, limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get operations", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items, "pending": h.Engine.Pending()})
}

// Risk returns the configured limits and today's usage
func (h *Handlers) Risk(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Engine.RiskStatus())
}

func (h *Handlers) operation(c echo.Context, res *dexengine.Result, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, OperationResponse{Operation: res})
	}
	return c.JSON(statusFor(err), OperationResponse{
		Operation: res,
		Error:     err.Error(),
		Kind:      dexengine.ErrorKind(err),
	})
}

func (h *Handlers) engineErr(c echo.Context, err error) error {
	code := statusFor(err)
	return c.JSON(code, ErrorResponse{Error: err.Error(), Code: code, Kind: dexengine.ErrorKind(err)})
}

// FlagsUpsert creates or updates a pause switch with the given key and value
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	h.log().WithFields(logrus.Fields{"key": out.Key, "value": out.Value}).Info("flag updated")
	return c.JSON(http.StatusOK, out)
}

// FlagsUpdate updates an existing switch with the given key
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	h.log().WithFields(logrus.Fields{"key": out.Key, "value": out.Value}).Info("flag updated")
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a switch by its key
// Returns 404 if flag doesn't exist
func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns every switch
func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes a switch by its key
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
