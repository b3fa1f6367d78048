package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

// Client is an HTTP JSON-RPC client for an Ethereum node with retry and timeout support
type Client struct {
	httpClient   *http.Client
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	logger       *logrus.Logger
	nextID       atomic.Uint64
}

// ClientConfig holds configuration for the RPC client
type ClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *logrus.Logger
}

// NewClient creates a new RPC client with retry support
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL:      cfg.BaseURL,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// Call makes a JSON-RPC call with retry logic. Only use it for idempotent reads.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	return c.call(ctx, method, params, result, c.maxRetries)
}

// CallOnce makes a single JSON-RPC attempt. Writes go through here so a
// transaction is never rebroadcast behind the caller's back.
func (c *Client) CallOnce(ctx context.Context, method string, params []any, result any) error {
	return c.call(ctx, method, params, result, 0)
}

func (c *Client) call(ctx context.Context, method string, params []any, result any, maxRetries int) error {
	if params == nil {
		params = []any{}
	}
	body := request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff,
				"method":  method,
			}).Debug("retrying RPC call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		raw, err := c.doRequest(ctx, data)
		if err != nil {
			lastErr = err
			continue
		}

		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		if resp.Error != nil {
			// Node-level errors are deterministic for the same request.
			return resp.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	}

	if maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doRequest(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// ChainID returns the chain id reported by the node
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var out hexutil.Big
	if err := c.Call(ctx, "eth_chainId", nil, &out); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

// BlockNumber returns the latest block height
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out hexutil.Uint64
	if err := c.Call(ctx, "eth_blockNumber", nil, &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// GetBalance returns the native balance of addr in wei at the latest block
func (c *Client) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var out hexutil.Big
	if err := c.Call(ctx, "eth_getBalance", []any{addr, "latest"}, &out); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

// EthCall executes a read-only contract call against the latest block
func (c *Client) EthCall(ctx context.Context, msg CallMsg) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.Call(ctx, "eth_call", []any{msg, "latest"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PendingNonceAt returns the next nonce for addr including pending transactions
func (c *Client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	var out hexutil.Uint64
	if err := c.Call(ctx, "eth_getTransactionCount", []any{addr, "pending"}, &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// SuggestGasPrice returns the node's legacy gas price suggestion
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out hexutil.Big
	if err := c.Call(ctx, "eth_gasPrice", nil, &out); err != nil {
		return nil, err
	}
	return out.ToInt(), nil
}

// EstimateGas asks the node how much gas msg needs. A revert during estimation
// comes back as an *RPCError.
func (c *Client) EstimateGas(ctx context.Context, msg CallMsg) (uint64, error) {
	var out hexutil.Uint64
	if err := c.CallOnce(ctx, "eth_estimateGas", []any{msg}, &out); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

// SendRawTransaction broadcasts a signed, RLP-encoded transaction
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var out common.Hash
	if err := c.CallOnce(ctx, "eth_sendRawTransaction", []any{hexutil.Bytes(raw)}, &out); err != nil {
		return common.Hash{}, err
	}
	return out, nil
}

// GetTransactionReceipt returns the receipt for hash, or ErrReceiptNotFound
// while the transaction is still pending
func (c *Client) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var out *Receipt
	if err := c.Call(ctx, "eth_getTransactionReceipt", []any{hash}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrReceiptNotFound
	}
	return out, nil
}

// IsRPCError reports whether err carries a node-side JSON-RPC error
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}
