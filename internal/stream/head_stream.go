package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aman-zulfiqar/simpledex-engine/internal/metrics"
	"github.com/aman-zulfiqar/simpledex-engine/internal/storage"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// HeadStream implements storage.BlockSource with an eth_subscribe("newHeads")
// websocket subscription.
type HeadStream struct {
	url     string
	metrics *metrics.Metrics
	logger  *logrus.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

type HeadStreamConfig struct {
	URL     string // ws:// or wss:// endpoint of the node
	Metrics *metrics.Metrics
	Logger  *logrus.Logger
}

var _ storage.BlockSource = (*HeadStream)(nil)

func NewHeadStream(cfg HeadStreamConfig) *HeadStream {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &HeadStream{url: cfg.URL, metrics: cfg.Metrics, logger: cfg.Logger}
}

type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// headMessage covers both the subscribe reply and the notifications.
type headMessage struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Method string `json:"method"`
	Params struct {
		Subscription string `json:"subscription"`
		Result       struct {
			Number hexutil.Uint64 `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// Start dials the node, subscribes to new heads and calls handler per head
// until ctx ends, Stop is called or the connection drops.
func (h *HeadStream) Start(ctx context.Context, handler storage.BlockHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, h.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
	defer h.Stop()

	req := subscribeRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []any{"newHeads"}}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// unblock ReadJSON when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = h.Stop()
		case <-done:
		}
	}()

	h.logger.WithField("url", h.url).Info("subscribed to new heads")

	var last uint64
	for {
		var msg headMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read head: %w", err)
		}

		switch {
		case msg.Error != nil:
			return fmt.Errorf("eth_subscribe: %s (code %d)", msg.Error.Message, msg.Error.Code)
		case msg.Method != "eth_subscription":
			continue
		}

		block := uint64(msg.Params.Result.Number)
		if block <= last {
			continue
		}
		last = block
		h.metrics.SetLatestBlock(block)
		handler(ctx, block)
	}
}

// Stop closes the connection.
func (h *HeadStream) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	err := h.conn.Close()
	h.conn = nil
	return err
}
