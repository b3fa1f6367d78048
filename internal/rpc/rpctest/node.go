// Package rpctest provides an in-process Ethereum JSON-RPC node for tests.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/aman-zulfiqar/simpledex-engine/internal/rpc"
)

// Handler answers one JSON-RPC method. Returning a non-nil *rpc.RPCError sends
// it as the error member.
type Handler func(params []json.RawMessage) (any, *rpc.RPCError)

// Node is a scripted JSON-RPC server.
type Node struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	calls    map[string]int
	failures map[string]int
}

// NewNode starts a node; close it with Close.
func NewNode() *Node {
	n := &Node{
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
		failures: make(map[string]int),
	}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	return n
}

// Handle registers h for method.
func (n *Node) Handle(method string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

// Result makes method always return v.
func (n *Node) Result(method string, v any) {
	n.Handle(method, func([]json.RawMessage) (any, *rpc.RPCError) { return v, nil })
}

// FailNext makes the next count requests for method fail with HTTP 503.
func (n *Node) FailNext(method string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[method] = count
}

// Calls returns how many requests reached method, failed ones included.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	if n.failures[req.Method] > 0 {
		n.failures[req.Method]--
		n.mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = &rpc.RPCError{Code: -32601, Message: "method not found: " + req.Method}
	} else if result, rpcErr := h(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
