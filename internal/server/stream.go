package server

import (
	"net/http"
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream upgrades to a websocket and pushes every snapshot update. Both
// current snapshots are sent first so a client never starts empty.
func (h *Handlers) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log().WithError(err).Warn("websocket upgrade failed")
		return nil
	}
	defer conn.Close()

	updates, cancel := h.Sync.Subscribe()
	defer cancel()

	// The read loop only services control frames and notices the client leaving.
	gone := make(chan struct{})
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	reserves, wallet := h.Sync.Reserves(), h.Sync.Wallet()
	for _, u := range []models.SnapshotUpdate{
		{Kind: models.SnapshotReserves, Reserves: &reserves},
		{Kind: models.SnapshotWallet, Wallet: &wallet},
	} {
		if err := writeJSON(conn, u); err != nil {
			return nil
		}
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeJSON(conn, u); err != nil {
				h.log().WithError(err).Debug("stream client write failed")
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(v)
}
