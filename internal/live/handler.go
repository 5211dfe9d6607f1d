package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

// ServeHTTP upgrades the request to a WebSocket and streams version
// messages until either side goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}

	c := &client{send: make(chan []byte, 16)}
	c.send <- VersionMessage(h.version())

	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readPump(ctx, cancel, conn, c)
	h.writePump(ctx, conn, c)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *client) {
	defer func() {
		cancel()
		select {
		case h.unregister <- c:
		case <-time.After(time.Second):
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MsgSync {
			h.Publish(h.version())
		}
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
