package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// conn is the outbound half of a WebSocket client: a bounded queue drained by writeLoop.
type conn struct {
	id   string
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newConn(id string, queue int) *conn {
	if queue <= 0 {
		queue = 64
	}
	return &conn{id: id, send: make(chan []byte, queue)}
}

func (c *conn) ID() string { return c.id }

// Send enqueues f without blocking. A full queue or a closed conn drops the frame.
func (c *conn) Send(f arenadto.Frame) bool {
	raw, err := json.Marshal(f)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writeLoop drains the queue and pings on an interval. Any write failure cancels the connection.
func (c *conn) writeLoop(ctx context.Context, ws *websocket.Conn, ping, timeout time.Duration, cancel context.CancelFunc) {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, timeout)
			err := ws.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				obslog.L().Debug("ws_write_error", zap.String("conn_id", c.id), zap.Error(err))
				cancel()
				return
			}
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, timeout)
			err := ws.Ping(pctx)
			pcancel()
			if err != nil {
				obslog.L().Debug("ws_ping_error", zap.String("conn_id", c.id), zap.Error(err))
				cancel()
				return
			}
		}
	}
}
