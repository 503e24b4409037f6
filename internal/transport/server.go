package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/hub"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

type Options struct {
	OriginPatterns  []string
	ReadLimit       int64
	SendQueue       int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	FramesPerSecond float64
	FrameBurst      int
	// MaxViolations closes the connection after this many throttled frames in a row.
	MaxViolations int
}

func (o *Options) setDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4096
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.FramesPerSecond <= 0 {
		o.FramesPerSecond = 20
	}
	if o.FrameBurst <= 0 {
		o.FrameBurst = 40
	}
	if o.MaxViolations <= 0 {
		o.MaxViolations = 20
	}
}

// Server upgrades HTTP requests to WebSocket connections and feeds them to the router.
type Server struct {
	router *hub.Router
	msgs   *msgcat.Catalog
	opts   Options
	newID  func() string

	base   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	closed bool
	active sync.WaitGroup
}

func NewServer(router *hub.Router, msgs *msgcat.Catalog, opts Options) *Server {
	opts.setDefaults()
	base, stop := context.WithCancel(context.Background())
	return &Server{router: router, msgs: msgs, opts: opts, newID: uuid.NewString, base: base, stop: stop}
}

// Close refuses new connections, cancels the live ones and waits until every
// connection handler has run its disconnect cleanup.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.active.Wait()
}

func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active.Add(1)
	return true
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.active.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.opts.OriginPatterns})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	ws.SetReadLimit(s.opts.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer context.AfterFunc(s.base, cancel)()

	c := newConn(s.newID(), s.opts.SendQueue)
	go c.writeLoop(ctx, ws, s.opts.PingInterval, s.opts.WriteTimeout, cancel)

	client := s.router.Connect(c)
	defer func() {
		s.router.Disconnect(client)
		c.close()
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()

	s.readLoop(ctx, ws, c, client)
}

func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn, c *conn, client *hub.Client) {
	limiter := rate.NewLimiter(rate.Limit(s.opts.FramesPerSecond), s.opts.FrameBurst)
	violations := 0
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if !limiter.Allow() {
			violations++
			c.Send(arenadto.Reject("", arenadto.ReasonRateLimited,
				s.msgs.Text("rejected."+arenadto.ReasonRateLimited, arenadto.ReasonRateLimited, nil)))
			if violations >= s.opts.MaxViolations {
				obslog.L().Warn("ws_rate_limit_close", zap.String("conn_id", c.id))
				_ = ws.Close(websocket.StatusPolicyViolation, "rate limit exceeded")
				return
			}
			continue
		}
		violations = 0
		if typ != websocket.MessageText {
			c.Send(arenadto.Reject("", arenadto.ReasonBadRequest, "binary frames are not supported"))
			continue
		}
		s.router.Dispatch(client, data)
	}
}
