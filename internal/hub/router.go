package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// Client is the router's view of one connection. It is owned by that connection's
// read loop and must not be shared.
type Client struct {
	conn     Conn
	sessions map[string]*session.Session
}

func (c *Client) ID() string { return c.conn.ID() }

// Sessions lists the ids of sessions the client holds a seat in.
func (c *Client) Sessions() []string {
	out := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		out = append(out, id)
	}
	return out
}

// Router dispatches decoded inbound events to sessions and cleans up after disconnects.
type Router struct {
	registry *session.Registry
	bc       *Broadcaster
	msgs     *msgcat.Catalog

	recorder      archive.Recorder
	recordTimeout time.Duration
	wg            sync.WaitGroup
}

type RouterOption func(*Router)

// WithRecorder stores concluded games through rec.
func WithRecorder(rec archive.Recorder, timeout time.Duration) RouterOption {
	return func(r *Router) {
		r.recorder = rec
		if timeout > 0 {
			r.recordTimeout = timeout
		}
	}
}

func NewRouter(registry *session.Registry, bc *Broadcaster, msgs *msgcat.Catalog, opts ...RouterOption) *Router {
	r := &Router{registry: registry, bc: bc, msgs: msgs, recordTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers conn, greets it and sends the current lobby.
func (r *Router) Connect(conn Conn) *Client {
	r.bc.Register(conn)
	conn.Send(arenadto.NewFrame(arenadto.TypeWelcome, "", arenadto.Welcome{ConnectionID: conn.ID()}))
	conn.Send(lobby.Frame("", r.registry.ListOpen()))
	obslog.L().Info("ws_connect", zap.String("conn_id", conn.ID()), zap.Int("connections", r.bc.Count()))
	return &Client{conn: conn, sessions: make(map[string]*session.Session)}
}

// Dispatch handles one raw inbound frame.
func (r *Router) Dispatch(c *Client, raw []byte) {
	in, err := arenadto.Decode(raw)
	if err != nil {
		var de arenadto.DecodeError
		msg := r.msgs.Text("rejected."+arenadto.ReasonBadRequest, arenadto.ReasonBadRequest, nil)
		if errors.As(err, &de) && de.Message != "" {
			msg = de.Message
		}
		r.reject(c, in.RequestID, arenadto.ReasonBadRequest, msg)
		return
	}

	switch req := in.Request.(type) {
	case arenadto.CreateRequest:
		r.seat(c, in.RequestID, req.SessionID, req.Role, true)
	case arenadto.JoinRequest:
		r.seat(c, in.RequestID, req.SessionID, req.Role, false)
	case arenadto.MoveRequest:
		r.move(c, in.RequestID, req)
	case arenadto.ResetRequest:
		r.withSession(c, in.RequestID, req.SessionID, func(s *session.Session) error {
			_, err := s.Reset(c.ID())
			return err
		})
	case arenadto.ResignRequest:
		r.withSession(c, in.RequestID, req.SessionID, func(s *session.Session) error {
			st, err := s.Resign(c.ID())
			if err == nil {
				r.record(st)
			}
			return err
		})
	case arenadto.CancelRequest:
		r.withSession(c, in.RequestID, req.SessionID, func(s *session.Session) error {
			if _, err := s.Cancel(c.ID()); err != nil {
				return err
			}
			r.registry.RemoveSession(s)
			delete(c.sessions, s.ID())
			return nil
		})
	case arenadto.ListSessionsRequest:
		c.conn.Send(lobby.Frame(in.RequestID, r.registry.ListOpen()))
	}
}

// Disconnect releases every session the client was seated in. Those sessions are
// closed, their remaining occupant is told, and they leave the registry.
func (r *Router) Disconnect(c *Client) {
	r.bc.Unregister(c.ID())
	// only the session instances this client was seated in; a reused id may already
	// point at a newer session
	for _, s := range c.sessions {
		if s.Abandon(c.ID()) {
			r.registry.RemoveSession(s)
		}
	}
	c.sessions = make(map[string]*session.Session)
	obslog.L().Info("ws_disconnect", zap.String("conn_id", c.ID()), zap.Int("connections", r.bc.Count()))
}

// Wait blocks until pending result recordings finish.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) seat(c *Client, requestID, id, roleName string, create bool) {
	role, ok := session.ParseRole(roleName)
	if !ok {
		r.reject(c, requestID, arenadto.ReasonBadRequest, "unknown role")
		return
	}

	var s *session.Session
	if create {
		s, _ = r.registry.CreateOrGet(id)
	} else {
		var err error
		if s, err = r.registry.Get(id); err != nil {
			r.rejectErr(c, requestID, err)
			return
		}
	}

	if seat, held := s.Seated(c.ID()); held {
		c.conn.Send(withRequest(seatFrame(s.State(), seat), requestID))
		return
	}
	_, _, err := s.AssignSeatWithRequest(c.ID(), role, requestID)
	if errors.Is(err, session.ErrSeatTaken) {
		_, _, err = s.AssignSeatWithRequest(c.ID(), session.RoleRandom, requestID)
	}
	if err != nil {
		r.rejectErr(c, requestID, err)
		return
	}
	c.sessions[s.ID()] = s
}

func (r *Router) move(c *Client, requestID string, req arenadto.MoveRequest) {
	r.withSession(c, requestID, req.SessionID, func(s *session.Session) error {
		st, err := s.ApplyMove(c.ID(), req.From, req.To, req.Promotion)
		if err != nil {
			return err
		}
		if st.Phase == session.PhaseConcluded {
			r.record(st)
		}
		return nil
	})
}

func (r *Router) withSession(c *Client, requestID, id string, fn func(*session.Session) error) {
	s, err := r.registry.Get(id)
	if err == nil {
		err = fn(s)
	}
	if err != nil {
		r.rejectErr(c, requestID, err)
	}
}

func (r *Router) record(st session.State) {
	res, ok := archive.FromState(st)
	if !ok {
		return
	}
	obslog.L().Info("game_over",
		zap.String("session_id", res.SessionID),
		zap.Int("game", res.Game),
		zap.String("result", res.Result),
		zap.String("method", res.Method),
	)
	if r.recorder == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.recordTimeout)
		defer cancel()
		if err := r.recorder.Record(ctx, res); err != nil {
			obslog.L().Warn("archive_error", zap.String("session_id", res.SessionID), zap.Error(err))
		}
	}()
}

func (r *Router) rejectErr(c *Client, requestID string, err error) {
	reason := session.Reason(err)
	if reason == "internal" {
		obslog.L().Error("ws_internal_error", zap.String("conn_id", c.ID()), zap.Error(err))
	}
	r.reject(c, requestID, reason, r.msgs.Text("rejected."+reason, reason, nil))
}

func (r *Router) reject(c *Client, requestID, reason, message string) {
	obslog.L().Debug("ws_reject",
		zap.String("conn_id", c.ID()),
		zap.String("request_id", requestID),
		zap.String("reason", reason),
	)
	c.conn.Send(arenadto.Reject(requestID, reason, message))
}

func withRequest(f arenadto.Frame, requestID string) arenadto.Frame {
	f.RequestID = requestID
	return f
}
