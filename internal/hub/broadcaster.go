package hub

import (
	"sync"

	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// Conn is an outbound endpoint. Send must not block; it reports false when the frame was dropped.
type Conn interface {
	ID() string
	Send(f arenadto.Frame) bool
}

// Broadcaster tracks live connections and fans session events out to seat occupants.
type Broadcaster struct {
	mu    sync.RWMutex
	conns map[string]Conn
	msgs  *msgcat.Catalog
}

func NewBroadcaster(msgs *msgcat.Catalog) *Broadcaster {
	return &Broadcaster{conns: make(map[string]Conn), msgs: msgs}
}

func (b *Broadcaster) Register(c Conn) {
	b.mu.Lock()
	b.conns[c.ID()] = c
	b.mu.Unlock()
}

func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	delete(b.conns, id)
	b.mu.Unlock()
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// SendTo delivers f to one connection. Unknown ids are ignored.
func (b *Broadcaster) SendTo(id string, f arenadto.Frame) bool {
	b.mu.RLock()
	c, ok := b.conns[id]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	return b.deliver(c, f)
}

// SendAll delivers f to every connection and returns how many accepted it.
func (b *Broadcaster) SendAll(f arenadto.Frame) int {
	b.mu.RLock()
	targets := make([]Conn, 0, len(b.conns))
	for _, c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if b.deliver(c, f) {
			n++
		}
	}
	return n
}

// Emit implements session.Emitter.
func (b *Broadcaster) Emit(st session.State, events ...session.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case session.SeatsChanged:
			pos := positionFrame(st)
			for _, seat := range []session.Seat{session.SeatFirst, session.SeatSecond} {
				if id := st.Seats.Occupant(seat); id != "" {
					f := seatFrame(st, seat)
					if id == e.Conn {
						f.RequestID = e.RequestID
					}
					b.SendTo(id, f)
					b.SendTo(id, pos)
				}
			}
		case session.BoardChanged:
			b.room(st, positionFrame(st), historyFrame(st), capturesFrame(st))
		case session.CheckNotice:
			b.room(st, checkFrame(st, e.Side, b.msgs))
		case session.GameOver:
			b.room(st, gameOverFrame(st, e.Outcome, b.msgs))
		case session.Closed:
			b.room(st, closedFrame(st, e.Reason, b.msgs))
		}
	}
}

func (b *Broadcaster) room(st session.State, frames ...arenadto.Frame) {
	for _, id := range st.Seats.Occupied() {
		for _, f := range frames {
			b.SendTo(id, f)
		}
	}
}

func (b *Broadcaster) deliver(c Conn, f arenadto.Frame) bool {
	if c.Send(f) {
		return true
	}
	obslog.L().Warn("ws_send_drop", zap.String("conn_id", c.ID()), zap.String("type", f.Type))
	return false
}
