package lobby

import (
	"context"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
	"go.uber.org/zap"
)

// Publisher pushes the open-session list to every connection, on change and on a fixed interval.
type Publisher struct {
	list     func() []session.Summary
	send     func(arenadto.Frame) int
	interval time.Duration
	notify   chan struct{}
}

// New builds a publisher reading from list and writing through send.
func New(list func() []session.Summary, send func(arenadto.Frame) int, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Publisher{list: list, send: send, interval: interval, notify: make(chan struct{}, 1)}
}

// Notify requests a publish. Calls made while one is pending collapse into it.
func (p *Publisher) Notify() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run publishes until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Publish()
		case <-p.notify:
			p.Publish()
		}
	}
}

// Publish sends one snapshot now.
func (p *Publisher) Publish() {
	list := p.list()
	n := p.send(Frame("", list))
	obslog.L().Debug("lobby_publish", zap.Int("sessions", len(list)), zap.Int("receivers", n))
}

// Snapshot returns the current open-session payload.
func (p *Publisher) Snapshot() arenadto.OpenSessions { return Payload(p.list()) }

// Frame wraps an open_sessions payload.
func Frame(requestID string, list []session.Summary) arenadto.Frame {
	return arenadto.NewFrame(arenadto.TypeOpenSessions, requestID, Payload(list))
}

func Payload(list []session.Summary) arenadto.OpenSessions {
	out := arenadto.OpenSessions{Sessions: make([]arenadto.OpenSession, 0, len(list))}
	for _, s := range list {
		out.Sessions = append(out.Sessions, arenadto.OpenSession{
			SessionID:   s.ID,
			Seats:       arenadto.SeatOccupancy{First: s.FirstTaken, Second: s.SecondTaken},
			Occupied:    s.Occupied(),
			InviteToken: s.InviteToken,
			CreatedAt:   s.CreatedAt,
		})
	}
	return out
}
