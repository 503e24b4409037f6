package hub

import (
	"encoding/json"
	"testing"

	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type dropConn struct{ id string }

func (d dropConn) ID() string               { return d.id }
func (d dropConn) Send(arenadto.Frame) bool { return false }

func TestSendAllCountsAccepted(t *testing.T) {
	bc := NewBroadcaster(nil)
	a := &fakeConn{id: "a"}
	bc.Register(a)
	bc.Register(&fakeConn{id: "b"})
	bc.Register(dropConn{id: "c"})

	if n := bc.SendAll(arenadto.Frame{Type: "x"}); n != 2 {
		t.Fatalf("expected 2 receivers, got %d", n)
	}
	if bc.Count() != 3 {
		t.Fatalf("expected 3 conns, got %d", bc.Count())
	}
	bc.Unregister("c")
	if bc.SendTo("c", arenadto.Frame{Type: "x"}) {
		t.Fatalf("unregistered conn should not receive")
	}
	if a.count() != 1 {
		t.Fatalf("a should have one frame, got %d", a.count())
	}
}

func TestEmitReachesOnlyOccupants(t *testing.T) {
	bc := NewBroadcaster(nil)
	a, b, outsider := &fakeConn{id: "a"}, &fakeConn{id: "b"}, &fakeConn{id: "z"}
	bc.Register(a)
	bc.Register(b)
	bc.Register(outsider)

	st := session.State{
		ID:         "A",
		Phase:      session.PhaseInProgress,
		FEN:        rules.StartFEN,
		SideToMove: rules.White,
		Seats:      session.Seats{First: "a", Second: "b"},
	}
	bc.Emit(st, session.BoardChanged{}, session.CheckNotice{Side: rules.Black})

	for _, fc := range []*fakeConn{a, b} {
		for _, typ := range []string{arenadto.TypePositionUpdate, arenadto.TypeHistoryUpdate, arenadto.TypeCapturesUpdate, arenadto.TypeCheckNotice} {
			if len(fc.ofType(typ)) != 1 {
				t.Fatalf("%s expected one %s frame", fc.id, typ)
			}
		}
	}
	if outsider.count() != 0 {
		t.Fatalf("outsider received %d frames", outsider.count())
	}

	a.clear()
	b.clear()
	bc.Emit(st, session.SeatsChanged{})
	var seat arenadto.SeatAssignment
	decodeInto(t, a.ofType(arenadto.TypeSeatAssignment), &seat)
	if seat.YourSeat != "first" || seat.Seats.Second != "b" {
		t.Fatalf("unexpected seat frame %+v", seat)
	}
	decodeInto(t, b.ofType(arenadto.TypeSeatAssignment), &seat)
	if seat.YourSeat != "second" {
		t.Fatalf("unexpected seat frame %+v", seat)
	}
}

func decodeInto(t *testing.T, frames []arenadto.Frame, v any) {
	t.Helper()
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	if err := json.Unmarshal(frames[0].Payload, v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
