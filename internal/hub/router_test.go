package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/archive"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames []arenadto.Frame
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(fr arenadto.Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeConn) ofType(typ string) []arenadto.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []arenadto.Frame
	for _, fr := range f.frames {
		if fr.Type == typ {
			out = append(out, fr)
		}
	}
	return out
}

func (f *fakeConn) clear() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type chanRecorder struct{ ch chan archive.Result }

func (c *chanRecorder) Record(_ context.Context, r archive.Result) error {
	c.ch <- r
	return nil
}

type testHub struct {
	router   *Router
	registry *session.Registry
	rec      *chanRecorder
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	bc := NewBroadcaster(msgs)
	reg := session.NewRegistry(rules.New(),
		session.WithEmitter(bc),
		session.WithRandom(func(int) int { return 0 }),
	)
	rec := &chanRecorder{ch: make(chan archive.Result, 4)}
	return &testHub{router: NewRouter(reg, bc, msgs, WithRecorder(rec, time.Second)), registry: reg, rec: rec}
}

func (h *testHub) connect(id string) (*fakeConn, *Client) {
	fc := &fakeConn{id: id}
	return fc, h.router.Connect(fc)
}

func send(t *testing.T, h *testHub, c *Client, typ, requestID string, payload any) {
	t.Helper()
	raw, err := json.Marshal(arenadto.NewFrame(typ, requestID, payload))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h.router.Dispatch(c, raw)
}

func decode[T any](t *testing.T, f arenadto.Frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Payload, &v); err != nil {
		t.Fatalf("decode %s: %v", f.Type, err)
	}
	return v
}

func lastOf[T any](t *testing.T, fc *fakeConn, typ string) T {
	t.Helper()
	frames := fc.ofType(typ)
	if len(frames) == 0 {
		t.Fatalf("%s received no %s", fc.id, typ)
	}
	return decode[T](t, frames[len(frames)-1])
}

func expectRejected(t *testing.T, fc *fakeConn, requestID, reason string) {
	t.Helper()
	frames := fc.ofType(arenadto.TypeRejected)
	if len(frames) == 0 {
		t.Fatalf("%s: expected rejected{%s}", fc.id, reason)
	}
	f := frames[len(frames)-1]
	p := decode[arenadto.Rejected](t, f)
	if p.Reason != reason || f.RequestID != requestID {
		t.Fatalf("%s: expected %s/%s, got %s/%s", fc.id, reason, requestID, p.Reason, f.RequestID)
	}
	if p.Message == "" {
		t.Fatalf("rejection without message")
	}
}

// pair seats a on first and b on second of session "A".
func pair(t *testing.T, h *testHub) (*fakeConn, *Client, *fakeConn, *Client) {
	t.Helper()
	fa, ca := h.connect("a")
	fb, cb := h.connect("b")
	send(t, h, ca, arenadto.TypeCreate, "1", arenadto.CreateRequest{SessionID: "A", Role: "first"})
	send(t, h, cb, arenadto.TypeJoin, "2", arenadto.JoinRequest{SessionID: "A"})
	return fa, ca, fb, cb
}

func TestConnectGreets(t *testing.T) {
	h := newTestHub(t)
	fc, _ := h.connect("a")
	if len(fc.ofType(arenadto.TypeWelcome)) != 1 || len(fc.ofType(arenadto.TypeOpenSessions)) != 1 {
		t.Fatalf("expected welcome and lobby, got %+v", fc.frames)
	}
	w := lastOf[arenadto.Welcome](t, fc, arenadto.TypeWelcome)
	if w.ConnectionID != "a" {
		t.Fatalf("welcome id %q", w.ConnectionID)
	}
}

func TestCreateJoinAndMoveRelay(t *testing.T) {
	h := newTestHub(t)
	fa, ca, fb, _ := pair(t, h)

	sa := lastOf[arenadto.SeatAssignment](t, fa, arenadto.TypeSeatAssignment)
	sb := lastOf[arenadto.SeatAssignment](t, fb, arenadto.TypeSeatAssignment)
	if sa.YourSeat != "first" || sb.YourSeat != "second" || sb.Phase != string(session.PhaseInProgress) {
		t.Fatalf("unexpected seats: a=%+v b=%+v", sa, sb)
	}
	if sb.Seats.First != "a" || sb.Seats.Second != "b" {
		t.Fatalf("unexpected seat map %+v", sb.Seats)
	}
	if lastOf[arenadto.PositionUpdate](t, fb, arenadto.TypePositionUpdate).FEN != rules.StartFEN {
		t.Fatalf("joiner should get the initial position")
	}

	fa.clear()
	fb.clear()
	send(t, h, ca, arenadto.TypeMove, "3", arenadto.MoveRequest{SessionID: "A", From: "e2", To: "e4"})
	for _, fc := range []*fakeConn{fa, fb} {
		pos := lastOf[arenadto.PositionUpdate](t, fc, arenadto.TypePositionUpdate)
		if pos.SideToMove != "black" {
			t.Fatalf("%s: side to move %q", fc.id, pos.SideToMove)
		}
		hist := lastOf[arenadto.HistoryUpdate](t, fc, arenadto.TypeHistoryUpdate)
		if len(hist.Moves) != 1 || hist.Moves[0] != "e2-e4" || hist.SAN[0] != "e4" {
			t.Fatalf("%s: history %+v", fc.id, hist)
		}
		caps := lastOf[arenadto.CapturesUpdate](t, fc, arenadto.TypeCapturesUpdate)
		if caps.White == nil || len(caps.White) != 0 {
			t.Fatalf("%s: captures should be empty lists: %+v", fc.id, caps)
		}
	}
}

func TestSeatFrameEchoesRequestID(t *testing.T) {
	h := newTestHub(t)
	fa, _, fb, _ := pair(t, h)

	aFrames := fa.ofType(arenadto.TypeSeatAssignment)
	if len(aFrames) != 2 || aFrames[0].RequestID != "1" || aFrames[1].RequestID != "" {
		t.Fatalf("creator seat frames: %+v", aFrames)
	}
	bFrames := fb.ofType(arenadto.TypeSeatAssignment)
	if len(bFrames) != 1 || bFrames[0].RequestID != "2" {
		t.Fatalf("joiner seat frames: %+v", bFrames)
	}
}

func TestDisconnectAfterIDReuseSparesNewSession(t *testing.T) {
	h := newTestHub(t)
	_, ca, _, cb := pair(t, h)
	h.router.Disconnect(cb)

	fc, cc := h.connect("c")
	send(t, h, cc, arenadto.TypeCreate, "n", arenadto.CreateRequest{SessionID: "A"})
	if len(fc.ofType(arenadto.TypeSeatAssignment)) != 1 {
		t.Fatalf("c should be seated in the new A")
	}
	fresh := mustGet(t, h, "A")

	h.router.Disconnect(ca)
	if got := mustGet(t, h, "A"); got != fresh {
		t.Fatalf("new session replaced")
	}
	if len(fc.ofType(arenadto.TypeSessionClosed)) != 0 {
		t.Fatalf("c must not be told its session closed")
	}
}

func TestOutOfTurnRejectedToSenderOnly(t *testing.T) {
	h := newTestHub(t)
	fa, _, fb, cb := pair(t, h)
	fa.clear()
	fb.clear()

	send(t, h, cb, arenadto.TypeMove, "m1", arenadto.MoveRequest{SessionID: "A", From: "e7", To: "e5"})
	expectRejected(t, fb, "m1", "out_of_turn")
	if fa.count() != 0 {
		t.Fatalf("opponent should not hear about the rejection: %+v", fa.frames)
	}
	if st := mustGet(t, h, "A").State(); len(st.Moves) != 0 {
		t.Fatalf("state changed after rejection")
	}
}

func TestInvalidMoveRejected(t *testing.T) {
	h := newTestHub(t)
	fa, ca, _, _ := pair(t, h)
	send(t, h, ca, arenadto.TypeMove, "m1", arenadto.MoveRequest{SessionID: "A", From: "e2", To: "e5"})
	expectRejected(t, fa, "m1", "invalid_move")
}

func TestJoinUnknownAndFull(t *testing.T) {
	h := newTestHub(t)
	pair(t, h)
	fc, cc := h.connect("c")

	send(t, h, cc, arenadto.TypeJoin, "j1", arenadto.JoinRequest{SessionID: "nope"})
	expectRejected(t, fc, "j1", "not_found")

	send(t, h, cc, arenadto.TypeJoin, "j2", arenadto.JoinRequest{SessionID: "A"})
	expectRejected(t, fc, "j2", "game_full")
}

func TestSeatTakenDegradesToFreeSeat(t *testing.T) {
	h := newTestHub(t)
	_, ca := h.connect("a")
	fb, cb := h.connect("b")
	send(t, h, ca, arenadto.TypeCreate, "1", arenadto.CreateRequest{SessionID: "A", Role: "first"})
	send(t, h, cb, arenadto.TypeJoin, "2", arenadto.JoinRequest{SessionID: "A", Role: "first"})
	if seat := lastOf[arenadto.SeatAssignment](t, fb, arenadto.TypeSeatAssignment).YourSeat; seat != "second" {
		t.Fatalf("expected degrade to second, got %s", seat)
	}
}

func TestRepeatJoinIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	fa, ca, _, _ := pair(t, h)
	fa.clear()
	send(t, h, ca, arenadto.TypeJoin, "again", arenadto.JoinRequest{SessionID: "A"})
	frames := fa.ofType(arenadto.TypeSeatAssignment)
	if len(frames) != 1 || frames[0].RequestID != "again" {
		t.Fatalf("expected one direct seat reply, got %+v", fa.frames)
	}
}

func TestCheckmateEndsGameAndRecords(t *testing.T) {
	h := newTestHub(t)
	fa, ca, fb, cb := pair(t, h)
	moves := []struct {
		c        *Client
		from, to string
	}{{ca, "f2", "f3"}, {cb, "e7", "e5"}, {ca, "g2", "g4"}, {cb, "d8", "h4"}}
	for i, m := range moves {
		send(t, h, m.c, arenadto.TypeMove, "", arenadto.MoveRequest{SessionID: "A", From: m.from, To: m.to})
		if len(fa.ofType(arenadto.TypeRejected))+len(fb.ofType(arenadto.TypeRejected)) != 0 {
			t.Fatalf("move %d rejected", i)
		}
	}
	for _, fc := range []*fakeConn{fa, fb} {
		over := lastOf[arenadto.GameOver](t, fc, arenadto.TypeGameOver)
		if over.Reason != "checkmate" || over.WinnerSide != "black" || over.Message == "" {
			t.Fatalf("%s: game over %+v", fc.id, over)
		}
	}

	select {
	case res := <-h.rec.ch:
		if res.Result != "black" || len(res.MovesUCI) != 4 {
			t.Fatalf("unexpected archive record %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("result was not recorded")
	}
	h.router.Wait()

	send(t, h, ca, arenadto.TypeMove, "late", arenadto.MoveRequest{SessionID: "A", From: "a2", To: "a3"})
	expectRejected(t, fa, "late", "game_over")
}

func TestCheckNoticeBroadcast(t *testing.T) {
	h := newTestHub(t)
	fa, ca, fb, cb := pair(t, h)
	send(t, h, ca, arenadto.TypeMove, "", arenadto.MoveRequest{SessionID: "A", From: "e2", To: "e4"})
	send(t, h, cb, arenadto.TypeMove, "", arenadto.MoveRequest{SessionID: "A", From: "f7", To: "f6"})
	send(t, h, ca, arenadto.TypeMove, "", arenadto.MoveRequest{SessionID: "A", From: "d1", To: "h5"})
	for _, fc := range []*fakeConn{fa, fb} {
		cn := lastOf[arenadto.CheckNotice](t, fc, arenadto.TypeCheckNotice)
		if cn.Side != "black" {
			t.Fatalf("%s: check notice %+v", fc.id, cn)
		}
	}
}

func TestResetBroadcastsFreshBoard(t *testing.T) {
	h := newTestHub(t)
	fa, ca, fb, cb := pair(t, h)
	send(t, h, ca, arenadto.TypeMove, "", arenadto.MoveRequest{SessionID: "A", From: "e2", To: "e4"})
	fa.clear()
	fb.clear()

	send(t, h, cb, arenadto.TypeReset, "r1", arenadto.ResetRequest{SessionID: "A"})
	for _, fc := range []*fakeConn{fa, fb} {
		pos := lastOf[arenadto.PositionUpdate](t, fc, arenadto.TypePositionUpdate)
		hist := lastOf[arenadto.HistoryUpdate](t, fc, arenadto.TypeHistoryUpdate)
		if pos.FEN != rules.StartFEN || len(hist.Moves) != 0 {
			t.Fatalf("%s: board not reset: %+v %+v", fc.id, pos, hist)
		}
	}

	fc, cc := h.connect("c")
	send(t, h, cc, arenadto.TypeReset, "r2", arenadto.ResetRequest{SessionID: "A"})
	expectRejected(t, fc, "r2", "not_seated")
}

func TestResign(t *testing.T) {
	h := newTestHub(t)
	_, ca, fb, _ := pair(t, h)
	send(t, h, ca, arenadto.TypeResign, "", arenadto.ResignRequest{SessionID: "A"})
	over := lastOf[arenadto.GameOver](t, fb, arenadto.TypeGameOver)
	if over.Reason != "resignation" || over.WinnerSide != "black" {
		t.Fatalf("unexpected game over %+v", over)
	}
	<-h.rec.ch
	h.router.Wait()
}

func TestCancel(t *testing.T) {
	h := newTestHub(t)
	fa, ca := h.connect("a")
	fb, cb := h.connect("b")
	send(t, h, ca, arenadto.TypeCreate, "1", arenadto.CreateRequest{SessionID: "A"})

	send(t, h, cb, arenadto.TypeCancel, "x", arenadto.CancelRequest{SessionID: "A"})
	expectRejected(t, fb, "x", "not_creator")

	send(t, h, ca, arenadto.TypeCancel, "y", arenadto.CancelRequest{SessionID: "A"})
	if closed := lastOf[arenadto.SessionClosed](t, fa, arenadto.TypeSessionClosed); closed.Reason != session.CloseCanceled {
		t.Fatalf("unexpected close %+v", closed)
	}
	if _, err := h.registry.Get("A"); err == nil {
		t.Fatalf("canceled session still registered")
	}
	if len(ca.Sessions()) != 0 {
		t.Fatalf("client still tracks canceled session")
	}
}

func TestCancelInProgressRejected(t *testing.T) {
	h := newTestHub(t)
	fa, ca, _, _ := pair(t, h)
	send(t, h, ca, arenadto.TypeCancel, "c", arenadto.CancelRequest{SessionID: "A"})
	expectRejected(t, fa, "c", "wrong_phase")
}

func TestDisconnectClosesSessions(t *testing.T) {
	h := newTestHub(t)
	_, ca, fb, cb := pair(t, h)
	fb.clear()

	h.router.Disconnect(ca)
	closed := lastOf[arenadto.SessionClosed](t, fb, arenadto.TypeSessionClosed)
	if closed.SessionID != "A" || closed.Reason != session.CloseAbandoned {
		t.Fatalf("unexpected close %+v", closed)
	}
	if _, err := h.registry.Get("A"); err == nil {
		t.Fatalf("abandoned session still registered")
	}
	send(t, h, cb, arenadto.TypeMove, "m", arenadto.MoveRequest{SessionID: "A", From: "e7", To: "e5"})
	expectRejected(t, fb, "m", "not_found")
}

func TestDisconnectLeavesOtherSessionsAlone(t *testing.T) {
	h := newTestHub(t)
	_, ca := h.connect("a")
	_, cc := h.connect("c")
	send(t, h, ca, arenadto.TypeCreate, "", arenadto.CreateRequest{SessionID: "A"})
	send(t, h, cc, arenadto.TypeCreate, "", arenadto.CreateRequest{SessionID: "C"})
	h.router.Disconnect(ca)
	if _, err := h.registry.Get("C"); err != nil {
		t.Fatalf("unrelated session removed: %v", err)
	}
	if open := h.registry.ListOpen(); len(open) != 1 || open[0].ID != "C" {
		t.Fatalf("lobby should list only C: %+v", open)
	}
}

func TestBadFrameRejected(t *testing.T) {
	h := newTestHub(t)
	fa, ca := h.connect("a")
	h.router.Dispatch(ca, []byte(`{"type":"fly","request_id":"q"}`))
	expectRejected(t, fa, "q", arenadto.ReasonBadRequest)
	h.router.Dispatch(ca, []byte(`garbage`))
	expectRejected(t, fa, "", arenadto.ReasonBadRequest)
}

func TestListSessions(t *testing.T) {
	h := newTestHub(t)
	fa, ca := h.connect("a")
	send(t, h, ca, arenadto.TypeCreate, "", arenadto.CreateRequest{SessionID: "A"})
	fa.clear()
	send(t, h, ca, arenadto.TypeListSessions, "l", arenadto.ListSessionsRequest{})
	frames := fa.ofType(arenadto.TypeOpenSessions)
	if len(frames) != 1 || frames[0].RequestID != "l" {
		t.Fatalf("expected one open_sessions reply: %+v", fa.frames)
	}
	list := decode[arenadto.OpenSessions](t, frames[0])
	if len(list.Sessions) != 1 || list.Sessions[0].Occupied != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
}

func mustGet(t *testing.T, h *testHub, id string) *session.Session {
	t.Helper()
	s, err := h.registry.Get(id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return s
}
