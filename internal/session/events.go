package session

import (
	"errors"

	"github.com/park285/cheese-arena/internal/rules"
)

// Event is a state delta produced by a session operation.
type Event interface{ event() }

// SeatsChanged reports a new occupant. RequestID is the seat request that placed Conn, if any.
type SeatsChanged struct {
	Conn      string
	RequestID string
}

// BoardChanged covers position, history and captures.
type BoardChanged struct{}

type CheckNotice struct{ Side rules.Side }

type GameOver struct{ Outcome Outcome }

type Closed struct{ Reason string }

func (SeatsChanged) event() {}
func (BoardChanged) event() {}
func (CheckNotice) event()  {}
func (GameOver) event()     {}
func (Closed) event()       {}

// Emitter receives events while the session is still locked, so deliveries for one
// session are totally ordered. Implementations must not block or call back into the session.
type Emitter interface {
	Emit(st State, events ...Event)
}

type EmitterFunc func(st State, events ...Event)

func (f EmitterFunc) Emit(st State, events ...Event) { f(st, events...) }

type discard struct{}

func (discard) Emit(State, ...Event) {}

// Errors carry the wire reason as their text.
var (
	ErrNotFound    = errf("not_found")
	ErrSeatTaken   = errf("seat_taken")
	ErrGameFull    = errf("game_full")
	ErrOutOfTurn   = errf("out_of_turn")
	ErrInvalidMove = errf("invalid_move")
	ErrNotCreator  = errf("not_creator")
	ErrWrongPhase  = errf("wrong_phase")
	ErrGameOver    = errf("game_over")
	ErrNotSeated   = errf("not_seated")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Reason maps err to its wire reason, "internal" when it is not a session error.
func Reason(err error) string {
	var se staticErr
	if errors.As(err, &se) {
		return string(se)
	}
	return "internal"
}
