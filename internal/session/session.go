package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"go.uber.org/zap"
)

// Rules is the board game capability a session needs.
type Rules interface {
	Start() rules.Position
	SideToMove(rules.Position) rules.Side
	Apply(p rules.Position, from, to, promotion string) (rules.Result, error)
}

// Session is one game between at most two connections. Every operation runs under
// the session mutex and emits its events before the mutex is released.
type Session struct {
	mu sync.Mutex

	id          string
	instance    string
	inviteToken string
	createdAt   time.Time

	rules    Rules
	emitter  Emitter
	onLobby  func()
	randIntn func(n int) int
	now      func() time.Time

	position  rules.Position
	moves     []MoveRecord
	captures  Captures
	seats     Seats
	creator   string
	phase     Phase
	outcome   *Outcome
	game      int
	startedAt time.Time
	endedAt   time.Time
	closed    bool
}

func (s *Session) ID() string { return s.id }

// State returns a copy of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Summary reports the lobby entry for the session; ok is false once it is no longer open.
func (s *Session) Summary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhaseAwaiting {
		return Summary{}, false
	}
	return Summary{
		ID:          s.id,
		InviteToken: s.inviteToken,
		FirstTaken:  s.seats.First != "",
		SecondTaken: s.seats.Second != "",
		CreatedAt:   s.createdAt,
	}, true
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Seated returns the seat held by conn.
func (s *Session) Seated(conn string) (Seat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seatOf(conn)
}

// AssignSeat places conn in the requested seat. A connection that already holds a seat
// gets that seat back. The first connection ever seated becomes the creator.
func (s *Session) AssignSeat(conn string, role Role) (Seat, State, error) {
	return s.AssignSeatWithRequest(conn, role, "")
}

// AssignSeatWithRequest is AssignSeat with the request id carried on the SeatsChanged event.
func (s *Session) AssignSeatWithRequest(conn string, role Role, requestID string) (Seat, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", State{}, ErrNotFound
	}
	if seat, ok := s.seatOf(conn); ok {
		return seat, s.snapshot(), nil
	}

	var seat Seat
	switch role {
	case RoleFirst, RoleSecond:
		seat = Seat(role)
		if s.seats.Occupant(seat) != "" {
			return "", State{}, ErrSeatTaken
		}
	default:
		var free []Seat
		if s.seats.First == "" {
			free = append(free, SeatFirst)
		}
		if s.seats.Second == "" {
			free = append(free, SeatSecond)
		}
		if len(free) == 0 {
			return "", State{}, ErrGameFull
		}
		seat = free[s.randIntn(len(free))]
	}

	if seat == SeatFirst {
		s.seats.First = conn
	} else {
		s.seats.Second = conn
	}
	if s.creator == "" {
		s.creator = conn
	}
	if s.phase == PhaseAwaiting && s.seats.First != "" && s.seats.Second != "" {
		s.phase = PhaseInProgress
		s.startedAt = s.now()
	}

	st := s.snapshot()
	obslog.L().Info("seat_assign",
		zap.String("session_id", s.id),
		zap.String("conn_id", conn),
		zap.String("seat", string(seat)),
		zap.String("phase", string(s.phase)),
	)
	s.emitter.Emit(st, SeatsChanged{Conn: conn, RequestID: requestID})
	s.onLobby()
	return seat, st, nil
}

// ApplyMove validates turn ownership and relays the move through the rules adapter.
func (s *Session) ApplyMove(conn, from, to, promotion string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrNotFound
	}
	switch s.phase {
	case PhaseAwaiting:
		return State{}, ErrWrongPhase
	case PhaseConcluded:
		return State{}, ErrGameOver
	}

	side := s.rules.SideToMove(s.position)
	if s.seats.Occupant(SeatFor(side)) != conn {
		return State{}, ErrOutOfTurn
	}

	res, err := s.rules.Apply(s.position, from, to, promotion)
	if err != nil {
		obslog.L().Info("move_reject",
			zap.String("session_id", s.id),
			zap.String("conn_id", conn),
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err),
		)
		return State{}, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}

	s.position = res.Position
	rec := MoveRecord{Seq: len(s.moves) + 1, From: from, To: to, UCI: res.UCI, SAN: res.SAN}
	if len(res.UCI) == 5 {
		rec.Promotion = res.UCI[4:]
	}
	s.moves = append(s.moves, rec)
	if res.Captured != "" {
		if res.Mover == rules.White {
			s.captures.White = append(s.captures.White, res.Captured)
		} else {
			s.captures.Black = append(s.captures.Black, res.Captured)
		}
	}

	events := []Event{BoardChanged{}}
	switch {
	case res.Checkmate:
		s.conclude(Outcome{Reason: ReasonCheckmate, Winner: res.Mover})
		events = append(events, GameOver{Outcome: *s.outcome})
	case res.Draw:
		s.conclude(Outcome{Reason: res.DrawMethod})
		events = append(events, GameOver{Outcome: *s.outcome})
	case res.Check:
		events = append(events, CheckNotice{Side: res.Mover.Opponent()})
	}

	st := s.snapshot()
	obslog.L().Info("move_apply",
		zap.String("session_id", s.id),
		zap.String("conn_id", conn),
		zap.String("uci", res.UCI),
		zap.String("san", res.SAN),
		zap.Int("seq", rec.Seq),
		zap.String("phase", string(s.phase)),
	)
	s.emitter.Emit(st, events...)
	return st, nil
}

// Reset restores the initial position and clears history, captures and outcome.
// Seats are kept.
func (s *Session) Reset(conn string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrNotFound
	}
	if _, ok := s.seatOf(conn); !ok {
		return State{}, ErrNotSeated
	}

	prev := s.phase
	s.position = s.rules.Start()
	s.moves = nil
	s.captures = Captures{}
	s.outcome = nil
	s.endedAt = time.Time{}
	s.game++
	if s.seats.First != "" && s.seats.Second != "" {
		s.phase = PhaseInProgress
		s.startedAt = s.now()
	} else {
		s.phase = PhaseAwaiting
		s.startedAt = time.Time{}
	}

	st := s.snapshot()
	obslog.L().Info("session_reset",
		zap.String("session_id", s.id),
		zap.String("conn_id", conn),
		zap.Int("game", s.game),
	)
	s.emitter.Emit(st, BoardChanged{})
	if prev != s.phase {
		s.onLobby()
	}
	return st, nil
}

// Resign concedes an in-progress game on behalf of conn.
func (s *Session) Resign(conn string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrNotFound
	}
	seat, ok := s.seatOf(conn)
	if !ok {
		return State{}, ErrNotSeated
	}
	switch s.phase {
	case PhaseAwaiting:
		return State{}, ErrWrongPhase
	case PhaseConcluded:
		return State{}, ErrGameOver
	}

	s.conclude(Outcome{Reason: ReasonResignation, Winner: seat.Side().Opponent()})
	st := s.snapshot()
	obslog.L().Info("session_resign",
		zap.String("session_id", s.id),
		zap.String("conn_id", conn),
		zap.String("winner", string(s.outcome.Winner)),
	)
	s.emitter.Emit(st, GameOver{Outcome: *s.outcome})
	return st, nil
}

// Cancel closes a session still waiting for its second player. Only the creator may cancel.
// The caller removes the session from the registry afterwards.
func (s *Session) Cancel(conn string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrNotFound
	}
	if s.phase != PhaseAwaiting {
		return State{}, ErrWrongPhase
	}
	if conn == "" || conn != s.creator {
		return State{}, ErrNotCreator
	}
	s.closed = true
	st := s.snapshot()
	obslog.L().Info("session_cancel", zap.String("session_id", s.id), zap.String("conn_id", conn))
	s.emitter.Emit(st, Closed{Reason: CloseCanceled})
	return st, nil
}

// Abandon closes the session when one of its seated connections goes away.
// It reports whether conn was seated.
func (s *Session) Abandon(conn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.seatOf(conn); !ok {
		return false
	}
	s.closed = true
	st := s.snapshot()
	obslog.L().Info("session_abandon",
		zap.String("session_id", s.id),
		zap.String("conn_id", conn),
		zap.String("phase", string(s.phase)),
	)
	s.emitter.Emit(st, Closed{Reason: CloseAbandoned})
	return true
}

func (s *Session) conclude(o Outcome) {
	s.phase = PhaseConcluded
	s.outcome = &o
	s.endedAt = s.now()
}

func (s *Session) seatOf(conn string) (Seat, bool) {
	switch {
	case conn == "":
		return "", false
	case s.seats.First == conn:
		return SeatFirst, true
	case s.seats.Second == conn:
		return SeatSecond, true
	}
	return "", false
}

func (s *Session) snapshot() State {
	st := State{
		ID:          s.id,
		Instance:    s.instance,
		InviteToken: s.inviteToken,
		Phase:       s.phase,
		FEN:         s.position.FEN(),
		SideToMove:  s.rules.SideToMove(s.position),
		Moves:       append([]MoveRecord(nil), s.moves...),
		Captures: Captures{
			White: append([]string(nil), s.captures.White...),
			Black: append([]string(nil), s.captures.Black...),
		},
		Seats:     s.seats,
		Creator:   s.creator,
		Game:      s.game,
		CreatedAt: s.createdAt,
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
	if s.outcome != nil {
		o := *s.outcome
		st.Outcome = &o
	}
	return st
}

func cryptoIntn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
