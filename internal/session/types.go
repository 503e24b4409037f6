package session

import (
	"strings"
	"time"

	"github.com/park285/cheese-arena/internal/rules"
)

// Phase is the lifecycle of a session.
type Phase string

const (
	PhaseAwaiting   Phase = "awaiting_second_player"
	PhaseInProgress Phase = "in_progress"
	PhaseConcluded  Phase = "concluded"
)

// Seat is one of the two playing positions. First plays white.
type Seat string

const (
	SeatFirst  Seat = "first"
	SeatSecond Seat = "second"
)

func (s Seat) Side() rules.Side {
	if s == SeatSecond {
		return rules.Black
	}
	return rules.White
}

func SeatFor(side rules.Side) Seat {
	if side == rules.Black {
		return SeatSecond
	}
	return SeatFirst
}

// Role is a seat request.
type Role string

const (
	RoleFirst  Role = "first"
	RoleSecond Role = "second"
	RoleRandom Role = "random"
)

// ParseRole accepts seat names and their colour aliases. Empty means random.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first", "white", "w":
		return RoleFirst, true
	case "second", "black", "b":
		return RoleSecond, true
	case "", "random", "any":
		return RoleRandom, true
	default:
		return "", false
	}
}

// MoveRecord is one entry of the move log.
type MoveRecord struct {
	Seq       int    `json:"seq"`
	From      string `json:"from"`
	To        string `json:"to"`
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
	Promotion string `json:"promotion,omitempty"`
}

// Notation is the plain from-to form shown in history updates.
func (m MoveRecord) Notation() string { return m.From + "-" + m.To }

// Captures holds captured unit ids keyed by the side that took them.
type Captures struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type Seats struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

func (s Seats) Occupant(seat Seat) string {
	if seat == SeatSecond {
		return s.Second
	}
	return s.First
}

// Occupied lists the non-empty seat occupants.
func (s Seats) Occupied() []string {
	out := make([]string, 0, 2)
	if s.First != "" {
		out = append(out, s.First)
	}
	if s.Second != "" {
		out = append(out, s.Second)
	}
	return out
}

// Outcome of a concluded game. Winner is empty for draws.
type Outcome struct {
	Reason string     `json:"reason"`
	Winner rules.Side `json:"winner_side,omitempty"`
}

const (
	ReasonCheckmate   = "checkmate"
	ReasonResignation = "resignation"

	CloseCanceled  = "canceled"
	CloseAbandoned = "opponent_disconnected"
)

// State is a point-in-time copy of a session.
type State struct {
	ID          string
	// Instance is unique per Session value, even when a closed id is reused.
	Instance    string
	InviteToken string
	Phase       Phase
	FEN         string
	SideToMove  rules.Side
	Moves       []MoveRecord
	Captures    Captures
	Seats       Seats
	Creator     string
	Game        int
	Outcome     *Outcome
	CreatedAt   time.Time
	StartedAt   time.Time
	EndedAt     time.Time
}

// Summary is the lobby view of an open session.
type Summary struct {
	ID          string
	InviteToken string
	FirstTaken  bool
	SecondTaken bool
	CreatedAt   time.Time
}

func (s Summary) Occupied() int {
	n := 0
	if s.FirstTaken {
		n++
	}
	if s.SecondTaken {
		n++
	}
	return n
}
