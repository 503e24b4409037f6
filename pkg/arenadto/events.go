package arenadto

import "time"

type Welcome struct {
	ConnectionID string `json:"connection_id"`
}

// SeatMap lists the connection occupying each seat, empty when free.
type SeatMap struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

type SeatAssignment struct {
	SessionID   string  `json:"session_id"`
	Seats       SeatMap `json:"seats"`
	YourSeat    string  `json:"your_seat"`
	InviteToken string  `json:"invite_token"`
	Phase       string  `json:"phase"`
}

type PositionUpdate struct {
	SessionID  string `json:"session_id"`
	FEN        string `json:"fen"`
	SideToMove string `json:"side_to_move"`
	Phase      string `json:"phase"`
}

// HistoryUpdate carries the full move log: Moves in "e2-e4" form, SAN aligned by index.
type HistoryUpdate struct {
	SessionID string   `json:"session_id"`
	Moves     []string `json:"moves"`
	SAN       []string `json:"san"`
}

// CapturesUpdate lists captured unit ids keyed by the capturing side.
type CapturesUpdate struct {
	SessionID string   `json:"session_id"`
	White     []string `json:"white"`
	Black     []string `json:"black"`
}

type CheckNotice struct {
	SessionID string `json:"session_id"`
	Side      string `json:"side"`
	Message   string `json:"message"`
}

type GameOver struct {
	SessionID  string `json:"session_id"`
	Reason     string `json:"reason"`
	WinnerSide string `json:"winner_side"`
	Message    string `json:"message"`
}

type SessionClosed struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}

type SeatOccupancy struct {
	First  bool `json:"first"`
	Second bool `json:"second"`
}

type OpenSession struct {
	SessionID   string        `json:"session_id"`
	Seats       SeatOccupancy `json:"seats"`
	Occupied    int           `json:"occupied"`
	InviteToken string        `json:"invite_token"`
	CreatedAt   time.Time     `json:"created_at"`
}

type OpenSessions struct {
	Sessions []OpenSession `json:"sessions"`
}

type Rejected struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// SessionView is the public read model served over HTTP. It carries no connection ids.
type SessionView struct {
	SessionID   string         `json:"session_id"`
	Phase       string         `json:"phase"`
	FEN         string         `json:"fen"`
	SideToMove  string         `json:"side_to_move"`
	Moves       []string       `json:"moves"`
	SAN         []string       `json:"san"`
	Captures    CapturesUpdate `json:"captures"`
	Seats       SeatOccupancy  `json:"seats"`
	InviteToken string         `json:"invite_token"`
	Game        int            `json:"game"`
	Outcome     *GameOver      `json:"outcome,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
