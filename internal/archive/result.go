package archive

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cheese-arena/internal/session"
)

// Result is the record of one concluded game.
type Result struct {
	SessionID string    `json:"session_id"`
	Instance  string    `json:"instance"`
	Game      int       `json:"game"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Result    string    `json:"result"` // white | black | draw
	Method    string    `json:"method"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	PGN       string    `json:"pgn"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Recorder stores concluded games.
type Recorder interface {
	Record(ctx context.Context, r Result) error
}

// FromState converts a concluded session snapshot. ok is false while the game is still open.
func FromState(st session.State) (Result, bool) {
	if st.Phase != session.PhaseConcluded || st.Outcome == nil {
		return Result{}, false
	}
	r := Result{
		SessionID: st.ID,
		Instance:  st.Instance,
		Game:      st.Game,
		White:     st.Seats.First,
		Black:     st.Seats.Second,
		Result:    "draw",
		Method:    st.Outcome.Reason,
		MovesUCI:  make([]string, 0, len(st.Moves)),
		MovesSAN:  make([]string, 0, len(st.Moves)),
		StartedAt: st.StartedAt,
		EndedAt:   st.EndedAt,
	}
	if st.Outcome.Winner != "" {
		r.Result = string(st.Outcome.Winner)
	}
	for _, m := range st.Moves {
		r.MovesUCI = append(r.MovesUCI, m.UCI)
		r.MovesSAN = append(r.MovesSAN, m.SAN)
	}
	r.PGN = BuildPGN(r)
	return r, true
}

// Multi fans a result out to several recorders and joins their errors.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, r Result) error {
	var errs []error
	for _, rec := range m {
		if rec == nil {
			continue
		}
		if err := rec.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
