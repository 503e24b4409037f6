package hub

import (
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

func seatFrame(st session.State, seat session.Seat) arenadto.Frame {
	return arenadto.NewFrame(arenadto.TypeSeatAssignment, "", arenadto.SeatAssignment{
		SessionID:   st.ID,
		Seats:       arenadto.SeatMap{First: st.Seats.First, Second: st.Seats.Second},
		YourSeat:    string(seat),
		InviteToken: st.InviteToken,
		Phase:       string(st.Phase),
	})
}

func positionFrame(st session.State) arenadto.Frame {
	return arenadto.NewFrame(arenadto.TypePositionUpdate, "", arenadto.PositionUpdate{
		SessionID:  st.ID,
		FEN:        st.FEN,
		SideToMove: string(st.SideToMove),
		Phase:      string(st.Phase),
	})
}

func historyFrame(st session.State) arenadto.Frame {
	moves, san := history(st)
	return arenadto.NewFrame(arenadto.TypeHistoryUpdate, "", arenadto.HistoryUpdate{
		SessionID: st.ID,
		Moves:     moves,
		SAN:       san,
	})
}

func capturesFrame(st session.State) arenadto.Frame {
	return arenadto.NewFrame(arenadto.TypeCapturesUpdate, "", captures(st))
}

func checkFrame(st session.State, side rules.Side, msgs *msgcat.Catalog) arenadto.Frame {
	return arenadto.NewFrame(arenadto.TypeCheckNotice, "", arenadto.CheckNotice{
		SessionID: st.ID,
		Side:      string(side),
		Message:   msgs.Text("notice.check", "check", map[string]string{"Side": title(side)}),
	})
}

func gameOverFrame(st session.State, o session.Outcome, msgs *msgcat.Catalog) arenadto.Frame {
	p := gameOver(st.ID, o, msgs)
	return arenadto.NewFrame(arenadto.TypeGameOver, "", p)
}

func gameOver(id string, o session.Outcome, msgs *msgcat.Catalog) arenadto.GameOver {
	var msg string
	switch o.Reason {
	case session.ReasonCheckmate:
		msg = msgs.Text("notice.game_over.checkmate", o.Reason, map[string]string{"Winner": title(o.Winner)})
	case session.ReasonResignation:
		msg = msgs.Text("notice.game_over.resignation", o.Reason, map[string]string{
			"Winner": title(o.Winner),
			"Loser":  title(o.Winner.Opponent()),
		})
	default:
		msg = msgs.Text("notice.game_over.draw", "draw", map[string]string{"Method": o.Reason})
	}
	return arenadto.GameOver{SessionID: id, Reason: o.Reason, WinnerSide: string(o.Winner), Message: msg}
}

func closedFrame(st session.State, reason string, msgs *msgcat.Catalog) arenadto.Frame {
	return arenadto.NewFrame(arenadto.TypeSessionClosed, "", arenadto.SessionClosed{
		SessionID: st.ID,
		Reason:    reason,
		Message:   msgs.Text("notice.closed."+reason, reason, nil),
	})
}

// View builds the public read model of a session.
func View(st session.State, msgs *msgcat.Catalog) arenadto.SessionView {
	moves, san := history(st)
	v := arenadto.SessionView{
		SessionID:   st.ID,
		Phase:       string(st.Phase),
		FEN:         st.FEN,
		SideToMove:  string(st.SideToMove),
		Moves:       moves,
		SAN:         san,
		Captures:    captures(st),
		Seats:       arenadto.SeatOccupancy{First: st.Seats.First != "", Second: st.Seats.Second != ""},
		InviteToken: st.InviteToken,
		Game:        st.Game,
		CreatedAt:   st.CreatedAt,
	}
	if st.Outcome != nil {
		over := gameOver(st.ID, *st.Outcome, msgs)
		v.Outcome = &over
	}
	return v
}

func history(st session.State) ([]string, []string) {
	moves := make([]string, 0, len(st.Moves))
	san := make([]string, 0, len(st.Moves))
	for _, m := range st.Moves {
		moves = append(moves, m.Notation())
		san = append(san, m.SAN)
	}
	return moves, san
}

func captures(st session.State) arenadto.CapturesUpdate {
	return arenadto.CapturesUpdate{
		SessionID: st.ID,
		White:     append([]string{}, st.Captures.White...),
		Black:     append([]string{}, st.Captures.Black...),
	}
}

func title(s rules.Side) string {
	switch s {
	case rules.White:
		return "White"
	case rules.Black:
		return "Black"
	}
	return string(s)
}
