package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Side is the colour a seat plays.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) Valid() bool { return s == White || s == Black }

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrIllegalMove is wrapped by every Apply rejection.
var ErrIllegalMove = errors.New("illegal move")

// Position is an immutable board state: the FEN plus the UCI moves that led to it
// from the start position. Callers treat it as opaque.
type Position struct {
	fen   string
	moves []string
}

func (p Position) FEN() string {
	if p.fen == "" {
		return StartFEN
	}
	return p.fen
}

// Moves returns a copy of the UCI move list.
func (p Position) Moves() []string {
	out := make([]string, len(p.moves))
	copy(out, p.moves)
	return out
}

func (p Position) Ply() int { return len(p.moves) }

// Result describes one applied move.
type Result struct {
	Position Position
	Mover    Side
	UCI      string
	SAN      string
	// Captured is the identifier of the taken unit ("bp", "wq"), empty when nothing was taken.
	Captured   string
	Check      bool
	Checkmate  bool
	Draw       bool
	DrawMethod string
}

// Adapter validates and applies moves with corentings/chess.
type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Start() Position { return Position{fen: StartFEN} }

// SideToMove reads the active colour field of the position's FEN.
func (a *Adapter) SideToMove(p Position) Side {
	fields := strings.Fields(p.FEN())
	if len(fields) > 1 && fields[1] == "b" {
		return Black
	}
	return White
}

// Apply validates from->to against the legal moves of p and returns the resulting position.
// A promoting move without an explicit piece promotes to a queen.
func (a *Adapter) Apply(p Position, from, to, promotion string) (Result, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if !validSquare(from) || !validSquare(to) {
		return Result{}, fmt.Errorf("%w: bad square %q-%q", ErrIllegalMove, from, to)
	}
	if from == to {
		return Result{}, fmt.Errorf("%w: origin equals destination", ErrIllegalMove)
	}
	promo, err := parsePromotion(promotion)
	if err != nil {
		return Result{}, err
	}

	game := reconstruct(p.moves)
	if game == nil {
		return Result{}, fmt.Errorf("%w: position could not be rebuilt", ErrIllegalMove)
	}
	pos := game.Position()
	uci := findLegal(game, from, to, promo)
	if uci == "" {
		return Result{}, fmt.Errorf("%w: %s-%s", ErrIllegalMove, from, to)
	}
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	mover := colorFrom(pos.Turn())

	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	last := lastMove(game)

	moves := make([]string, len(p.moves), len(p.moves)+1)
	copy(moves, p.moves)
	res := Result{
		Position: Position{fen: game.FEN(), moves: append(moves, uci)},
		Mover:    mover,
		UCI:      uci,
		SAN:      san,
		Captured: capturedUnit(pos, last),
		Check:    last != nil && last.HasTag(nchess.Check),
	}

	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		if game.Method() == nchess.Checkmate {
			res.Checkmate = true
			res.Check = true
		}
	case nchess.Draw:
		res.Draw = true
		res.DrawMethod = methodName(game.Method())
	}
	return res, nil
}

func findLegal(game *nchess.Game, from, to string, promo nchess.PieceType) string {
	var fallback string
	for _, vm := range game.ValidMoves() {
		if vm.S1().String() != from || vm.S2().String() != to {
			continue
		}
		if vm.Promo() == promo {
			return vm.String()
		}
		// promoting move without an explicit piece
		if promo == nchess.NoPieceType && vm.Promo() == nchess.Queen {
			fallback = vm.String()
		}
	}
	return fallback
}

func capturedUnit(before *nchess.Position, mv *nchess.Move) string {
	if before == nil || mv == nil {
		return ""
	}
	sq := mv.S2()
	if mv.HasTag(nchess.EnPassant) {
		if before.Turn() == nchess.White {
			sq = nchess.NewSquare(sq.File(), sq.Rank()-1)
		} else {
			sq = nchess.NewSquare(sq.File(), sq.Rank()+1)
		}
	} else if !mv.HasTag(nchess.Capture) {
		return ""
	}
	piece := before.Board().Piece(sq)
	if piece == nchess.NoPiece {
		return ""
	}
	return pieceID(piece)
}

var pieceLetters = map[nchess.PieceType]string{
	nchess.King:   "k",
	nchess.Queen:  "q",
	nchess.Rook:   "r",
	nchess.Bishop: "b",
	nchess.Knight: "n",
	nchess.Pawn:   "p",
}

func pieceID(p nchess.Piece) string {
	c := "w"
	if p.Color() == nchess.Black {
		c = "b"
	}
	return c + pieceLetters[p.Type()]
}

func parsePromotion(s string) (nchess.PieceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nchess.NoPieceType, nil
	case "q":
		return nchess.Queen, nil
	case "r":
		return nchess.Rook, nil
	case "b":
		return nchess.Bishop, nil
	case "n":
		return nchess.Knight, nil
	default:
		return nchess.NoPieceType, fmt.Errorf("%w: unknown promotion %q", ErrIllegalMove, s)
	}
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.ThreefoldRepetition:
		return "threefold_repetition"
	case nchess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case nchess.FiftyMoveRule:
		return "fifty_move_rule"
	default:
		return "draw"
	}
}

func validSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

func reconstruct(moves []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorFrom(c nchess.Color) Side {
	if c == nchess.White {
		return White
	}
	return Black
}
