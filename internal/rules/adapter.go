// Package rules wraps the chess engine library behind the small surface
// the session core needs: replaying the authoritative move log,
// validating and applying candidate moves, and evaluating terminal
// positions, all filtered by the optional immune-piece overlay.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	// ErrIllegalMove covers syntactically broken notation, moves the
	// engine rejects, and captures blocked by the immune overlay.
	ErrIllegalMove = errors.New("illegal move")
	// ErrPromotionRequired flags a pawn push to the last rank submitted
	// without a promotion piece. The move must be resubmitted paired
	// with one.
	ErrPromotionRequired = errors.New("promotion piece required")
)

// StartingFEN is the standard initial position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Replay reconstructs a game by applying the stored UCI move list from
// the standard starting position. The stored FEN is presentation state;
// replay is the source of truth.
func Replay(movesUCI []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, mv := range movesUCI {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, mv, err)
		}
	}
	return game, nil
}

// GameFromFEN builds a game rooted at an arbitrary position.
func GameFromFEN(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return nchess.NewGame(opt), nil
}

// Applied describes a move accepted onto a game.
type Applied struct {
	SAN string
	UCI string
}

// Apply validates moveStr against game's current position (UCI first,
// SAN fallback, matching how moves arrive from clients) filtered by the
// immune set, then applies it. The position the caller validated
// against locally is irrelevant: only the current authoritative
// position counts.
func Apply(game *nchess.Game, moveStr string, immune ImmuneSet) (Applied, error) {
	raw := strings.TrimSpace(moveStr)
	if raw == "" {
		return Applied{}, ErrIllegalMove
	}
	pos := game.Position()

	candidate := decodeCandidate(pos, raw)
	if candidate == nil {
		return Applied{}, promotionOrIllegal(pos, raw, immune)
	}

	// Match against the generated move list so tags (capture, en
	// passant, check) are trustworthy regardless of input notation.
	mv, ok := matchValid(pos, candidate)
	if !ok {
		return Applied{}, promotionOrIllegal(pos, raw, immune)
	}
	if capturesImmune(pos, mv, immune) {
		return Applied{}, fmt.Errorf("%w: target piece is invincible", ErrIllegalMove)
	}

	san := nchess.AlgebraicNotation{}.Encode(pos, &mv)
	if err := game.Move(&mv, nil); err != nil {
		return Applied{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	return Applied{SAN: san, UCI: mv.String()}, nil
}

// promotionOrIllegal classifies a move string the position rejected. A
// promotionless push to the last rank asks for the promotion piece,
// unless the landing square holds an immune piece: no choice of piece
// can make that capture legal, so it is rejected against the pre-move
// position before any promotion prompt.
func promotionOrIllegal(pos *nchess.Position, raw string, immune ImmuneSet) error {
	if !needsPromotion(pos, raw) {
		return ErrIllegalMove
	}
	if sq, ok := destinationSquare(raw); ok && immuneAt(pos, sq, immune) {
		return fmt.Errorf("%w: target piece is invincible", ErrIllegalMove)
	}
	return ErrPromotionRequired
}

// destinationSquare extracts the landing square from a UCI or SAN move
// string, tolerating check suffixes.
func destinationSquare(raw string) (nchess.Square, bool) {
	trimmed := strings.ToLower(strings.TrimRight(strings.TrimSpace(raw), "+#"))
	if len(trimmed) < 2 {
		return nchess.NoSquare, false
	}
	f := trimmed[len(trimmed)-2]
	r := trimmed[len(trimmed)-1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(f-'a'), nchess.Rank(r-'1')), true
}

// decodeCandidate parses raw against pos without judging legality.
func decodeCandidate(pos *nchess.Position, raw string) *nchess.Move {
	if mv, err := (nchess.UCINotation{}).Decode(pos, strings.ToLower(raw)); err == nil {
		return mv
	}
	if mv, err := (nchess.AlgebraicNotation{}).Decode(pos, raw); err == nil {
		return mv
	}
	return nil
}

func matchValid(pos *nchess.Position, candidate *nchess.Move) (nchess.Move, bool) {
	for _, mv := range pos.ValidMoves() {
		if mv.S1() == candidate.S1() && mv.S2() == candidate.S2() && mv.Promo() == candidate.Promo() {
			return mv, true
		}
	}
	return nchess.Move{}, false
}

// sanPromotionless matches pawn pushes/captures to the last rank
// written without "=<piece>".
var sanPromotionless = regexp.MustCompile(`^([a-h]x)?[a-h][18][+#]?$`)

func needsPromotion(pos *nchess.Position, raw string) bool {
	lower := strings.ToLower(raw)
	if mv, err := (nchess.UCINotation{}).Decode(pos, lower); err == nil {
		if mv.Promo() != nchess.NoPieceType {
			return false
		}
		piece := pos.Board().Piece(mv.S1())
		if piece == nchess.NoPiece || piece.Type() != nchess.Pawn || piece.Color() != pos.Turn() {
			return false
		}
		return mv.S2().Rank() == nchess.Rank8 || mv.S2().Rank() == nchess.Rank1
	}
	return sanPromotionless.MatchString(raw)
}

// LegalMoves lists the legal moves from a square, with immune-protected
// captures removed.
func LegalMoves(pos *nchess.Position, from nchess.Square, immune ImmuneSet) []nchess.Move {
	var out []nchess.Move
	for _, mv := range pos.ValidMoves() {
		if mv.S1() != from {
			continue
		}
		if capturesImmune(pos, mv, immune) {
			continue
		}
		out = append(out, mv)
	}
	return out
}

// InCheck reports whether the side to move is in check. The side to
// move is flipped on a copy of the position and the opponent's replies
// are scanned for one landing on the king square.
func InCheck(pos *nchess.Position) bool {
	kingSq := kingSquare(pos.Board(), pos.Turn())
	if kingSq == nchess.NoSquare {
		return false
	}
	fields := strings.Fields(pos.String())
	if len(fields) < 4 {
		return false
	}
	if fields[1] == "w" {
		fields[1] = "b"
	} else {
		fields[1] = "w"
	}
	fields[3] = "-" // en passant target is meaningless after the flip
	flipped, err := GameFromFEN(strings.Join(fields, " "))
	if err != nil {
		return false
	}
	for _, mv := range flipped.Position().ValidMoves() {
		if mv.S2() == kingSq {
			return true
		}
	}
	return false
}

func kingSquare(board *nchess.Board, side nchess.Color) nchess.Square {
	for sq, piece := range board.SquareMap() {
		if piece.Color() == side && piece.Type() == nchess.King {
			return sq
		}
	}
	return nchess.NoSquare
}

// Termination is the immune-aware terminal evaluation of a game.
type Termination struct {
	Over   bool
	Draw   bool
	Winner nchess.Color // set when Over and not Draw
	Method string       // "checkmate", "stalemate", or a draw rule name
}

// Terminal evaluates whether the game has ended, threading the immune
// set through the side-to-move's response count. Filtering only ever
// shrinks the response list, so standard outcomes are checked first and
// remain valid under the overlay.
func Terminal(game *nchess.Game, immune ImmuneSet) Termination {
	switch game.Outcome() {
	case nchess.WhiteWon:
		return Termination{Over: true, Winner: nchess.White, Method: methodName(game.Method())}
	case nchess.BlackWon:
		return Termination{Over: true, Winner: nchess.Black, Method: methodName(game.Method())}
	case nchess.Draw:
		return Termination{Over: true, Draw: true, Method: methodName(game.Method())}
	}

	pos := game.Position()
	responses := 0
	for _, mv := range pos.ValidMoves() {
		if capturesImmune(pos, mv, immune) {
			continue
		}
		responses++
	}
	if responses > 0 {
		return Termination{}
	}
	if InCheck(pos) {
		return Termination{Over: true, Winner: pos.Turn().Other(), Method: "checkmate"}
	}
	return Termination{Over: true, Draw: true, Method: "stalemate"}
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return "repetition"
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return "move rule"
	default:
		return "unknown"
	}
}
