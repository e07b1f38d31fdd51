package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ImmunePiece marks every piece of a given side and kind as exempt from
// capture. It is session metadata layered on top of standard chess; it
// is never encoded into the position or the move log.
type ImmunePiece struct {
	Side string `json:"side"` // "white" | "black"
	Kind string `json:"kind"` // "pawn", "knight", "bishop", "rook", "queen", "king"
}

// ImmuneSet is the overlay threaded through legality and terminal
// evaluation. Order is not significant.
type ImmuneSet []ImmunePiece

func (s ImmuneSet) Contains(color nchess.Color, kind nchess.PieceType) bool {
	for _, p := range s {
		if sideColor(p.Side) == color && pieceKind(p.Kind) == kind {
			return true
		}
	}
	return false
}

// Toggle flips membership of (side, kind) and returns the updated set.
func (s ImmuneSet) Toggle(side, kind string) ImmuneSet {
	side = strings.ToLower(strings.TrimSpace(side))
	kind = strings.ToLower(strings.TrimSpace(kind))
	out := make(ImmuneSet, 0, len(s)+1)
	removed := false
	for _, p := range s {
		if p.Side == side && p.Kind == kind {
			removed = true
			continue
		}
		out = append(out, p)
	}
	if !removed {
		out = append(out, ImmunePiece{Side: side, Kind: kind})
	}
	return out
}

// ValidImmuneTarget reports whether side and kind name a real piece
// descriptor.
func ValidImmuneTarget(side, kind string) bool {
	side = strings.ToLower(strings.TrimSpace(side))
	kind = strings.ToLower(strings.TrimSpace(kind))
	if side != "white" && side != "black" {
		return false
	}
	return pieceKind(kind) != nchess.NoPieceType
}

func sideColor(side string) nchess.Color {
	if strings.EqualFold(strings.TrimSpace(side), "black") {
		return nchess.Black
	}
	return nchess.White
}

func pieceKind(kind string) nchess.PieceType {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "pawn":
		return nchess.Pawn
	case "knight":
		return nchess.Knight
	case "bishop":
		return nchess.Bishop
	case "rook":
		return nchess.Rook
	case "queen":
		return nchess.Queen
	case "king":
		return nchess.King
	default:
		return nchess.NoPieceType
	}
}

// capturesImmune reports whether mv, played from pos, would capture a
// piece protected by the immune set. En passant captures a square the
// move does not land on, so the captured square is derived the same way
// the capture history walk does.
func capturesImmune(pos *nchess.Position, mv nchess.Move, set ImmuneSet) bool {
	if len(set) == 0 {
		return false
	}
	if !mv.HasTag(nchess.Capture) && !mv.HasTag(nchess.EnPassant) {
		return false
	}
	sq := mv.S2()
	if mv.HasTag(nchess.EnPassant) {
		if pos.Turn() == nchess.White {
			sq = nchess.NewSquare(sq.File(), sq.Rank()-1)
		} else {
			sq = nchess.NewSquare(sq.File(), sq.Rank()+1)
		}
	}
	return immuneAt(pos, sq, set)
}

// immuneAt reports whether the piece standing on sq is protected by the
// set.
func immuneAt(pos *nchess.Position, sq nchess.Square, set ImmuneSet) bool {
	if len(set) == 0 {
		return false
	}
	piece := pos.Board().Piece(sq)
	if piece == nchess.NoPiece {
		return false
	}
	return set.Contains(piece.Color(), piece.Type())
}
