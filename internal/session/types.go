package session

import (
	"time"

	"github.com/devharu/livechess/internal/rules"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the session lifecycle state. Transitions are monotonic:
// waiting -> active -> completed | abandoned.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Result is present once a session is completed or abandoned.
type Result string

const (
	ResultWhiteWins Result = "white-wins"
	ResultBlackWins Result = "black-wins"
	ResultDraw      Result = "draw"
	ResultAbandoned Result = "abandoned"
)

// Player binds a seat to an identity.
type Player struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// GameSession is the authoritative record for one match, stored as a
// JSON document. MovesSAN is the portable move log; MovesUCI mirrors it
// move for move and is what replay consumes.
type GameSession struct {
	ID       string          `json:"id"`
	Code     string          `json:"code"`
	FEN      string          `json:"fen"`
	MovesSAN []string        `json:"moves_san"`
	MovesUCI []string        `json:"moves_uci"`
	White    *Player         `json:"white,omitempty"`
	Black    *Player         `json:"black,omitempty"`
	Turn     Color           `json:"turn"`
	Status   Status          `json:"status"`
	Result   Result          `json:"result,omitempty"`
	Immune   rules.ImmuneSet `json:"immune,omitempty"`

	// Version increases by one on every committed mutation and is the
	// compare-and-swap token for the store.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Live reports whether the session still accepts joins and moves.
func (g *GameSession) Live() bool {
	return g.Status == StatusWaiting || g.Status == StatusActive
}

// PlayerSide returns the seat bound to uid, or "" when uid occupies
// neither slot.
func (g *GameSession) PlayerSide(uid string) Color {
	if uid == "" {
		return ""
	}
	if g.White != nil && g.White.UID == uid {
		return White
	}
	if g.Black != nil && g.Black.UID == uid {
		return Black
	}
	return ""
}

// PlayerFor returns the slot for a side.
func (g *GameSession) PlayerFor(side Color) *Player {
	if side == Black {
		return g.Black
	}
	return g.White
}

// TurnFromLog derives side to move from move-log parity. It must always
// agree with the stored Turn field.
func TurnFromLog(moves int) Color {
	if moves%2 == 0 {
		return White
	}
	return Black
}

// Errors surfaced to callers as structured results.
var (
	ErrNotFound        = errf("session not found")
	ErrSessionFull     = errf("session already has two players")
	ErrNotAParticipant = errf("identity is not bound to this session")
	ErrNotYourTurn     = errf("not your turn")
	ErrGameOver        = errf("session is no longer playable")
	ErrConflict        = errf("session changed concurrently")
	ErrUnauthenticated = errf("identity required")
	ErrInvalidArgs     = errf("invalid arguments")

	// errCodeTaken stays internal: the manager regenerates the code.
	errCodeTaken = errf("join code already reserved")
	// errUnchanged aborts a mutation without writing anything.
	errUnchanged = errf("session unchanged")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

func errf(s string) error { return staticErr(s) }
