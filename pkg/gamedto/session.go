// Package gamedto defines the wire types exchanged with the livechess
// gateway. It has no dependency on the server internals so external
// clients can import it directly.
package gamedto

import "time"

type PlayerState struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type ImmunePieceState struct {
	Side string `json:"side"`
	Kind string `json:"kind"`
}

// SessionState mirrors the authoritative game record.
type SessionState struct {
	ID       string             `json:"id"`
	Code     string             `json:"code"`
	FEN      string             `json:"fen"`
	MovesSAN []string           `json:"moves_san"`
	MovesUCI []string           `json:"moves_uci"`
	White    *PlayerState       `json:"white,omitempty"`
	Black    *PlayerState       `json:"black,omitempty"`
	Turn     string             `json:"turn"`
	Status   string             `json:"status"`
	Result   string             `json:"result,omitempty"`
	Immune   []ImmunePieceState `json:"immune,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StreamEvent is one frame on the session websocket. A nil Session with
// Present=false reports record absence (the initial snapshot contract).
type StreamEvent struct {
	Present bool          `json:"present"`
	Session *SessionState `json:"session,omitempty"`
}
