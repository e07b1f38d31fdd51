package gamedto

type CreateGameRequest struct {
	Side string `json:"side"` // "white" | "black"
}

type CreateGameResponse struct {
	Code    string        `json:"code"`
	Session *SessionState `json:"session"`
}

type JoinGameRequest struct {
	Code string `json:"code"`
}

type MoveRequest struct {
	// Move is UCI or SAN; promotions must carry the piece ("e7e8q",
	// "e8=Q").
	Move string `json:"move"`
}

type ImmunityRequest struct {
	Side string `json:"side"`
	Kind string `json:"kind"`
}
