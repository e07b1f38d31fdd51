package gamedto

// DomainError is the structured failure surface of the gateway. Only
// Conflict is worth retrying; every other code is terminal for that
// call.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "livechess error"
}

const (
	CodeNotFound          = "not_found"
	CodeSessionFull       = "session_full"
	CodeNotAParticipant   = "not_a_participant"
	CodeNotYourTurn       = "not_your_turn"
	CodeIllegalMove       = "illegal_move"
	CodePromotionRequired = "promotion_required"
	CodeGameOver          = "game_over"
	CodeConflict          = "conflict"
	CodeUnauthenticated   = "unauthenticated"
	CodeInvalidArgs       = "invalid_args"
	CodeInternal          = "internal"
)

type ErrorResponse struct {
	Error DomainError `json:"error"`
}
