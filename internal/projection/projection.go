// Package projection rebuilds per-client display state from the
// authoritative record. It is never patched incrementally: every change
// notification throws the previous projection away and replays the move
// log in full, so a locally speculative move can never outlive the
// authoritative outcome.
package projection

import (
	"github.com/devharu/livechess/internal/rules"
	"github.com/devharu/livechess/internal/session"
)

// MoveDetail annotates one applied move with the metadata the compact
// log does not carry.
type MoveDetail struct {
	Number int    `json:"number"` // full-move number, 1-based
	Side   string `json:"side"`
	SAN    string `json:"san"`
	UCI    string `json:"uci"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Row pairs white and black moves for tabular display.
type Row struct {
	Number int    `json:"number"`
	White  string `json:"white"`
	Black  string `json:"black"`
}

// Projection is the client-local reconstruction of a session. It is
// derived state only; the record it was built from stays authoritative.
type Projection struct {
	SessionID string          `json:"session_id"`
	Code      string          `json:"code"`
	FEN       string          `json:"fen"`
	Status    session.Status  `json:"status"`
	Result    session.Result  `json:"result,omitempty"`
	Turn      session.Color   `json:"turn"`
	WhiteName string          `json:"white_name,omitempty"`
	BlackName string          `json:"black_name,omitempty"`
	Immune    rules.ImmuneSet `json:"immune,omitempty"`

	Moves []MoveDetail `json:"moves"`
	Rows  []Row        `json:"rows"`

	// viewer-relative flags
	YourSide session.Color `json:"your_side,omitempty"`
	YourTurn bool          `json:"your_turn"`
	InCheck  bool          `json:"in_check"` // side to move, recomputed on every rebuild
}

// Build replays the session's move log from the starting position and
// derives the full display state for viewerUID.
func Build(g *session.GameSession, viewerUID string) (*Projection, error) {
	game, err := rules.Replay(g.MovesUCI)
	if err != nil {
		return nil, err
	}

	p := &Projection{
		SessionID: g.ID,
		Code:      g.Code,
		FEN:       game.FEN(),
		Status:    g.Status,
		Result:    g.Result,
		Turn:      g.Turn,
		Immune:    g.Immune,
		YourSide:  g.PlayerSide(viewerUID),
		InCheck:   rules.InCheck(game.Position()),
	}
	if g.White != nil {
		p.WhiteName = g.White.DisplayName
	}
	if g.Black != nil {
		p.BlackName = g.Black.DisplayName
	}
	p.YourTurn = g.Live() && p.YourSide != "" && p.YourSide == g.Turn

	applied := game.Moves()
	for i, mv := range applied {
		if i >= len(g.MovesSAN) {
			break
		}
		side := string(session.White)
		if i%2 == 1 {
			side = string(session.Black)
		}
		p.Moves = append(p.Moves, MoveDetail{
			Number: i/2 + 1,
			Side:   side,
			SAN:    g.MovesSAN[i],
			UCI:    g.MovesUCI[i],
			From:   mv.S1().String(),
			To:     mv.S2().String(),
		})
	}
	for i := 0; i < len(g.MovesSAN); i += 2 {
		row := Row{Number: i/2 + 1, White: g.MovesSAN[i]}
		if i+1 < len(g.MovesSAN) {
			row.Black = g.MovesSAN[i+1]
		}
		p.Rows = append(p.Rows, row)
	}
	return p, nil
}
