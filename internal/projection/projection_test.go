package projection

import (
	"testing"

	"github.com/devharu/livechess/internal/rules"
	"github.com/devharu/livechess/internal/session"
)

func sampleSession() *session.GameSession {
	return &session.GameSession{
		ID:       "sess-1",
		Code:     "ABC123",
		MovesSAN: []string{"e4", "f6", "Qh5+"},
		MovesUCI: []string{"e2e4", "f7f6", "d1h5"},
		White:    &session.Player{UID: "u1", DisplayName: "Alice"},
		Black:    &session.Player{UID: "u2", DisplayName: "Bob"},
		Turn:     session.Black,
		Status:   session.StatusActive,
		Version:  4,
	}
}

func TestBuildReplaysMoveLog(t *testing.T) {
	g := sampleSession()
	p, err := Build(g, "u2")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(p.Moves) != 3 {
		t.Fatalf("expected 3 move details, got %d", len(p.Moves))
	}
	first, last := p.Moves[0], p.Moves[2]
	if first.SAN != "e4" || first.From != "e2" || first.To != "e4" || first.Side != "white" {
		t.Fatalf("unexpected first move: %+v", first)
	}
	if last.Number != 2 || last.Side != "white" || last.UCI != "d1h5" {
		t.Fatalf("unexpected last move: %+v", last)
	}

	if len(p.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(p.Rows))
	}
	if p.Rows[0].White != "e4" || p.Rows[0].Black != "f6" {
		t.Fatalf("unexpected row pairing: %+v", p.Rows[0])
	}
	if p.Rows[1].White != "Qh5+" || p.Rows[1].Black != "" {
		t.Fatalf("trailing half-row wrong: %+v", p.Rows[1])
	}

	// the FEN comes from the replay, and black is in check from h5
	if p.FEN == "" || p.FEN == rules.StartingFEN {
		t.Fatalf("FEN not derived from replay: %q", p.FEN)
	}
	if !p.InCheck {
		t.Fatalf("side to move is in check after Qh5+")
	}
}

func TestBuildViewerFlags(t *testing.T) {
	g := sampleSession()

	black, err := Build(g, "u2")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if black.YourSide != session.Black || !black.YourTurn {
		t.Fatalf("black viewer flags wrong: side=%s yourTurn=%v", black.YourSide, black.YourTurn)
	}

	white, _ := Build(g, "u1")
	if white.YourSide != session.White || white.YourTurn {
		t.Fatalf("white viewer flags wrong: side=%s yourTurn=%v", white.YourSide, white.YourTurn)
	}

	spectator, _ := Build(g, "u9")
	if spectator.YourSide != "" || spectator.YourTurn {
		t.Fatalf("spectator must have no seat: %+v", spectator)
	}
	if spectator.WhiteName != "Alice" || spectator.BlackName != "Bob" {
		t.Fatalf("names missing: %+v", spectator)
	}
}

func TestBuildCompletedSessionNeverYourTurn(t *testing.T) {
	g := sampleSession()
	g.Status = session.StatusCompleted
	g.Result = session.ResultWhiteWins

	p, err := Build(g, "u2")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.YourTurn {
		t.Fatalf("finished games take no moves")
	}
	if p.Result != session.ResultWhiteWins {
		t.Fatalf("result not carried: %+v", p)
	}
}

func TestBuildEmptyLog(t *testing.T) {
	g := &session.GameSession{
		ID:     "sess-2",
		Status: session.StatusWaiting,
		Turn:   session.White,
	}
	p, err := Build(g, "u1")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.FEN != rules.StartingFEN || len(p.Moves) != 0 || len(p.Rows) != 0 {
		t.Fatalf("fresh session projection wrong: %+v", p)
	}
	if p.InCheck {
		t.Fatalf("starting position is not check")
	}
}
