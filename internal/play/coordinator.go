// Package play coordinates move and overlay mutations against the
// authoritative game record. Turn ownership plus the store's
// compare-and-swap are the only concurrency controls: no locks are
// exposed to callers.
package play

import (
	"context"
	"errors"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/devharu/livechess/internal/archive"
	"github.com/devharu/livechess/internal/identity"
	"github.com/devharu/livechess/internal/obslog"
	"github.com/devharu/livechess/internal/rules"
	"github.com/devharu/livechess/internal/session"
)

// submitAttempts bounds conflict handling: one internal retry from a
// fresh read, then the conflict surfaces to the caller.
const submitAttempts = 2

type Coordinator struct {
	store *session.Store
	repo  *archive.Repository
}

func NewCoordinator(store *session.Store) *Coordinator {
	return &Coordinator{store: store}
}

// AttachArchive wires a database repository for persisting finished
// games.
func (c *Coordinator) AttachArchive(r *archive.Repository) {
	if c != nil {
		c.repo = r
	}
}

// SubmitMove validates moveStr against the current authoritative
// position, never the submitting client's copy, and commits the move
// log append, position, turn flip, and any terminal status in a single
// atomic update.
func (c *Coordinator) SubmitMove(ctx context.Context, ident identity.Identity, sessionID, moveStr string) (*session.GameSession, error) {
	if !ident.Valid() {
		return nil, session.ErrUnauthenticated
	}

	var (
		g      *session.GameSession
		method string
		err    error
	)
	for attempt := 0; attempt < submitAttempts; attempt++ {
		method = ""
		g, err = c.store.Mutate(ctx, sessionID, func(cur *session.GameSession) error {
			if !cur.Live() {
				return session.ErrGameOver
			}
			side := cur.PlayerSide(ident.UID)
			if side == "" {
				return session.ErrNotAParticipant
			}
			if side != cur.Turn {
				return session.ErrNotYourTurn
			}

			game, rerr := rules.Replay(cur.MovesUCI)
			if rerr != nil {
				return rerr
			}
			applied, rerr := rules.Apply(game, moveStr, cur.Immune)
			if rerr != nil {
				return rerr
			}

			cur.MovesSAN = append(cur.MovesSAN, applied.SAN)
			cur.MovesUCI = append(cur.MovesUCI, applied.UCI)
			cur.FEN = game.FEN()
			cur.Turn = colorFrom(game.Position().Turn())

			// terminal status rides the same commit as the move; there
			// is no window where a finished position is still active
			if term := rules.Terminal(game, cur.Immune); term.Over {
				cur.Status = session.StatusCompleted
				cur.Result = resultFrom(term)
				method = term.Method
			}
			return nil
		})
		if errors.Is(err, session.ErrConflict) && attempt == 0 {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	obslog.L().Info("move_apply",
		zap.String("session_id", g.ID),
		zap.String("uid", ident.UID),
		zap.String("san", lastOf(g.MovesSAN)),
		zap.String("turn", string(g.Turn)),
		zap.String("status", string(g.Status)),
	)
	if g.Status == session.StatusCompleted {
		c.persistFinal(ctx, g, method)
	}
	return g, nil
}

// ToggleImmunity flips (side, kind) membership in the session's immune
// set. The overlay is metadata, not a move: either participant may
// toggle it at any time regardless of turn.
func (c *Coordinator) ToggleImmunity(ctx context.Context, ident identity.Identity, sessionID, side, kind string) (*session.GameSession, error) {
	if !ident.Valid() {
		return nil, session.ErrUnauthenticated
	}
	if !rules.ValidImmuneTarget(side, kind) {
		return nil, session.ErrInvalidArgs
	}
	g, err := c.store.Mutate(ctx, sessionID, func(cur *session.GameSession) error {
		if !cur.Live() {
			return session.ErrGameOver
		}
		if cur.PlayerSide(ident.UID) == "" {
			return session.ErrNotAParticipant
		}
		cur.Immune = cur.Immune.Toggle(side, kind)
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("immunity_toggle",
		zap.String("session_id", g.ID),
		zap.String("uid", ident.UID),
		zap.String("side", side),
		zap.String("kind", kind),
		zap.Int("set_size", len(g.Immune)),
	)
	return g, nil
}

func (c *Coordinator) persistFinal(ctx context.Context, g *session.GameSession, method string) {
	if c.repo == nil {
		return
	}
	if err := c.repo.SaveResult(ctx, g, method); err != nil {
		obslog.L().Error("archive_persist_error",
			zap.String("session_id", g.ID),
			zap.String("result", string(g.Result)),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("archive_persist",
		zap.String("session_id", g.ID),
		zap.String("result", string(g.Result)),
		zap.String("method", method),
	)
}

func colorFrom(c nchess.Color) session.Color {
	if c == nchess.White {
		return session.White
	}
	return session.Black
}

func resultFrom(term rules.Termination) session.Result {
	if term.Draw {
		return session.ResultDraw
	}
	if term.Winner == nchess.White {
		return session.ResultWhiteWins
	}
	return session.ResultBlackWins
}

func lastOf(moves []string) string {
	if len(moves) == 0 {
		return ""
	}
	return moves[len(moves)-1]
}
