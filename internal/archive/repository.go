// Package archive persists finished games to Postgres. The document
// store keeps only live state; completed matches land here with a
// rendered PGN so history survives the session TTL.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/devharu/livechess/internal/session"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished session. Idempotent on session id so a
// retried completion commit cannot duplicate rows.
func (r *Repository) SaveResult(ctx context.Context, g *session.GameSession, method string) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}

	movesSAN, _ := json.Marshal(g.MovesSAN)
	movesUCI, _ := json.Marshal(g.MovesUCI)
	immune, _ := json.Marshal(g.Immune)
	pgn := BuildPGN(g, method)
	duration := g.UpdatedAt.Sub(g.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO livechess_games (
		session_id, code,
		white_uid, white_name, black_uid, black_name,
		result, result_method, moves_san, moves_uci, immune, pgn,
		started_at, ended_at, duration_ms
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10::jsonb,$11::jsonb,$12,$13,$14,$15
	) ON CONFLICT (session_id) DO UPDATE SET
		result=EXCLUDED.result,
		result_method=EXCLUDED.result_method,
		moves_san=EXCLUDED.moves_san,
		moves_uci=EXCLUDED.moves_uci,
		immune=EXCLUDED.immune,
		pgn=EXCLUDED.pgn,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	var whiteUID, whiteName, blackUID, blackName string
	if g.White != nil {
		whiteUID, whiteName = g.White.UID, g.White.DisplayName
	}
	if g.Black != nil {
		blackUID, blackName = g.Black.UID, g.Black.DisplayName
	}

	_, err := r.db.ExecContext(ctx, q,
		g.ID, g.Code,
		whiteUID, whiteName, blackUID, blackName,
		string(g.Result), strings.TrimSpace(method),
		string(movesSAN), string(movesUCI), string(immune), pgn,
		g.CreatedAt, g.UpdatedAt, duration,
	)
	return err
}
