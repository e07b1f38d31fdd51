package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devharu/livechess/internal/identity"
	"github.com/devharu/livechess/internal/obslog"
	"github.com/devharu/livechess/internal/rules"
)

const (
	codeLength       = 6
	codeGenAttempts  = 5
	joinRaceAttempts = 2
)

// Manager owns the session lifecycle: creation with a shareable join
// code, matching a second player, and abandonment. Move application
// lives in the play coordinator.
type Manager struct {
	store *Store
}

func NewManager(store *Store) *Manager { return &Manager{store: store} }

func (m *Manager) Store() *Store { return m.store }

// Create opens a new session with the creator bound to the chosen side
// and status waiting. Code collisions against live sessions are handled
// by regeneration; the store's SetNX reservation is the arbiter.
func (m *Manager) Create(ctx context.Context, ident identity.Identity, side Color) (*GameSession, error) {
	if !ident.Valid() {
		return nil, ErrUnauthenticated
	}
	if side != White && side != Black {
		return nil, ErrInvalidArgs
	}

	player := &Player{UID: ident.UID, DisplayName: ident.Name(), Email: ident.Email}
	for i := 0; i < codeGenAttempts; i++ {
		code, err := newCode()
		if err != nil {
			return nil, err
		}
		now := time.Now()
		g := &GameSession{
			ID:        uuid.NewString(),
			Code:      code,
			FEN:       rules.StartingFEN,
			MovesSAN:  []string{},
			MovesUCI:  []string{},
			Turn:      White,
			Status:    StatusWaiting,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if side == White {
			g.White = player
		} else {
			g.Black = player
		}
		err = m.store.Create(ctx, g)
		if errors.Is(err, errCodeTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		obslog.L().Info("session_create",
			zap.String("session_id", g.ID),
			zap.String("code", g.Code),
			zap.String("creator_uid", ident.UID),
			zap.String("side", string(side)),
		)
		return g, nil
	}
	return nil, fmt.Errorf("failed to allocate join code")
}

// Join binds ident to the session behind code. Rejoining with an
// already-bound identity succeeds without touching the record. Racing
// joiners are serialized by the store's transaction: the loser retries
// once and either lands in the remaining slot or fails.
func (m *Manager) Join(ctx context.Context, ident identity.Identity, code string) (*GameSession, error) {
	if !ident.Valid() {
		return nil, ErrUnauthenticated
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return nil, ErrNotFound
	}

	var lastErr error
	for i := 0; i < joinRaceAttempts; i++ {
		cur, err := m.store.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if cur == nil || !cur.Live() {
			return nil, ErrNotFound
		}
		g, err := m.store.Mutate(ctx, cur.ID, func(s *GameSession) error {
			return bindJoiner(s, ident)
		})
		if errors.Is(err, ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}
		obslog.L().Info("session_join",
			zap.String("session_id", g.ID),
			zap.String("code", g.Code),
			zap.String("joiner_uid", ident.UID),
			zap.String("status", string(g.Status)),
		)
		return g, nil
	}
	return nil, lastErr
}

func bindJoiner(s *GameSession, ident identity.Identity) error {
	if !s.Live() {
		return ErrNotFound
	}
	// rejoin: identity already holds a seat
	if s.PlayerSide(ident.UID) != "" {
		return errUnchanged
	}
	player := &Player{UID: ident.UID, DisplayName: ident.Name(), Email: ident.Email}
	switch {
	case s.White == nil:
		s.White = player
	case s.Black == nil:
		s.Black = player
	default:
		return ErrSessionFull
	}
	if s.White != nil && s.Black != nil {
		s.Status = StatusActive
	}
	return nil
}

// Get fetches a session by id.
func (m *Manager) Get(ctx context.Context, id string) (*GameSession, error) {
	g, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	return g, nil
}

// GetByCode fetches a live session by join code.
func (m *Manager) GetByCode(ctx context.Context, code string) (*GameSession, error) {
	g, err := m.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if g == nil || !g.Live() {
		return nil, ErrNotFound
	}
	return g, nil
}

// Abandon marks the session abandoned. Participants only; abandonment
// is a status transition, the record is never deleted in-band.
func (m *Manager) Abandon(ctx context.Context, ident identity.Identity, id string) (*GameSession, error) {
	if !ident.Valid() {
		return nil, ErrUnauthenticated
	}
	g, err := m.store.Mutate(ctx, id, func(s *GameSession) error {
		if s.PlayerSide(ident.UID) == "" {
			return ErrNotAParticipant
		}
		if !s.Live() {
			return ErrGameOver
		}
		s.Status = StatusAbandoned
		s.Result = ResultAbandoned
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("session_abandon",
		zap.String("session_id", g.ID),
		zap.String("uid", ident.UID),
	)
	return g, nil
}

// Subscribe exposes the store's live change feed.
func (m *Manager) Subscribe(ctx context.Context, id string, fn func(*GameSession)) (func(), error) {
	return m.store.Subscribe(ctx, id, fn)
}

// newCode returns 6 upper-alphanumeric characters from crypto/rand.
func newCode() (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}
