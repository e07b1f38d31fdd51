package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, 0), rdb
}

func seedSession(t *testing.T, s *Store, code string) *GameSession {
	t.Helper()
	now := time.Now()
	g := &GameSession{
		ID:        "sess-" + code,
		Code:      code,
		FEN:       "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		MovesSAN:  []string{},
		MovesUCI:  []string{},
		White:     &Player{UID: "u1", DisplayName: "Alice"},
		Turn:      White,
		Status:    StatusWaiting,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Create(context.Background(), g); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return g
}

func TestStoreCreateAndLookup(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	g := seedSession(t, s, "ABC123")

	got, err := s.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.ID != g.ID || got.Version != 1 {
		t.Fatalf("unexpected document: %+v", got)
	}

	// code lookup is case-insensitive
	byCode, err := s.GetByCode(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if byCode == nil || byCode.ID != g.ID {
		t.Fatalf("code lookup failed: %+v", byCode)
	}

	missing, err := s.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("missing doc should be (nil, nil), got (%+v, %v)", missing, err)
	}
}

func TestStoreCreateRejectsReservedCode(t *testing.T) {
	s, _ := newTestStore(t)
	seedSession(t, s, "ABC123")

	dup := &GameSession{ID: "other", Code: "ABC123", Status: StatusWaiting, Version: 1}
	if err := s.Create(context.Background(), dup); !errors.Is(err, errCodeTaken) {
		t.Fatalf("duplicate code = %v, want errCodeTaken", err)
	}
}

func TestStoreMutateBumpsVersion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	g := seedSession(t, s, "ABC123")

	got, err := s.Mutate(ctx, g.ID, func(cur *GameSession) error {
		cur.Black = &Player{UID: "u2", DisplayName: "Bob"}
		cur.Status = StatusActive
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if got.Version != 2 || got.Status != StatusActive {
		t.Fatalf("unexpected mutated doc: version=%d status=%s", got.Version, got.Status)
	}

	// errUnchanged must not write or bump
	got, err = s.Mutate(ctx, g.ID, func(cur *GameSession) error { return errUnchanged })
	if err != nil {
		t.Fatalf("Mutate unchanged: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("unchanged mutation must not bump version, got %d", got.Version)
	}
}

func TestStoreMutateConflict(t *testing.T) {
	s, rdb := newTestStore(t)
	ctx := context.Background()
	g := seedSession(t, s, "ABC123")

	_, err := s.Mutate(ctx, g.ID, func(cur *GameSession) error {
		// interleaved writer commits between the read and the EXEC
		raw, merr := json.Marshal(cur)
		if merr != nil {
			return merr
		}
		if serr := rdb.Set(ctx, docKey(g.ID), raw, 0).Err(); serr != nil {
			return serr
		}
		cur.Status = StatusActive
		return nil
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("interleaved write = %v, want ErrConflict", err)
	}
}

func TestStoreMutateMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Mutate(context.Background(), "nope", func(cur *GameSession) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing doc = %v, want ErrNotFound", err)
	}
}

func TestStoreReleasesCodeWhenNotLive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	g := seedSession(t, s, "ABC123")

	if _, err := s.Mutate(ctx, g.ID, func(cur *GameSession) error {
		cur.Status = StatusCompleted
		cur.Result = ResultWhiteWins
		return nil
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	byCode, err := s.GetByCode(ctx, "ABC123")
	if err != nil || byCode != nil {
		t.Fatalf("code should be released after completion, got (%+v, %v)", byCode, err)
	}
	// the document itself survives
	got, err := s.Get(ctx, g.ID)
	if err != nil || got == nil || got.Status != StatusCompleted {
		t.Fatalf("document must outlive the code: (%+v, %v)", got, err)
	}
}

func TestStoreSubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	g := seedSession(t, s, "ABC123")

	events := make(chan *GameSession, 8)
	cancel, err := s.Subscribe(ctx, g.ID, func(cur *GameSession) { events <- cur })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	first := waitEvent(t, events)
	if first == nil || first.Version != 1 {
		t.Fatalf("initial snapshot missing: %+v", first)
	}

	if _, err := s.Mutate(ctx, g.ID, func(cur *GameSession) error {
		cur.Black = &Player{UID: "u2", DisplayName: "Bob"}
		cur.Status = StatusActive
		return nil
	}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	second := waitEvent(t, events)
	if second == nil || second.Version != 2 || second.Status != StatusActive {
		t.Fatalf("update not delivered: %+v", second)
	}

	cancel()
	if _, err := s.Mutate(ctx, g.ID, func(cur *GameSession) error {
		cur.Status = StatusAbandoned
		cur.Result = ResultAbandoned
		return nil
	}); err != nil {
		t.Fatalf("Mutate after cancel: %v", err)
	}
	select {
	case ev := <-events:
		t.Fatalf("event after cancel: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStoreSubscribeMissingSession(t *testing.T) {
	s, _ := newTestStore(t)
	events := make(chan *GameSession, 1)
	cancel, err := s.Subscribe(context.Background(), "nope", func(cur *GameSession) { events <- cur })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	if ev := waitEvent(t, events); ev != nil {
		t.Fatalf("absent session must deliver nil, got %+v", ev)
	}
}

func waitEvent(t *testing.T, ch <-chan *GameSession) *GameSession {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}
