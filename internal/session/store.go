package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 24 * time.Hour

// Store is the authoritative document store for game sessions, backed
// by Redis. Every mutation goes through a WATCH transaction conditioned
// on the previously read document, and every committed mutation is
// published to the session's change feed in commit order.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// NewStoreFromURL dials Redis from a redis:// URL.
func NewStoreFromURL(redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func docKey(id string) string    { return "game:doc:" + strings.TrimSpace(id) }
func codeKey(code string) string { return "game:code:" + strings.ToUpper(strings.TrimSpace(code)) }
func eventsKey(id string) string { return "game:events:" + strings.TrimSpace(id) }

// Create writes a brand-new session document after reserving its join
// code. The reservation is atomic: a second creator racing for the same
// code loses the SetNX and regenerates.
func (s *Store) Create(ctx context.Context, g *GameSession) error {
	ok, err := s.rdb.SetNX(ctx, codeKey(g.Code), g.ID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errCodeTaken
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, docKey(g.ID), raw, s.ttl)
	pipe.Publish(ctx, eventsKey(g.ID), raw)
	_, err = pipe.Exec(ctx)
	return err
}

// Get returns the session document, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*GameSession, error) {
	raw, err := s.rdb.Get(ctx, docKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g GameSession
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetByCode resolves a join code to its session document.
func (s *Store) GetByCode(ctx context.Context, code string) (*GameSession, error) {
	id, err := s.rdb.Get(ctx, codeKey(code)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Mutate applies fn to the current document inside a WATCH transaction.
// The commit carries the whole conflict unit (moves, position, turn,
// status, result, immune set) in one write; if the document changed
// since it was read the transaction fails and ErrConflict is returned.
// fn may return errUnchanged to abort without writing.
func (s *Store) Mutate(ctx context.Context, id string, fn func(*GameSession) error) (*GameSession, error) {
	var out *GameSession
	key := docKey(id)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur GameSession
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if err := fn(&cur); err != nil {
			if errors.Is(err, errUnchanged) {
				out = &cur
				return nil
			}
			return err
		}
		cur.Version++
		cur.UpdatedAt = time.Now()

		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, s.ttl)
		if !cur.Live() {
			// release the code for reuse once the session leaves the
			// waiting/active set
			pipe.Del(ctx, codeKey(cur.Code))
		}
		pipe.Publish(ctx, eventsKey(cur.ID), newRaw)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &cur
		return nil
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return out, nil
}

// Subscribe attaches fn to the session's change feed. fn fires once
// immediately with the current document (or nil when absent), then once
// per committed mutation in commit order. The returned cancel func
// stops delivery before it returns and releases the underlying
// subscription.
func (s *Store) Subscribe(ctx context.Context, id string, fn func(*GameSession)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, eventsKey(id))
	// confirm the subscription before the initial snapshot so no commit
	// can slip between the two
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := newSubscription(fn)
	cur, err := s.Get(ctx, id)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub.deliver(cur)

	go func() {
		for msg := range ps.Channel() {
			var g GameSession
			if err := json.Unmarshal([]byte(msg.Payload), &g); err != nil {
				continue
			}
			sub.deliver(&g)
		}
	}()

	cancel := func() {
		sub.close()
		_ = ps.Close()
	}
	return cancel, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
