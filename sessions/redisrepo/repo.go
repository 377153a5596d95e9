// Package redisrepo is the Redis-backed session store. Records are JSON blobs
// under a "session:" prefix with a per-tier TTL.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"armory/sessions"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const keyPrefix = "session:"

// Repo implements sessions.Repo on a Redis client.
type Repo struct {
	rdb           *redis.Client
	ephemeralTTL  time.Duration
	persistentTTL time.Duration
}

// New creates the store. ephemeralTTL is the store-side retention for
// browser-session records (the cookie the client holds is session-scoped
// independently of this); persistentTTL applies once a session is upgraded to
// the persistent tier.
func New(rdb *redis.Client, ephemeralTTL, persistentTTL time.Duration) *Repo {
	return &Repo{
		rdb:           rdb,
		ephemeralTTL:  ephemeralTTL,
		persistentTTL: persistentTTL,
	}
}

// Create allocates a fresh session under a random identifier.
func (r *Repo) Create(ctx context.Context) (*sessions.Session, error) {
	now := NowTimeFunc().UTC()
	session := &sessions.Session{
		ID:            uuid.NewString(),
		Tier:          sessions.TierEphemeral,
		CreatedAt:     now,
		LastTouchedAt: now,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("redisrepo.Create: %w", err)
	}

	ok, err := r.rdb.SetNX(ctx, keyPrefix+session.ID, data, r.ephemeralTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redisrepo.Create: %w", err)
	}
	if !ok {
		// A UUID collision would be the only way here.
		return nil, fmt.Errorf("redisrepo.Create: id collision for %s", session.ID)
	}
	return session, nil
}

// Get retrieves a session record.
func (r *Repo) Get(ctx context.Context, id string) (*sessions.Session, error) {
	data, err := r.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessions.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisrepo.Get: %w", err)
	}

	var session sessions.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("redisrepo.Get: %w", err)
	}
	return &session, nil
}

// Set replaces the record and restarts the TTL for the session's tier. The
// write is conditional on the key still existing, so a concurrently destroyed
// session stays destroyed.
func (r *Repo) Set(ctx context.Context, id string, session *sessions.Session) error {
	session.LastTouchedAt = NowTimeFunc().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redisrepo.Set: %w", err)
	}

	err = r.rdb.SetArgs(ctx, keyPrefix+id, data, redis.SetArgs{
		Mode: "XX",
		TTL:  r.ttlFor(session.Tier),
	}).Err()
	if errors.Is(err, redis.Nil) {
		return sessions.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redisrepo.Set: %w", err)
	}
	return nil
}

// Touch restarts the TTL without rewriting the record.
func (r *Repo) Touch(ctx context.Context, id string) error {
	session, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := r.rdb.Expire(ctx, keyPrefix+id, r.ttlFor(session.Tier)).Result()
	if err != nil {
		return fmt.Errorf("redisrepo.Touch: %w", err)
	}
	if !ok {
		return sessions.ErrNotFound
	}
	return nil
}

// Destroy deletes the record; effective immediately and idempotent.
func (r *Repo) Destroy(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redisrepo.Destroy: %w", err)
	}
	return nil
}

func (r *Repo) ttlFor(tier sessions.Tier) time.Duration {
	if tier.Persistent() {
		return r.persistentTTL
	}
	return r.ephemeralTTL
}

var _ sessions.Repo = (*Repo)(nil)
