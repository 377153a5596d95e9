package fakesessionrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"armory/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory sessions.Repo for tests. It mirrors the
// Redis store's semantics: Set fails on a destroyed session, Destroy is
// idempotent, and records are copied on the way in and out.
type FakeSessionRepo struct {
	sessions map[string]sessions.Session
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]sessions.Session),
	}
}

func (sr *FakeSessionRepo) Create(_ context.Context) (*sessions.Session, error) {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	now := time.Now().UTC()
	session := sessions.Session{
		ID:            uuid.NewString(),
		Tier:          sessions.TierEphemeral,
		CreatedAt:     now,
		LastTouchedAt: now,
	}
	sr.sessions[session.ID] = session
	cp := session
	return &cp, nil
}

func (sr *FakeSessionRepo) Get(_ context.Context, id string) (*sessions.Session, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	session, ok := sr.sessions[id]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	cp := session
	return &cp, nil
}

func (sr *FakeSessionRepo) Set(_ context.Context, id string, session *sessions.Session) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, ok := sr.sessions[id]; !ok {
		return sessions.ErrNotFound
	}
	session.LastTouchedAt = time.Now().UTC()
	sr.sessions[id] = *session
	return nil
}

func (sr *FakeSessionRepo) Touch(_ context.Context, id string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if _, ok := sr.sessions[id]; !ok {
		return sessions.ErrNotFound
	}
	return nil
}

func (sr *FakeSessionRepo) Destroy(_ context.Context, id string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	delete(sr.sessions, id)
	return nil
}
