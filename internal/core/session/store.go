// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session owns the lifecycle of in-flight meal analyses. This file is
// the store: an in-memory map of at most one active session per user, with an
// optional persistence collaborator behind it.
//
// Concurrency and expiry rules:
//
//   - All mutations happen under one mutex through Update, which applies the
//     caller's function to a clone and writes the clone back only on success.
//     A failed mutation leaves the stored session untouched.
//   - Expiry is lazy. Every read path checks the TTL first and treats an
//     expired session as absent; the periodic sweep only reclaims memory.
//   - The correction-round cap is enforced here, not in the parser, so no
//     caller can route around it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platewise/platewise/internal/core/model"
)

// Persistence is the durable backstop behind the in-memory map. The memory
// map is authoritative while the process lives; persistence lets a restarted
// process pick up active sessions and is where confirmed meals land.
type Persistence interface {
	LoadActiveSession(ctx context.Context, userID int64) (*model.Session, error)
	SaveSession(ctx context.Context, s *model.Session) error
	SaveCompletedMeal(ctx context.Context, s *model.Session) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// Store tracks at most one active session per user.
type Store struct {
	mu             sync.RWMutex
	byUser         map[int64]*model.Session
	ttl            time.Duration
	maxCorrections int
	persistence    Persistence
	now            func() time.Time
}

// NewStore constructs a store. persistence may be nil for purely in-memory
// operation.
func NewStore(ttl time.Duration, maxCorrections int, persistence Persistence) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxCorrections <= 0 {
		maxCorrections = model.MaxCorrectionRounds
	}
	return &Store{
		byUser:         make(map[int64]*model.Session),
		ttl:            ttl,
		maxCorrections: maxCorrections,
		persistence:    persistence,
		now:            time.Now,
	}
}

// Create starts a new session for the user in the analyzing state. When an
// active session already exists it is returned unchanged with created=false;
// the caller decides whether to reuse or cancel it.
func (st *Store) Create(ctx context.Context, userID int64, media model.MediaRef) (*model.Session, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing := st.activeLocked(ctx, userID); existing != nil {
		return existing.Clone(), false, nil
	}

	state, err := Transition(model.StateIdle, EventSubmitMedia)
	if err != nil {
		return nil, false, err
	}

	now := st.now()
	s := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Media:     media,
		State:     state,
		CreatedAt: now,
		ExpiresAt: now.Add(st.ttl),
	}
	st.byUser[userID] = s
	st.persistLocked(ctx, s)
	return s.Clone(), true, nil
}

// Get returns the user's active session, or ErrNoActiveSession. An expired
// session counts as absent and is purged on the way out.
func (st *Store) Get(ctx context.Context, userID int64) (*model.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.activeLocked(ctx, userID)
	if s == nil {
		return nil, model.ErrNoActiveSession
	}
	return s.Clone(), nil
}

// Update atomically applies a mutation to the user's active session. The
// mutation runs against a clone; only when it returns nil is the clone
// written back. If the session vanished or expired while the mutation ran,
// nothing is written.
func (st *Store) Update(ctx context.Context, userID int64, mutate func(s *model.Session) error) (*model.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	current := st.activeLocked(ctx, userID)
	if current == nil {
		return nil, model.ErrNoActiveSession
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	st.byUser[userID] = next
	st.persistLocked(ctx, next)
	return next.Clone(), nil
}

// RecordCorrection appends a correction and its resulting snapshot to the
// session, enforcing the round cap. The cap check and the write are one
// atomic step, so concurrent corrections cannot overshoot the limit.
func (st *Store) RecordCorrection(ctx context.Context, userID int64, c model.Correction, corrected *model.AnalysisResult) (*model.Session, error) {
	return st.Update(ctx, userID, func(s *model.Session) error {
		if s.CorrectionCount >= st.maxCorrections {
			return fmt.Errorf("%w: %d rounds used", model.ErrCorrectionLimit, s.CorrectionCount)
		}
		next, err := Transition(s.State, EventCorrectionApplied)
		if err != nil {
			return err
		}
		c.AppliedAt = st.now()
		s.State = next
		s.Corrections = append(s.Corrections, c)
		s.CorrectionCount++
		s.Corrected = corrected
		return nil
	})
}

// Complete confirms the session, persists the final meal, and drops it from
// the active map.
func (st *Store) Complete(ctx context.Context, userID int64) (*model.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.activeLocked(ctx, userID)
	if s == nil {
		return nil, model.ErrNoActiveSession
	}

	next, err := Transition(s.State, EventConfirm)
	if err != nil {
		return nil, err
	}
	s.State = next

	if st.persistence != nil {
		if err := st.persistence.SaveCompletedMeal(ctx, s); err != nil {
			slog.Error("failed to persist completed meal", "session", s.ID, "error", err)
		}
		if err := st.persistence.DeleteSession(ctx, s.ID); err != nil {
			slog.Warn("failed to delete persisted session", "session", s.ID, "error", err)
		}
	}
	delete(st.byUser, userID)
	return s.Clone(), nil
}

// Cancel abandons the session without recording anything.
func (st *Store) Cancel(ctx context.Context, userID int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.activeLocked(ctx, userID)
	if s == nil {
		return model.ErrNoActiveSession
	}
	if _, err := Transition(s.State, EventCancel); err != nil {
		return err
	}
	st.dropLocked(ctx, userID, s)
	return nil
}

// ExpireSweep removes every expired session and returns how many were
// reclaimed. Correctness does not depend on it running; reads already treat
// expired sessions as absent.
func (st *Store) ExpireSweep(ctx context.Context) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	reclaimed := 0
	for userID, s := range st.byUser {
		if s.Expired(now) {
			st.dropLocked(ctx, userID, s)
			reclaimed++
		}
	}
	return reclaimed
}

// activeLocked returns the live session for the user, falling back to the
// persistence backstop, and purges it when expired. Callers hold the mutex.
func (st *Store) activeLocked(ctx context.Context, userID int64) *model.Session {
	s, ok := st.byUser[userID]
	if !ok && st.persistence != nil {
		loaded, err := st.persistence.LoadActiveSession(ctx, userID)
		if err != nil {
			slog.Warn("failed to load persisted session", "user", userID, "error", err)
		} else if loaded != nil {
			st.byUser[userID] = loaded
			s = loaded
		}
	}
	if s == nil {
		return nil
	}
	if s.Expired(st.now()) || s.Terminal() {
		st.dropLocked(ctx, userID, s)
		return nil
	}
	return s
}

func (st *Store) dropLocked(ctx context.Context, userID int64, s *model.Session) {
	delete(st.byUser, userID)
	if st.persistence != nil {
		if err := st.persistence.DeleteSession(ctx, s.ID); err != nil {
			slog.Warn("failed to delete persisted session", "session", s.ID, "error", err)
		}
	}
}

// persistLocked saves best-effort; persistence failures degrade durability,
// not availability.
func (st *Store) persistLocked(ctx context.Context, s *model.Session) {
	if st.persistence == nil {
		return
	}
	if err := st.persistence.SaveSession(ctx, s); err != nil {
		slog.Warn("failed to persist session", "session", s.ID, "error", err)
	}
}
