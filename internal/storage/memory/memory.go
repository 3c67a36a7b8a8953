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

// Package memory is the in-process implementation of the persistence
// interface, used when no database is configured and as a test double. It
// mirrors the PostgreSQL store's semantics: one session document per user,
// an append-only meal log.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platewise/platewise/internal/core/model"
)

// Store keeps sessions and completed meals in process memory.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*model.Session
	meals    []CompletedMeal
}

// CompletedMeal is one confirmed analysis in the log.
type CompletedMeal struct {
	SessionID       string
	UserID          int64
	Result          *model.AnalysisResult
	CorrectionCount int
	ConfirmedAt     time.Time
}

// New constructs an empty store.
func New() *Store {
	return &Store{sessions: make(map[int64]*model.Session)}
}

// LoadActiveSession returns the user's stored session, or nil when none
// exists or it has expired.
func (s *Store) LoadActiveSession(_ context.Context, userID int64) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || sess.Expired(time.Now()) {
		return nil, nil
	}
	return sess.Clone(), nil
}

// SaveSession stores the session document keyed by user.
func (s *Store) SaveSession(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess.Clone()
	return nil
}

// SaveCompletedMeal appends the confirmed analysis to the log.
func (s *Store) SaveCompletedMeal(_ context.Context, sess *model.Session) error {
	result := sess.Current()
	if result == nil {
		return fmt.Errorf("session %s has no analysis to record", sess.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meals = append(s.meals, CompletedMeal{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Result:          result.Clone(),
		CorrectionCount: sess.CorrectionCount,
		ConfirmedAt:     time.Now(),
	})
	return nil
}

// DeleteSession removes a session document by its ID.
func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, sess := range s.sessions {
		if sess.ID == sessionID {
			delete(s.sessions, userID)
		}
	}
	return nil
}

// Meals returns a snapshot of the completed meal log.
func (s *Store) Meals() []CompletedMeal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletedMeal, len(s.meals))
	copy(out, s.meals)
	return out
}
