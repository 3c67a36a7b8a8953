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

// Package model defines the core data structures for the meal analysis engine.
// This file holds the Session — one user's in-flight interaction from media
// submission through confirmation, cancellation or expiry — and the closed set
// of lifecycle states it moves through.
package model

import "time"

// SessionState is one of the user-visible lifecycle phases. The set is closed;
// the session package owns the transition table between them.
type SessionState string

const (
	StateIdle                SessionState = "idle"
	StateWaitingForMedia     SessionState = "waiting_for_media"
	StateAnalyzing           SessionState = "analyzing"
	StateWaitingConfirmation SessionState = "waiting_confirmation"
	StateWaitingCorrection   SessionState = "waiting_correction"
	StateCompleted           SessionState = "completed"
)

// MaxCorrectionRounds caps how many natural-language corrections a single
// session will accept. The fourth attempt is rejected before it reaches the
// parser.
const MaxCorrectionRounds = 3

// MediaKind distinguishes the two supported input shapes.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// MediaRef points at the submitted media. The token is opaque to the engine;
// the media source collaborator resolves it to a local file.
type MediaRef struct {
	Token string    `json:"token"`
	Kind  MediaKind `json:"kind"`
}

// Session identifies one in-flight meal analysis for one user. At most one
// active (non-expired, non-terminal) session exists per user at a time; the
// session store enforces that invariant.
type Session struct {
	ID              string          `json:"id"`
	UserID          int64           `json:"user_id"`
	Media           MediaRef        `json:"media"`
	State           SessionState    `json:"state"`
	Initial         *AnalysisResult `json:"initial_analysis,omitempty"`
	Corrected       *AnalysisResult `json:"corrected_analysis,omitempty"`
	Corrections     []Correction    `json:"corrections,omitempty"`
	CorrectionCount int             `json:"correction_count"`
	Transcription   string          `json:"transcription,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Current returns the analysis snapshot the user is looking at: the latest
// corrected one if any corrections were applied, otherwise the initial one.
func (s *Session) Current() *AnalysisResult {
	if s.Corrected != nil {
		return s.Corrected
	}
	return s.Initial
}

// Expired reports whether the session's TTL has elapsed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Terminal reports whether the session has reached its final state.
func (s *Session) Terminal() bool {
	return s.State == StateCompleted
}

// CorrectionsLeft reports how many correction rounds remain.
func (s *Session) CorrectionsLeft() int {
	left := MaxCorrectionRounds - s.CorrectionCount
	if left < 0 {
		return 0
	}
	return left
}

// Clone returns a deep copy of the session. The store hands out clones so
// concurrent readers never observe a mutation in progress.
func (s *Session) Clone() *Session {
	out := *s
	if s.Initial != nil {
		out.Initial = s.Initial.Clone()
	}
	if s.Corrected != nil {
		out.Corrected = s.Corrected.Clone()
	}
	out.Corrections = make([]Correction, len(s.Corrections))
	copy(out.Corrections, s.Corrections)
	return &out
}
