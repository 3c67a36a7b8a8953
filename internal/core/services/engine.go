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

// Package services exposes the engine's use cases as one façade over the
// session store, the media source, the analysis pipeline, and the correction
// parser. The HTTP layer calls only this package; it never reaches into the
// collaborators directly.
//
// Collaborators enter through narrow interfaces so tests can substitute
// fakes without a network, a database, or ffmpeg.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/core/nutrition"
	"github.com/platewise/platewise/internal/core/pipeline"
	"github.com/platewise/platewise/internal/core/session"
	"github.com/platewise/platewise/internal/media"
)

// Analyzer runs the analysis pipeline over a local media file.
type Analyzer interface {
	Analyze(ctx context.Context, localPath string, kind model.MediaKind) (*pipeline.Result, error)
}

// MediaFetcher resolves a media token into a local file inside the session's
// temp namespace.
type MediaFetcher interface {
	Fetch(ctx context.Context, sessionID string, ref model.MediaRef) (*media.LocalMedia, error)
}

// Cleaner reclaims a session's temp namespace.
type Cleaner interface {
	Remove(sessionID string) error
}

// View is the session snapshot handed to the transport layer.
type View struct {
	SessionID       string                `json:"session_id"`
	State           model.SessionState    `json:"state"`
	Result          *model.AnalysisResult `json:"result,omitempty"`
	CorrectionsLeft int                   `json:"corrections_left"`
}

// Engine is the meal analysis service façade.
type Engine struct {
	store    *session.Store
	analyzer Analyzer
	fetcher  MediaFetcher
	parser   *nutrition.Parser
	cleaner  Cleaner
}

// NewEngine wires the collaborators together.
func NewEngine(store *session.Store, analyzer Analyzer, fetcher MediaFetcher, parser *nutrition.Parser, cleaner Cleaner) *Engine {
	return &Engine{
		store:    store,
		analyzer: analyzer,
		fetcher:  fetcher,
		parser:   parser,
		cleaner:  cleaner,
	}
}

// SubmitMedia starts a new session for the user and runs the full analysis.
// A lingering active session is abandoned first: resubmitting a photo is the
// user telling us the old attempt no longer matters.
func (e *Engine) SubmitMedia(ctx context.Context, userID int64, ref model.MediaRef) (*View, error) {
	sess, created, err := e.store.Create(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	if !created {
		slog.Info("abandoning lingering session on new submission", "user", userID, "session", sess.ID)
		e.reclaim(sess.ID)
		if err := e.store.Cancel(ctx, userID); err != nil {
			return nil, err
		}
		if sess, _, err = e.store.Create(ctx, userID, ref); err != nil {
			return nil, err
		}
	}
	defer e.reclaim(sess.ID)

	local, err := e.fetcher.Fetch(ctx, sess.ID, ref)
	if err != nil {
		e.abandon(ctx, userID)
		return nil, err
	}

	result, err := e.analyzer.Analyze(ctx, local.Path, local.Kind)
	if err != nil {
		e.abandon(ctx, userID)
		return nil, err
	}

	updated, err := e.store.Update(ctx, userID, func(s *model.Session) error {
		next, err := session.Transition(s.State, session.EventAnalysisSucceeded)
		if err != nil {
			return err
		}
		s.State = next
		s.Initial = result.Analysis
		s.Transcription = result.Transcription
		return nil
	})
	if err != nil {
		return nil, err
	}
	return viewOf(updated), nil
}

// SubmitCorrection parses a free-text correction and applies it to the
// pending analysis. Unrecognized text and exhausted correction budgets leave
// the session untouched.
func (e *Engine) SubmitCorrection(ctx context.Context, userID int64, text string) (*View, error) {
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !session.CanTransition(sess.State, session.EventCorrectionApplied) {
		return nil, fmt.Errorf("%w: cannot correct in state %q", model.ErrIllegalTransition, sess.State)
	}

	correction, err := e.parser.Parse(text, sess.Current())
	if err != nil {
		return nil, err
	}

	corrected := e.parser.Apply(correction, sess.Current())
	updated, err := e.store.RecordCorrection(ctx, userID, *correction, corrected)
	if err != nil {
		return nil, err
	}
	return viewOf(updated), nil
}

// Confirm accepts the pending analysis and closes the session.
func (e *Engine) Confirm(ctx context.Context, userID int64) (*View, error) {
	sess, err := e.store.Complete(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.reclaim(sess.ID)
	return viewOf(sess), nil
}

// Cancel abandons the user's active session.
func (e *Engine) Cancel(ctx context.Context, userID int64) error {
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	e.reclaim(sess.ID)
	return e.store.Cancel(ctx, userID)
}

// Status returns the current session snapshot.
func (e *Engine) Status(ctx context.Context, userID int64) (*View, error) {
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return viewOf(sess), nil
}

// abandon drops a session whose analysis failed terminally so the user can
// resubmit immediately. The original error is what the caller reports; a
// secondary failure here is only logged.
func (e *Engine) abandon(ctx context.Context, userID int64) {
	if err := e.store.Cancel(ctx, userID); err != nil && !errors.Is(err, model.ErrNoActiveSession) {
		slog.Warn("failed to abandon session after analysis failure", "user", userID, "error", err)
	}
}

func (e *Engine) reclaim(sessionID string) {
	if e.cleaner == nil {
		return
	}
	if err := e.cleaner.Remove(sessionID); err != nil {
		slog.Warn("failed to reclaim session namespace", "session", sessionID, "error", err)
	}
}

func viewOf(s *model.Session) *View {
	return &View{
		SessionID:       s.ID,
		State:           s.State,
		Result:          s.Current(),
		CorrectionsLeft: s.CorrectionsLeft(),
	}
}
