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

package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/core/nutrition"
	"github.com/platewise/platewise/internal/core/pipeline"
	"github.com/platewise/platewise/internal/core/session"
	"github.com/platewise/platewise/internal/media"
	"github.com/platewise/platewise/internal/storage/memory"
	"github.com/platewise/platewise/internal/testutil"
)

type fakeAnalyzer struct {
	result *pipeline.Result
	err    error
	calls  int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string, _ model.MediaKind) (*pipeline.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeFetcher struct {
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, ref model.MediaRef) (*media.LocalMedia, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &media.LocalMedia{Path: "/tmp/media.bin", Kind: ref.Kind, MIMEType: "image/jpeg"}, nil
}

type fakeCleaner struct {
	removed []string
}

func (f *fakeCleaner) Remove(sessionID string) error {
	f.removed = append(f.removed, sessionID)
	return nil
}

type fixture struct {
	engine      *Engine
	analyzer    *fakeAnalyzer
	cleaner     *fakeCleaner
	persistence *memory.Store
}

func newFixture(t *testing.T, analyzer *fakeAnalyzer, fetcher *fakeFetcher) *fixture {
	t.Helper()
	cfg := testutil.GetConfig()

	parser, err := nutrition.NewParser(cfg.Correction)
	require.NoError(t, err)

	persistence := memory.New()
	store := session.NewStore(30*time.Minute, cfg.Session.MaxCorrections, persistence)
	cleaner := &fakeCleaner{}

	return &fixture{
		engine:      NewEngine(store, analyzer, fetcher, parser, cleaner),
		analyzer:    analyzer,
		cleaner:     cleaner,
		persistence: persistence,
	}
}

func healthyAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{result: &pipeline.Result{Analysis: model.GetExampleAnalysis()}}
}

func photoRef() model.MediaRef {
	return model.MediaRef{Token: "meal.jpg", Kind: model.MediaPhoto}
}

func TestSubmitCorrectConfirmFlow(t *testing.T) {
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{})
	ctx := context.Background()

	view, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.NoError(t, err)
	assert.Equal(t, model.StateWaitingConfirmation, view.State)
	require.NotNil(t, view.Result)
	assert.Equal(t, 3, view.CorrectionsLeft)

	// An applied correction puts the updated breakdown back on display.
	view, err = fx.engine.SubmitCorrection(ctx, 7, "remove rice")
	require.NoError(t, err)
	assert.Equal(t, model.StateWaitingConfirmation, view.State)
	assert.Equal(t, 2, view.CorrectionsLeft)
	require.Len(t, view.Result.Components, 1)
	assert.Equal(t, "Grilled chicken breast", view.Result.Components[0].Name)

	view, err = fx.engine.Confirm(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, view.State)

	meals := fx.persistence.Meals()
	require.Len(t, meals, 1)
	assert.Equal(t, int64(7), meals[0].UserID)
	assert.Equal(t, 1, meals[0].CorrectionCount)
	require.Len(t, meals[0].Result.Components, 1)

	// The session is gone and its namespace was reclaimed.
	_, err = fx.engine.Status(ctx, 7)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
	assert.NotEmpty(t, fx.cleaner.removed)
}

func TestSubmitMediaFetchFailureAbandonsSession(t *testing.T) {
	fetchErr := fmt.Errorf("%w: connection refused", model.ErrTransport)
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{err: fetchErr})
	ctx := context.Background()

	_, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTransport))
	assert.Zero(t, fx.analyzer.calls)

	// The user can resubmit right away.
	_, err = fx.engine.Status(ctx, 7)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
}

func TestSubmitMediaAnalysisFailureAbandonsSession(t *testing.T) {
	analyzer := &fakeAnalyzer{err: fmt.Errorf("%w: model unavailable", model.ErrTransport)}
	fx := newFixture(t, analyzer, &fakeFetcher{})
	ctx := context.Background()

	_, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrTransport))

	_, err = fx.engine.Status(ctx, 7)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
}

func TestResubmitReplacesLingeringSession(t *testing.T) {
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{})
	ctx := context.Background()

	first, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.NoError(t, err)

	second, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	// The lingering session's namespace was reclaimed along the way.
	assert.Contains(t, fx.cleaner.removed, first.SessionID)
}

func TestSubmitCorrectionUnrecognizedLeavesSessionUntouched(t *testing.T) {
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{})
	ctx := context.Background()

	_, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.NoError(t, err)

	_, err = fx.engine.SubmitCorrection(ctx, 7, "what a lovely plate")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrUnrecognizedCorrection))

	view, err := fx.engine.Status(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, view.CorrectionsLeft)
	assert.Equal(t, model.StateWaitingConfirmation, view.State)
}

func TestSubmitCorrectionHonorsRoundLimit(t *testing.T) {
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{})
	ctx := context.Background()

	_, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = fx.engine.SubmitCorrection(ctx, 7, "weight 500g")
		require.NoError(t, err, "round %d", i+1)
	}

	_, err = fx.engine.SubmitCorrection(ctx, 7, "weight 500g")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCorrectionLimit))

	// Confirmation still works after the budget is spent.
	view, err := fx.engine.Confirm(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, view.State)
}

func TestSubmitCorrectionWithoutSession(t *testing.T) {
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{})

	_, err := fx.engine.SubmitCorrection(context.Background(), 7, "remove rice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
}

func TestConfirmWithoutSession(t *testing.T) {
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{})

	_, err := fx.engine.Confirm(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
}

func TestCancelReclaimsNamespace(t *testing.T) {
	fx := newFixture(t, healthyAnalyzer(), &fakeFetcher{})
	ctx := context.Background()

	view, err := fx.engine.SubmitMedia(ctx, 7, photoRef())
	require.NoError(t, err)

	require.NoError(t, fx.engine.Cancel(ctx, 7))
	assert.Contains(t, fx.cleaner.removed, view.SessionID)

	_, err = fx.engine.Status(ctx, 7)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
}
