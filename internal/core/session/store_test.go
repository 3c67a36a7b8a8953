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

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/platewise/internal/core/model"
)

func testMedia() model.MediaRef {
	return model.MediaRef{Token: "file.jpg", Kind: model.MediaPhoto}
}

// advance moves a session to waiting_confirmation with an analysis attached.
func advance(t *testing.T, st *Store, userID int64) {
	t.Helper()
	_, err := st.Update(context.Background(), userID, func(s *model.Session) error {
		s.State = model.StateWaitingConfirmation
		s.Initial = model.GetExampleAnalysis()
		return nil
	})
	require.NoError(t, err)
}

func TestCreateAndGet(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	s, created, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.StateAnalyzing, s.State)
	assert.NotEmpty(t, s.ID)

	got, err := st.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestCreateReturnsExistingActiveSession(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	first, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)

	second, created, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetTreatsExpiredSessionAsAbsent(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)

	// Jump the clock past the TTL.
	st.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err = st.Get(ctx, 7)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))

	// After expiry the user can start over.
	_, created, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	assert.True(t, created)
}

func TestUpdateFailureLeavesSessionUntouched(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)

	_, err = st.Update(ctx, 7, func(s *model.Session) error {
		s.State = model.StateCompleted
		return fmt.Errorf("mutation failed")
	})
	require.Error(t, err)

	got, err := st.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StateAnalyzing, got.State)
}

func TestRecordCorrectionEnforcesRoundCap(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	advance(t, st, 7)

	corrected := model.GetExampleAnalysis()
	for i := 0; i < 3; i++ {
		s, err := st.RecordCorrection(ctx, 7, model.Correction{Kind: model.CorrectionRemove, Target: "rice"}, corrected)
		require.NoError(t, err, "round %d", i+1)
		assert.Equal(t, i+1, s.CorrectionCount)
	}

	_, err = st.RecordCorrection(ctx, 7, model.Correction{Kind: model.CorrectionRemove, Target: "rice"}, corrected)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCorrectionLimit))

	// The rejected round left the history at three entries.
	got, err := st.Get(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, got.Corrections, 3)
}

func TestRecordCorrectionReturnsToConfirmation(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	advance(t, st, 7)

	// Every applied correction puts the updated breakdown back on display.
	for i := 0; i < 3; i++ {
		s, err := st.RecordCorrection(ctx, 7, model.Correction{Kind: model.CorrectionSetWeight, WeightGrams: 500}, model.GetExampleAnalysis())
		require.NoError(t, err)
		assert.Equal(t, model.StateWaitingConfirmation, s.State, "round %d", i+1)
	}
}

func TestRecordCorrectionConcurrentlyNeverOvershoots(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	advance(t, st, 7)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = st.RecordCorrection(ctx, 7, model.Correction{Kind: model.CorrectionSetWeight, WeightGrams: 500}, model.GetExampleAnalysis())
		}()
	}
	wg.Wait()

	got, err := st.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CorrectionCount)
}

func TestCompleteClosesAndRemovesSession(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	advance(t, st, 7)

	s, err := st.Complete(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, s.State)

	_, err = st.Get(ctx, 7)
	assert.True(t, errors.Is(err, model.ErrNoActiveSession))
}

func TestCompleteRejectedWhileAnalyzing(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)

	_, err = st.Complete(ctx, 7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIllegalTransition))

	// Still there, still analyzing.
	got, err := st.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StateAnalyzing, got.State)
}

func TestCancelRemovesSession(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)

	require.NoError(t, st.Cancel(ctx, 7))
	assert.True(t, errors.Is(st.Cancel(ctx, 7), model.ErrNoActiveSession))
}

func TestExpireSweepReclaimsOnlyExpired(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 1, testMedia())
	require.NoError(t, err)
	_, _, err = st.Create(ctx, 2, testMedia())
	require.NoError(t, err)

	assert.Equal(t, 0, st.ExpireSweep(ctx))

	st.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	assert.Equal(t, 2, st.ExpireSweep(ctx))
	assert.Equal(t, 0, st.ExpireSweep(ctx))
}

func TestStoreHandsOutClones(t *testing.T) {
	st := NewStore(30*time.Minute, 3, nil)
	ctx := context.Background()

	_, _, err := st.Create(ctx, 7, testMedia())
	require.NoError(t, err)
	advance(t, st, 7)

	got, err := st.Get(ctx, 7)
	require.NoError(t, err)
	got.Initial.Components[0].Calories = -999

	again, err := st.Get(ctx, 7)
	require.NoError(t, err)
	assert.NotEqual(t, -999.0, again.Initial.Components[0].Calories)
}
