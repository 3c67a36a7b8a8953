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

package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoStopsAfterFirstSuccess(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsExactlyTheAttemptBudget(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("attempt %d failed", calls)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// The last attempt's error is the one reported.
	assert.Contains(t, err.Error(), "attempt 3")
}

func TestDoSucceedsOnLaterAttempt(t *testing.T) {
	calls := 0
	out, err := Do(context.Background(), Policy{MaxAttempts: 3}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("not yet")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 3, calls)
}

func TestDoRespectsCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, Policy{MaxAttempts: 5, Backoff: time.Hour}, func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("fail")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoAppliesPerAttemptTimeout(t *testing.T) {
	_, err := Do(context.Background(), Policy{MaxAttempts: 2, PerAttemptTimeout: 10 * time.Millisecond},
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFallbackSubstitutesOnFailure(t *testing.T) {
	out := Fallback(context.Background(), "fallback", func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("unavailable")
	})
	assert.Equal(t, "fallback", out)

	out = Fallback(context.Background(), "fallback", func(ctx context.Context) (string, error) {
		return "real", nil
	})
	assert.Equal(t, "real", out)
}
