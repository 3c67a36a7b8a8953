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

// Package retry implements the attempt → on-failure → retry-or-fallback
// control pattern used across the engine. The AI request retries through Do;
// optional inputs like transcription degrade through Fallback. Both behaviors
// live here so backoff logic is not duplicated per call site.
package retry

import (
	"context"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// PerAttemptTimeout, when positive, puts a deadline on each attempt via
	// a derived context.
	PerAttemptTimeout time.Duration

	// Backoff is the pause between attempts. The pause respects ctx
	// cancellation.
	Backoff time.Duration
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. The error of the final attempt is returned; earlier errors are
// discarded since the caller can only act on the last one.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && policy.Backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(policy.Backoff):
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if policy.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.PerAttemptTimeout)
		}
		out, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return zero, lastErr
}

// Fallback runs fn once and substitutes the fallback value on any failure.
// This is the graceful-degradation half of the pattern: a missing optional
// input is not an error, it is a reduced input.
func Fallback[T any](ctx context.Context, fallback T, fn func(ctx context.Context) (T, error)) T {
	out, err := fn(ctx)
	if err != nil {
		return fallback
	}
	return out
}
