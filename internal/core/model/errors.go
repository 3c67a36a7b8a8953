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
// This file enumerates the engine's error taxonomy as sentinel values. Callers
// branch on them with errors.Is to pick the right user-facing message; every
// terminal failure of the engine wraps exactly one of these.
package model

import "errors"

var (
	// ErrTransport covers media download and AI network failures. Transport
	// failures are retried before they surface; once surfaced they mean the
	// retry budget is exhausted.
	ErrTransport = errors.New("transport failure")

	// ErrExtraction means zero usable frames or audio could be produced from
	// the media. Partial extraction is not an error; only total failure is.
	ErrExtraction = errors.New("media extraction failed")

	// ErrParse means the AI response could not be parsed even after the
	// text fallback. Parse failures are deterministic and never retried.
	ErrParse = errors.New("analysis response unparseable")

	// ErrValidation means every component of an otherwise parseable response
	// failed numeric sanity checks.
	ErrValidation = errors.New("analysis failed validation")

	// ErrUnrecognizedCorrection means the free-text correction matched no
	// rule. The session is left untouched.
	ErrUnrecognizedCorrection = errors.New("correction not recognized")

	// ErrCorrectionLimit means the session already consumed its correction
	// rounds and the caller must confirm or cancel.
	ErrCorrectionLimit = errors.New("correction limit reached")

	// ErrNoActiveSession means an operation was invoked with no active,
	// non-expired session for the user. This is a normal branch, not a crash.
	ErrNoActiveSession = errors.New("no active session")

	// ErrIllegalTransition means an operation was invoked in a phase that
	// does not permit it. Illegal transitions never mutate session state.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrResource means temporary storage was unavailable. Always fatal for
	// the current request; cleanup still runs best-effort.
	ErrResource = errors.New("temporary storage unavailable")
)
