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

// Package session owns the lifecycle of in-flight meal analyses: the legal
// state transitions and the store that tracks at most one active session per
// user. This file is the state machine.
//
// The machine is a static table. An event either maps the current state to
// exactly one next state or it is illegal; illegal events return an error and
// leave the state untouched. There is no "force" path around the table.
package session

import (
	"fmt"

	"github.com/platewise/platewise/internal/core/model"
)

// Event is a trigger that may move a session between states.
type Event string

const (
	// EventSubmitMedia fires when the user submits a photo or video.
	EventSubmitMedia Event = "submit_media"

	// EventAnalysisSucceeded fires when the pipeline produced a validated
	// analysis for the session's media.
	EventAnalysisSucceeded Event = "analysis_succeeded"

	// EventAnalysisFailed fires when the pipeline failed terminally. The
	// session returns to idle so the user can resubmit.
	EventAnalysisFailed Event = "analysis_failed"

	// EventCorrectionApplied fires when a parsed correction was applied to
	// the pending analysis. The session returns to waiting_confirmation:
	// the updated breakdown is presented for confirmation again.
	EventCorrectionApplied Event = "correction_applied"

	// EventConfirm fires when the user accepts the pending analysis.
	EventConfirm Event = "confirm"

	// EventCancel fires when the user abandons the session.
	EventCancel Event = "cancel"
)

// transitions is the complete legal-move table. States and events absent from
// the table are illegal combinations.
var transitions = map[model.SessionState]map[Event]model.SessionState{
	model.StateIdle: {
		EventSubmitMedia: model.StateAnalyzing,
	},
	model.StateWaitingForMedia: {
		EventSubmitMedia: model.StateAnalyzing,
		EventCancel:      model.StateIdle,
	},
	model.StateAnalyzing: {
		EventAnalysisSucceeded: model.StateWaitingConfirmation,
		EventAnalysisFailed:    model.StateIdle,
		EventCancel:            model.StateIdle,
	},
	model.StateWaitingConfirmation: {
		EventCorrectionApplied: model.StateWaitingConfirmation,
		EventConfirm:           model.StateCompleted,
		EventCancel:            model.StateIdle,
	},
	model.StateWaitingCorrection: {
		EventCorrectionApplied: model.StateWaitingConfirmation,
		EventConfirm:           model.StateCompleted,
		EventCancel:            model.StateIdle,
	},
}

// Transition returns the state that follows current on event, or
// ErrIllegalTransition when the table has no such move. It never mutates
// anything; callers apply the returned state themselves.
func Transition(current model.SessionState, event Event) (model.SessionState, error) {
	moves, ok := transitions[current]
	if !ok {
		return current, fmt.Errorf("%w: no moves from state %q", model.ErrIllegalTransition, current)
	}
	next, ok := moves[event]
	if !ok {
		return current, fmt.Errorf("%w: event %q not allowed in state %q", model.ErrIllegalTransition, event, current)
	}
	return next, nil
}

// CanTransition reports whether the move is legal without performing it.
func CanTransition(current model.SessionState, event Event) bool {
	_, err := Transition(current, event)
	return err == nil
}
