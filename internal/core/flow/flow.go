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

// Package flow provides the building blocks for assembling the analysis
// pipeline as a chain of steps. This file defines the interfaces that govern
// the pattern: a Step is an atomic unit of work, a Chain executes steps in
// order, and a Scope is the shared state bag one execution carries through
// the chain.
//
// The Scope doubles as the engine's resource cleaner: every temporary file a
// step creates is registered on the scope, and Close removes them all on
// every exit path — success, failure, or cancellation.
package flow

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ScopeIn and ScopeOut are the keys used to pipe the primary value between
// consecutive steps. A chain moves each step's ScopeOut value into ScopeIn
// before running the next step.
const (
	ScopeIn  = "__IN__"
	ScopeOut = "__OUT__"
)

// Scope is the shared state object passed through a chain. It carries data,
// errors, and the set of temporary files owned by this execution.
type Scope interface {
	// SetContext and GetContext manage the standard Go context, which carries
	// cancellation and trace information for the execution.
	SetContext(ctx context.Context)
	GetContext() context.Context

	// Add stores a key-value pair; it returns the Scope for chaining.
	Add(key string, value any) Scope

	// Get retrieves a stored value, or nil when absent.
	Get(key string) any

	// Remove deletes a key-value pair.
	Remove(key string)

	// Fail records an error produced by the named step.
	Fail(step string, err error)

	// Failed reports whether any step has recorded an error.
	Failed() bool

	// FirstError returns the earliest recorded error, or nil.
	FirstError() error

	// TrackTempFile registers a temporary artifact for cleanup.
	TrackTempFile(path string)

	// TempFiles lists every tracked artifact path.
	TempFiles() []string

	// Close deletes every tracked temporary file. It is idempotent and safe
	// to defer at the start of a workflow.
	Close()
}

// Step is an atomic, testable unit of work within a chain.
type Step interface {
	// Execute runs the step's logic against the scope.
	Execute(scope Scope)

	// Name identifies the step in logs, traces, and error maps.
	Name() string

	// InputKey and OutputKey name the scope slots this step reads from and
	// writes to. They default to ScopeIn / ScopeOut so chains can pipe.
	InputKey() string
	OutputKey() string

	// Runnable is a precondition check evaluated before Execute.
	Runnable(scope Scope) bool

	// Tracer and counters expose the step's telemetry instruments.
	Tracer() trace.Tracer
	SuccessCounter() metric.Int64Counter
	ErrorCounter() metric.Int64Counter
}

// Chain is an ordered sequence of steps. A Chain is itself a Step, so chains
// nest.
type Chain interface {
	Step

	// ContinueOnFailure configures whether the chain keeps executing after a
	// step records an error. Default is to stop.
	ContinueOnFailure(bool) Chain

	// Append adds a step to the end of the sequence.
	Append(step Step) Chain
}
