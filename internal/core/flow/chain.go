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
// pipeline. This file defines BaseChain, the default Chain implementation.
//
// A chain executes its steps in order. Each step runs under its own trace
// span; after a step completes, the value it placed in ScopeOut is moved to
// ScopeIn so the next step sees it as input. Unless configured otherwise the
// chain stops at the first step that records an error.
package flow

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// BaseChain is the default implementation of the Chain interface.
type BaseChain struct {
	BaseStep
	continueOnFailure bool
	steps             []Step
}

// NewBaseChain constructs an empty chain with the given name.
func NewBaseChain(name string) *BaseChain {
	return &BaseChain{BaseStep: *NewBaseStep(name)}
}

// ContinueOnFailure configures the chain's error behavior and returns the
// chain for fluent assembly.
func (c *BaseChain) ContinueOnFailure(continueOnFailure bool) Chain {
	c.continueOnFailure = continueOnFailure
	return c
}

// Append adds a step to the end of the sequence and returns the chain.
func (c *BaseChain) Append(step Step) Chain {
	c.steps = append(c.steps, step)
	return c
}

// Runnable only requires a live Go context; a chain may legitimately start
// with an empty input slot.
func (c *BaseChain) Runnable(scope Scope) bool {
	return scope.GetContext() != nil
}

// Execute runs every step in order, managing spans, error short-circuiting,
// and the in/out piping between steps.
func (c *BaseChain) Execute(scope Scope) {
	parentCtx := scope.GetContext()
	chainCtx, chainSpan := c.Tracer().Start(parentCtx, fmt.Sprintf("%s_execute", c.Name()))
	defer chainSpan.End()

	for _, step := range c.steps {
		stepCtx, stepSpan := c.Tracer().Start(chainCtx, step.Name())

		if scope.Failed() && !c.continueOnFailure {
			stepSpan.SetStatus(codes.Error, "previous step failed; skipping")
			stepSpan.End()
			break
		}

		if step.Runnable(scope) {
			scope.SetContext(stepCtx)
			step.Execute(scope)
			// Reset to the chain's context so sibling steps trace as
			// siblings, not descendants.
			scope.SetContext(chainCtx)
		} else {
			stepSpan.SetStatus(codes.Error, fmt.Sprintf("step not runnable: %s", step.Name()))
		}

		if scope.Failed() {
			stepSpan.SetStatus(codes.Error, "step recorded an error")
		} else {
			stepSpan.SetStatus(codes.Ok, "step completed")
		}
		stepSpan.End()

		// Pipe: the step's output becomes the next step's input.
		out := scope.Get(ScopeOut)
		scope.Remove(ScopeIn)
		if out != nil {
			scope.Add(ScopeIn, out)
		}
		scope.Remove(ScopeOut)
	}

	if scope.Failed() {
		chainSpan.SetStatus(codes.Error, "chain failed")
	} else {
		chainSpan.SetStatus(codes.Ok, "chain completed")
	}
}
