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
// pipeline. This file defines BaseStep, the foundation every concrete step
// embeds to inherit naming, telemetry instruments, and the default
// input/output key behavior the piping mechanism relies on.
package flow

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const meterScope = "github.com/platewise/platewise"

// BaseStep is the default implementation of the Step interface minus Execute,
// which each concrete step provides.
type BaseStep struct {
	StepName  string
	InKey     string // Custom input slot; empty means ScopeIn.
	OutKey    string // Custom output slot; empty means ScopeOut.
	tracer    trace.Tracer
	successes metric.Int64Counter
	errors    metric.Int64Counter
}

// NewBaseStep initializes a step with a name and its OpenTelemetry
// instruments, pulled from the global providers.
func NewBaseStep(name string) *BaseStep {
	meter := otel.Meter(meterScope)
	successes, err := meter.Int64Counter(fmt.Sprintf("%s.counter.success", name))
	if err != nil {
		slog.Warn("failed to create success counter", "step", name, "error", err)
	}
	errors, err := meter.Int64Counter(fmt.Sprintf("%s.counter.error", name))
	if err != nil {
		slog.Warn("failed to create error counter", "step", name, "error", err)
	}
	return &BaseStep{
		StepName:  name,
		tracer:    otel.Tracer(name),
		successes: successes,
		errors:    errors,
	}
}

func (s *BaseStep) Name() string { return s.StepName }

// Runnable's default requires a live Go context and a value in the input slot.
func (s *BaseStep) Runnable(scope Scope) bool {
	return scope != nil && scope.GetContext() != nil && scope.Get(s.InputKey()) != nil
}

func (s *BaseStep) InputKey() string {
	if s.InKey == "" {
		return ScopeIn
	}
	return s.InKey
}

func (s *BaseStep) OutputKey() string {
	if s.OutKey == "" {
		return ScopeOut
	}
	return s.OutKey
}

func (s *BaseStep) Tracer() trace.Tracer                  { return s.tracer }
func (s *BaseStep) SuccessCounter() metric.Int64Counter   { return s.successes }
func (s *BaseStep) ErrorCounter() metric.Int64Counter     { return s.errors }
