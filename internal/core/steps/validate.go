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

package steps

import (
	"github.com/platewise/platewise/internal/core/flow"
	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/core/nutrition"
)

// ResultValidator runs the parsed analysis through the nutrition sanity
// checks. Implausible components are discarded with warnings; the step fails
// only when nothing valid remains. Like parsing, validation is deterministic
// and never retried.
type ResultValidator struct {
	flow.BaseStep
}

// NewResultValidator constructs the step. Its output lands in KeyResult so
// the pipeline reads one well-known slot regardless of chain shape.
func NewResultValidator(name string) *ResultValidator {
	out := &ResultValidator{BaseStep: *flow.NewBaseStep(name)}
	out.OutKey = KeyResult
	return out
}

func (v *ResultValidator) Execute(scope flow.Scope) {
	ctx := scope.GetContext()
	result := scope.Get(v.InputKey()).(*model.AnalysisResult)

	if err := nutrition.Sanitize(result); err != nil {
		v.ErrorCounter().Add(ctx, 1)
		scope.Fail(v.Name(), err)
		return
	}

	v.SuccessCounter().Add(ctx, 1)
	scope.Add(v.OutputKey(), result)
}
