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

// Package steps provides the concrete pipeline steps of the meal analysis
// engine. This file holds the Analyzer, the step that sends the multimodal
// meal-analysis request to the vision model.
//
// The prompt is built from a Go template. Two values are injected: a
// complete example of the expected JSON shape (few-shot prompting keeps the
// model's output parseable) and the voice-note transcription, clearly framed
// as user-supplied context so the model weighs it against what it sees.
//
// Only this step retries, and only transport failures: the response text is
// handed to the parser exactly once, because a deterministic parse failure
// would fail identically on every retry.
package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/template"

	"google.golang.org/genai"

	"github.com/platewise/platewise/internal/ai"
	"github.com/platewise/platewise/internal/core/flow"
	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/core/retry"
)

// Analyzer sends frames plus optional transcription to the vision model and
// outputs the raw response text.
type Analyzer struct {
	flow.BaseStep
	vision ai.VisionModel
	prompt *template.Template
	policy retry.Policy
}

// NewAnalyzer constructs the step.
func NewAnalyzer(name string, vision ai.VisionModel, prompt *template.Template, policy retry.Policy) *Analyzer {
	return &Analyzer{
		BaseStep: *flow.NewBaseStep(name),
		vision:   vision,
		prompt:   prompt,
		policy:   policy,
	}
}

func (a *Analyzer) Execute(scope flow.Scope) {
	ctx := scope.GetContext()
	frames := scope.Get(a.InputKey()).([]Frame)

	transcription := ""
	if v, ok := scope.Get(KeyTranscription).(string); ok {
		transcription = v
	}

	promptText, err := a.buildPrompt(transcription)
	if err != nil {
		a.ErrorCounter().Add(ctx, 1)
		scope.Fail(a.Name(), fmt.Errorf("execute prompt template: %w", err))
		return
	}

	parts := []*genai.Part{{Text: promptText}}
	for _, frame := range frames {
		data, err := os.ReadFile(frame.Path)
		if err != nil {
			// The frame existed moments ago; a read failure here is survivable
			// as long as at least one frame still loads.
			continue
		}
		parts = append(parts, ai.NewInlinePart(frame.MIMEType, data))
	}
	if len(parts) == 1 {
		a.ErrorCounter().Add(ctx, 1)
		scope.Fail(a.Name(), fmt.Errorf("%w: no frame could be read", model.ErrExtraction))
		return
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	out, err := retry.Do(ctx, a.policy, func(ctx context.Context) (string, error) {
		return a.vision.Generate(ctx, contents)
	})
	if err != nil {
		a.ErrorCounter().Add(ctx, 1)
		scope.Fail(a.Name(), fmt.Errorf("%w: %v", model.ErrTransport, err))
		return
	}

	a.SuccessCounter().Add(ctx, 1)
	scope.Add(a.OutputKey(), out)
}

func (a *Analyzer) buildPrompt(transcription string) (string, error) {
	exampleJSON, _ := json.Marshal(model.GetExampleAnalysis())
	params := map[string]any{
		"EXAMPLE_JSON":  string(exampleJSON),
		"TRANSCRIPTION": transcription,
	}
	var doc bytes.Buffer
	if err := a.prompt.Execute(&doc, params); err != nil {
		return "", err
	}
	return doc.String(), nil
}
