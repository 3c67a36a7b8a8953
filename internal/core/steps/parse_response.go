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
// engine. This file holds the ResponseParser, which turns the raw text the
// vision model returned into a structured AnalysisResult.
//
// Models wrap JSON in markdown fences, prepend prose, leave trailing commas,
// and occasionally annotate with // comments. The parser tolerates all of
// that: it strips fences, cuts the outermost brace window out of surrounding
// prose, and scrubs comments and trailing commas before unmarshalling. When
// no JSON can be recovered at all it falls back to scraping "calories: 450"
// style lines from plain text. Parse failures are deterministic and are
// never retried.
package steps

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/platewise/platewise/internal/core/flow"
	"github.com/platewise/platewise/internal/core/model"
)

var (
	lineCommentRe   = regexp.MustCompile(`(?m)^\s*//.*$`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

	// "calories: 450", "450 kcal", "protein: 20g" shapes for the text fallback.
	fallbackCaloriesRe = regexp.MustCompile(`(?i)(?:calories?|kcal|калори[ийя])\D{0,10}(\d+(?:[.,]\d+)?)`)
	fallbackProteinRe  = regexp.MustCompile(`(?i)(?:protein|белк[иоа]в?)\D{0,10}(\d+(?:[.,]\d+)?)`)
	fallbackFatRe      = regexp.MustCompile(`(?i)(?:fats?|жир[ыоа]в?)\D{0,10}(\d+(?:[.,]\d+)?)`)
	fallbackCarbsRe    = regexp.MustCompile(`(?i)(?:carbs?|carbohydrates?|углевод[ыоа]в?)\D{0,10}(\d+(?:[.,]\d+)?)`)
	fallbackWeightRe   = regexp.MustCompile(`(?i)(?:weight|вес)\D{0,10}(\d+(?:[.,]\d+)?)`)
)

// ResponseParser converts raw model output into an AnalysisResult.
type ResponseParser struct {
	flow.BaseStep
}

// NewResponseParser constructs the step.
func NewResponseParser(name string) *ResponseParser {
	return &ResponseParser{BaseStep: *flow.NewBaseStep(name)}
}

func (p *ResponseParser) Execute(scope flow.Scope) {
	ctx := scope.GetContext()
	raw := scope.Get(p.InputKey()).(string)

	result, err := ParseAnalysis(raw)
	if err != nil {
		p.ErrorCounter().Add(ctx, 1)
		scope.Fail(p.Name(), err)
		return
	}

	p.SuccessCounter().Add(ctx, 1)
	scope.Add(p.OutputKey(), result)
}

// ParseAnalysis recovers a structured result from raw model output. It tries
// the JSON path first and the plain-text scrape second; only when both fail
// does it return ErrParse.
func ParseAnalysis(raw string) (*model.AnalysisResult, error) {
	if cleaned, ok := extractJSON(raw); ok {
		var result model.AnalysisResult
		if err := json.Unmarshal([]byte(cleaned), &result); err == nil && len(result.Components) > 0 {
			return &result, nil
		}
	}

	if result, ok := scrapeText(raw); ok {
		return result, nil
	}

	return nil, fmt.Errorf("%w: no JSON object or nutrition facts found in response", model.ErrParse)
}

// extractJSON strips markdown fences, cuts the outermost {...} window, and
// scrubs comments and trailing commas. ok is false when no brace pair exists.
func extractJSON(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	text = text[start : end+1]

	text = lineCommentRe.ReplaceAllString(text, "")
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	return text, true
}

// scrapeText builds a single-component result out of "calories: 450" style
// lines. It needs at least a calorie figure to be worth anything; macros and
// weight are filled in when present.
func scrapeText(raw string) (*model.AnalysisResult, bool) {
	calories, ok := firstNumber(fallbackCaloriesRe, raw)
	if !ok || calories <= 0 {
		return nil, false
	}

	component := model.FoodComponent{
		Name:       "Meal",
		Calories:   calories,
		Confidence: 0.3,
	}
	if w, ok := firstNumber(fallbackWeightRe, raw); ok {
		component.WeightGrams = w
	} else {
		// The validator requires a plausible weight; estimate from a typical
		// mixed-meal density when the text names none.
		component.WeightGrams = calories / 1.5
	}
	if v, ok := firstNumber(fallbackProteinRe, raw); ok {
		component.ProteinGrams = v
	}
	if v, ok := firstNumber(fallbackFatRe, raw); ok {
		component.FatGrams = v
	}
	if v, ok := firstNumber(fallbackCarbsRe, raw); ok {
		component.CarbGrams = v
	}

	result := &model.AnalysisResult{
		Components: []model.FoodComponent{component},
		Warnings:   []string{"structured output unavailable, estimate recovered from text"},
	}
	result.RecomputeTotals()
	return result, true
}

func firstNumber(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
