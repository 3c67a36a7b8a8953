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

// Package nutrition holds the pure domain logic of the engine. This file is
// the rule-based correction parser and applier.
//
// Parsing is an ordered table of (matcher, builder) rules, first match wins.
// The trigger phrases themselves come from configuration so that new
// languages and phrasings are additive. Rule order is fixed by specificity:
// a bare weight ("500g") is checked before remove/add triggers, because
// "вес 300г" would otherwise never match.
//
// Applying a correction always works on a deep copy of the analysis and
// always finishes by recomputing the aggregates from the component list —
// totals from the AI are never trusted once the user starts editing.
package nutrition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/platewise/platewise/internal/config"
	"github.com/platewise/platewise/internal/core/model"
)

// Bounds on the raw correction message, before any rule runs.
const (
	minCorrectionLen = 3
	maxCorrectionLen = 500
)

// User-added components get a flat per-gram calorie estimate split into the
// typical macro energy shares, since the AI never saw the item.
const (
	addedKcalPerGram   = 2.0
	addedProteinShare  = 0.15
	addedFatShare      = 0.30
	addedCarbsShare    = 0.55
	addedConfidence    = 0.5
	modifiedConfidence = 0.7
)

var weightInTextRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:г(?:рамм(?:а|ов)?)?|g|grams?)\b`)

// rule is one entry of the ordered matcher table. build returns the parsed
// correction and whether the text matched.
type rule struct {
	kind  model.CorrectionKind
	build func(text string) (*model.Correction, bool)
}

// Parser interprets free-text corrections against a trigger-phrase table.
type Parser struct {
	rules           []rule
	defaultWeightG  float64
	exampleHint     string
}

// NewParser compiles the configured trigger phrases and patterns into the
// ordered rule table. A malformed pattern is a configuration error and fails
// construction.
func NewParser(cfg config.CorrectionConfig) (*Parser, error) {
	p := &Parser{
		defaultWeightG: cfg.DefaultAddWeightG,
		exampleHint: `examples: "no bread" to remove, "add salad 100g" to add, ` +
			`"it's chicken, not pork" to rename, "500g" to set the total weight`,
	}
	if p.defaultWeightG <= 0 {
		p.defaultWeightG = 100
	}

	// Most specific first: a bare weight, then removals, additions, renames.
	weightRes := make([]*regexp.Regexp, 0, len(cfg.WeightPatterns))
	for _, pattern := range cfg.WeightPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("weight pattern %q: %w", pattern, err)
		}
		weightRes = append(weightRes, re)
	}
	p.rules = append(p.rules, rule{kind: model.CorrectionSetWeight, build: func(text string) (*model.Correction, bool) {
		for _, re := range weightRes {
			if m := re.FindStringSubmatch(text); m != nil {
				grams, err := strconv.ParseFloat(m[1], 64)
				if err != nil || grams <= 0 {
					continue
				}
				return &model.Correction{Kind: model.CorrectionSetWeight, WeightGrams: grams}, true
			}
		}
		return nil, false
	}})

	removeRes, err := triggerPatterns(cfg.RemoveTriggers)
	if err != nil {
		return nil, err
	}
	p.rules = append(p.rules, rule{kind: model.CorrectionRemove, build: func(text string) (*model.Correction, bool) {
		for _, re := range removeRes {
			if m := re.FindStringSubmatch(text); m != nil {
				return &model.Correction{Kind: model.CorrectionRemove, Target: strings.TrimSpace(m[1])}, true
			}
		}
		return nil, false
	}})

	addRes, err := triggerPatterns(cfg.AddTriggers)
	if err != nil {
		return nil, err
	}
	p.rules = append(p.rules, rule{kind: model.CorrectionAdd, build: func(text string) (*model.Correction, bool) {
		for _, re := range addRes {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			item := strings.TrimSpace(m[1])
			weight := 0.0
			if wm := weightInTextRe.FindStringSubmatch(item); wm != nil {
				weight, _ = strconv.ParseFloat(strings.ReplaceAll(wm[1], ",", "."), 64)
				item = strings.TrimSpace(weightInTextRe.ReplaceAllString(item, ""))
			}
			if item == "" {
				continue
			}
			return &model.Correction{Kind: model.CorrectionAdd, NewName: item, WeightGrams: weight}, true
		}
		return nil, false
	}})

	modifyRes := make([]*regexp.Regexp, 0, len(cfg.ModifyPatterns))
	newFirst := make([]bool, 0, len(cfg.ModifyPatterns))
	for _, mp := range cfg.ModifyPatterns {
		re, err := regexp.Compile(mp.Pattern)
		if err != nil {
			return nil, fmt.Errorf("modify pattern %q: %w", mp.Pattern, err)
		}
		if re.NumSubexp() != 2 {
			return nil, fmt.Errorf("modify pattern %q: want exactly 2 capture groups, got %d", mp.Pattern, re.NumSubexp())
		}
		modifyRes = append(modifyRes, re)
		newFirst = append(newFirst, mp.NewFirst)
	}
	p.rules = append(p.rules, rule{kind: model.CorrectionModify, build: func(text string) (*model.Correction, bool) {
		for i, re := range modifyRes {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			newName, oldName := m[1], m[2]
			if !newFirst[i] {
				newName, oldName = oldName, newName
			}
			return &model.Correction{
				Kind:    model.CorrectionModify,
				Target:  strings.TrimSpace(oldName),
				NewName: strings.TrimSpace(newName),
			}, true
		}
		return nil, false
	}})

	return p, nil
}

// triggerPatterns turns a list of leading trigger phrases into anchored
// case-insensitive regexes capturing the remainder of the message.
func triggerPatterns(triggers []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(triggers))
	for _, trigger := range triggers {
		re, err := regexp.Compile(`^` + regexp.QuoteMeta(strings.ToLower(trigger)) + `\s+(.+)$`)
		if err != nil {
			return nil, fmt.Errorf("trigger %q: %w", trigger, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Parse interprets a free-text correction. It never mutates the analysis; an
// unmatched message returns ErrUnrecognizedCorrection together with example
// phrasings the caller can surface verbatim.
func (p *Parser) Parse(text string, _ *model.AnalysisResult) (*model.Correction, error) {
	raw := text
	text = strings.ToLower(strings.TrimSpace(text))

	if len([]rune(text)) < minCorrectionLen {
		return nil, fmt.Errorf("%w: message too short; %s", model.ErrUnrecognizedCorrection, p.exampleHint)
	}
	if len([]rune(text)) > maxCorrectionLen {
		return nil, fmt.Errorf("%w: message too long (max %d characters)", model.ErrUnrecognizedCorrection, maxCorrectionLen)
	}

	for _, r := range p.rules {
		if correction, ok := r.build(text); ok {
			correction.SourceText = raw
			return correction, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", model.ErrUnrecognizedCorrection, p.exampleHint)
}

// Apply executes a parsed correction against an analysis snapshot and returns
// a new snapshot. Exactly one component is changed, added, or removed (or all
// are scaled, for a total-weight correction); everything else is untouched.
// Aggregates are always recomputed locally.
func (p *Parser) Apply(c *model.Correction, analysis *model.AnalysisResult) *model.AnalysisResult {
	out := analysis.Clone()

	switch c.Kind {
	case model.CorrectionRemove:
		kept := out.Components[:0]
		removed := false
		for _, comp := range out.Components {
			if !removed && nameMatches(comp.Name, c.Target) {
				removed = true
				continue
			}
			kept = append(kept, comp)
		}
		out.Components = kept
		if !removed {
			out.Warnings = append(out.Warnings, fmt.Sprintf("no component matching %q to remove", c.Target))
		}

	case model.CorrectionAdd:
		weight := c.WeightGrams
		if weight <= 0 {
			weight = p.defaultWeightG
		}
		calories := weight * addedKcalPerGram
		out.Components = append(out.Components, model.FoodComponent{
			Name:         capitalize(c.NewName),
			WeightGrams:  weight,
			Calories:     calories,
			ProteinGrams: calories * addedProteinShare / kcalPerGramProtein,
			FatGrams:     calories * addedFatShare / kcalPerGramFat,
			CarbGrams:    calories * addedCarbsShare / kcalPerGramCarbs,
			Confidence:   addedConfidence,
		})

	case model.CorrectionModify:
		modified := false
		for i := range out.Components {
			if nameMatches(out.Components[i].Name, c.Target) {
				out.Components[i].Name = capitalize(c.NewName)
				out.Components[i].Confidence = modifiedConfidence
				modified = true
				break
			}
		}
		if !modified {
			out.Warnings = append(out.Warnings, fmt.Sprintf("no component matching %q to rename", c.Target))
		}

	case model.CorrectionSetWeight:
		if out.WeightGrams <= 0 {
			out.Warnings = append(out.Warnings, "cannot rescale: current total weight is unknown")
			break
		}
		scale := c.WeightGrams / out.WeightGrams
		for i := range out.Components {
			out.Components[i].WeightGrams *= scale
			out.Components[i].Calories *= scale
			out.Components[i].ProteinGrams *= scale
			out.Components[i].FatGrams *= scale
			out.Components[i].CarbGrams *= scale
		}
	}

	out.RecomputeTotals()
	return out
}

// nameMatches does a case-insensitive containment check in either direction,
// so "rice" matches "Steamed white rice" and vice versa.
func nameMatches(componentName, target string) bool {
	a := strings.ToLower(strings.TrimSpace(componentName))
	b := strings.ToLower(strings.TrimSpace(target))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func capitalize(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
