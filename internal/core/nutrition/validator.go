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

// Package nutrition holds the pure domain logic of the engine: numeric sanity
// checks for AI output and the rule-based correction parser. Nothing in this
// package performs I/O.
//
// This file is the validator. It distinguishes two classes of findings:
//
//   - Hard violations (negative macros, implausible weight, confidence out of
//     range) disqualify a component. Bad components are discarded and flagged;
//     the result as a whole only fails when no valid component remains.
//   - Advisory findings (odd calorie density, macro/calorie mismatch, unusual
//     macro ratios) never reject anything. They become warnings on the result
//     so the user can eyeball the estimate.
package nutrition

import (
	"fmt"

	"github.com/platewise/platewise/internal/core/model"
)

// Plausibility bounds for a single component.
const (
	MinComponentWeightG = 1
	MaxComponentWeightG = 2000
	MinConfidence       = 0.0
	MaxConfidence       = 1.0
)

// Advisory bounds for the whole result.
const (
	minCaloriesPer100g = 10
	maxCaloriesPer100g = 900
	macroTolerancePct  = 20 // Allowed gap between stated calories and calories derived from macros.
	minHealthScore     = 1
	maxHealthScore     = 10
)

// Energy per gram of each macronutrient.
const (
	kcalPerGramProtein = 4
	kcalPerGramFat     = 9
	kcalPerGramCarbs   = 4
)

// Macro ratio plausibility bands as percent of total calories.
var (
	proteinRatioRange = [2]float64{5, 40}
	fatRatioRange     = [2]float64{10, 50}
	carbsRatioRange   = [2]float64{20, 80}
)

// ValidateComponent checks one component against the hard bounds. A non-nil
// error means the component cannot be trusted and should be discarded.
func ValidateComponent(c model.FoodComponent) error {
	if c.Name == "" {
		return fmt.Errorf("component has no name")
	}
	if c.WeightGrams < MinComponentWeightG || c.WeightGrams > MaxComponentWeightG {
		return fmt.Errorf("component %q: implausible weight %.0fg (expected %d-%dg)",
			c.Name, c.WeightGrams, MinComponentWeightG, MaxComponentWeightG)
	}
	if c.Calories < 0 {
		return fmt.Errorf("component %q: negative calories %.1f", c.Name, c.Calories)
	}
	if c.ProteinGrams < 0 || c.FatGrams < 0 || c.CarbGrams < 0 {
		return fmt.Errorf("component %q: negative macro values", c.Name)
	}
	if c.Confidence < MinConfidence || c.Confidence > MaxConfidence {
		return fmt.Errorf("component %q: confidence %.2f outside [0,1]", c.Name, c.Confidence)
	}
	return nil
}

// Sanitize enforces the hard bounds on a parsed result in place. Components
// failing validation are dropped and flagged as warnings; the health score is
// clamped to its scale; aggregates are recomputed from the surviving
// components. The result is rejected only when nothing valid remains.
func Sanitize(r *model.AnalysisResult) error {
	valid := r.Components[:0]
	for _, c := range r.Components {
		if err := ValidateComponent(c); err != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("discarded: %v", err))
			continue
		}
		valid = append(valid, c)
	}
	r.Components = valid

	if len(r.Components) == 0 {
		return fmt.Errorf("%w: no valid components", model.ErrValidation)
	}

	if r.HealthScore < minHealthScore {
		r.HealthScore = minHealthScore
	} else if r.HealthScore > maxHealthScore {
		r.HealthScore = maxHealthScore
	}

	r.RecomputeTotals()
	r.Warnings = append(r.Warnings, AdvisoryWarnings(r)...)
	return nil
}

// AdvisoryWarnings inspects the aggregate values of a result and reports
// findings that suggest the estimate is off. They are hints, never errors.
func AdvisoryWarnings(r *model.AnalysisResult) []string {
	var warnings []string

	if density := r.CaloriesPer100g(); density > 0 {
		if density < minCaloriesPer100g {
			warnings = append(warnings, fmt.Sprintf(
				"very low calorie density: %.0f kcal/100g (typical: 50-300)", density))
		} else if density > maxCaloriesPer100g {
			warnings = append(warnings, fmt.Sprintf(
				"very high calorie density: %.0f kcal/100g (typical: 50-300)", density))
		}
	}

	if r.CaloriesTotal > 0 {
		derived := r.ProteinGrams*kcalPerGramProtein +
			r.FatGrams*kcalPerGramFat +
			r.CarbGrams*kcalPerGramCarbs
		diffPct := (r.CaloriesTotal - derived) / r.CaloriesTotal * 100
		if diffPct < 0 {
			diffPct = -diffPct
		}
		if diffPct > macroTolerancePct {
			warnings = append(warnings, fmt.Sprintf(
				"macro mismatch: stated %.0f kcal but macros give %.0f kcal", r.CaloriesTotal, derived))
		}

		proteinPct := r.ProteinGrams * kcalPerGramProtein / r.CaloriesTotal * 100
		fatPct := r.FatGrams * kcalPerGramFat / r.CaloriesTotal * 100
		carbsPct := r.CarbGrams * kcalPerGramCarbs / r.CaloriesTotal * 100

		if proteinPct < proteinRatioRange[0] || proteinPct > proteinRatioRange[1] {
			warnings = append(warnings, fmt.Sprintf(
				"unusual protein ratio: %.0f%% of calories (typical: %.0f-%.0f%%)",
				proteinPct, proteinRatioRange[0], proteinRatioRange[1]))
		}
		if fatPct < fatRatioRange[0] || fatPct > fatRatioRange[1] {
			warnings = append(warnings, fmt.Sprintf(
				"unusual fat ratio: %.0f%% of calories (typical: %.0f-%.0f%%)",
				fatPct, fatRatioRange[0], fatRatioRange[1]))
		}
		if carbsPct < carbsRatioRange[0] || carbsPct > carbsRatioRange[1] {
			warnings = append(warnings, fmt.Sprintf(
				"unusual carbs ratio: %.0f%% of calories (typical: %.0f-%.0f%%)",
				carbsPct, carbsRatioRange[0], carbsRatioRange[1]))
		}
	}

	return warnings
}
