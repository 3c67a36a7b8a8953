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
// This file holds the structured output of the AI analysis pipeline: the
// overall AnalysisResult and its per-item FoodComponent entries. The JSON tags
// on these structs are the wire contract with the vision model — the prompt
// instructs the model to return exactly this shape.
package model

import "math"

// FoodComponent is one recognized item on the plate. All numeric fields are
// estimates produced by the vision model (or by a user correction) and are
// bounded by the nutrition validator before they are trusted.
type FoodComponent struct {
	Name         string  `json:"name"`       // Human-readable item name (e.g., "Rice").
	WeightGrams  float64 `json:"weight_g"`   // Estimated weight in grams, > 0.
	Calories     float64 `json:"calories"`   // Estimated kilocalories, >= 0.
	ProteinGrams float64 `json:"protein_g"`  // Protein in grams, >= 0.
	FatGrams     float64 `json:"fat_g"`      // Fat in grams, >= 0.
	CarbGrams    float64 `json:"carbs_g"`    // Carbohydrates in grams, >= 0.
	Confidence   float64 `json:"confidence"` // Model confidence in [0,1].
}

// AnalysisResult is the structured calorie/macro breakdown for one meal.
// The aggregate fields are always recomputed from the component list — they
// are never edited independently and never trusted from the model after a
// correction has been applied.
type AnalysisResult struct {
	DishName      string          `json:"dish_name,omitempty"`
	Components    []FoodComponent `json:"components"`
	WeightGrams   float64         `json:"weight_grams"`
	CaloriesTotal float64         `json:"calories_total"`
	ProteinGrams  float64         `json:"protein_g"`
	FatGrams      float64         `json:"fat_g"`
	CarbGrams     float64         `json:"carbs_g"`
	HealthScore   int             `json:"health_score"` // Bounded integer scale, 1-10.
	VoiceUsed     bool            `json:"voice_used"`   // True if a transcription informed the result.
	Warnings      []string        `json:"warnings,omitempty"`
}

// RecomputeTotals derives the aggregate weight, calorie and macro fields from
// the component list. This is the single place aggregate values are ever
// computed; every mutation of the component list must be followed by a call
// to this method.
func (a *AnalysisResult) RecomputeTotals() {
	var weight, calories, protein, fat, carbs float64
	for _, c := range a.Components {
		weight += c.WeightGrams
		calories += c.Calories
		protein += c.ProteinGrams
		fat += c.FatGrams
		carbs += c.CarbGrams
	}
	a.WeightGrams = round1(weight)
	a.CaloriesTotal = round1(calories)
	a.ProteinGrams = round1(protein)
	a.FatGrams = round1(fat)
	a.CarbGrams = round1(carbs)
}

// CaloriesPer100g reports the calorie density of the meal, or zero when the
// total weight is unknown.
func (a *AnalysisResult) CaloriesPer100g() float64 {
	if a.WeightGrams <= 0 {
		return 0
	}
	return round1(a.CaloriesTotal / a.WeightGrams * 100)
}

// Clone returns a deep copy of the result. Corrections are applied against a
// copy so that a failed or rejected correction never leaves a half-mutated
// snapshot visible on the session.
func (a *AnalysisResult) Clone() *AnalysisResult {
	out := *a
	out.Components = make([]FoodComponent, len(a.Components))
	copy(out.Components, a.Components)
	out.Warnings = make([]string, len(a.Warnings))
	copy(out.Warnings, a.Warnings)
	return &out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
