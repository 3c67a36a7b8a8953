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
// This file provides factory functions for hardcoded example instances.
//
// These example objects are used for "few-shot" prompting with the generative
// AI model. Embedding a concrete example of the desired JSON output in the
// prompt guides the model to return data that is consistent, correctly
// formatted, and parsable.
package model

// GetExampleAnalysis creates a sample AnalysisResult used as the few-shot
// example inside the analysis prompt. The numbers are deliberately mundane so
// the model does not copy them; the structure is what matters.
func GetExampleAnalysis() *AnalysisResult {
	out := &AnalysisResult{
		DishName: "Grilled chicken with rice",
		Components: []FoodComponent{
			{
				Name:         "Grilled chicken breast",
				WeightGrams:  150,
				Calories:     248,
				ProteinGrams: 46.5,
				FatGrams:     5.4,
				CarbGrams:    0,
				Confidence:   0.9,
			},
			{
				Name:         "Steamed white rice",
				WeightGrams:  180,
				Calories:     234,
				ProteinGrams: 4.8,
				FatGrams:     0.5,
				CarbGrams:    51.3,
				Confidence:   0.85,
			},
		},
		HealthScore: 7,
	}
	out.RecomputeTotals()
	return out
}
