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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platewise/platewise/internal/core/model"
)

const cleanResponse = `{
  "dish_name": "Chicken with rice",
  "components": [
    {"name": "Grilled chicken", "weight_g": 150, "calories": 248, "protein_g": 46.5, "fat_g": 5.4, "carbs_g": 0, "confidence": 0.9},
    {"name": "Steamed rice", "weight_g": 150, "calories": 195, "protein_g": 4, "fat_g": 0.4, "carbs_g": 42, "confidence": 0.85}
  ],
  "health_score": 7
}`

func TestParseAnalysisCleanJSON(t *testing.T) {
	result, err := ParseAnalysis(cleanResponse)
	require.NoError(t, err)
	assert.Equal(t, "Chicken with rice", result.DishName)
	require.Len(t, result.Components, 2)
	assert.Equal(t, 248.0, result.Components[0].Calories)
}

func TestParseAnalysisMarkdownFenced(t *testing.T) {
	result, err := ParseAnalysis("```json\n" + cleanResponse + "\n```")
	require.NoError(t, err)
	assert.Len(t, result.Components, 2)
}

func TestParseAnalysisJSONBuriedInProse(t *testing.T) {
	raw := "Sure! Here is the breakdown you asked for:\n\n" + cleanResponse + "\n\nLet me know if you need anything else."
	result, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Len(t, result.Components, 2)
}

func TestParseAnalysisToleratesCommentsAndTrailingCommas(t *testing.T) {
	raw := `{
  // the model felt chatty today
  "components": [
    {"name": "Toast", "weight_g": 50, "calories": 130, "protein_g": 4, "fat_g": 2, "carbs_g": 24, "confidence": 0.8},
  ],
  "health_score": 5,
}`
	result, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.Len(t, result.Components, 1)
	assert.Equal(t, "Toast", result.Components[0].Name)
}

func TestParseAnalysisTextFallback(t *testing.T) {
	raw := "This looks like a pasta dish.\nCalories: 520 kcal\nProtein: 18g\nFat: 12g\nCarbs: 80g\nWeight: 350g"
	result, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.Len(t, result.Components, 1)
	assert.Equal(t, 520.0, result.Components[0].Calories)
	assert.Equal(t, 350.0, result.Components[0].WeightGrams)
	assert.Equal(t, 18.0, result.Components[0].ProteinGrams)
	assert.NotEmpty(t, result.Warnings)
}

func TestParseAnalysisFailsOnGarbage(t *testing.T) {
	_, err := ParseAnalysis("I cannot see any food in these images.")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrParse))
}

func TestFrameTimestampsAreEvenlySpacedAndInterior(t *testing.T) {
	offsets := frameTimestamps(60, 5)
	require.Len(t, offsets, 5)
	assert.InDelta(t, 10.0, offsets[0], 0.001)
	assert.InDelta(t, 50.0, offsets[4], 0.001)

	for i, off := range offsets {
		assert.Greater(t, off, 0.0, "offset %d", i)
		assert.Less(t, off, 60.0, "offset %d", i)
		if i > 0 {
			assert.InDelta(t, 10.0, off-offsets[i-1], 0.001)
		}
	}
}

func TestFrameTimestampsShortClip(t *testing.T) {
	offsets := frameTimestamps(1.2, 5)
	require.Len(t, offsets, 5)
	for _, off := range offsets {
		assert.Greater(t, off, 0.0)
		assert.Less(t, off, 1.2)
	}
}
