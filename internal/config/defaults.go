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

// Package config defines the application configuration. This file carries the
// built-in defaults used when a TOML layer leaves a section empty. The
// correction trigger tables ship with English and Russian phrasings; further
// languages are added through configuration, not code.
package config

// DefaultCorrection returns the built-in correction trigger-phrase table.
func DefaultCorrection() CorrectionConfig {
	return CorrectionConfig{
		RemoveTriggers: []string{
			"no", "remove", "without", "delete",
			"нет", "убери", "удали", "без",
		},
		AddTriggers: []string{
			"add", "also", "plus", "and also",
			"добавь", "есть ещё", "есть еще", "плюс",
		},
		ModifyPatterns: []ModifyPattern{
			{Pattern: `^it'?s\s+(.+?),?\s+not\s+(.+)$`, NewFirst: true},
			{Pattern: `^not\s+(.+?),?\s+but\s+(.+)$`, NewFirst: false},
			{Pattern: `^это\s+(.+?),?\s+а\s+не\s+(.+)$`, NewFirst: true},
			{Pattern: `^не\s+(.+?),?\s+а\s+(.+)$`, NewFirst: false},
		},
		WeightPatterns: []string{
			`^(\d+)\s*(?:г|грамм(?:а|ов)?|g|grams?)$`,
			`^вес\s+(\d+)\s*(?:г|грамм(?:а|ов)?)?$`,
			`^weight\s+(\d+)\s*(?:g|grams?)?$`,
		},
		DefaultAddWeightG: 100,
	}
}

// DefaultRetry returns the built-in transport retry policy: three total
// attempts with a 30 second per-attempt deadline.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:           3,
		PerAttemptTimeoutSecs: 30,
		BackoffSecs:           2,
	}
}

// Built-in prompt templates, used when the TOML layers supply none. The
// analysis template receives EXAMPLE_JSON and TRANSCRIPTION values.
const (
	defaultAnalysisPrompt = `You are a nutrition analysis assistant. Look at the attached meal images and produce a calorie and macronutrient breakdown.

Rules:
- Identify each distinct food item on the plate as a separate component.
- Estimate the weight of each component in grams.
- Estimate calories, protein, fat and carbohydrates per component.
- Set a confidence between 0 and 1 for each component.
- Rate the overall healthiness of the meal from 1 (poor) to 10 (excellent) as health_score.
- Return ONLY a JSON object, no markdown fences, no commentary.

The JSON must match this structure exactly:
{{.EXAMPLE_JSON}}
{{if .TRANSCRIPTION}}
The person filming described the meal as follows. Treat this as user-supplied context and weigh it against what you see:
"{{.TRANSCRIPTION}}"
{{end}}`

	defaultTranscriptionPrompt = `Transcribe the speech in the attached audio exactly as spoken. Return only the transcription text with no commentary. If there is no intelligible speech, return an empty response.`
)

// ApplyDefaults fills in any section a deployment's TOML files left empty.
func (c *Config) ApplyDefaults() {
	if len(c.Correction.RemoveTriggers) == 0 && len(c.Correction.AddTriggers) == 0 {
		c.Correction = DefaultCorrection()
	}
	if c.Correction.DefaultAddWeightG <= 0 {
		c.Correction.DefaultAddWeightG = 100
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = DefaultRetry()
	}
	if c.Session.TTLMinutes == 0 {
		c.Session.TTLMinutes = 30
	}
	if c.Session.MaxCorrections == 0 {
		c.Session.MaxCorrections = 3
	}
	if c.Media.FrameCount == 0 {
		c.Media.FrameCount = 5
	}
	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = "ffmpeg"
	}
	if c.Media.FFprobePath == "" {
		c.Media.FFprobePath = "ffprobe"
	}
	if c.Media.MaxPhotoMB == 0 {
		c.Media.MaxPhotoMB = 10
	}
	if c.Application.MaxInFlight == 0 {
		c.Application.MaxInFlight = 4
	}
	if c.Application.OrphanSweepHours == 0 {
		c.Application.OrphanSweepHours = 6
	}
	if c.PromptTemplates.Analysis == "" {
		c.PromptTemplates.Analysis = defaultAnalysisPrompt
	}
	if c.PromptTemplates.Transcription == "" {
		c.PromptTemplates.Transcription = defaultTranscriptionPrompt
	}
}
