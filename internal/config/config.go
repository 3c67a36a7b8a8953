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

// Package config defines the data structures for application configuration,
// loaded from TOML files. It centralizes every configurable parameter of the
// engine: session lifetime and correction limits, media tooling paths, AI
// model settings, retry policy, correction trigger phrases, prompt templates,
// and the persistence connection.
//
// Structs:
//   - Application: general application settings.
//   - SessionConfig: TTL and correction-round limits.
//   - MediaConfig: ffmpeg/ffprobe paths, frame count, photo size bound.
//   - AgentModel: settings for one generative model.
//   - RetryPolicy: attempt budget, per-attempt timeout, and backoff.
//   - CorrectionConfig: the language-specific trigger phrase tables.
//   - PromptTemplates: text templates for the prompts sent to the model.
//   - Database: connection string for the persistence collaborator.
//   - Config: the top-level aggregate.
package config

import "time"

// Application holds general application settings.
type Application struct {
	Name             string `toml:"name"`                // The application name, used in telemetry.
	TempDir          string `toml:"temp_dir"`            // Base directory for per-session temp namespaces. Empty means os.TempDir().
	MaxInFlight      int    `toml:"max_in_flight"`       // Maximum concurrent analysis pipelines.
	OrphanSweepHours int    `toml:"orphan_sweep_hours"`  // Age bound for the orphan temp-dir sweep.
	GoogleProjectID  string `toml:"google_project_id"`   // GCP project for the Vertex AI backend.
	GoogleLocation   string `toml:"location"`            // GCP location for the Vertex AI backend.
	GeminiAPIKey     string `toml:"gemini_api_key"`      // API key; set to use the Gemini API backend instead of Vertex.
	UseMockAnalyzer  bool   `toml:"use_mock_analyzer"`   // Serve canned analyses instead of calling the AI service.
}

// SessionConfig bounds the session lifecycle.
type SessionConfig struct {
	TTLMinutes     int `toml:"ttl_minutes"`     // Inactivity window before a session expires.
	MaxCorrections int `toml:"max_corrections"` // Correction rounds accepted per session.
}

// TTL returns the session time-to-live as a duration.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// MediaConfig holds the media tooling settings.
type MediaConfig struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
	FrameCount  int    `toml:"frame_count"`   // Still frames sampled from a video.
	MaxPhotoMB  int    `toml:"max_photo_mb"`  // Upper bound on an accepted photo payload.
}

// AgentModel represents the configuration for one generative model.
type AgentModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	RateLimit          int     `toml:"rate_limit"` // Requests per second allowed against this model.
}

// RetryPolicy controls the transport retry budget. Parse and validation
// failures are never retried regardless of this policy.
type RetryPolicy struct {
	MaxAttempts           int `toml:"max_attempts"`            // Total attempts including the first.
	PerAttemptTimeoutSecs int `toml:"per_attempt_timeout_s"`   // Deadline for a single attempt.
	BackoffSecs           int `toml:"backoff_s"`               // Pause between attempts.
}

// PerAttemptTimeout returns the per-attempt deadline as a duration.
func (r RetryPolicy) PerAttemptTimeout() time.Duration {
	return time.Duration(r.PerAttemptTimeoutSecs) * time.Second
}

// Backoff returns the inter-attempt pause as a duration.
func (r RetryPolicy) Backoff() time.Duration {
	return time.Duration(r.BackoffSecs) * time.Second
}

// ModifyPattern is one regular expression recognizing a "replace X with Y"
// style correction. The expression must contain exactly two capture groups;
// NewFirst says whether the replacement name is the first group.
type ModifyPattern struct {
	Pattern  string `toml:"pattern"`
	NewFirst bool   `toml:"new_first"`
}

// CorrectionConfig is the trigger-phrase table for the correction parser.
// Phrasings are configuration, not code: adding a language means adding
// entries here, not editing the matcher.
type CorrectionConfig struct {
	RemoveTriggers    []string        `toml:"remove_triggers"`     // Leading phrases meaning "remove X".
	AddTriggers       []string        `toml:"add_triggers"`        // Leading phrases meaning "add X".
	ModifyPatterns    []ModifyPattern `toml:"modify_patterns"`     // "it's X, not Y" shapes.
	WeightPatterns    []string        `toml:"weight_patterns"`     // Bare total-weight shapes, one capture group.
	DefaultAddWeightG float64         `toml:"default_add_weight_g"` // Fallback weight when an add names no amount.
}

// PromptTemplates holds the text templates for prompts sent to the model.
type PromptTemplates struct {
	Analysis      string `toml:"analysis"`      // The multimodal meal-analysis prompt.
	Transcription string `toml:"transcription"` // The audio transcription prompt.
}

// Database holds the persistence collaborator settings.
type Database struct {
	URL string `toml:"url"`
}

// Config is the top-level aggregate, loaded from layered TOML files.
type Config struct {
	Application     Application           `toml:"application"`
	Session         SessionConfig         `toml:"session"`
	Media           MediaConfig           `toml:"media"`
	AgentModels     map[string]AgentModel `toml:"agent_models"`
	Retry           RetryPolicy           `toml:"retry"`
	Correction      CorrectionConfig      `toml:"correction"`
	PromptTemplates PromptTemplates       `toml:"prompt_templates"`
	Database        Database              `toml:"database"`
}

// NewConfig creates an initialized Config. The map fields must exist before
// the TOML decoder populates them.
func NewConfig() *Config {
	return &Config{
		AgentModels: make(map[string]AgentModel),
	}
}
