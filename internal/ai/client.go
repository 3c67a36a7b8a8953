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

// Package ai wraps the generative AI vendor client behind a small,
// vendor-agnostic surface. This file initializes the client and builds the
// configured model handles. The engine talks to models only through the
// VisionModel interface, which keeps the pipeline testable with fakes and the
// vendor swappable.
package ai

import (
	"context"
	"fmt"

	"github.com/platewise/platewise/internal/config"
	"google.golang.org/genai"
)

// DefaultSafetySettings relaxes the content filters. Meal photos and kitchen
// audio are trusted input; a blocked response here is indistinguishable from
// a transport failure to the caller.
var DefaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
}

// Clients holds the initialized AI client and the configured model handles,
// keyed by the logical names from the configuration (e.g. "vision",
// "transcribe").
type Clients struct {
	GenAIClient *genai.Client
	Models      map[string]*QuotaAwareModel
}

// NewClients creates the generative AI client and one rate-limited model
// handle per configured agent model. An API key selects the Gemini API
// backend; otherwise the Vertex AI backend is used with the configured
// project and location.
func NewClients(ctx context.Context, cfg *config.Config) (*Clients, error) {
	clientCfg := &genai.ClientConfig{}
	if cfg.Application.GeminiAPIKey != "" {
		clientCfg.APIKey = cfg.Application.GeminiAPIKey
		clientCfg.Backend = genai.BackendGeminiAPI
	} else {
		clientCfg.Project = cfg.Application.GoogleProjectID
		clientCfg.Location = cfg.Application.GoogleLocation
		clientCfg.Backend = genai.BackendVertexAI
	}

	gc, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	models := make(map[string]*QuotaAwareModel)
	for key, values := range cfg.AgentModels {
		genCfg := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](values.Temperature),
			TopP:            genai.Ptr[float32](values.TopP),
			TopK:            genai.Ptr[float32](values.TopK),
			MaxOutputTokens: values.MaxTokens,
			SafetySettings:  DefaultSafetySettings,
		}
		if values.SystemInstructions != "" {
			genCfg.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: values.SystemInstructions}},
			}
		}
		models[key] = NewQuotaAwareModel(genCfg, values.Model, gc.Models, values.RateLimit)
	}

	return &Clients{GenAIClient: gc, Models: models}, nil
}
