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

// Package ai wraps the generative AI vendor client. This file implements the
// quota-aware model decorator: it adds rate limiting in front of the raw
// client so the engine cannot burn through the vendor's requests-per-minute
// quota under concurrent load. Retry policy deliberately does NOT live here —
// the pipeline owns the retry budget, because only the pipeline knows which
// failures are worth a retry (transport) and which are not (parsing).
package ai

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// VisionModel is the vendor-agnostic surface the pipeline consumes: send a
// multimodal request, get the response text back. Tests substitute fakes.
type VisionModel interface {
	Generate(ctx context.Context, contents []*genai.Content) (string, error)
}

// QuotaAwareModel decorates a generative model handle with a token-bucket
// rate limiter.
type QuotaAwareModel struct {
	GenerateConfig *genai.GenerateContentConfig
	ModelName      string
	ModelHandle    *genai.Models
	limiter        *rate.Limiter
}

// NewQuotaAwareModel wraps a model handle. requestsPerSecond bounds both the
// steady rate and the burst.
func NewQuotaAwareModel(cfg *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareModel {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &QuotaAwareModel{
		GenerateConfig: cfg,
		ModelName:      name,
		ModelHandle:    handle,
		limiter:        rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// Generate blocks until the rate limiter admits the request, sends it, and
// concatenates the text of every candidate part into a single string.
func (q *QuotaAwareModel) Generate(ctx context.Context, contents []*genai.Content) (string, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := q.ModelHandle.GenerateContent(ctx, q.ModelName, contents, q.GenerateConfig)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			out.WriteString(part.Text)
		}
	}
	return out.String(), nil
}

// NewTextContent builds a single-part text request body.
func NewTextContent(text string) []*genai.Content {
	return []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}}
}

// NewInlinePart builds an inline binary part (image or audio) for a
// multimodal request.
func NewInlinePart(mimeType string, data []byte) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}
}
