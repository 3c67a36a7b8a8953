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

// Package pipeline assembles the analysis steps into executable chains and
// runs them. One Pipeline instance serves all sessions; each Analyze call
// gets its own scope, so runs never share mutable state.
//
// Two invariants live here:
//
//   - Bounded concurrency. A semaphore admits at most the configured number
//     of concurrent runs. Excess callers queue until a slot frees or their
//     context is cancelled; nothing is ever dropped.
//   - Guaranteed cleanup. The scope is closed on every exit path, which
//     deletes all temporary frames and audio files the run produced.
package pipeline

import (
	"context"
	"fmt"
	"text/template"

	"github.com/platewise/platewise/internal/ai"
	"github.com/platewise/platewise/internal/config"
	"github.com/platewise/platewise/internal/core/flow"
	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/core/retry"
	"github.com/platewise/platewise/internal/core/steps"
)

// Result is the outcome of one pipeline run: the validated analysis plus the
// transcription that informed it, if any.
type Result struct {
	Analysis      *model.AnalysisResult
	Transcription string
}

// Pipeline runs the photo and video analysis chains.
type Pipeline struct {
	photoChain flow.Chain
	videoChain flow.Chain
	gate       chan struct{}
}

// New assembles the chains from configuration. vision handles the multimodal
// analysis request; transcriber handles audio. They may be the same model.
func New(cfg *config.Config, vision, transcriber ai.VisionModel) (*Pipeline, error) {
	analysisTmpl, err := template.New("analysis").Parse(cfg.PromptTemplates.Analysis)
	if err != nil {
		return nil, fmt.Errorf("parse analysis prompt template: %w", err)
	}

	policy := retry.Policy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		PerAttemptTimeout: cfg.Retry.PerAttemptTimeout(),
		Backoff:           cfg.Retry.Backoff(),
	}

	maxInFlight := cfg.Application.MaxInFlight
	if maxInFlight < 1 {
		maxInFlight = 1
	}

	photoChain := flow.NewBaseChain("meal_photo_analysis").
		Append(steps.NewPhotoLoader("photo_load", cfg.Media.MaxPhotoMB)).
		Append(steps.NewAnalyzer("meal_analyze", vision, analysisTmpl, policy)).
		Append(steps.NewResponseParser("response_parse")).
		Append(steps.NewResultValidator("result_validate"))

	videoChain := flow.NewBaseChain("meal_video_analysis").
		Append(steps.NewTranscriber("voice_transcribe", cfg.Media.FFmpegPath, transcriber, cfg.PromptTemplates.Transcription)).
		Append(steps.NewFrameExtractor("frame_extract", cfg.Media.FFmpegPath, cfg.Media.FFprobePath, cfg.Media.FrameCount)).
		Append(steps.NewAnalyzer("meal_analyze", vision, analysisTmpl, policy)).
		Append(steps.NewResponseParser("response_parse")).
		Append(steps.NewResultValidator("result_validate"))

	return &Pipeline{
		photoChain: photoChain,
		videoChain: videoChain,
		gate:       make(chan struct{}, maxInFlight),
	}, nil
}

// Analyze runs the chain matching the media kind against a local media file.
// The file must already live inside the session's temp namespace; every
// artifact the run produces is created next to it, so the namespace removal
// and the orphan sweep reclaim run leftovers along with the media. It blocks
// while the pipeline is at capacity. The returned error wraps one of the
// model sentinel errors.
func (p *Pipeline) Analyze(ctx context.Context, localPath string, kind model.MediaKind) (*Result, error) {
	select {
	case p.gate <- struct{}{}:
		defer func() { <-p.gate }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	chain := p.photoChain
	if kind == model.MediaVideo {
		chain = p.videoChain
	}

	scope := flow.NewBaseScope()
	defer scope.Close()
	scope.SetContext(ctx)
	scope.Add(steps.KeyMediaPath, localPath)

	chain.Execute(scope)

	if scope.Failed() {
		return nil, scope.FirstError()
	}

	analysis, ok := scope.Get(steps.KeyResult).(*model.AnalysisResult)
	if !ok || analysis == nil {
		return nil, fmt.Errorf("%w: chain produced no result", model.ErrParse)
	}

	transcription, _ := scope.Get(steps.KeyTranscription).(string)
	analysis.VoiceUsed = transcription != ""

	return &Result{Analysis: analysis, Transcription: transcription}, nil
}
