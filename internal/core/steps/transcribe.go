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

// Package steps provides the concrete pipeline steps of the meal analysis
// engine. This file holds the Transcriber, which pulls the audio track out of
// a submitted video and turns any spoken commentary into text.
//
// Transcription is an optional input, never a gate: if the video has no audio
// track, the extraction fails, or the model call fails, the step records an
// empty transcription and the analysis proceeds visual-only. The step
// therefore reads the media path from its own side-band key and never fails
// the scope.
package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/platewise/platewise/internal/ai"
	"github.com/platewise/platewise/internal/core/flow"
	"github.com/platewise/platewise/internal/core/retry"
)

// Transcriber extracts the audio track of a video and transcribes it.
type Transcriber struct {
	flow.BaseStep
	ffmpegPath string
	vision     ai.VisionModel
	prompt     string
}

// NewTranscriber constructs the step. The prompt instructs the model to
// return a plain transcription with no commentary.
func NewTranscriber(name, ffmpegPath string, vision ai.VisionModel, prompt string) *Transcriber {
	out := &Transcriber{
		BaseStep:   *flow.NewBaseStep(name),
		ffmpegPath: ffmpegPath,
		vision:     vision,
		prompt:     prompt,
	}
	out.InKey = KeyMediaPath
	out.OutKey = KeyTranscription
	return out
}

func (t *Transcriber) Execute(scope flow.Scope) {
	ctx := scope.GetContext()
	videoPath := scope.Get(t.InputKey()).(string)

	transcription := retry.Fallback(ctx, "", func(ctx context.Context) (string, error) {
		audio, err := t.extractAudio(scope, videoPath)
		if err != nil {
			return "", err
		}
		return t.transcribe(ctx, audio)
	})

	if transcription == "" {
		slog.Info("no transcription available, proceeding visual-only", "video", videoPath)
	} else {
		t.SuccessCounter().Add(ctx, 1)
	}
	scope.Add(t.OutputKey(), transcription)
}

// extractAudio writes the audio track as 16 kHz mono WAV, the format every
// speech-capable model accepts. The WAV lands next to the video so it stays
// inside the session namespace.
func (t *Transcriber) extractAudio(scope flow.Scope, videoPath string) ([]byte, error) {
	tempFile, err := os.CreateTemp(filepath.Dir(videoPath), "audio-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create audio temp file: %w", err)
	}
	audioPath := tempFile.Name()
	_ = tempFile.Close()
	scope.TrackTempFile(audioPath)

	cmd := exec.CommandContext(scope.GetContext(), t.ffmpegPath,
		"-y", "-hide_banner",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		audioPath)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract audio track: %w", err)
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio track is empty")
	}
	return audio, nil
}

func (t *Transcriber) transcribe(ctx context.Context, audio []byte) (string, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: t.prompt},
			ai.NewInlinePart("audio/wav", audio),
		},
	}}
	out, err := t.vision.Generate(ctx, contents)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
