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
// engine. This file holds the two media-to-frames steps: PhotoLoader wraps a
// submitted photo as a single frame, and FrameExtractor samples evenly spaced
// still frames out of a video with ffmpeg.
//
// Frame extraction is deliberately tolerant: a single frame that fails to
// extract is logged and skipped, because the remaining frames are usually
// enough for the vision model. Only zero usable frames fails the step.
package steps

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/h2non/filetype"

	"github.com/platewise/platewise/internal/core/flow"
	"github.com/platewise/platewise/internal/core/model"
)

// PhotoLoader validates a submitted photo and hands it onward as a
// single-element frame list. It sniffs the real content type from the file
// header rather than trusting a filename extension.
type PhotoLoader struct {
	flow.BaseStep
	maxBytes int64
}

// NewPhotoLoader constructs the step. maxMB bounds the accepted payload.
func NewPhotoLoader(name string, maxMB int) *PhotoLoader {
	out := &PhotoLoader{
		BaseStep: *flow.NewBaseStep(name),
		maxBytes: int64(maxMB) * 1024 * 1024,
	}
	out.InKey = KeyMediaPath
	return out
}

func (p *PhotoLoader) Execute(scope flow.Scope) {
	path := scope.Get(p.InputKey()).(string)

	info, err := os.Stat(path)
	if err != nil {
		p.ErrorCounter().Add(scope.GetContext(), 1)
		scope.Fail(p.Name(), fmt.Errorf("%w: stat photo: %v", model.ErrResource, err))
		return
	}
	if p.maxBytes > 0 && info.Size() > p.maxBytes {
		p.ErrorCounter().Add(scope.GetContext(), 1)
		scope.Fail(p.Name(), fmt.Errorf("%w: photo is %d bytes, limit %d", model.ErrExtraction, info.Size(), p.maxBytes))
		return
	}

	head := make([]byte, 261)
	f, err := os.Open(path)
	if err != nil {
		p.ErrorCounter().Add(scope.GetContext(), 1)
		scope.Fail(p.Name(), fmt.Errorf("%w: open photo: %v", model.ErrResource, err))
		return
	}
	n, _ := f.Read(head)
	_ = f.Close()

	kind, err := filetype.Image(head[:n])
	if err != nil {
		p.ErrorCounter().Add(scope.GetContext(), 1)
		scope.Fail(p.Name(), fmt.Errorf("%w: not a recognized image: %v", model.ErrExtraction, err))
		return
	}

	p.SuccessCounter().Add(scope.GetContext(), 1)
	scope.Add(p.OutputKey(), []Frame{{Path: path, MIMEType: kind.MIME.Value}})
}

// FrameExtractor samples still frames from a video at evenly spaced offsets.
type FrameExtractor struct {
	flow.BaseStep
	ffmpegPath  string
	ffprobePath string
	frameCount  int
}

// NewFrameExtractor constructs the step. Extracted frames land next to the
// video, inside the session's temp namespace; the scope tracks each one for
// cleanup and the namespace sweep backstops a crash.
func NewFrameExtractor(name, ffmpegPath, ffprobePath string, frameCount int) *FrameExtractor {
	if frameCount < 1 {
		frameCount = 1
	}
	out := &FrameExtractor{
		BaseStep:    *flow.NewBaseStep(name),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		frameCount:  frameCount,
	}
	out.InKey = KeyMediaPath
	return out
}

func (e *FrameExtractor) Execute(scope flow.Scope) {
	ctx := scope.GetContext()
	videoPath := scope.Get(e.InputKey()).(string)

	duration, err := e.probeDuration(scope, videoPath)
	if err != nil {
		e.ErrorCounter().Add(ctx, 1)
		scope.Fail(e.Name(), fmt.Errorf("%w: probe duration: %v", model.ErrExtraction, err))
		return
	}

	frames := make([]Frame, 0, e.frameCount)
	for i, offset := range frameTimestamps(duration, e.frameCount) {
		framePath, err := e.extractOne(scope, videoPath, offset)
		if err != nil {
			// A single bad frame is survivable; the rest still describe the meal.
			slog.Warn("frame extraction failed", "video", videoPath, "frame", i, "offset_s", offset, "error", err)
			continue
		}
		scope.TrackTempFile(framePath)
		frames = append(frames, Frame{Path: framePath, MIMEType: "image/jpeg"})
	}

	if len(frames) == 0 {
		e.ErrorCounter().Add(ctx, 1)
		scope.Fail(e.Name(), fmt.Errorf("%w: no frames could be extracted", model.ErrExtraction))
		return
	}

	e.SuccessCounter().Add(ctx, 1)
	scope.Add(e.OutputKey(), frames)
}

// probeDuration asks ffprobe for the container duration in seconds.
func (e *FrameExtractor) probeDuration(scope flow.Scope, videoPath string) (float64, error) {
	cmd := exec.CommandContext(scope.GetContext(), e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("non-positive duration %f", duration)
	}
	return duration, nil
}

// extractOne writes a single still frame at the given offset into the video's
// directory, keeping every run artifact inside the session namespace.
func (e *FrameExtractor) extractOne(scope flow.Scope, videoPath string, offset float64) (string, error) {
	tempFile, err := os.CreateTemp(filepath.Dir(videoPath), "frame-*.jpg")
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrResource, err)
	}
	framePath := tempFile.Name()
	_ = tempFile.Close()

	cmd := exec.CommandContext(scope.GetContext(), e.ffmpegPath,
		"-y", "-hide_banner",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		framePath)
	if err := cmd.Run(); err != nil {
		_ = os.Remove(framePath)
		return "", err
	}

	info, err := os.Stat(framePath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(framePath)
		return "", fmt.Errorf("ffmpeg produced an empty frame")
	}
	return framePath, nil
}

// frameTimestamps returns count offsets placed at i*D/(count+1), which skips
// both ends of the clip where frames tend to be black or blurred.
func frameTimestamps(duration float64, count int) []float64 {
	offsets := make([]float64, 0, count)
	interval := duration / float64(count+1)
	for i := 1; i <= count; i++ {
		offsets = append(offsets, interval*float64(i))
	}
	return offsets
}
