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
// engine. Each step is an atomic unit of work over a flow.Scope; the pipeline
// package assembles them into photo and video chains.
//
// This file names the shared scope slots. The primary value (media path,
// frames, raw response, parsed result) travels through the chain's in/out
// piping; side-band values that more than one step needs live under these
// keys.
package steps

// Scope keys for side-band values shared between steps.
const (
	// KeyMediaPath holds the local filesystem path of the submitted media.
	KeyMediaPath = "media.path"

	// KeyTranscription holds the voice-note transcription text; empty when
	// transcription was skipped or degraded.
	KeyTranscription = "media.transcription"

	// KeyResult holds the final validated analysis. The last step of every
	// chain writes here so the pipeline reads one well-known slot.
	KeyResult = "analysis.result"
)

// Frame is one still image handed to the vision model: a photo as submitted,
// or a frame sampled out of a video.
type Frame struct {
	Path     string
	MIMEType string
}
