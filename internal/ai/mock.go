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

package ai

import (
	"context"

	"google.golang.org/genai"
)

// MockVisionModel is a VisionModel that returns a canned response without any
// network traffic. It backs the mock-analyzer deployment mode for local
// development and serves as a building block for tests.
type MockVisionModel struct {
	Response string
	Err      error

	// Calls counts Generate invocations, useful for asserting retry budgets.
	Calls int
}

// Generate returns the canned response or error.
func (m *MockVisionModel) Generate(_ context.Context, _ []*genai.Content) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
