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

// Package testutil provides shared fixtures for the test suite: a canned
// test configuration and sample media payloads, so individual tests do not
// depend on config files or real media on disk.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/platewise/platewise/internal/config"
	"github.com/platewise/platewise/internal/core/model"
)

// GetConfig returns a fully defaulted configuration suitable for unit tests:
// mock analyzer on, fast retries, no database.
func GetConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.ApplyDefaults()
	cfg.Application.Name = "platewise-test"
	cfg.Application.UseMockAnalyzer = true
	cfg.Retry.PerAttemptTimeoutSecs = 1
	cfg.Retry.BackoffSecs = 0
	return cfg
}

// GetAnalysisJSON returns the example analysis serialized the way the vision
// model is instructed to respond.
func GetAnalysisJSON() string {
	out, _ := json.Marshal(model.GetExampleAnalysis())
	return string(out)
}

// WriteTestJPEG writes a file starting with the JPEG magic bytes into dir and
// returns its path. The content is not a decodable image, but header sniffing
// accepts it, which is all the pipeline checks before handing bytes to the
// model.
func WriteTestJPEG(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "meal.jpg")
	payload := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte("test-image-payload")...)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}
