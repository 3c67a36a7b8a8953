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

// Package api_test exercises the HTTP surface end to end: a real router, a
// real engine, a real pipeline, with only the AI model and the persistence
// swapped for in-process doubles. TestMain builds the stack once; the test
// files in this package share it.
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/bridges/otelslog"

	"github.com/platewise/platewise/internal/ai"
	"github.com/platewise/platewise/internal/api"
	"github.com/platewise/platewise/internal/core/nutrition"
	"github.com/platewise/platewise/internal/core/pipeline"
	"github.com/platewise/platewise/internal/core/services"
	"github.com/platewise/platewise/internal/core/session"
	"github.com/platewise/platewise/internal/media"
	"github.com/platewise/platewise/internal/storage/memory"
	"github.com/platewise/platewise/internal/telemetry"
	"github.com/platewise/platewise/internal/testutil"
)

const tName = "github.com/platewise/platewise/internal/api/test"

var (
	logger = otelslog.NewLogger(tName)
	router *gin.Engine
	vision *ai.MockVisionModel
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gin.SetMode(gin.TestMode)
	cfg := testutil.GetConfig()

	shutdown, err := telemetry.SetupOpenTelemetry(ctx, cfg)
	if err != nil {
		panic(err)
	}

	tempBase, err := os.MkdirTemp("", "api-test-*")
	if err != nil {
		panic(err)
	}

	vision = &ai.MockVisionModel{Response: testutil.GetAnalysisJSON()}
	pipe, err := pipeline.New(cfg, vision, vision)
	if err != nil {
		panic(err)
	}

	namespace, err := media.NewNamespace(tempBase)
	if err != nil {
		panic(err)
	}

	parser, err := nutrition.NewParser(cfg.Correction)
	if err != nil {
		panic(err)
	}

	store := session.NewStore(cfg.Session.TTL(), cfg.Session.MaxCorrections, memory.New())
	engine := services.NewEngine(store, pipe, media.NewSource(namespace), parser, namespace)

	router = gin.New()
	group := router.Group("/api/v1")
	api.SessionRouter(group, engine)
	api.OpsRouter(group)

	code := m.Run()

	logger.Info("api test suite complete")
	_ = shutdown(context.Background())
	_ = os.RemoveAll(tempBase)
	os.Exit(code)
}

// performJSON runs one request against the shared router. A nil body sends no
// payload.
func performJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeView unpacks a session snapshot from a response body.
func decodeView(t *testing.T, w *httptest.ResponseRecorder) services.View {
	t.Helper()
	var view services.View
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode view from %q: %v", w.Body.String(), err)
	}
	return view
}
