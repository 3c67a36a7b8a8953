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

package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/platewise/platewise/internal/ai"
	"github.com/platewise/platewise/internal/config"
	"github.com/platewise/platewise/internal/core/model"
	"github.com/platewise/platewise/internal/core/nutrition"
	"github.com/platewise/platewise/internal/core/pipeline"
	"github.com/platewise/platewise/internal/core/services"
	"github.com/platewise/platewise/internal/core/session"
	"github.com/platewise/platewise/internal/media"
	"github.com/platewise/platewise/internal/storage/memory"
	"github.com/platewise/platewise/internal/storage/postgres"
)

// StateManager holds the shared components of the application.
type StateManager struct {
	config    *config.Config
	store     *session.Store
	namespace *media.Namespace
	engine    *services.Engine
}

var state = &StateManager{}

// SetupOS points the config loader at the on-disk TOML layers unless the
// deployment already set the variables.
func SetupOS() (err error) {
	if os.Getenv(config.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(config.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(config.EnvConfigRuntime) == "" {
		err = os.Setenv(config.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the layered TOML configuration once.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment: %v\n", err)
		}
		cfg := config.NewConfig()
		config.LoadConfig(cfg)
		cfg.ApplyDefaults()
		state.config = cfg
	}
	return state.config
}

// InitState wires the engine together: media namespace, vision models,
// pipeline, persistence, session store, and the correction parser.
func InitState(ctx context.Context) {
	cfg := GetConfig()

	namespace, err := media.NewNamespace(cfg.Application.TempDir)
	if err != nil {
		log.Fatalf("failed to prepare temp namespace: %v\n", err)
	}
	state.namespace = namespace

	vision, transcriber := buildModels(ctx, cfg)

	pl, err := pipeline.New(cfg, vision, transcriber)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v\n", err)
	}

	var persistence session.Persistence
	if cfg.Database.URL != "" {
		pg, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v\n", err)
		}
		persistence = pg
		slog.Info("session persistence enabled", "backend", "postgres")
	} else {
		persistence = memory.New()
		slog.Info("session persistence enabled", "backend", "memory")
	}

	state.store = session.NewStore(cfg.Session.TTL(), cfg.Session.MaxCorrections, persistence)

	parser, err := nutrition.NewParser(cfg.Correction)
	if err != nil {
		log.Fatalf("failed to compile correction rules: %v\n", err)
	}

	state.engine = services.NewEngine(state.store, pl, media.NewSource(namespace), parser, namespace)

	startSweepers(ctx, cfg)
}

// buildModels returns the analysis and transcription models, either real
// Gemini handles or the canned mock for local development.
func buildModels(ctx context.Context, cfg *config.Config) (ai.VisionModel, ai.VisionModel) {
	if cfg.Application.UseMockAnalyzer {
		canned, _ := json.Marshal(model.GetExampleAnalysis())
		mock := &ai.MockVisionModel{Response: string(canned)}
		slog.Warn("serving canned analyses, no AI calls will be made")
		return mock, mock
	}

	clients, err := ai.NewClients(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to create AI clients: %v\n", err)
	}
	vision, ok := clients.Models["vision"]
	if !ok {
		log.Fatalf("no \"vision\" agent model configured\n")
	}
	if transcriber, ok := clients.Models["transcribe"]; ok {
		return vision, transcriber
	}
	return vision, vision
}

// startSweepers launches the periodic session-expiry and orphan-directory
// sweeps. Both are reclamation only; correctness never depends on them.
func startSweepers(ctx context.Context, cfg *config.Config) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := state.store.ExpireSweep(ctx); n > 0 {
					slog.Info("expired sessions reclaimed", "count", n)
				}
			}
		}
	}()

	sweepEvery := time.Duration(cfg.Application.OrphanSweepHours) * time.Hour
	go func() {
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := state.namespace.Sweep(sweepEvery); n > 0 {
					slog.Info("orphan temp directories reclaimed", "count", n)
				}
			}
		}
	}()
}
