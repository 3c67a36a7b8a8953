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

// Package flow provides the building blocks for assembling the analysis
// pipeline. This file defines BaseScope, the default Scope implementation.
//
// BaseScope owns the lifecycle of every temporary artifact created during a
// pipeline run: downloaded media, extracted frames, extracted audio. Workflows
// defer Close immediately after creating a scope, which guarantees the
// artifacts are deleted no matter which branch the execution takes.
package flow

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
)

// BaseScope is the default implementation of the Scope interface.
type BaseScope struct {
	data      map[string]any
	failures  []stepError
	tempFiles []string
	ctx       context.Context
}

type stepError struct {
	step string
	err  error
}

// NewBaseScope constructs an empty scope.
func NewBaseScope() Scope {
	return &BaseScope{
		data:      make(map[string]any),
		failures:  make([]stepError, 0),
		tempFiles: make([]string, 0),
	}
}

func (s *BaseScope) SetContext(ctx context.Context) { s.ctx = ctx }
func (s *BaseScope) GetContext() context.Context    { return s.ctx }

func (s *BaseScope) Add(key string, value any) Scope {
	s.data[key] = value
	return s
}

func (s *BaseScope) Get(key string) any { return s.data[key] }
func (s *BaseScope) Remove(key string)  { delete(s.data, key) }

func (s *BaseScope) Fail(step string, err error) {
	s.failures = append(s.failures, stepError{step: step, err: err})
}

func (s *BaseScope) Failed() bool { return len(s.failures) > 0 }

// FirstError returns the earliest recorded error. The first failure is the
// root cause; later steps usually fail as a consequence of it.
func (s *BaseScope) FirstError() error {
	if len(s.failures) == 0 {
		return nil
	}
	return s.failures[0].err
}

func (s *BaseScope) TrackTempFile(path string) {
	s.tempFiles = append(s.tempFiles, path)
}

func (s *BaseScope) TempFiles() []string { return s.tempFiles }

// Close removes every tracked temporary file. A file that is already gone is
// not an error; anything else is logged and skipped so cleanup of the
// remaining files still proceeds.
func (s *BaseScope) Close() {
	for _, file := range s.tempFiles {
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to remove temporary file", "path", file, "error", err)
		}
	}
	s.tempFiles = s.tempFiles[:0]
}
