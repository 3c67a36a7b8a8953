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

// Package media resolves submitted media into local files and manages the
// temporary disk space those files occupy. This file is the namespace: every
// session gets its own directory under the base temp dir, so one removal
// reclaims everything the session produced and concurrent sessions never
// collide on filenames.
//
// The pipeline scope already deletes individual artifacts; the namespace is
// the second line of defense. The orphan sweep catches directories left
// behind by crashes, using age as the only signal since no live session is
// ever older than the session TTL.
package media

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/platewise/platewise/internal/core/model"
)

const namespacePrefix = "platewise-"

// Namespace hands out per-session temp directories under one base dir.
type Namespace struct {
	base string
}

// NewNamespace prepares the base directory. An empty base means the system
// temp dir.
func NewNamespace(base string) (*Namespace, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create temp base %s: %v", model.ErrResource, base, err)
	}
	return &Namespace{base: base}, nil
}

// Dir returns the session's directory, creating it on first use.
func (n *Namespace) Dir(sessionID string) (string, error) {
	dir := filepath.Join(n.base, namespacePrefix+sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create session dir: %v", model.ErrResource, err)
	}
	return dir, nil
}

// Remove deletes the session's directory and everything in it. A directory
// that never existed is not an error.
func (n *Namespace) Remove(sessionID string) error {
	return os.RemoveAll(filepath.Join(n.base, namespacePrefix+sessionID))
}

// Sweep removes namespace directories older than maxAge and returns how many
// were reclaimed. It only touches directories carrying the namespace prefix.
func (n *Namespace) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(n.base)
	if err != nil {
		slog.Warn("orphan sweep could not read temp base", "base", n.base, "error", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	reclaimed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), namespacePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(n.base, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("orphan sweep failed to remove directory", "path", path, "error", err)
			continue
		}
		reclaimed++
	}
	return reclaimed
}
