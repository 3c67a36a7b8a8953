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

// Package config defines the application configuration. This file implements
// the hierarchical loader: a base file (.env.toml) is decoded first, then an
// environment-specific file (.env.<runtime>.toml) is decoded over it so its
// values win. The config directory and runtime name come from environment
// variables, which lets tests and deployments point at different layouts
// without code changes.
package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	ConfigFileBaseName  = ".env"
	ConfigFileExtension = ".toml"
	ConfigSeparator     = "."
	EnvConfigFilePrefix = "PLATEWISE_CONFIG_PREFIX" // Directory holding the config files.
	EnvConfigRuntime    = "PLATEWISE_RUNTIME"       // Runtime layer name: "local", "test", "prod".
)

func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig populates baseConfig from the layered TOML files. A missing base
// or override file is skipped silently; a file that exists but fails to decode
// is fatal, since running with a half-read configuration is worse than not
// starting.
func LoadConfig(baseConfig any) {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}

	runtime := os.Getenv(EnvConfigRuntime)
	if runtime == "" {
		runtime = "test"
	}

	baseFile := prefix + ConfigFileBaseName + ConfigFileExtension
	envFile := prefix + ConfigFileBaseName + ConfigSeparator + runtime + ConfigFileExtension

	if fileExists(baseFile) {
		if _, err := toml.DecodeFile(baseFile, baseConfig); err != nil {
			log.Fatalf("failed to decode base configuration file %s: %s", baseFile, err)
		}
	}
	if fileExists(envFile) {
		if _, err := toml.DecodeFile(envFile, baseConfig); err != nil {
			log.Fatalf("failed to decode environment configuration file %s: %s", envFile, err)
		}
	}
}
