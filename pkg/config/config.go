// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads burrow settings from HCL, YAML, or JSON files.
package config

import (
	"context"

	"github.com/walteh/burrow/pkg/privilege"
	"github.com/walteh/burrow/pkg/trash"
	"gitlab.com/tozd/go/errors"
)

// 🔧 Config holds the engine's tunables
type Config struct {
	// TrashDir is the trash root. Empty means the per-user default.
	TrashDir string `json:"trash_dir,omitempty" yaml:"trash_dir,omitempty" hcl:"trash_dir,optional"`

	// EscalationScope is "single" (default) or "batch": whether one
	// escalation covers exactly the retried command or a whole batch.
	EscalationScope string `json:"escalation_scope,omitempty" yaml:"escalation_scope,omitempty" hcl:"escalation_scope,optional"`

	// QueueSize bounds the worker queue.
	QueueSize int `json:"queue_size,omitempty" yaml:"queue_size,omitempty" hcl:"queue_size,optional"`

	// Protected are doublestar patterns delete/move must never touch.
	Protected []string `json:"protected,omitempty" yaml:"protected,omitempty" hcl:"protected,optional"`

	// Ignore are doublestar patterns skipped during recursive copies.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty" hcl:"ignore,optional"`
}

// 🏭 Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		TrashDir:        trash.DefaultRoot(),
		EscalationScope: "single",
		QueueSize:       16,
	}
}

// Scope maps the configured escalation scope string onto privilege.Scope
func (c *Config) Scope() (privilege.Scope, error) {
	switch c.EscalationScope {
	case "", "single":
		return privilege.ScopeSingleCommand, nil
	case "batch":
		return privilege.ScopeBatch, nil
	default:
		return 0, errors.Errorf("unknown escalation scope %q", c.EscalationScope)
	}
}

// Validate checks the configuration and fills defaults
func Validate(ctx context.Context, cfg *Config) error {
	if cfg.TrashDir == "" {
		cfg.TrashDir = trash.DefaultRoot()
	}
	if cfg.QueueSize < 0 {
		return errors.Errorf("queue_size must not be negative, got %d", cfg.QueueSize)
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 16
	}
	if _, err := cfg.Scope(); err != nil {
		return err
	}
	return nil
}
