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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/burrow/pkg/privilege"
)

func writeConfig(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "writing config fixture should succeed")
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	ctx := context.Background()
	cfg, err := Load(ctx, filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err, "a missing file is not an error")

	assert.Equal(t, 16, cfg.QueueSize, "default queue size should apply")
	assert.Equal(t, "single", cfg.EscalationScope, "default scope should be single")
	assert.NotEmpty(t, cfg.TrashDir, "default trash root should be filled in")

	scope, err := cfg.Scope()
	require.NoError(t, err, "default scope should map cleanly")
	assert.Equal(t, privilege.ScopeSingleCommand, scope, "single maps to single-command scope")
}

func TestLoadYAML(t *testing.T) {
	ctx := context.Background()
	path := writeConfig(t, "burrow.yaml", `
trash_dir: /tmp/burrow-trash
escalation_scope: batch
queue_size: 4
protected:
  - "**/system/**"
ignore:
  - "**/*.tmp"
`)

	cfg, err := Load(ctx, path)
	require.NoError(t, err, "loading YAML should succeed")

	assert.Equal(t, "/tmp/burrow-trash", cfg.TrashDir, "trash_dir should be parsed")
	assert.Equal(t, 4, cfg.QueueSize, "queue_size should be parsed")
	assert.Equal(t, []string{"**/system/**"}, cfg.Protected, "protected patterns should be parsed")
	assert.Equal(t, []string{"**/*.tmp"}, cfg.Ignore, "ignore patterns should be parsed")

	scope, err := cfg.Scope()
	require.NoError(t, err, "scope should map cleanly")
	assert.Equal(t, privilege.ScopeBatch, scope, "batch maps to batch scope")
}

func TestLoadJSON(t *testing.T) {
	ctx := context.Background()
	path := writeConfig(t, "burrow.json", `{"queue_size": 2, "escalation_scope": "single"}`)

	cfg, err := Load(ctx, path)
	require.NoError(t, err, "loading JSON should succeed")
	assert.Equal(t, 2, cfg.QueueSize, "queue_size should be parsed")
}

func TestLoadJSONRejectsUnknownFields(t *testing.T) {
	ctx := context.Background()
	path := writeConfig(t, "burrow.json", `{"queue_sise": 2}`)

	_, err := Load(ctx, path)
	require.Error(t, err, "a misspelled key should be rejected, not silently dropped")
}

func TestLoadHCL(t *testing.T) {
	ctx := context.Background()
	home, err := os.UserHomeDir()
	require.NoError(t, err, "resolving home should succeed")

	path := writeConfig(t, "burrow.hcl", `
trash_dir        = "${home}/.burrow-trash"
escalation_scope = "single"
queue_size       = 8
`)

	cfg, err := Load(ctx, path)
	require.NoError(t, err, "loading HCL should succeed")
	assert.Equal(t, home+"/.burrow-trash", cfg.TrashDir, "the home variable should expand")
	assert.Equal(t, 8, cfg.QueueSize, "queue_size should be parsed")
}

func TestLoadBurrowExtensionFallsBackToHCL(t *testing.T) {
	ctx := context.Background()
	path := writeConfig(t, ".burrow", `queue_size = 3`)

	cfg, err := Load(ctx, path)
	require.NoError(t, err, "a .burrow file holding HCL should load via the fallback")
	assert.Equal(t, 3, cfg.QueueSize, "queue_size should be parsed")
}

func TestLoadRejectsUnknownScope(t *testing.T) {
	ctx := context.Background()
	path := writeConfig(t, "burrow.yaml", `escalation_scope: sometimes`)

	_, err := Load(ctx, path)
	require.Error(t, err, "an unknown escalation scope should be rejected")
}

func TestValidateRejectsNegativeQueueSize(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{QueueSize: -1}
	require.Error(t, Validate(ctx, cfg), "a negative queue size should be rejected")
}

func TestValidateFillsDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{}
	require.NoError(t, Validate(ctx, cfg), "an empty config should validate")
	assert.Equal(t, 16, cfg.QueueSize, "queue size should default")
	assert.NotEmpty(t, cfg.TrashDir, "trash root should default")
}
