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

package privilege

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🛠️ SudoRunner performs filesystem mutations through `sudo -n`, relying on
// the timestamp cache warmed by a validated session. Every call checks the
// session first so a cleared session can never be ridden by a later
// operation.
type SudoRunner struct {
	session *Session
}

// 🏭 NewSudoRunner creates a runner bound to one session
func NewSudoRunner(session *Session) *SudoRunner {
	return &SudoRunner{session: session}
}

func (r *SudoRunner) run(ctx context.Context, name string, args ...string) error {
	if !r.session.Active() {
		return errors.WithStack(ErrNoActiveSession)
	}

	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("cmd", name).Strs("args", args).Msg("running elevated command")

	full := append([]string{"-n", name}, args...)
	cmd := exec.CommandContext(ctx, "sudo", full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Errorf("sudo %s: %s: %w", name, bytes.TrimSpace(stderr.Bytes()), err)
	}
	return nil
}

func (r *SudoRunner) runOutput(ctx context.Context, name string, args ...string) (string, error) {
	if !r.session.Active() {
		return "", errors.WithStack(ErrNoActiveSession)
	}

	full := append([]string{"-n", name}, args...)
	cmd := exec.CommandContext(ctx, "sudo", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Errorf("sudo %s: %s: %w", name, bytes.TrimSpace(stderr.Bytes()), err)
	}
	return string(bytes.TrimSpace(stdout.Bytes())), nil
}

// Rename moves oldpath to newpath with elevated rights
func (r *SudoRunner) Rename(ctx context.Context, oldpath, newpath string) error {
	return r.run(ctx, "mv", "--", oldpath, newpath)
}

// CopyFile copies a single file preserving its mode
func (r *SudoRunner) CopyFile(ctx context.Context, src, dst string, _ os.FileMode) error {
	return r.run(ctx, "cp", "-p", "--", src, dst)
}

// CopyTree copies a whole tree in one elevated call, covering sources whose
// contents the unprivileged process cannot even read
func (r *SudoRunner) CopyTree(ctx context.Context, src, dst string) error {
	return r.run(ctx, "cp", "-rp", "--", src, dst)
}

// Mkdir creates a single directory
func (r *SudoRunner) Mkdir(ctx context.Context, path string, _ os.FileMode) error {
	return r.run(ctx, "mkdir", "--", path)
}

// CreateFile creates an empty file
func (r *SudoRunner) CreateFile(ctx context.Context, path string) error {
	return r.run(ctx, "touch", "--", path)
}

// Readlink resolves a symlink's target, covering links whose parent the
// unprivileged process cannot read
func (r *SudoRunner) Readlink(ctx context.Context, path string) (string, error) {
	return r.runOutput(ctx, "readlink", "--", path)
}

// Symlink recreates a symlink pointing at target
func (r *SudoRunner) Symlink(ctx context.Context, target, link string) error {
	return r.run(ctx, "ln", "-s", "--", target, link)
}

// Remove deletes a single file or empty directory
func (r *SudoRunner) Remove(ctx context.Context, path string) error {
	return r.run(ctx, "rm", "-d", "--", path)
}

// RemoveAll deletes path recursively
func (r *SudoRunner) RemoveAll(ctx context.Context, path string) error {
	return r.run(ctx, "rm", "-rf", "--", path)
}
