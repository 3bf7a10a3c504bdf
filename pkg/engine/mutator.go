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

package engine

import (
	"context"
	"io"
	"os"
	"syscall"

	"gitlab.com/tozd/go/errors"
)

// 🛠️ Mutator is the backend that performs the actual filesystem mutations.
// The default goes through the syscall layer; privilege.SudoRunner satisfies
// the same interface for elevated execution.
type Mutator interface {
	Rename(ctx context.Context, oldpath, newpath string) error
	CopyFile(ctx context.Context, src, dst string, mode os.FileMode) error
	Mkdir(ctx context.Context, path string, mode os.FileMode) error
	CreateFile(ctx context.Context, path string) error
	Readlink(ctx context.Context, path string) (string, error)
	Symlink(ctx context.Context, target, link string) error
	Remove(ctx context.Context, path string) error
	RemoveAll(ctx context.Context, path string) error
}

// 📦 BulkCopier is an optional Mutator capability: copy a whole tree in one
// call. The elevated backend implements it so directory contents unreadable
// to the unprivileged process can still be copied; the default backend does
// not, keeping the engine's per-entry recursion (and its cancellation
// checks) on the normal path.
type BulkCopier interface {
	CopyTree(ctx context.Context, src, dst string) error
}

// 🛠️ OSMutator mutates through the os package
type OSMutator struct{}

func (OSMutator) Rename(ctx context.Context, oldpath, newpath string) error {
	if err := os.Rename(oldpath, newpath); err != nil {
		return errors.Errorf("renaming %s: %w", oldpath, err)
	}
	return nil
}

func (OSMutator) CopyFile(ctx context.Context, src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return errors.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.Errorf("copying to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return errors.Errorf("closing %s: %w", dst, err)
	}
	return nil
}

func (OSMutator) Mkdir(ctx context.Context, path string, mode os.FileMode) error {
	if err := os.Mkdir(path, mode); err != nil {
		return errors.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

func (OSMutator) CreateFile(ctx context.Context, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Errorf("creating %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func (OSMutator) Readlink(ctx context.Context, path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", errors.Errorf("reading link %s: %w", path, err)
	}
	return target, nil
}

func (OSMutator) Symlink(ctx context.Context, target, link string) error {
	if err := os.Symlink(target, link); err != nil {
		return errors.Errorf("creating link %s: %w", link, err)
	}
	return nil
}

func (OSMutator) Remove(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil {
		return errors.Errorf("removing %s: %w", path, err)
	}
	return nil
}

func (OSMutator) RemoveAll(ctx context.Context, path string) error {
	if err := os.RemoveAll(path); err != nil {
		return errors.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// isPermissionDenied reports whether err is an OS permission refusal,
// the trigger for the escalation flow
func isPermissionDenied(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.EPERM)
}

// isCrossDevice reports whether a rename failed because source and
// destination sit on different storage devices
func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
