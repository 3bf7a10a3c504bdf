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

// Package engine applies file-operation commands to the filesystem. It is
// the only component that mutates tracked paths: it routes deletes through
// the trash store, invalidates size-cache entries for every touched path,
// and converts OS permission refusals into a retryable outcome instead of a
// terminal failure. Recording the result for undo is the caller's job,
// which keeps applying and recording independently testable.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/burrow/pkg/command"
	"github.com/walteh/burrow/pkg/fsentry"
	"github.com/walteh/burrow/pkg/sizecache"
	"github.com/walteh/burrow/pkg/status"
	"github.com/walteh/burrow/pkg/trash"
	"gitlab.com/tozd/go/errors"
)

// ErrRestoreConflict is returned by Invert when a different entry now
// occupies the path an inverse wants to write.
var ErrRestoreConflict = trash.ErrRestoreConflict

// 🔧 Options configures an engine
type Options struct {
	// Trash receives every deleted entry. Required.
	Trash *trash.Store
	// Cache is invalidated for every touched path. Required.
	Cache *sizecache.Cache
	// Reporter receives per-target feedback. Defaults to NoopReporter.
	Reporter status.Reporter
	// Mutator is the mutation backend. Defaults to OSMutator.
	Mutator Mutator
	// Protected are doublestar patterns of paths delete/move must not touch.
	Protected []string
	// Ignore are doublestar patterns skipped during recursive copies.
	Ignore []string
}

// ⚙️ Engine applies commands one at a time
type Engine struct {
	trash     *trash.Store
	cache     *sizecache.Cache
	reporter  status.Reporter
	mutator   Mutator
	protected []string
	ignore    []string
}

// 🏭 New creates an engine with the given options
func New(opts Options) (*Engine, error) {
	if opts.Trash == nil {
		return nil, errors.New("trash store is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("size cache is required")
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = status.NoopReporter{}
	}
	mutator := opts.Mutator
	if mutator == nil {
		mutator = OSMutator{}
	}
	return &Engine{
		trash:     opts.Trash,
		cache:     opts.Cache,
		reporter:  reporter,
		mutator:   mutator,
		protected: opts.Protected,
		ignore:    opts.Ignore,
	}, nil
}

// Apply validates and applies cmd with normal privileges. Paths are
// re-validated here, not trusted from construction time, because a command
// may have sat suspended across an escalation prompt.
func (e *Engine) Apply(ctx context.Context, cmd command.Command) Outcome {
	return e.applyWith(ctx, e.mutator, cmd)
}

func (e *Engine) applyWith(ctx context.Context, m Mutator, cmd command.Command) Outcome {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("kind", cmd.Kind.String()).Int("targets", len(cmd.Sources)).Msg("applying command")

	if err := e.preflight(cmd); err != nil {
		return failed(err, nil, nil)
	}

	switch cmd.Kind {
	case command.KindCopy:
		return e.applyTransfer(ctx, m, cmd, false)
	case command.KindMove:
		return e.applyTransfer(ctx, m, cmd, true)
	case command.KindDelete:
		return e.applyDelete(ctx, m, cmd)
	case command.KindRename:
		return e.applyRename(ctx, m, cmd)
	case command.KindCreate:
		return e.applyCreate(ctx, m, cmd)
	default:
		return failed(errors.Errorf("unknown command kind %d", cmd.Kind), nil, nil)
	}
}

// preflight validates the whole command before any mutation. A validation
// failure here leaves the filesystem untouched.
func (e *Engine) preflight(cmd command.Command) error {
	switch cmd.Kind {
	case command.KindCopy, command.KindMove:
		if err := dirExists(cmd.Destination); err != nil {
			return err
		}
		for _, src := range cmd.Sources {
			if err := pathExists(src); err != nil {
				return err
			}
			if strings.HasPrefix(cmd.Destination+string(os.PathSeparator), src+string(os.PathSeparator)) {
				return errors.WithStack(&command.ValidationError{Path: src, Reason: "destination is inside the source"})
			}
			if cmd.Kind == command.KindMove {
				if err := e.checkProtected(src); err != nil {
					return err
				}
			}
		}
	case command.KindDelete:
		for _, target := range cmd.Sources {
			if err := pathExists(target); err != nil {
				return err
			}
			if err := e.checkProtected(target); err != nil {
				return err
			}
		}
	case command.KindRename:
		if err := pathExists(cmd.Target()); err != nil {
			return err
		}
		if err := e.checkProtected(cmd.Target()); err != nil {
			return err
		}
		if _, err := os.Lstat(cmd.RenamedPath()); err == nil {
			return errors.WithStack(&command.ValidationError{Path: cmd.RenamedPath(), Reason: "name already exists"})
		}
	case command.KindCreate:
		if err := dirExists(cmd.Destination); err != nil {
			return err
		}
		if _, err := os.Lstat(cmd.CreatedPath()); err == nil {
			return errors.WithStack(&command.ValidationError{Path: cmd.CreatedPath(), Reason: "name already exists"})
		}
	}
	return nil
}

// applyTransfer applies copy (move=false) or move (move=true) target by
// target. A permission refusal suspends the loop and hands back the
// remaining targets; other per-target failures are reported and the batch
// carries on.
func (e *Engine) applyTransfer(ctx context.Context, m Mutator, cmd command.Command, move bool) Outcome {
	op := &ExecutedOperation{Command: cmd, AppliedAt: time.Now()}
	var results []status.TargetResult
	var failures int

	e.reporter.StartOperation(ctx, cmd.Kind.String(), len(cmd.Sources))
	defer e.reporter.FinishOperation(ctx)

	for i, src := range cmd.Sources {
		if ctx.Err() != nil {
			return e.cancelled(ctx, cmd.Sources[i:], results)
		}

		dst := uniqueDestPath(filepath.Join(cmd.Destination, filepath.Base(src)))
		err := e.transferOne(ctx, m, src, dst, move)

		switch {
		case err == nil:
			if move {
				op.Moved = append(op.Moved, MovedPair{From: src, To: dst})
				e.invalidate(src)
			} else {
				op.CreatedPaths = append(op.CreatedPaths, dst)
			}
			e.invalidate(dst)
			results = e.report(ctx, results, status.TargetResult{Path: src, Detail: dst, State: status.TargetDone})

		case ctx.Err() != nil:
			// Cancelled mid-target: already-copied partial output stays in
			// place and the whole command is not undoable.
			results = e.report(ctx, results, status.TargetResult{Path: src, State: status.TargetCancelled})
			return e.cancelled(ctx, cmd.Sources[i+1:], results)

		case isPermissionDenied(err):
			e.discardPartialTarget(ctx, m, dst)
			results = e.report(ctx, results, status.TargetResult{Path: src, State: status.TargetFailed, Err: err})
			remaining := cmd
			remaining.Sources = cmd.Sources[i:]
			return denied(remaining, op.orNil(), results)

		default:
			failures++
			results = e.report(ctx, results, status.TargetResult{Path: src, State: status.TargetFailed, Err: err})
		}
	}

	if failures > 0 {
		err := errors.Errorf("%d of %d targets failed", failures, len(cmd.Sources))
		return failed(err, op.orNil(), results)
	}
	return success(op, results)
}

func (e *Engine) applyDelete(ctx context.Context, m Mutator, cmd command.Command) Outcome {
	op := &ExecutedOperation{Command: cmd, AppliedAt: time.Now()}
	var results []status.TargetResult
	var failures int

	e.reporter.StartOperation(ctx, cmd.Kind.String(), len(cmd.Sources))
	defer e.reporter.FinishOperation(ctx)

	for i, target := range cmd.Sources {
		if ctx.Err() != nil {
			return e.cancelled(ctx, cmd.Sources[i:], results)
		}

		entry, err := e.trash.TrashWith(ctx, m, target)
		switch {
		case err == nil:
			op.Trashed = append(op.Trashed, entry)
			e.invalidate(target)
			results = e.report(ctx, results, status.TargetResult{Path: target, Detail: entry.TrashName, State: status.TargetDone})

		case isPermissionDenied(err):
			results = e.report(ctx, results, status.TargetResult{Path: target, State: status.TargetFailed, Err: err})
			remaining := cmd
			remaining.Sources = cmd.Sources[i:]
			return denied(remaining, op.orNil(), results)

		default:
			failures++
			results = e.report(ctx, results, status.TargetResult{Path: target, State: status.TargetFailed, Err: err})
		}
	}

	if failures > 0 {
		err := errors.Errorf("%d of %d targets failed", failures, len(cmd.Sources))
		return failed(err, op.orNil(), results)
	}
	return success(op, results)
}

func (e *Engine) applyRename(ctx context.Context, m Mutator, cmd command.Command) Outcome {
	target := cmd.Target()
	renamed := cmd.RenamedPath()

	e.reporter.StartOperation(ctx, cmd.Kind.String(), 1)
	defer e.reporter.FinishOperation(ctx)

	if ctx.Err() != nil {
		return e.cancelled(ctx, []string{target}, nil)
	}

	if err := m.Rename(ctx, target, renamed); err != nil {
		results := e.report(ctx, nil, status.TargetResult{Path: target, State: status.TargetFailed, Err: err})
		if isPermissionDenied(err) {
			return denied(cmd, nil, results)
		}
		return failed(err, nil, results)
	}

	e.invalidate(target)
	e.invalidate(renamed)
	op := &ExecutedOperation{
		Command:   cmd,
		Renamed:   &MovedPair{From: target, To: renamed},
		AppliedAt: time.Now(),
	}
	results := e.report(ctx, nil, status.TargetResult{Path: target, Detail: renamed, State: status.TargetDone})
	return success(op, results)
}

func (e *Engine) applyCreate(ctx context.Context, m Mutator, cmd command.Command) Outcome {
	path := cmd.CreatedPath()

	e.reporter.StartOperation(ctx, cmd.Kind.String(), 1)
	defer e.reporter.FinishOperation(ctx)

	if ctx.Err() != nil {
		return e.cancelled(ctx, []string{path}, nil)
	}

	var err error
	if cmd.CreateKind == fsentry.KindDir {
		err = m.Mkdir(ctx, path, 0755)
	} else {
		err = m.CreateFile(ctx, path)
	}
	if err != nil {
		results := e.report(ctx, nil, status.TargetResult{Path: path, State: status.TargetFailed, Err: err})
		if isPermissionDenied(err) {
			return denied(cmd, nil, results)
		}
		return failed(err, nil, results)
	}

	e.invalidate(path)
	op := &ExecutedOperation{
		Command:      cmd,
		CreatedPaths: []string{path},
		AppliedAt:    time.Now(),
	}
	results := e.report(ctx, nil, status.TargetResult{Path: path, State: status.TargetDone})
	return success(op, results)
}

// Invert applies the inverse of an executed operation, bypassing the
// escalation flow entirely: an inverse that needs elevated rights fails
// rather than prompting again.
func (e *Engine) Invert(ctx context.Context, op *ExecutedOperation) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("kind", op.Command.Kind.String()).Msg("inverting operation")

	switch op.Command.Kind {
	case command.KindCopy, command.KindCreate:
		for _, path := range op.CreatedPaths {
			if _, err := os.Lstat(path); err != nil {
				continue
			}
			if err := e.mutator.RemoveAll(ctx, path); err != nil {
				return errors.Errorf("undoing %s of %s: %w", op.Command.Kind, path, err)
			}
			e.invalidate(path)
		}

	case command.KindMove:
		for _, pair := range op.Moved {
			if err := e.renameBack(ctx, pair); err != nil {
				return err
			}
		}

	case command.KindRename:
		if op.Renamed == nil {
			return errors.New("rename operation has no inverse data")
		}
		if err := e.renameBack(ctx, *op.Renamed); err != nil {
			return err
		}

	case command.KindDelete:
		for _, entry := range op.Trashed {
			if err := e.trash.Restore(ctx, entry); err != nil {
				return err
			}
			e.invalidate(entry.OriginalPath)
		}

	default:
		return errors.Errorf("cannot invert command kind %d", op.Command.Kind)
	}
	return nil
}

func (e *Engine) renameBack(ctx context.Context, pair MovedPair) error {
	if _, err := os.Lstat(pair.To); err != nil {
		// Already gone; nothing to move back.
		return nil
	}
	if _, err := os.Lstat(pair.From); err == nil {
		return errors.Errorf("restoring %s: %w", pair.From, ErrRestoreConflict)
	}
	if err := e.mutator.Rename(ctx, pair.To, pair.From); err != nil {
		return errors.Errorf("undoing move of %s: %w", pair.From, err)
	}
	e.invalidate(pair.To)
	e.invalidate(pair.From)
	return nil
}

// discardPartialTarget removes whatever a refused transfer left at dst, so
// the retried command resolves the same destination name instead of renaming
// around its own debris. Everything under dst was written by this process
// moments ago, so removal does not need elevation.
func (e *Engine) discardPartialTarget(ctx context.Context, m Mutator, dst string) {
	if _, err := os.Lstat(dst); err != nil {
		return
	}
	if err := m.RemoveAll(ctx, dst); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", dst).Msg("partial output left in place")
		return
	}
	e.invalidate(dst)
}

// transferOne copies or moves a single top-level target. Moves prefer an
// atomic rename and fall back to copy + delete-source across devices.
func (e *Engine) transferOne(ctx context.Context, m Mutator, src, dst string, move bool) error {
	if move {
		err := m.Rename(ctx, src, dst)
		if err == nil || !isCrossDevice(err) {
			return err
		}
		if err := e.copyAny(ctx, m, src, dst, src); err != nil {
			return err
		}
		return m.RemoveAll(ctx, src)
	}
	return e.copyAny(ctx, m, src, dst, src)
}

// copyAny dispatches on the source kind. root is the top of the copy, used
// to compute relative paths for ignore matching.
func (e *Engine) copyAny(ctx context.Context, m Mutator, src, dst, root string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return errors.Errorf("stating %s: %w", src, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := m.Readlink(ctx, src)
		if err != nil {
			return err
		}
		return m.Symlink(ctx, target, dst)
	}
	if info.IsDir() {
		if bulk, ok := m.(BulkCopier); ok {
			return bulk.CopyTree(ctx, src, dst)
		}
		return e.copyDir(ctx, m, src, dst, root, info.Mode().Perm())
	}
	return m.CopyFile(ctx, src, dst, info.Mode().Perm())
}

// copyDir copies a directory's contents recursively, checking cancellation
// between per-entry steps. Partial output from a cancelled copy is left in
// place, not rolled back.
func (e *Engine) copyDir(ctx context.Context, m Mutator, src, dst, root string, mode os.FileMode) error {
	if err := m.Mkdir(ctx, dst, mode); err != nil {
		return err
	}
	children, err := os.ReadDir(src)
	if err != nil {
		return errors.Errorf("reading directory %s: %w", src, err)
	}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("copy cancelled: %w", err)
		}
		childSrc := filepath.Join(src, child.Name())
		if e.shouldIgnore(childSrc, root) {
			zerolog.Ctx(ctx).Debug().Str("path", childSrc).Msg("skipped by ignore pattern")
			continue
		}
		if err := e.copyAny(ctx, m, childSrc, filepath.Join(dst, child.Name()), root); err != nil {
			return err
		}
	}
	return nil
}

// shouldIgnore matches a path (relative to the copy root) against the
// configured ignore patterns
func (e *Engine) shouldIgnore(path, root string) bool {
	if len(e.ignore) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range e.ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (e *Engine) checkProtected(path string) error {
	slashed := filepath.ToSlash(path)
	for _, pattern := range e.protected {
		if ok, err := doublestar.Match(pattern, slashed); err == nil && ok {
			return errors.WithStack(&command.ValidationError{Path: path, Reason: "path is protected"})
		}
	}
	return nil
}

// invalidate clears the size cache for a touched path and its parent, whose
// aggregate total went stale
func (e *Engine) invalidate(path string) {
	e.cache.Invalidate(path)
	e.cache.InvalidateParent(path)
}

func (e *Engine) report(ctx context.Context, results []status.TargetResult, result status.TargetResult) []status.TargetResult {
	e.reporter.ReportTarget(ctx, result)
	return append(results, result)
}

func (e *Engine) cancelled(ctx context.Context, remaining []string, results []status.TargetResult) Outcome {
	for _, rest := range remaining {
		results = e.report(ctx, results, status.TargetResult{Path: rest, State: status.TargetCancelled})
	}
	return failed(errors.Errorf("operation cancelled: %w", ctx.Err()), nil, results)
}

// orNil returns nil when the operation recorded no mutations, so callers
// never push an empty entry onto the undo stack
func (op *ExecutedOperation) orNil() *ExecutedOperation {
	if len(op.CreatedPaths) == 0 && len(op.Moved) == 0 && len(op.Trashed) == 0 && op.Renamed == nil {
		return nil
	}
	return op
}

// uniqueDestPath implements the paste-collision policy: keep the name when
// free, otherwise append ` (N)` before the extension until a free name is
// found
func uniqueDestPath(dst string) string {
	if _, err := os.Lstat(dst); os.IsNotExist(err) {
		return dst
	}
	dir := filepath.Dir(dst)
	base := filepath.Base(dst)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", name, n, ext))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func pathExists(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return errors.WithStack(&command.ValidationError{Path: path, Reason: "path does not exist"})
	}
	return nil
}

func dirExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.WithStack(&command.ValidationError{Path: path, Reason: "destination does not exist"})
	}
	if !info.IsDir() {
		return errors.WithStack(&command.ValidationError{Path: path, Reason: "destination is not a directory"})
	}
	return nil
}
