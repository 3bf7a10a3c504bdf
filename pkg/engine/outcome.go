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
	"time"

	"github.com/walteh/burrow/pkg/command"
	"github.com/walteh/burrow/pkg/status"
	"github.com/walteh/burrow/pkg/trash"
)

// 🎯 OutcomeKind discriminates how an apply ended
type OutcomeKind int

const (
	// OutcomeSuccess: every target applied; Executed is set.
	OutcomeSuccess OutcomeKind = iota
	// OutcomePermissionDenied: the OS refused a mutation. Denied carries the
	// command narrowed to the targets not yet applied, ready to re-attempt
	// once elevated. Executed covers any targets that did complete.
	OutcomePermissionDenied
	// OutcomeFailed: validation, I/O, or cancellation. Executed covers any
	// targets that completed before the failure (nil after cancellation —
	// a cancelled command is never undoable).
	OutcomeFailed
)

// String returns a string representation of OutcomeKind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📦 Outcome is the result of applying one command
type Outcome struct {
	Kind     OutcomeKind
	Executed *ExecutedOperation
	Denied   *command.Command
	Err      error
	Results  []status.TargetResult
}

// 🔗 MovedPair records one path relocation
type MovedPair struct {
	From string
	To   string
}

// 📜 ExecutedOperation is an applied command plus the minimal data needed to
// invert it. It is owned by the undo stack once recorded, and holds:
//   - Copy:   CreatedPaths (inverse: remove them)
//   - Create: CreatedPaths[0] (inverse: remove it)
//   - Move:   Moved pairs (inverse: rename back)
//   - Rename: Renamed pair (inverse: rename back)
//   - Delete: Trashed entries (inverse: restore from trash)
type ExecutedOperation struct {
	Command      command.Command
	CreatedPaths []string
	Moved        []MovedPair
	Renamed      *MovedPair
	Trashed      []trash.Entry
	AppliedAt    time.Time
}

// success builds a fully-successful outcome
func success(op *ExecutedOperation, results []status.TargetResult) Outcome {
	return Outcome{Kind: OutcomeSuccess, Executed: op, Results: results}
}

// denied builds a permission-denied outcome with the remaining command
func denied(remaining command.Command, executed *ExecutedOperation, results []status.TargetResult) Outcome {
	return Outcome{Kind: OutcomePermissionDenied, Denied: &remaining, Executed: executed, Results: results}
}

// failed builds a failed outcome
func failed(err error, executed *ExecutedOperation, results []status.TargetResult) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err, Executed: executed, Results: results}
}
