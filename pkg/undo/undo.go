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

// Package undo keeps the session's LIFO history of executed operations.
// History lives only in memory: it is cleared at process exit, never
// persisted. There is no redo.
package undo

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/burrow/pkg/engine"
	"gitlab.com/tozd/go/errors"
)

// ErrNothingToUndo reports an undo against an empty stack. It is a no-op,
// not a failure: nothing changed.
var ErrNothingToUndo = errors.New("nothing to undo")

// 🔁 Inverter applies the inverse of an executed operation. Satisfied by
// *engine.Engine; undo never re-enters the escalation flow, so an inverse
// that needs elevated rights fails the undo rather than prompting again.
type Inverter interface {
	Invert(ctx context.Context, op *engine.ExecutedOperation) error
}

// 📚 Stack is the strictly-LIFO undo history
type Stack struct {
	mu  sync.Mutex
	ops []*engine.ExecutedOperation
}

// 🏭 NewStack creates an empty undo stack
func NewStack() *Stack {
	return &Stack{}
}

// Record pushes an executed operation. Every pushed entry has a valid
// inverse that applies without further user input.
func (s *Stack) Record(op *engine.ExecutedOperation) {
	if op == nil {
		return
	}
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
}

// Depth reports how many operations can currently be undone, for display
// by the feedback layer
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

// Undo pops the most recent operation and applies its inverse. The entry is
// consumed either way: a failed inverse (conflict, permission, I/O) is
// surfaced as a failed undo, and any trash entries it involved stay on disk
// for manual recovery.
func (s *Stack) Undo(ctx context.Context, inv Inverter) error {
	s.mu.Lock()
	n := len(s.ops)
	if n == 0 {
		s.mu.Unlock()
		return errors.WithStack(ErrNothingToUndo)
	}
	op := s.ops[n-1]
	s.ops = s.ops[:n-1]
	s.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("kind", op.Command.Kind.String()).Int("remaining", n-1).Msg("undoing operation")

	if err := inv.Invert(ctx, op); err != nil {
		return errors.Errorf("undoing %s: %w", op.Command.Kind, err)
	}
	return nil
}

// Clear drops the whole history (called at session teardown)
func (s *Stack) Clear() {
	s.mu.Lock()
	s.ops = nil
	s.mu.Unlock()
}
