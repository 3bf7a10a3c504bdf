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
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/burrow/pkg/command"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/semaphore"
)

// ErrQueueFull is returned by Submit when the worker's bounded queue is at
// capacity. The interactive caller gets an immediate refusal instead of a
// blocked UI thread.
var ErrQueueFull = errors.New("operation queue is full")

// ErrWorkerClosed is returned by Submit after Close.
var ErrWorkerClosed = errors.New("worker is closed")

// 🎫 Submission pairs a queued command with its cancellation handle
type Submission struct {
	Command command.Command
	Cancel  context.CancelFunc
}

// 📬 Result delivers one outcome back to the interactive thread
type Result struct {
	Command command.Command
	Outcome Outcome
}

// 🏃 Worker applies commands one at a time on a single background
// goroutine: submission order is application order, and no two mutations
// ever race on overlapping path sets. Outcomes arrive on a buffered channel
// the interactive thread polls once per tick.
type Worker struct {
	engine  *Engine
	queue   chan workItem
	results chan Result
	slots   *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

type workItem struct {
	ctx context.Context
	cmd command.Command
}

// 🏭 NewWorker starts a worker over the given engine with a bounded queue
func NewWorker(ctx context.Context, eng *Engine, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = 16
	}
	w := &Worker{
		engine:  eng,
		queue:   make(chan workItem, queueSize),
		results: make(chan Result, queueSize),
		slots:   semaphore.NewWeighted(int64(queueSize)),
		done:    make(chan struct{}),
	}
	go w.loop(ctx)
	return w
}

// Submit enqueues a command for in-order application. It never blocks: a
// full queue fails with ErrQueueFull. The returned Submission carries the
// cancel handle for the queued command.
func (w *Worker) Submit(ctx context.Context, cmd command.Command) (Submission, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return Submission{}, errors.WithStack(ErrWorkerClosed)
	}
	if !w.slots.TryAcquire(1) {
		return Submission{}, errors.WithStack(ErrQueueFull)
	}

	cmdCtx, cancel := context.WithCancel(ctx)
	w.queue <- workItem{ctx: cmdCtx, cmd: cmd}

	zerolog.Ctx(ctx).Debug().Str("kind", cmd.Kind.String()).Msg("command queued")
	return Submission{Command: cmd, Cancel: cancel}, nil
}

// Results is the channel the interactive thread polls for outcomes
func (w *Worker) Results() <-chan Result {
	return w.results
}

// Close stops accepting submissions, drains the queue, and waits for the
// in-flight command to finish
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	defer close(w.results)

	for item := range w.queue {
		outcome := w.engine.applyWith(item.ctx, w.engine.mutator, item.cmd)
		w.slots.Release(1)

		select {
		case w.results <- Result{Command: item.cmd, Outcome: outcome}:
		case <-ctx.Done():
			return
		}
	}
}
