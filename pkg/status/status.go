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

// Package status is the feedback boundary of the engine: per-target results,
// progress, and partial-failure reporting for display to the user. The
// engine never swallows a failure — every non-success outcome flows through
// here.
package status

import (
	"context"
	"sync"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 📊 TargetState is the per-target result of a multi-target operation
type TargetState int

const (
	TargetDone TargetState = iota
	TargetFailed
	TargetSkipped
	TargetCancelled
)

// String returns a string representation of TargetState
func (s TargetState) String() string {
	switch s {
	case TargetDone:
		return "done"
	case TargetFailed:
		return "failed"
	case TargetSkipped:
		return "skipped"
	case TargetCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// 📄 TargetResult records how one target of an operation fared
type TargetResult struct {
	Path   string
	Detail string // e.g. the destination path actually chosen
	State  TargetState
	Err    error
}

// 📈 Reporter receives operation progress and per-target results
type Reporter interface {
	// StartOperation begins tracking an operation over total targets.
	StartOperation(ctx context.Context, action string, total int)
	// ReportTarget records the result for one target.
	ReportTarget(ctx context.Context, result TargetResult)
	// FinishOperation ends tracking and reports the processed count.
	FinishOperation(ctx context.Context)
}

// 🖥️ ConsoleReporter prints user-facing feedback through pterm and mirrors
// it to the context's zerolog logger
type ConsoleReporter struct {
	mu        sync.Mutex
	action    string
	total     int
	processed int
	failed    int
}

// 🏭 NewConsoleReporter creates a console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// StartOperation begins tracking an operation
func (r *ConsoleReporter) StartOperation(ctx context.Context, action string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.action = action
	r.total = total
	r.processed = 0
	r.failed = 0

	zerolog.Ctx(ctx).Debug().Str("action", action).Int("targets", total).Msg("operation started")
}

// ReportTarget records and prints one target's result
func (r *ConsoleReporter) ReportTarget(ctx context.Context, result TargetResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processed++

	msg := result.Path
	if result.Detail != "" {
		msg += " → " + result.Detail
	}

	switch result.State {
	case TargetDone:
		pterm.Success.WithPrefix(pterm.Prefix{Text: "✓"}).Println(msg)
	case TargetSkipped:
		pterm.Debug.WithPrefix(pterm.Prefix{Text: "⏭"}).Println(msg)
	case TargetCancelled:
		pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠"}).Println(msg + " (cancelled, partial output left in place)")
	case TargetFailed:
		r.failed++
		pterm.Error.WithPrefix(pterm.Prefix{Text: "✗"}).Println(msg)
		if result.Err != nil {
			pterm.Error.Println(result.Err)
		}
	}

	event := zerolog.Ctx(ctx).Info()
	if result.Err != nil {
		event = zerolog.Ctx(ctx).Error().Err(result.Err)
	}
	event.
		Str("action", r.action).
		Str("target", result.Path).
		Str("state", result.State.String()).
		Int("processed", r.processed).
		Int("total", r.total).
		Msg("target processed")
}

// FinishOperation prints the operation summary
func (r *ConsoleReporter) FinishOperation(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := zerolog.Ctx(ctx)
	if r.failed > 0 {
		pterm.Warning.Printfln("%s: %d/%d succeeded, %d failed", r.action, r.processed-r.failed, r.total, r.failed)
		logger.Warn().Str("action", r.action).Int("failed", r.failed).Msg("operation finished with failures")
		return
	}
	logger.Debug().Str("action", r.action).Int("processed", r.processed).Msg("operation finished")
}

// 🔇 NoopReporter discards all feedback (used in tests)
type NoopReporter struct{}

func (NoopReporter) StartOperation(ctx context.Context, action string, total int) {}
func (NoopReporter) ReportTarget(ctx context.Context, result TargetResult)        {}
func (NoopReporter) FinishOperation(ctx context.Context)                          {}
