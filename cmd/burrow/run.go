package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/walteh/burrow/pkg/command"
	"github.com/walteh/burrow/pkg/engine"
	"github.com/walteh/burrow/pkg/log"
	"github.com/walteh/burrow/pkg/privilege"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"
)

// runCommand submits one command to the worker, waits for its outcome, and
// drives the escalation flow on a permission refusal. Successful operations
// are recorded on the session's undo history.
func runCommand(ctx context.Context, rt *runtime, cmd command.Command) error {
	logger := zerolog.Ctx(ctx)
	ctx = log.NewContext(ctx, rt.ui)
	rt.ui.Header(cmd.Kind.String())

	if _, err := rt.worker.Submit(ctx, cmd); err != nil {
		return errors.Errorf("submitting command: %w", err)
	}

	result, ok := <-rt.worker.Results()
	if !ok {
		return errors.New("worker closed before delivering a result")
	}

	outcome := result.Outcome
	if outcome.Executed != nil {
		rt.history.Record(outcome.Executed)
	}

	switch outcome.Kind {
	case engine.OutcomeSuccess:
		logger.Debug().Int("undo_depth", rt.history.Depth()).Msg("command applied")
		rt.ui.Successf("%s complete", cmd.Kind)
		return nil

	case engine.OutcomePermissionDenied:
		rt.ui.Warning("permission denied, elevated rights required")
		return escalateAndRetry(ctx, rt, *outcome.Denied)

	default:
		if outcome.Executed != nil {
			rt.ui.Warningf("%s partially failed; completed targets remain undoable", cmd.Kind)
		}
		return outcome.Err
	}
}

// escalateAndRetry prompts for the sudo password, validates it, and
// re-applies the denied command with elevated rights. The credential is
// consumed exactly once; the session never survives the retry.
func escalateAndRetry(ctx context.Context, rt *runtime, cmd command.Command) error {
	ui := log.FromContext(ctx)

	password, err := promptPassword("Permission denied. Enter sudo password: ")
	if err != nil {
		return errors.Errorf("reading password: %w", err)
	}

	session, err := rt.priv.Escalate(ctx, password)
	if err != nil {
		if errors.Is(err, privilege.ErrInvalidCredential) {
			ui.Errorf("authentication failed, %s discarded", cmd.Kind)
			return errors.Errorf("authentication failed, command discarded: %w", err)
		}
		return err
	}

	outcome := rt.engine.RetryWithEscalation(ctx, cmd, rt.priv, session)
	if rt.priv.Scope() == privilege.ScopeBatch {
		rt.priv.Clear(ctx, session)
	}

	if outcome.Executed != nil {
		rt.history.Record(outcome.Executed)
	}
	switch outcome.Kind {
	case engine.OutcomeSuccess:
		ui.Successf("%s complete (elevated)", cmd.Kind)
		return nil
	case engine.OutcomePermissionDenied:
		return errors.New("permission denied even with elevated rights")
	default:
		return outcome.Err
	}
}

// promptPassword reads a credential without echoing it
func promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("cannot prompt for a password without a terminal")
	}
	password, err := term.ReadPassword(fd)
	if err != nil {
		return nil, errors.Errorf("reading password: %w", err)
	}
	return password, nil
}
