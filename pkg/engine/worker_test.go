package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/burrow/pkg/command"
	"github.com/walteh/burrow/pkg/fsentry"
	"gitlab.com/tozd/go/errors"
)

// gatedMutator blocks file creation until the gate opens, letting tests
// hold the worker mid-command deterministically
type gatedMutator struct {
	OSMutator
	gate chan struct{}
}

func (m *gatedMutator) CreateFile(ctx context.Context, path string) error {
	select {
	case <-m.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.OSMutator.CreateFile(ctx, path)
}

func waitResult(t *testing.T, w *Worker) Result {
	t.Helper()
	select {
	case result, ok := <-w.Results():
		require.True(t, ok, "results channel should be open")
		return result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a result")
		return Result{}
	}
}

func TestWorkerAppliesInSubmissionOrder(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, Options{})

	worker := NewWorker(ctx, rig.engine, 8)
	defer worker.Close()

	names := []string{"first", "second", "third"}
	for _, name := range names {
		cmd, err := command.NewCreate(rig.work, name, fsentry.KindFile)
		require.NoError(t, err, "building create should succeed")
		_, err = worker.Submit(ctx, cmd)
		require.NoError(t, err, "submit should succeed")
	}

	for _, name := range names {
		result := waitResult(t, worker)
		assert.Equal(t, OutcomeSuccess, result.Outcome.Kind, "create should succeed")
		assert.Equal(t, name, result.Command.NewName, "outcomes should arrive in submission order")
	}
}

func TestSubmitRefusesWhenQueueFull(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	rig := newTestRig(t, Options{Mutator: &gatedMutator{gate: gate}})

	worker := NewWorker(ctx, rig.engine, 1)
	defer worker.Close()

	blocked, err := command.NewCreate(rig.work, "blocked", fsentry.KindFile)
	require.NoError(t, err, "building create should succeed")
	_, err = worker.Submit(ctx, blocked)
	require.NoError(t, err, "the first submission should be accepted")

	overflow, err := command.NewCreate(rig.work, "overflow", fsentry.KindFile)
	require.NoError(t, err, "building create should succeed")
	_, err = worker.Submit(ctx, overflow)
	require.Error(t, err, "a full queue should refuse the submission")
	assert.True(t, errors.Is(err, ErrQueueFull), "the refusal should be ErrQueueFull")

	close(gate)
	result := waitResult(t, worker)
	assert.Equal(t, OutcomeSuccess, result.Outcome.Kind, "the in-flight command should still complete")
}

func TestSubmitAfterClose(t *testing.T) {
	ctx := context.Background()
	rig := newTestRig(t, Options{})

	worker := NewWorker(ctx, rig.engine, 4)
	worker.Close()

	cmd, err := command.NewCreate(rig.work, "late", fsentry.KindFile)
	require.NoError(t, err, "building create should succeed")
	_, err = worker.Submit(ctx, cmd)
	require.Error(t, err, "a closed worker should refuse submissions")
	assert.True(t, errors.Is(err, ErrWorkerClosed), "the refusal should be ErrWorkerClosed")
}

func TestCancelQueuedCommand(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	rig := newTestRig(t, Options{Mutator: &gatedMutator{gate: gate}})
	writeFile(t, rig.path("victim.txt"), "still here")

	worker := NewWorker(ctx, rig.engine, 4)
	defer worker.Close()

	blocked, err := command.NewCreate(rig.work, "blocked", fsentry.KindFile)
	require.NoError(t, err, "building create should succeed")
	_, err = worker.Submit(ctx, blocked)
	require.NoError(t, err, "submit should succeed")

	del, err := command.NewDelete([]string{rig.path("victim.txt")})
	require.NoError(t, err, "building delete should succeed")
	queued, err := worker.Submit(ctx, del)
	require.NoError(t, err, "submit should succeed")

	// Cancel the delete while it is still queued behind the gated create.
	queued.Cancel()
	close(gate)

	first := waitResult(t, worker)
	assert.Equal(t, OutcomeSuccess, first.Outcome.Kind, "the gated create should succeed")

	second := waitResult(t, worker)
	assert.Equal(t, OutcomeFailed, second.Outcome.Kind, "the cancelled command should fail")
	assert.Nil(t, second.Outcome.Executed, "a cancelled command must not be undoable")
	assert.FileExists(t, rig.path("victim.txt"), "the cancelled delete must not touch its target")
}
