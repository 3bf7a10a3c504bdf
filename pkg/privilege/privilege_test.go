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
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// fakeAuthenticator stands in for sudo so the session lifecycle can be
// tested without elevated rights
type fakeAuthenticator struct {
	mu            sync.Mutex
	reject        bool
	validateCalls int
	dropCalls     int
	seen          string
}

func (a *fakeAuthenticator) Validate(ctx context.Context, credential []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validateCalls++
	a.seen = string(credential)
	if a.reject {
		return errors.New("authentication failure")
	}
	return nil
}

func (a *fakeAuthenticator) Drop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropCalls++
	return nil
}

func TestEscalateActivatesSession(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuthenticator{}
	mgr := NewManager(auth, ScopeSingleCommand)

	session, err := mgr.Escalate(ctx, []byte("hunter2"))
	require.NoError(t, err, "escalation should succeed")

	assert.True(t, session.Active(), "session should be active after escalation")
	assert.True(t, mgr.Active(), "manager should report an active session")
	assert.Equal(t, 1, auth.validateCalls, "the credential should be validated exactly once")
	assert.Equal(t, "hunter2", auth.seen, "the authenticator should receive the credential")
	assert.False(t, session.ValidatedAt().IsZero(), "validation time should be recorded")
}

func TestEscalateZeroesCredentialBuffer(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(&fakeAuthenticator{}, ScopeSingleCommand)

	credential := []byte("hunter2")
	_, err := mgr.Escalate(ctx, credential)
	require.NoError(t, err, "escalation should succeed")

	for i, b := range credential {
		assert.Zero(t, b, "credential byte %d should be zeroed after escalation", i)
	}
}

func TestEscalateFailure(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuthenticator{reject: true}
	mgr := NewManager(auth, ScopeSingleCommand)

	credential := []byte("wrong")
	session, err := mgr.Escalate(ctx, credential)
	require.Error(t, err, "escalation should fail")

	assert.True(t, errors.Is(err, ErrInvalidCredential), "the failure should be ErrInvalidCredential")
	assert.Nil(t, session, "no session should be returned on failure")
	assert.False(t, mgr.Active(), "the manager should stay inactive")
	for i, b := range credential {
		assert.Zero(t, b, "credential byte %d should be zeroed even on failure", i)
	}
}

func TestEscalateReplacesPriorSession(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(&fakeAuthenticator{}, ScopeSingleCommand)

	first, err := mgr.Escalate(ctx, []byte("one"))
	require.NoError(t, err, "first escalation should succeed")
	second, err := mgr.Escalate(ctx, []byte("two"))
	require.NoError(t, err, "second escalation should succeed")

	assert.False(t, first.Active(), "a prior session must never outlive a new escalation")
	assert.True(t, second.Active(), "the new session should be active")
}

func TestClearIsTerminal(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuthenticator{}
	mgr := NewManager(auth, ScopeSingleCommand)

	session, err := mgr.Escalate(ctx, []byte("hunter2"))
	require.NoError(t, err, "escalation should succeed")

	mgr.Clear(ctx, session)
	assert.False(t, session.Active(), "session should be inactive after clear")
	assert.False(t, mgr.Active(), "manager should report no active session")
	assert.Equal(t, 1, auth.dropCalls, "OS-cached authentication state should be dropped")

	// Clearing again, or clearing nil, is harmless.
	mgr.Clear(ctx, session)
	mgr.Clear(ctx, nil)
}

func TestRunnerRefusesClearedSession(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(&fakeAuthenticator{}, ScopeSingleCommand)

	session, err := mgr.Escalate(ctx, []byte("hunter2"))
	require.NoError(t, err, "escalation should succeed")

	runner := NewSudoRunner(session)
	mgr.Clear(ctx, session)

	err = runner.Rename(ctx, "/a", "/b")
	require.Error(t, err, "a cleared session must refuse elevated execution")
	assert.True(t, errors.Is(err, ErrNoActiveSession), "the refusal should be ErrNoActiveSession")

	err = runner.RemoveAll(ctx, "/a")
	assert.True(t, errors.Is(err, ErrNoActiveSession), "every elevated call checks the session")
}

func TestRunnerRefusesNeverActivatedSession(t *testing.T) {
	ctx := context.Background()
	runner := NewSudoRunner(&Session{})

	err := runner.CreateFile(ctx, "/tmp/x")
	require.Error(t, err, "a never-activated session must refuse elevated execution")
	assert.True(t, errors.Is(err, ErrNoActiveSession), "the refusal should be ErrNoActiveSession")
}
