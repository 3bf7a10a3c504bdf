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

// Package privilege obtains, validates, and discards elevated credentials.
//
// Escalation is single-use, never ambient: a session activates for exactly
// one command (or one whole batch, when configured) and is cleared the moment
// that command returns, whatever its outcome. No raw credential bytes survive
// validation — only a capability flag that elevated execution is currently
// permitted.
package privilege

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrInvalidCredential is returned when the supplied credential fails
// validation against the operating system's authentication mechanism.
var ErrInvalidCredential = errors.New("invalid credential")

// ErrNoActiveSession is returned when elevated execution is requested
// without a validated session.
var ErrNoActiveSession = errors.New("no active credential session")

// 🎚️ Scope controls how long one escalation stays valid
type Scope int

const (
	// ScopeSingleCommand clears the session after one retried command.
	ScopeSingleCommand Scope = iota
	// ScopeBatch keeps the session alive for one whole multi-target command.
	// It is still cleared when that command returns.
	ScopeBatch
)

// 🔑 Session is the process-wide capability that elevated execution is
// currently permitted. It carries no credential material.
type Session struct {
	mu          sync.Mutex
	active      bool
	validatedAt time.Time
}

// Active reports whether the session currently permits elevated execution
func (s *Session) Active() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ValidatedAt returns when the credential behind this session was validated
func (s *Session) ValidatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validatedAt
}

func (s *Session) clear() {
	s.mu.Lock()
	s.active = false
	s.validatedAt = time.Time{}
	s.mu.Unlock()
}

// 🔐 Authenticator validates a credential against the OS and drops any
// cached authentication state afterwards
type Authenticator interface {
	// Validate checks the credential. The implementation must not retain it.
	Validate(ctx context.Context, credential []byte) error
	// Drop discards any authentication state cached by the OS.
	Drop(ctx context.Context) error
}

// 👮 Manager owns the singleton credential session
type Manager struct {
	auth  Authenticator
	scope Scope

	mu      sync.Mutex
	session *Session
}

// 🏭 NewManager creates a manager backed by the given authenticator
func NewManager(auth Authenticator, scope Scope) *Manager {
	return &Manager{auth: auth, scope: scope}
}

// Scope returns the configured escalation scope
func (m *Manager) Scope() Scope {
	return m.scope
}

// Escalate validates the supplied credential and, on success, activates a
// session. The credential buffer is zeroed before Escalate returns, success
// or not. A validation failure clears any previously active session.
func (m *Manager) Escalate(ctx context.Context, credential []byte) (*Session, error) {
	logger := zerolog.Ctx(ctx)

	defer zero(credential)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.clear()
		m.session = nil
	}

	if err := m.auth.Validate(ctx, credential); err != nil {
		logger.Warn().Msg("credential validation failed")
		return nil, errors.Errorf("validating credential: %w: %w", ErrInvalidCredential, err)
	}

	session := &Session{active: true, validatedAt: time.Now()}
	m.session = session
	logger.Debug().Msg("credential session activated")
	return session, nil
}

// Clear deactivates the session and drops OS-cached authentication state.
// Safe to call with an already-cleared or nil session.
func (m *Manager) Clear(ctx context.Context, session *Session) {
	logger := zerolog.Ctx(ctx)

	if session != nil {
		session.clear()
	}

	m.mu.Lock()
	if m.session == session {
		m.session = nil
	}
	m.mu.Unlock()

	if err := m.auth.Drop(ctx); err != nil {
		logger.Warn().Err(err).Msg("dropping cached authentication state failed")
	}
	logger.Debug().Msg("credential session cleared")
}

// Active reports whether any session is currently active
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.Active()
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// 🔐 SudoAuthenticator validates credentials through sudo
type SudoAuthenticator struct{}

// Validate runs `sudo -kSv`: -k first discards any cached timestamp so the
// password is genuinely checked, -S reads it from stdin, -v validates
// without running a command. A successful validation leaves sudo's timestamp
// cache warm, which is what lets the elevated runner use `sudo -n`.
func (SudoAuthenticator) Validate(ctx context.Context, credential []byte) error {
	stdin := make([]byte, 0, len(credential)+1)
	stdin = append(stdin, credential...)
	stdin = append(stdin, '\n')
	defer zero(stdin)

	cmd := exec.CommandContext(ctx, "sudo", "-kSv")
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return errors.Errorf("sudo validation: %s: %w", stderr.String(), err)
	}
	return nil
}

// Drop runs `sudo -K`, removing the cached timestamp entirely so no later
// process inherits the elevation
func (SudoAuthenticator) Drop(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "sudo", "-K").Run(); err != nil {
		return errors.Errorf("sudo -K: %w", err)
	}
	return nil
}
