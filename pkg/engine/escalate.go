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

	"github.com/rs/zerolog"
	"github.com/walteh/burrow/pkg/command"
	"github.com/walteh/burrow/pkg/privilege"
	"gitlab.com/tozd/go/errors"
)

// RetryWithEscalation re-applies a permission-denied command with elevated
// rights. Under the default single-command scope the session is cleared when
// this call returns, whatever the outcome — escalation is never ambient, so
// a later unrelated command cannot silently inherit it. Under batch scope
// the caller owns the clear, and must issue it as soon as its batch
// completes.
func (e *Engine) RetryWithEscalation(ctx context.Context, cmd command.Command, mgr *privilege.Manager, session *privilege.Session) Outcome {
	if mgr.Scope() == privilege.ScopeSingleCommand {
		defer mgr.Clear(ctx, session)
	}

	if !session.Active() {
		return failed(errors.WithStack(privilege.ErrNoActiveSession), nil, nil)
	}

	zerolog.Ctx(ctx).Debug().Str("kind", cmd.Kind.String()).Msg("re-applying command with elevated rights")
	return e.applyWith(ctx, privilege.NewSudoRunner(session), cmd)
}
