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

// Package command models user file-operation intents as pure, validated data.
// Commands never touch the filesystem themselves; the engine applies them.
package command

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/walteh/burrow/pkg/fsentry"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Kind is the command discriminator
type Kind int

const (
	KindUnknown Kind = iota
	KindCopy
	KindMove
	KindDelete
	KindRename
	KindCreate
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindCopy:
		return "copy"
	case KindMove:
		return "move"
	case KindDelete:
		return "delete"
	case KindRename:
		return "rename"
	case KindCreate:
		return "create"
	default:
		return "unknown"
	}
}

// 📦 Command is a tagged variant describing one user intent. Exactly the
// fields for its Kind are set:
//   - Copy/Move: Sources, Destination
//   - Delete: Sources
//   - Rename: Sources[0], NewName
//   - Create: Destination (parent dir), NewName, CreateKind
//
// All paths are absolute at construction time; existence is re-checked by the
// engine at apply time, since a command may sit suspended across a privilege
// escalation prompt.
type Command struct {
	Kind        Kind
	Sources     []string
	Destination string
	NewName     string
	CreateKind  fsentry.Kind
}

// ⚠️ ValidationError reports a command rejected before any mutation
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// 🏭 NewCopy builds a copy command from a selection and a destination directory
func NewCopy(sources []string, destination string) (Command, error) {
	srcs, err := absAll(sources)
	if err != nil {
		return Command{}, err
	}
	dest, err := absDir(destination)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindCopy, Sources: srcs, Destination: dest}, nil
}

// 🏭 NewMove builds a move command (cut-paste) from a selection and a destination directory
func NewMove(sources []string, destination string) (Command, error) {
	srcs, err := absAll(sources)
	if err != nil {
		return Command{}, err
	}
	dest, err := absDir(destination)
	if err != nil {
		return Command{}, err
	}
	for _, src := range srcs {
		if src == dest {
			return Command{}, errors.WithStack(&ValidationError{Path: src, Reason: "cannot move a directory into itself"})
		}
	}
	return Command{Kind: KindMove, Sources: srcs, Destination: dest}, nil
}

// 🏭 NewDelete builds a delete command from a selection
func NewDelete(targets []string) (Command, error) {
	srcs, err := absAll(targets)
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindDelete, Sources: srcs}, nil
}

// 🏭 NewRename builds a rename command for a single target
func NewRename(target string, newName string) (Command, error) {
	abs, err := absOne(target)
	if err != nil {
		return Command{}, err
	}
	if err := validateName(newName); err != nil {
		return Command{}, err
	}
	sibling := filepath.Join(filepath.Dir(abs), newName)
	if sibling != abs {
		if _, err := os.Lstat(sibling); err == nil {
			return Command{}, errors.WithStack(&ValidationError{Path: sibling, Reason: "name already exists"})
		}
	}
	return Command{Kind: KindRename, Sources: []string{abs}, NewName: newName}, nil
}

// 🏭 NewCreate builds a create command for a new file or directory under parent
func NewCreate(parent string, name string, kind fsentry.Kind) (Command, error) {
	dir, err := absDir(parent)
	if err != nil {
		return Command{}, err
	}
	if err := validateName(name); err != nil {
		return Command{}, err
	}
	if kind != fsentry.KindFile && kind != fsentry.KindDir {
		return Command{}, errors.WithStack(&ValidationError{Reason: fmt.Sprintf("cannot create entry of kind %q", kind)})
	}
	target := filepath.Join(dir, name)
	if _, err := os.Lstat(target); err == nil {
		return Command{}, errors.WithStack(&ValidationError{Path: target, Reason: "name already exists"})
	}
	return Command{Kind: KindCreate, Destination: dir, NewName: name, CreateKind: kind}, nil
}

// Target returns the single target of a rename command
func (c Command) Target() string {
	if len(c.Sources) == 0 {
		return ""
	}
	return c.Sources[0]
}

// RenamedPath returns where a rename command will put its target
func (c Command) RenamedPath() string {
	return filepath.Join(filepath.Dir(c.Target()), c.NewName)
}

// CreatedPath returns the path a create command will produce
func (c Command) CreatedPath() string {
	return filepath.Join(c.Destination, c.NewName)
}

func absAll(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, errors.WithStack(&ValidationError{Reason: "empty selection"})
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := absOne(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func absOne(path string) (string, error) {
	if path == "" {
		return "", errors.WithStack(&ValidationError{Reason: "empty path"})
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("absolutizing %s: %w", path, err)
	}
	return abs, nil
}

func absDir(path string) (string, error) {
	abs, err := absOne(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.WithStack(&ValidationError{Path: abs, Reason: "destination does not exist"})
	}
	if !info.IsDir() {
		return "", errors.WithStack(&ValidationError{Path: abs, Reason: "destination is not a directory"})
	}
	return abs, nil
}

func validateName(name string) error {
	if name == "" {
		return errors.WithStack(&ValidationError{Reason: "empty name"})
	}
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		return errors.WithStack(&ValidationError{Path: name, Reason: "name contains a path separator"})
	}
	if name == "." || name == ".." {
		return errors.WithStack(&ValidationError{Path: name, Reason: "reserved name"})
	}
	return nil
}
