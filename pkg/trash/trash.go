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

// Package trash implements deletion-as-move: removed entries are renamed into
// a trash directory under a collision-free name and can be restored to their
// original path later.
//
// The on-disk naming scheme `<unix-timestamp>-<original-basename>` is a
// compatibility surface — manual recovery depends on it — and must not change.
package trash

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const manifestName = "manifest.json"

// ErrRestoreConflict is returned when a different entry now occupies the
// original path of the entry being restored.
var ErrRestoreConflict = errors.New("restore conflict: original path is occupied")

// 🗑️ Entry records one trashed filesystem object
type Entry struct {
	OriginalPath string    `json:"original_path"`
	TrashName    string    `json:"trash_name"`
	IsDir        bool      `json:"is_dir"`
	DeletedAt    time.Time `json:"deleted_at"`
}

// TrashPath returns the absolute path of the entry inside the trash directory
func (e Entry) TrashPath(root string) string {
	return filepath.Join(root, e.TrashName)
}

// 📜 manifest is the persisted trash bookkeeping file
type manifest struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// 🔄 Mover performs the actual rename into and out of the trash directory.
// The engine supplies an elevated implementation when running under sudo.
type Mover interface {
	Rename(ctx context.Context, oldpath, newpath string) error
}

// osMover renames through the syscall layer
type osMover struct{}

func (osMover) Rename(ctx context.Context, oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// 🏪 Store is an append-only, collision-free holding area for deleted entries
type Store struct {
	root string
	now  func() time.Time

	mu      sync.Mutex
	entries []Entry
	loaded  bool
}

// 🔧 Options configures a trash store
type Options struct {
	// Root is the trash directory. It is created lazily on first use.
	Root string
	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// 🏭 New creates a trash store rooted at opts.Root
func New(opts Options) (*Store, error) {
	if opts.Root == "" {
		return nil, errors.New("trash root is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Errorf("absolutizing trash root: %w", err)
	}
	return &Store{root: root, now: now}, nil
}

// DefaultRoot returns the conventional per-user trash location
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "burrow-trash")
	}
	return filepath.Join(home, ".local", "share", "burrow", "trash")
}

// Root returns the trash directory path
func (s *Store) Root() string {
	return s.root
}

// Trash moves path into the trash directory under a timestamp-prefixed name
// and records the mapping in the manifest. The chosen name never collides
// with an existing trash path, even for repeated same-second deletions of
// identically named files.
func (s *Store) Trash(ctx context.Context, path string) (Entry, error) {
	return s.TrashWith(ctx, osMover{}, path)
}

// TrashWith is Trash with an explicit Mover (used for elevated deletion)
func (s *Store) TrashWith(ctx context.Context, mover Mover, path string) (Entry, error) {
	logger := zerolog.Ctx(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureRoot(); err != nil {
		return Entry{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Entry{}, errors.Errorf("absolutizing %s: %w", path, err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return Entry{}, errors.Errorf("stating %s: %w", abs, err)
	}

	deletedAt := s.now()
	name := s.uniqueName(deletedAt, filepath.Base(abs))

	entry := Entry{
		OriginalPath: abs,
		TrashName:    name,
		IsDir:        info.IsDir(),
		DeletedAt:    deletedAt,
	}

	if err := mover.Rename(ctx, abs, entry.TrashPath(s.root)); err != nil {
		return Entry{}, err
	}

	s.entries = append(s.entries, entry)
	if err := s.writeManifest(); err != nil {
		logger.Warn().Err(err).Msg("trash manifest write failed")
	}

	logger.Debug().Str("path", abs).Str("trash_name", name).Msg("entry moved to trash")
	return entry, nil
}

// Restore moves an entry back to its original path and drops it from the
// manifest. It fails with ErrRestoreConflict if a different entry now
// occupies the original path; the trashed object stays put in that case.
func (s *Store) Restore(ctx context.Context, entry Entry) error {
	return s.RestoreWith(ctx, osMover{}, entry)
}

// RestoreWith is Restore with an explicit Mover
func (s *Store) RestoreWith(ctx context.Context, mover Mover, entry Entry) error {
	logger := zerolog.Ctx(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	trashPath := entry.TrashPath(s.root)
	if _, err := os.Lstat(trashPath); err != nil {
		return errors.Errorf("trash entry %s is missing: %w", entry.TrashName, err)
	}
	if _, err := os.Lstat(entry.OriginalPath); err == nil {
		return errors.WithStack(ErrRestoreConflict)
	}
	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0755); err != nil {
		return errors.Errorf("recreating parent of %s: %w", entry.OriginalPath, err)
	}

	if err := mover.Rename(ctx, trashPath, entry.OriginalPath); err != nil {
		return err
	}

	s.dropEntry(entry)
	if err := s.writeManifest(); err != nil {
		logger.Warn().Err(err).Msg("trash manifest write failed")
	}

	logger.Debug().Str("path", entry.OriginalPath).Msg("entry restored from trash")
	return nil
}

// List returns all recorded trash entries, newest first
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadManifest(); err != nil {
		return nil, err
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeletedAt.After(out[j].DeletedAt)
	})
	return out, nil
}

// Find looks up a recorded entry by its trash name
func (s *Store) Find(ctx context.Context, trashName string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadManifest(); err != nil {
		return Entry{}, false, err
	}
	for _, e := range s.entries {
		if e.TrashName == trashName {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// uniqueName picks `<ts>-<base>`, appending `.N` before a collision with any
// existing trash object. Caller holds s.mu.
func (s *Store) uniqueName(t time.Time, base string) string {
	name := fmt.Sprintf("%d-%s", t.Unix(), base)
	candidate := name
	for n := 1; ; n++ {
		if _, err := os.Lstat(filepath.Join(s.root, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s.%d", name, n)
	}
}

// ensureRoot lazily creates the trash directory. Caller holds s.mu.
func (s *Store) ensureRoot() error {
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return errors.Errorf("creating trash directory: %w", err)
	}
	return s.loadManifest()
}

// loadManifest reads the manifest once per process. Caller holds s.mu.
func (s *Store) loadManifest() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(s.root, manifestName))
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return errors.Errorf("reading trash manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return errors.Errorf("parsing trash manifest: %w", err)
	}
	s.entries = m.Entries
	s.loaded = true
	return nil
}

// writeManifest persists the manifest atomically (temp file then rename).
// Caller holds s.mu.
func (s *Store) writeManifest() error {
	m := manifest{Version: 1, Entries: s.entries}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Errorf("encoding trash manifest: %w", err)
	}
	path := filepath.Join(s.root, manifestName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Errorf("writing trash manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Errorf("replacing trash manifest: %w", err)
	}
	return nil
}

func (s *Store) dropEntry(entry Entry) {
	for i, e := range s.entries {
		if e.TrashName == entry.TrashName {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}
