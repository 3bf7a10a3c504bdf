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

package trash

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func newTestStore(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	store, err := New(Options{Root: filepath.Join(t.TempDir(), "trash"), Now: now})
	require.NoError(t, err, "creating store should succeed")
	return store
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "writing fixture should succeed")
}

func TestTrashAndRestore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "hello")

	entry, err := store.Trash(ctx, path)
	require.NoError(t, err, "trashing should succeed")

	assert.Equal(t, path, entry.OriginalPath, "original path should be recorded")
	assert.Equal(t, fmt.Sprintf("%d-a.txt", entry.DeletedAt.Unix()), entry.TrashName, "trash name should be timestamp-prefixed")
	assert.NoFileExists(t, path, "original should be gone")
	assert.FileExists(t, entry.TrashPath(store.Root()), "trashed object should exist")

	require.NoError(t, store.Restore(ctx, entry), "restore should succeed")
	assert.FileExists(t, path, "original should be back")
	assert.NoFileExists(t, entry.TrashPath(store.Root()), "trash object should be gone")

	content, err := os.ReadFile(path)
	require.NoError(t, err, "reading restored file should succeed")
	assert.Equal(t, "hello", string(content), "content should survive the round trip")
}

func TestTrashLazyRootCreation(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "nested", "trash")
	store, err := New(Options{Root: root})
	require.NoError(t, err, "creating store should succeed")

	assert.NoDirExists(t, root, "root should not exist before first use")

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "x")
	_, err = store.Trash(ctx, path)
	require.NoError(t, err, "trashing should succeed")
	assert.DirExists(t, root, "root should be created on first use")
}

func TestTrashIdenticalTimestampsNeverCollide(t *testing.T) {
	ctx := context.Background()
	frozen := time.Unix(1700000000, 0)
	store := newTestStore(t, func() time.Time { return frozen })

	dirA := t.TempDir()
	dirB := t.TempDir()
	pathA := filepath.Join(dirA, "same.txt")
	pathB := filepath.Join(dirB, "same.txt")
	writeFile(t, pathA, "first")
	writeFile(t, pathB, "second")

	entryA, err := store.Trash(ctx, pathA)
	require.NoError(t, err, "first trash should succeed")
	entryB, err := store.Trash(ctx, pathB)
	require.NoError(t, err, "second trash should succeed")

	assert.NotEqual(t, entryA.TrashName, entryB.TrashName, "same-second deletions of same-named files must not collide")
	assert.FileExists(t, entryA.TrashPath(store.Root()), "first object should exist")
	assert.FileExists(t, entryB.TrashPath(store.Root()), "second object should exist")

	contentA, err := os.ReadFile(entryA.TrashPath(store.Root()))
	require.NoError(t, err, "reading first object should succeed")
	assert.Equal(t, "first", string(contentA), "first object should keep its content")
}

func TestRestoreConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "original")

	entry, err := store.Trash(ctx, path)
	require.NoError(t, err, "trashing should succeed")

	// A different entry now occupies the original path.
	writeFile(t, path, "squatter")

	err = store.Restore(ctx, entry)
	require.Error(t, err, "restore should fail")
	assert.True(t, errors.Is(err, ErrRestoreConflict), "error should be a restore conflict")
	assert.FileExists(t, entry.TrashPath(store.Root()), "trashed object should stay put for manual recovery")

	content, err := os.ReadFile(path)
	require.NoError(t, err, "reading occupant should succeed")
	assert.Equal(t, "squatter", string(content), "occupant should be untouched")
}

func TestManifestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "trash")
	store, err := New(Options{Root: root})
	require.NoError(t, err, "creating store should succeed")

	dir := t.TempDir()
	path := filepath.Join(dir, "keep.txt")
	writeFile(t, path, "k")
	entry, err := store.Trash(ctx, path)
	require.NoError(t, err, "trashing should succeed")

	reopened, err := New(Options{Root: root})
	require.NoError(t, err, "reopening store should succeed")

	found, ok, err := reopened.Find(ctx, entry.TrashName)
	require.NoError(t, err, "lookup should succeed")
	require.True(t, ok, "entry should be present after reopen")
	assert.Equal(t, path, found.OriginalPath, "original path should survive reopen")

	require.NoError(t, reopened.Restore(ctx, found), "restore through the reopened store should succeed")
	assert.FileExists(t, path, "original should be back")

	entries, err := reopened.List(ctx)
	require.NoError(t, err, "listing should succeed")
	assert.Empty(t, entries, "restored entry should leave the manifest")
}

func TestTrashDirectory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)
	dir := t.TempDir()
	sub := filepath.Join(dir, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(sub, "nested"), 0755), "creating fixture tree should succeed")
	writeFile(t, filepath.Join(sub, "nested", "f.txt"), "deep")

	entry, err := store.Trash(ctx, sub)
	require.NoError(t, err, "trashing a directory should succeed")
	assert.True(t, entry.IsDir, "entry should be marked as a directory")

	require.NoError(t, store.Restore(ctx, entry), "restore should succeed")
	assert.FileExists(t, filepath.Join(sub, "nested", "f.txt"), "nested content should survive")
}
