package sizecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/burrow/pkg/fsentry"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644), "writing fixture should succeed")
}

func TestSizeOfFile(t *testing.T) {
	cache := New()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	writeFile(t, path, 1234)

	state := cache.SizeOf(path)
	require.Equal(t, fsentry.SizeComputed, state.Kind, "size should be computed")
	assert.Equal(t, int64(1234), state.Bytes, "size should match the file")
}

func TestSizeOfMissingPath(t *testing.T) {
	cache := New()
	state := cache.SizeOf(filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, fsentry.SizeUnavailable, state.Kind, "missing paths should report unavailable")
	assert.NotEmpty(t, state.Reason, "unavailable state should carry a reason")
}

func TestDirectorySizeIsNonRecursive(t *testing.T) {
	cache := New()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bin"), 100)
	writeFile(t, filepath.Join(dir, "b.bin"), 200)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755), "creating subdirectory should succeed")
	writeFile(t, filepath.Join(sub, "deep.bin"), 100000)

	subStat, err := os.Lstat(sub)
	require.NoError(t, err, "stating subdirectory should succeed")

	state := cache.SizeOf(dir)
	require.Equal(t, fsentry.SizeComputed, state.Kind, "size should be computed")

	// Immediate children only: the subdirectory counts its own stat size,
	// never its contents.
	want := int64(100+200) + subStat.Size()
	assert.Equal(t, want, state.Bytes, "directory total must not include descendant-of-descendant sizes")
}

func TestCachedValueStaleUntilInvalidated(t *testing.T) {
	cache := New()
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755), "creating subdirectory should succeed")
	writeFile(t, filepath.Join(dir, "a.bin"), 50)

	before := cache.SizeOf(dir)
	require.Equal(t, fsentry.SizeComputed, before.Kind, "size should be computed")

	// Mutating behind the cache's back does not change the cached value.
	writeFile(t, filepath.Join(dir, "b.bin"), 500)
	assert.Equal(t, before, cache.SizeOf(dir), "cached value should be returned until invalidated")

	cache.Invalidate(dir)
	after := cache.SizeOf(dir)
	assert.NotEqual(t, before.Bytes, after.Bytes, "recompute after invalidation should see the new child")
}

func TestInvalidateDuringLookupIsNotLost(t *testing.T) {
	cache := New()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bin"), 100)

	base := cache.compute
	cache.compute = func(path string) fsentry.SizeState {
		state := base(path)
		// A mutation and its invalidation land while this lookup is still
		// in flight.
		writeFile(t, filepath.Join(dir, "b.bin"), 900)
		cache.Invalidate(dir)
		return state
	}

	stale := cache.SizeOf(dir)
	require.Equal(t, fsentry.SizeComputed, stale.Kind, "the in-flight lookup still returns its result")
	require.Equal(t, int64(100), stale.Bytes, "the in-flight result predates the mutation")

	_, ok := cache.Peek(dir)
	assert.False(t, ok, "the pre-mutation result must not be stored over the invalidation")

	cache.compute = base
	fresh := cache.SizeOf(dir)
	assert.Equal(t, int64(1000), fresh.Bytes, "the next lookup sees the post-mutation state")
}

func TestInvalidateParent(t *testing.T) {
	cache := New()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	writeFile(t, path, 10)

	cache.SizeOf(dir)
	_, ok := cache.Peek(dir)
	require.True(t, ok, "directory should be cached")

	cache.InvalidateParent(path)
	_, ok = cache.Peek(dir)
	assert.False(t, ok, "invalidating a child's parent should clear the directory entry")
}

func TestPeekDoesNotCompute(t *testing.T) {
	cache := New()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	writeFile(t, path, 10)

	_, ok := cache.Peek(path)
	assert.False(t, ok, "peek should not compute on a miss")
	assert.Equal(t, 0, cache.Len(), "peek should not populate the cache")
}
