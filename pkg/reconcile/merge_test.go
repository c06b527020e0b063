package reconcile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileEntries(dir string, names ...string) []FileEntry {
	entries := make([]FileEntry, len(names))
	for i, name := range names {
		entries[i] = FileEntry{Path: filepath.Join(dir, name), Rel: name}
	}
	return entries
}

func assertNoTempFiles(t *testing.T, dir, base string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(dir, "."+base+".stitch-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestMergeFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"one": "1", "two": "", "three": "3\n"})
	dest := filepath.Join(t.TempDir(), "sub", "out.txt")

	n, err := mergeFiles(context.Background(), dest, fileEntries(src, "one", "two", "three"))
	require.NoError(t, err)

	// Empty files still get a separator on each side.
	assert.Equal(t, "1\n\n3\n", readFile(t, dest))
	assert.Equal(t, int64(5), n)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	assertNoTempFiles(t, filepath.Dir(dest), "out.txt")
}

func TestMergeFilesMissingSource(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"one": "1"})
	out := t.TempDir()
	dest := filepath.Join(out, "out.txt")

	_, err := mergeFiles(context.Background(), dest, fileEntries(src, "one", "gone"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to read file")
	assert.NotContains(t, err.Error(), "failed to write output file")

	_, err = os.Stat(dest)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assertNoTempFiles(t, out, "out.txt")
}

func TestMergeFilesUnreadableSource(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"one": "1", "dir/inner": "x"})
	out := t.TempDir()
	dest := filepath.Join(out, "out.txt")

	// Opening a directory succeeds; reading it fails.
	_, err := mergeFiles(context.Background(), dest, fileEntries(src, "one", "dir"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
	assert.NotContains(t, err.Error(), "failed to write output file")

	_, err = os.Stat(dest)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assertNoTempFiles(t, out, "out.txt")
}

func TestMergeFilesRenameFailure(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"one": "1"})
	out := t.TempDir()
	writeTree(t, out, map[string]string{"out.txt/keep": "x"})

	_, err := mergeFiles(context.Background(), filepath.Join(out, "out.txt"), fileEntries(src, "one"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to move output file into place")
	assertNoTempFiles(t, out, "out.txt")
}

func TestMergeFilesOutputDirBlocked(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"one": "1"})
	out := t.TempDir()
	writeTree(t, out, map[string]string{"sub": "a file, not a directory"})

	_, err := mergeFiles(context.Background(), filepath.Join(out, "sub", "out.txt"), fileEntries(src, "one"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output directory")
}

func TestMergeFilesCanceled(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"one": "1"})
	out := t.TempDir()
	dest := filepath.Join(out, "out.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mergeFiles(ctx, dest, fileEntries(src, "one"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(dest)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assertNoTempFiles(t, out, "out.txt")
}

func TestPartReaderClosed(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"one": "1"})

	r := newPartReader(context.Background(), fileEntries(src, "one"))
	buf := make([]byte, 1)
	_, err := r.Read(buf)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
