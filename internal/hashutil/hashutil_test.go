package hashutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(data string) []byte {
	s := sha256.Sum256([]byte(data))
	return s[:]
}

func TestHashFileAndEmptyDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	got, err := Hash(file)
	require.NoError(t, err)
	assert.Equal(t, sum("hello"), got)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	got, err = Hash(empty)
	require.NoError(t, err)
	assert.True(t, IsNoContent(got))

	_, err = Hash(dir)
	assert.True(t, errors.Is(err, ErrDirectoryHash))

	_, err = Hash(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestHashTreeIsStableAndSensitive(t *testing.T) {
	build := func(extra bool) string {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "module.xml"), []byte("<module/>"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "a.jar"), []byte("jar"), 0o644))
		if extra {
			require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))
		}
		return dir
	}
	first, err := HashTree(build(false))
	require.NoError(t, err)
	second, err := HashTree(build(false))
	require.NoError(t, err)
	withEmpty, err := HashTree(build(true))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, withEmpty)

	empty, err := HashTree(t.TempDir())
	require.NoError(t, err)
	assert.True(t, IsNoContent(empty))
}

func TestCopyAndHashWritesAndHashesInOnePass(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "dir", "out.txt")

	got, err := CopyAndHash(bytes.NewReader([]byte("payload")), dest, 0o644)
	require.NoError(t, err)
	assert.Equal(t, sum("payload"), got)

	onDisk, err := Hash(dest)
	require.NoError(t, err)
	assert.Equal(t, got, onDisk)
}

type failingReader struct {
	n int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n > 0 {
		return 0, io.ErrUnexpectedEOF
	}
	r.n++
	copy(p, "partial")
	return len("partial"), nil
}

func TestCopyAndHashShortWriteLeavesDestinationUntouched(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(dest, []byte("original"), 0o644))

	_, err := CopyAndHash(&failingReader{}, dest, 0o644)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCopyFileKeepsMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Chmod(src, 0o755))

	dest := filepath.Join(dir, "copy", "run.sh")
	_, err := CopyFile(src, dest)
	require.NoError(t, err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestCopyTreeMatchesSourceHash(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "b", "c.txt"), []byte("c"), 0o644))

	want, err := HashTree(src)
	require.NoError(t, err)
	got, err := CopyTree(src, filepath.Join(t.TempDir(), "copy"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecursiveDelete(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "x", "y"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x", "f"), []byte("f"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "g"), []byte("g"), 0o644))

	ok, err := RecursiveDelete(root)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = os.Stat(root)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	ok, err = RecursiveDelete(root)
	require.NoError(t, err)
	assert.True(t, ok, "missing path counts as removed")
}

func TestRecursiveDeleteReportsPartialFailure(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission-based failure injection needs a non-root unix user")
	}
	root := filepath.Join(t.TempDir(), "tree")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.MkdirAll(locked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "f"), []byte("f"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "free"), []byte("f"), 0o644))
	require.NoError(t, os.Chmod(locked, 0o555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	ok, err := RecursiveDelete(root)
	assert.False(t, ok)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(root, "free"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "deletion continues past failures")
}

func TestFormatParse(t *testing.T) {
	h := sum("x")
	parsed, err := Parse(Format(h))
	require.NoError(t, err)
	assert.True(t, Equal(h, parsed))

	none, err := Parse("")
	require.NoError(t, err)
	assert.True(t, IsNoContent(none))
	assert.Equal(t, "", Format(NoContent))
	assert.True(t, Equal(nil, NoContent))

	_, err = Parse("zz")
	assert.Error(t, err)
	_, err = Parse("abcd")
	assert.Error(t, err)
}
