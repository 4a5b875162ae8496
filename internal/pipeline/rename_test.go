package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreFS(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		linkFunc = os.Link
		removeFunc = os.Remove
		renameFunc = os.Rename
		lstatFunc = os.Lstat
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRenameNoReplace_Moves(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src.png", "data")
	dst := filepath.Join(dir, "dst.png")

	require.NoError(t, renameNoReplace(src, dst))

	_, err := os.Stat(src)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestRenameNoReplace_TargetExists(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "src.png", "new")
	dst := writeFile(t, dir, "dst.png", "old")

	err := renameNoReplace(src, dst)
	assert.True(t, IsTargetExists(err))

	got, _ := os.ReadFile(dst)
	assert.Equal(t, "old", string(got))
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestRenameNoReplace_SourceMissing(t *testing.T) {
	dir := t.TempDir()
	err := renameNoReplace(filepath.Join(dir, "missing.png"), filepath.Join(dir, "dst.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenameNoReplace_FallbackWithoutLinks(t *testing.T) {
	restoreFS(t)
	linkFunc = func(string, string) error { return errors.New("operation not supported") }

	dir := t.TempDir()
	src := writeFile(t, dir, "src.png", "data")
	dst := filepath.Join(dir, "dst.png")

	require.NoError(t, renameNoReplace(src, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestRenameNoReplace_FallbackSeesTarget(t *testing.T) {
	restoreFS(t)
	linkFunc = func(string, string) error { return errors.New("operation not supported") }
	renamed := false
	renameFunc = func(string, string) error {
		renamed = true
		return nil
	}

	dir := t.TempDir()
	src := writeFile(t, dir, "src.png", "new")
	dst := writeFile(t, dir, "dst.png", "old")

	err := renameNoReplace(src, dst)
	assert.True(t, IsTargetExists(err))
	assert.False(t, renamed)
}

func TestRenameNoReplace_FallbackStatError(t *testing.T) {
	restoreFS(t)
	boom := errors.New("io error")
	linkFunc = func(string, string) error { return errors.New("operation not supported") }
	lstatFunc = func(string) (fs.FileInfo, error) { return nil, boom }

	err := renameNoReplace("/a", "/b")
	assert.ErrorIs(t, err, boom)
}

func TestRenameNoReplace_RemoveFailsRollsBack(t *testing.T) {
	restoreFS(t)
	dir := t.TempDir()
	src := writeFile(t, dir, "src.png", "data")
	dst := filepath.Join(dir, "dst.png")

	boom := errors.New("busy")
	removeFunc = func(name string) error {
		if name == src {
			return boom
		}
		return os.Remove(name)
	}

	err := renameNoReplace(src, dst)
	assert.ErrorIs(t, err, boom)

	_, err = os.Stat(dst)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(src)
	assert.NoError(t, err)
}
