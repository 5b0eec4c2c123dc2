//go:build !windows

package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostAttributes(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.txt")
	dot := filepath.Join(dir, ".profile")
	ro := filepath.Join(dir, "ro.txt")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(dot, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(ro, []byte("x"), 0o444))
	require.NoError(t, os.Symlink(plain, link))

	attrsOf := func(p string) Attr {
		info, err := os.Lstat(p)
		require.NoError(t, err)
		return HostAttributes(p, info)
	}

	assert.Equal(t, AttrNormal, attrsOf(plain))
	assert.True(t, attrsOf(dot).Has(AttrHidden))
	assert.True(t, attrsOf(ro).Has(AttrReadOnly))
	assert.True(t, attrsOf(link).Has(AttrReparsePoint))
	assert.True(t, attrsOf(dir).Has(AttrDirectory))
	assert.False(t, attrsOf(dir).Has(AttrNormal))
}

func TestWalker_SymlinkedDirectoryCanBePruned(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "target")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "inside.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "linked")))

	files, err := Enumerate(dir, "", true, 0, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "top.txt"),
		filepath.Join(dir, "linked", "inside.txt"),
	}, files)

	files, err = Enumerate(dir, "", true, AttrReparsePoint, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "top.txt")}, files)
}

func TestWalker_SymlinkCycleVisitedOnce(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("x"), 0o644))
	// sub/loop 指回根目录
	require.NoError(t, os.Symlink(dir, filepath.Join(sub, "loop")))

	files, err := Enumerate(dir, "", true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(sub, "b.txt"),
	}, files)
}

func TestWalker_SelfLinkTerminates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(".", filepath.Join(dir, "self")))

	files, err := Enumerate(dir, "", true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt")}, files)
}

func TestWalker_TwoLinksToSameDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(t.TempDir(), "target")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "inside.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "l1")))
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "l2")))

	files, err := Enumerate(dir, "", true, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "l1", "inside.txt")}, files)
}
