//go:build !windows

package fsinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetBasicVsExtended(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("hello"), 0644))

	basic, err := Get(f, BasicOnly)
	require.NoError(t, err)
	require.False(t, basic.Extended)
	require.Equal(t, int64(5), basic.Size)

	full, err := Get(f, 0)
	require.NoError(t, err)
	require.True(t, full.Extended)
	require.NotZero(t, full.Ino)
}

func TestGetFollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	unresolved, err := Get(link, BasicOnly)
	require.NoError(t, err)
	require.True(t, unresolved.IsSymlink)

	resolved, err := Get(link, BasicOnly|FollowSymlinks)
	require.NoError(t, err)
	require.False(t, resolved.IsSymlink)
}

func TestSameDevice(t *testing.T) {
	dir := t.TempDir()
	same, err := SameDevice(dir, dir)
	require.NoError(t, err)
	require.True(t, same)
}
