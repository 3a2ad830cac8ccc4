package fswalk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nestybox/sysbox-libs/corefs/corecfg"
)

func TestWalkFiltersByPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644))

	var names []string
	err := Walk(dir, "*.go", File, func(e Entry, user any) bool {
		names = append(names, e.Name)
		return true
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"a.go"}, names)
}

func TestWalkDefaultHonorsPackageFullInfoDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("x"), 0644))

	var gotInfo *Entry
	err := WalkDefault(dir, "*.go", File, func(e Entry, user any) bool {
		gotInfo = &e
		return true
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, gotInfo)
	require.Equal(t, corecfg.Defaults().WalkFullInfoDefault, gotInfo.Info.Extended)
}

func TestWalkRecursesDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.txt"), []byte("x"), 0644))

	var found []string
	err := Walk(dir, "", File|Dir|Recurse, func(e Entry, user any) bool {
		found = append(found, e.Rel)
		return true
	}, nil)
	require.NoError(t, err)
	require.Contains(t, found, filepath.Join("sub", "c.txt"))
}

func TestWalkFollowsSymlinkedDirectory(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(real, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(real, "c.txt"), []byte("x"), 0644))
	require.NoError(t, os.Symlink(real, filepath.Join(dir, "link")))

	var found []string
	err := Walk(dir, "", File|Dir|Recurse|FollowSymlink, func(e Entry, user any) bool {
		found = append(found, e.Rel)
		return true
	}, nil)
	require.NoError(t, err)
	require.Contains(t, found, filepath.Join("link", "c.txt"))

	found = nil
	err = Walk(dir, "", File|Dir|Recurse, func(e Entry, user any) bool {
		found = append(found, e.Rel)
		return true
	}, nil)
	require.NoError(t, err)
	require.NotContains(t, found, filepath.Join("link", "c.txt"))
}

func TestWalkStopsOnFalseCallback(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644))
	}

	count := 0
	err := Walk(dir, "", File, func(e Entry, user any) bool {
		count++
		return false
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestWalkSkipsHiddenByDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "visible"), []byte("x"), 0644))

	var names []string
	err := Walk(dir, "", File, func(e Entry, user any) bool {
		names = append(names, e.Name)
		return true
	}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"visible"}, names)
}
