package corecfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.Greater(t, d.FileBufferSize, 0)
	require.NotZero(t, d.ProcessReadPoll)
	require.NotZero(t, d.ProcessKillGrace)
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	tun, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), tun)
}

func TestLoadOverridesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tunables.toml")
	require.NoError(t, os.WriteFile(path, []byte(`file_buffer_size = 4096`), 0o644))

	tun, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4096, tun.FileBufferSize)
	require.Equal(t, Defaults().ProcessReadPoll, tun.ProcessReadPoll)
}
