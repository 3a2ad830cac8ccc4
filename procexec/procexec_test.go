package procexec

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"github.com/stretchr/testify/require"
)

func TestPopenReadStdout(t *testing.T) {
	p, err := Popen("echo hello")
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := p.Read(FdStdout, buf, 2*time.Second)
	require.NoError(t, err)
	require.Greater(t, n, int64(0))
	require.Contains(t, string(buf[:n]), "hello")

	res, err := CloseEx(p, false, false, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
}

func TestPopenWriteStdinEchoedBack(t *testing.T) {
	p, err := Popen("cat")
	require.NoError(t, err)

	n, err := p.Write([]byte("ping\n"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 64)
	nr, err := p.Read(FdStdout, buf, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "ping\n", string(buf[:nr]))

	res, err := CloseEx(p, false, false, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
}

func TestCloseExCollectsStdoutAndStderr(t *testing.T) {
	p, err := Popen("sh -c 'echo out; echo err 1>&2'")
	require.NoError(t, err)

	res, err := CloseEx(p, true, true, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, string(res.Stdout), "out")
	require.Contains(t, string(res.Stderr), "err")
}

func TestReadTimesOutWithoutData(t *testing.T) {
	p, err := Popen("sleep 1")
	require.NoError(t, err)
	defer CloseEx(p, false, false, 2*time.Second)

	buf := make([]byte, 16)
	n, err := p.Read(FdStdout, buf, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func TestCommandNotFoundMapsToExitCode127(t *testing.T) {
	p, err := Popen("this-command-does-not-exist-xyz")
	require.NoError(t, err)

	res, err := CloseEx(p, false, false, 2*time.Second)
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.CommandNotFound))
	require.Equal(t, 127, res.ExitCode)
}

func TestNonZeroExitCodeIsNotAnError(t *testing.T) {
	p, err := Popen("sh -c 'exit 3'")
	require.NoError(t, err)

	res, err := CloseEx(p, false, false, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
}

func TestCloseExKillsOnTimeout(t *testing.T) {
	p, err := Popen("sleep 30")
	require.NoError(t, err)

	start := time.Now()
	res, err := CloseEx(p, false, false, 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.KillSignal))
	require.Equal(t, -2, res.ExitCode)
	require.Less(t, elapsed, 5*time.Second)
}

func TestPermissionDeniedOnNonExecutableFile(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "noexec.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho hi\n"), 0o644))

	p, err := Popen(script)
	require.NoError(t, err)

	res, err := CloseEx(p, false, false, 2*time.Second)
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.PermissionDenied))
	require.Equal(t, 126, res.ExitCode)
}

func TestCloseExDefaultUsesPackageKillGrace(t *testing.T) {
	p, err := Popen("echo hi")
	require.NoError(t, err)

	res, err := CloseExDefault(p, false, false)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
}

func TestReadDefaultUsesPackagePollInterval(t *testing.T) {
	p, err := Popen("echo hi")
	require.NoError(t, err)
	defer CloseEx(p, false, false, 2*time.Second)

	buf := make([]byte, 64)
	n, err := ReadDefault(p, FdStdout, buf)
	require.NoError(t, err)
	require.Greater(t, n, int64(0))
}

func TestCloseFdIsIdempotent(t *testing.T) {
	p, err := Popen("echo hi")
	require.NoError(t, err)
	require.NoError(t, p.CloseFd(FdStdin))
	require.NoError(t, p.CloseFd(FdStdin))

	_, err = CloseEx(p, false, false, 2*time.Second)
	require.NoError(t, err)
}
