package corerr

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func osOpenMissing() (*os.File, error) {
	return os.Open("/nonexistent/path/that/should/not/exist")
}

func TestFromErrno(t *testing.T) {
	cases := []struct {
		errno syscall.Errno
		want  Kind
	}{
		{syscall.ENOENT, NotFound},
		{syscall.EEXIST, AlreadyExists},
		{syscall.EACCES, PermissionDenied},
		{syscall.EPERM, PermissionDenied},
		{syscall.ELOOP, LinkLoop},
		{syscall.EXDEV, NotSameDevice},
		{syscall.Errno(0xDEAD), Generic},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FromErrno(c.errno))
	}
}

func TestErrorWrapAndIs(t *testing.T) {
	cause := syscall.ENOENT
	err := New("fsinfo.Info", FromErrno(cause), "/tmp/x", cause)
	require.Error(t, err)
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, AlreadyExists))
	assert.ErrorIs(t, err, cause)
}

func TestFromOSError(t *testing.T) {
	_, err := osOpenMissing()
	require.Error(t, err)
	assert.Equal(t, NotFound, FromOSError(err))
}
