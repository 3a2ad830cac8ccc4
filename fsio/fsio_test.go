package fsio

import (
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadBuffered(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := Open(fs, "/a.txt", Read|Write|Truncate, nil, 8)
	require.NoError(t, err)

	n, err := f.Write([]byte("hello world"), 0)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.NoError(t, f.Close())

	f2, err := Open(fs, "/a.txt", Read, nil, 8)
	require.NoError(t, err)
	buf := make([]byte, 11)
	got, err := f2.Read(buf, FullBuf)
	require.NoError(t, err)
	require.Equal(t, 11, got)
	require.Equal(t, "hello world", string(buf))
	require.NoError(t, f2.Close())
}

func TestOpenDefaultUsesPackageBufferSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := OpenDefault(fs, "/c.txt", Read|Write|Truncate, nil)
	require.NoError(t, err)
	require.Equal(t, 64*1024, f.bufSize)
	require.NoError(t, f.Close())
}

func TestReadThenSeekWithinBuffer(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b.txt", []byte("0123456789"), 0644))

	f, err := Open(fs, "/b.txt", Read, nil, 4)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := f.Read(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "0123", string(buf))

	pos, err := f.Seek(2, SeekCur)
	require.NoError(t, err)
	require.Equal(t, int64(6), pos)

	buf2 := make([]byte, 2)
	n, err = f.Read(buf2, 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "67", string(buf2))
}

func TestUnbufferedWriteGoesDirect(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := Open(fs, "/c.txt", Read|Write|Truncate, nil, 0)
	require.NoError(t, err)

	n, err := f.Write([]byte("abc"), 0)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, f.Sync(SyncBuffer|SyncOS))
	require.NoError(t, f.Close())

	data, err := afero.ReadFile(fs, "/c.txt")
	require.NoError(t, err)
	require.Equal(t, "abc", string(data))
}

func TestSyncFlushesWriteBuffer(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := Open(fs, "/d.txt", Read|Write|Truncate, nil, 1024)
	require.NoError(t, err)

	_, err = f.Write([]byte("buffered"), 0)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/d.txt")
	require.NoError(t, err)
	require.Empty(t, data) // still sitting in the write buffer

	require.NoError(t, f.Sync(SyncBuffer))
	data, err = afero.ReadFile(fs, "/d.txt")
	require.NoError(t, err)
	require.Equal(t, "buffered", string(data))
}

func TestReadAtEOFReturnsEOF(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/e.txt", []byte("ab"), 0644))

	f, err := Open(fs, "/e.txt", Read, nil, 8)
	require.NoError(t, err)

	buf := make([]byte, 2)
	_, err = f.Read(buf, FullBuf)
	require.NoError(t, err)

	_, err = f.Read(buf, FullBuf)
	require.ErrorIs(t, err, io.EOF)
}
