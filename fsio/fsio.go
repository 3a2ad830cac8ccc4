//
// Copyright 2020 - 2022 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package fsio

import (
	"io"
	"os"

	"github.com/nestybox/sysbox-libs/corefs/corecfg"
	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"github.com/nestybox/sysbox-libs/corefs/perms"
	"github.com/spf13/afero"
)

// File is a buffered wrapper around an afero.File, preserving an exact
// read/write/seek/sync contract across buffered and unbuffered modes.
type File struct {
	raw     afero.File
	bufSize int

	readBuf    []byte
	writeBuf   []byte
	readOffset int64
}

// Open opens path on fs with the given flags and buffer size (0 means
// unbuffered: every Read/Write goes straight to the OS). If perm is
// non-nil and fs hands back an *os.File, perm is applied to the opened
// file via the permissions core, whether or not the file was just created.
func Open(fs afero.Fs, path string, flags OpenFlags, perm *perms.Set, bufSize int) (*File, error) {
	osFlags := 0
	switch {
	case flags&Read != 0 && flags&Write != 0:
		osFlags |= os.O_RDWR
	case flags&Write != 0:
		osFlags |= os.O_WRONLY
	default:
		osFlags |= os.O_RDONLY
	}
	if flags&Append != 0 {
		osFlags |= os.O_APPEND
	}
	if flags&Truncate != 0 {
		osFlags |= os.O_TRUNC
	}
	if flags&NoCreate == 0 {
		osFlags |= os.O_CREATE
	}

	mode := os.FileMode(0644)
	raw, err := fs.OpenFile(path, osFlags, mode)
	if err != nil {
		return nil, corerr.New("fsio.Open", corerr.FromOSError(err), path, err)
	}

	if perm != nil {
		if osFile, ok := raw.(*os.File); ok {
			if err := perm.ApplyToOpenFile(osFile); err != nil {
				raw.Close()
				return nil, err
			}
		}
	}

	if bufSize < 0 {
		bufSize = 0
	}

	return &File{raw: raw, bufSize: bufSize}, nil
}

// OpenDefault opens path with the package-wide default buffer size
// (corecfg.Defaults().FileBufferSize), for callers with no tuning need
// of their own.
func OpenDefault(fs afero.Fs, path string, flags OpenFlags, perm *perms.Set) (*File, error) {
	return Open(fs, path, flags, perm, corecfg.Defaults().FileBufferSize)
}

// Read implements the buffered read contract.
func (f *File) Read(buf []byte, flags RWFlags) (int, error) {
	n := len(buf)
	if n == 0 {
		return 0, nil
	}

	if f.bufSize > 0 && len(f.writeBuf) > 0 {
		if err := f.flushWriteBuffer(); err != nil {
			return 0, err
		}
	}

	delivered := 0
	for delivered < n {
		want := n - delivered
		if len(f.readBuf) >= want {
			copy(buf[delivered:], f.readBuf[:want])
			f.readBuf = f.readBuf[want:]
			f.readOffset -= int64(want)
			delivered += want
			continue
		}

		need := f.bufSize + want - len(f.readBuf)
		if need < want {
			need = want
		}
		tail := make([]byte, need)
		got, err := f.raw.Read(tail)
		eof := err == io.EOF
		if err != nil && !eof {
			return delivered, corerr.New("fsio.Read", corerr.FromOSError(err), f.raw.Name(), err)
		}
		f.readBuf = append(f.readBuf, tail[:got]...)

		give := len(f.readBuf)
		if give > want {
			give = want
		}
		copy(buf[delivered:delivered+give], f.readBuf[:give])
		f.readBuf = f.readBuf[give:]
		f.readOffset += int64(got - give)
		delivered += give

		if eof {
			break
		}
		if flags&FullBuf == 0 {
			break
		}
		if got == 0 {
			break
		}
	}

	if delivered == 0 && n > 0 {
		return 0, io.EOF
	}
	return delivered, nil
}

// Write implements the buffered write contract.
func (f *File) Write(buf []byte, flags RWFlags) (int, error) {
	if f.bufSize == 0 {
		return f.writeDirect(buf, flags)
	}

	if f.readOffset != 0 {
		if _, err := f.raw.Seek(-f.readOffset, io.SeekCurrent); err != nil {
			return 0, corerr.New("fsio.Write", corerr.FromOSError(err), f.raw.Name(), err)
		}
	}
	f.readBuf = nil
	f.readOffset = 0

	f.writeBuf = append(f.writeBuf, buf...)
	if len(f.writeBuf) >= f.bufSize {
		if err := f.flushWriteBuffer(); err != nil {
			return 0, err
		}
	}
	return len(buf), nil
}

func (f *File) writeDirect(buf []byte, flags RWFlags) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := f.raw.Write(buf[written:])
		written += n
		if err != nil {
			return written, corerr.New("fsio.Write", corerr.FromOSError(err), f.raw.Name(), err)
		}
		if flags&FullBuf == 0 {
			break
		}
		if n == 0 {
			break
		}
	}
	return written, nil
}

// Seek implements the buffered seek contract.
func (f *File) Seek(offset int64, whence Whence) (int64, error) {
	if len(f.writeBuf) > 0 {
		if err := f.flushWriteBuffer(); err != nil {
			return 0, err
		}
	}

	if whence == SeekCur && offset > 0 && offset <= int64(len(f.readBuf)) {
		f.readBuf = f.readBuf[offset:]
		f.readOffset -= offset
		osPos, err := f.raw.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, corerr.New("fsio.Seek", corerr.FromOSError(err), f.raw.Name(), err)
		}
		return osPos - f.readOffset, nil
	}

	f.readBuf = nil
	adj := offset
	if whence == SeekCur {
		adj = offset - f.readOffset
	}
	f.readOffset = 0

	osPos, err := f.raw.Seek(adj, int(whence))
	if err != nil {
		return 0, corerr.New("fsio.Seek", corerr.Seek, f.raw.Name(), err)
	}
	return osPos, nil
}

// Sync implements the buffered sync contract.
func (f *File) Sync(flags SyncFlags) error {
	if flags&SyncBuffer != 0 && len(f.writeBuf) > 0 {
		if err := f.flushWriteBuffer(); err != nil {
			return err
		}
	}
	if flags&SyncOS != 0 {
		if err := f.raw.Sync(); err != nil {
			return corerr.New("fsio.Sync", corerr.FromOSError(err), f.raw.Name(), err)
		}
	}
	return nil
}

// flushWriteBuffer writes the whole buffered payload to the OS in FULLBUF
// mode. On a short write it pushes the unwritten tail back to the head of
// a freshly allocated write buffer and reports an I/O error rather than
// silently dropping buffered bytes.
func (f *File) flushWriteBuffer() error {
	payload := f.writeBuf
	f.writeBuf = nil

	written := 0
	for written < len(payload) {
		n, err := f.raw.Write(payload[written:])
		written += n
		if err != nil {
			f.writeBuf = append([]byte(nil), payload[written:]...)
			return corerr.New("fsio.flushWriteBuffer", corerr.IOError, f.raw.Name(), err)
		}
		if n == 0 {
			break
		}
	}
	if written < len(payload) {
		f.writeBuf = append([]byte(nil), payload[written:]...)
		return corerr.New("fsio.flushWriteBuffer", corerr.IOError, f.raw.Name(), nil)
	}
	return nil
}

// Stat is a convenience wrapper over the underlying file's Stat.
func (f *File) Stat() (os.FileInfo, error) {
	fi, err := f.raw.Stat()
	if err != nil {
		return nil, corerr.New("fsio.Stat", corerr.FromOSError(err), f.raw.Name(), err)
	}
	return fi, nil
}

// Close flushes any buffered writes and closes the underlying file.
func (f *File) Close() error {
	if len(f.writeBuf) > 0 {
		if err := f.flushWriteBuffer(); err != nil {
			f.raw.Close()
			return err
		}
	}
	if err := f.raw.Close(); err != nil {
		return corerr.New("fsio.Close", corerr.FromOSError(err), f.raw.Name(), err)
	}
	return nil
}
