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

package corerr

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// Error is the error type returned by every fallible public operation in
// this module.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "perms.Apply"
	Path string // path involved, if any
	Err  error  // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Op, e.Path, e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err's Kind matches kind, unwrapping *Error values.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// New builds an *Error tagged with kind for the given operation and path.
func New(op string, kind Kind, path string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Path: path, Err: cause}
}

// Wrap annotates cause with an operation name and message, preserving the
// ability to recover the original error via errors.Unwrap/errors.As. Mirrors
// the github.com/pkg/errors.Wrap idiom used for non-taxonomy errors raised
// internally.
func Wrap(cause error, op string) error {
	if cause == nil {
		return nil
	}
	return pkgerrors.Wrap(cause, op)
}

// FromErrno translates a syscall errno (as surfaced by golang.org/x/sys/unix
// or the standard syscall package) into a Kind.
func FromErrno(errno syscall.Errno) Kind {
	switch errno {
	case syscall.ENOENT:
		return NotFound
	case syscall.EEXIST:
		return AlreadyExists
	case syscall.EACCES, syscall.EPERM:
		return PermissionDenied
	case syscall.EISDIR:
		return IsDirectory
	case syscall.ENOTDIR:
		return NotDirectory
	case syscall.ENOTEMPTY:
		return DirNotEmpty
	case syscall.ELOOP:
		return LinkLoop
	case syscall.ENAMETOOLONG:
		return NameTooLong
	case syscall.EIO:
		return IOError
	case syscall.EDQUOT:
		return Quota
	case syscall.EFBIG:
		return FileTooBig
	case syscall.EMFILE, syscall.ENFILE:
		return TooManyFiles
	case syscall.EMLINK:
		return TooManyLinks
	case syscall.EROFS:
		return ReadOnly
	case syscall.ENOTSUP, syscall.ENOSYS:
		return NotSupported
	case syscall.ESPIPE:
		return Seek
	case syscall.EXDEV:
		return NotSameDevice
	case syscall.EINVAL:
		return Invalid
	default:
		return Generic
	}
}

// FromOSError translates an error produced by the os package (which wraps
// syscall errnos inside *os.PathError / *os.LinkError / *os.SyscallError)
// into a Kind, falling back to Generic if no errno can be recovered.
func FromOSError(err error) Kind {
	if err == nil {
		return Generic
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return FromErrno(errno)
	}
	if os.IsNotExist(err) {
		return NotFound
	}
	if os.IsExist(err) {
		return AlreadyExists
	}
	if os.IsPermission(err) {
		return PermissionDenied
	}
	return Generic
}
