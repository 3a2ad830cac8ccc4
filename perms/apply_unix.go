//go:build !windows

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

package perms

import (
	"os"
	"strconv"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
)

// whoShift maps {User, Group, Other} onto the bit position of their 3-bit
// field within a POSIX mode word (rwxrwxrwx).
var whoShift = [numWho]uint{6, 3, 0}

// FromPath returns a new, EXACT-typed permission set cloned from the
// current owner/group/other mode bits of an existing file, for the common
// "clone these permissions onto a new file" pattern.
func FromPath(path string) (*Set, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, corerr.New("perms.FromPath", corerr.FromOSError(err), path, err)
	}
	mode := Mode(fi.Mode().Perm())
	s := Create()
	for w := Who(0); w < numWho; w++ {
		bits := (mode >> whoShift[w]) & 0b111
		s.SetMode(w, bits, Exact)
	}
	return s, nil
}

// Apply computes the new mode for path and writes it back, changing
// ownership too if a named user/group is set. If the filesystem underlying
// path supports POSIX ACLs and perms carries a named identity, a matching
// ACL entry is also written (see acl_unix.go).
func (s *Set) Apply(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}

	isDir := fi.IsDir()
	current := Mode(fi.Mode().Perm())
	newMode := computeMode(s, current, whoShift, isDir)

	if err := os.Chmod(path, os.FileMode(newMode)); err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}

	if err := s.applyOwnership(path); err != nil {
		return err
	}

	if aclSupported(path) && (s.user.set || s.group.set) {
		if err := s.applyACL(path); err != nil {
			return err
		}
	}

	return nil
}

// ApplyToOpenFile behaves like Apply, but operates on an already-open
// descriptor (so the path need not still exist/resolve the same way).
func (s *Set) ApplyToOpenFile(f *os.File) error {
	fi, err := f.Stat()
	if err != nil {
		return corerr.New("perms.ApplyToOpenFile", corerr.FromOSError(err), f.Name(), err)
	}

	isDir := fi.IsDir()
	current := Mode(fi.Mode().Perm())
	newMode := computeMode(s, current, whoShift, isDir)

	if err := f.Chmod(os.FileMode(newMode)); err != nil {
		return corerr.New("perms.ApplyToOpenFile", corerr.FromOSError(err), f.Name(), err)
	}

	if s.user.set || s.group.set {
		uid, gid := -1, -1
		if s.user.set {
			if v, err := strconv.Atoi(s.user.id); err == nil {
				uid = v
			}
		}
		if s.group.set {
			if v, err := strconv.Atoi(s.group.id); err == nil {
				gid = v
			}
		}
		if err := f.Chown(uid, gid); err != nil {
			return corerr.New("perms.ApplyToOpenFile", corerr.FromOSError(err), f.Name(), err)
		}
	}

	return nil
}

func (s *Set) applyOwnership(path string) error {
	if !s.user.set && !s.group.set {
		return nil
	}
	if !fsSupportsOwnership(path) {
		return corerr.New("perms.Apply", corerr.NotSupported, path, nil)
	}
	uid, gid := -1, -1
	if s.user.set {
		if v, err := strconv.Atoi(s.user.id); err == nil {
			uid = v
		}
	}
	if s.group.set {
		if v, err := strconv.Atoi(s.group.id); err == nil {
			gid = v
		}
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}
	return nil
}

// CanAccess reports whether the calling process has all accesses in mask
// for path, or (mask == 0) simply that path exists. It walks the path the
// same way the Linux kernel does (see ProcessCanAccess), evaluated for the
// calling process.
func CanAccess(path string, mask Mode) error {
	if mask == 0 {
		if _, err := os.Stat(path); err != nil {
			return corerr.New("perms.CanAccess", corerr.FromOSError(err), path, err)
		}
		return nil
	}
	return ProcessCanAccess(os.Getpid(), path, mask)
}
