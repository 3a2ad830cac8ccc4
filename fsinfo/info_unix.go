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

package fsinfo

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
)

// Get returns an Info snapshot for path. FollowSymlinks resolves a trailing
// symlink before stat'ing; otherwise Lstat semantics apply. BasicOnly skips
// the syscall.Stat_t decode, which matters when fswalk calls this once per
// entry of a large tree.
func Get(path string, flags Flags) (*Info, error) {
	var (
		fi  os.FileInfo
		err error
	)
	if flags&FollowSymlinks != 0 {
		fi, err = os.Stat(path)
	} else {
		fi, err = os.Lstat(path)
	}
	if err != nil {
		return nil, corerr.New("fsinfo.Get", corerr.FromOSError(err), path, err)
	}

	info := &Info{
		Name:      fi.Name(),
		Size:      fi.Size(),
		Mode:      fi.Mode(),
		ModTime:   fi.ModTime(),
		IsDir:     fi.IsDir(),
		IsSymlink: fi.Mode()&os.ModeSymlink != 0,
	}

	if flags&BasicOnly != 0 {
		return info, nil
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		info.Extended = true
		info.Uid = st.Uid
		info.Gid = st.Gid
		info.Dev = uint64(st.Dev)
		info.Ino = st.Ino
	}

	return info, nil
}

// SameDevice reports whether a and b live on the same filesystem device:
// stat both paths and compare syscall.Stat_t.Dev rather than parsing
// mountinfo.
func SameDevice(a, b string) (bool, error) {
	var sa, sb syscall.Stat_t
	if err := syscall.Stat(a, &sa); err != nil {
		return false, corerr.New("fsinfo.SameDevice", corerr.FromOSError(err), a, err)
	}
	if err := syscall.Stat(b, &sb); err != nil {
		return false, corerr.New("fsinfo.SameDevice", corerr.FromOSError(err), b, err)
	}
	return sa.Dev == sb.Dev, nil
}

// IsMountPoint quickly checks whether path is a mount point by comparing
// its device id against its parent's, avoiding a full mountinfo parse.
// Bind mounts onto the same device are not detected by this shortcut.
func IsMountPoint(path string) (bool, error) {
	if path == "/" {
		return true, nil
	}
	same, err := SameDevice(path, filepath.Join(path, ".."))
	if err != nil {
		return false, err
	}
	return !same, nil
}
