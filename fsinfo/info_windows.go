//go:build windows

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

// Get returns an Info snapshot for path. Windows has no POSIX uid/gid/dev,
// so Extended is set when Win32 attribute data is present, but Uid, Gid,
// Dev and Ino stay zero.
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

	if st, ok := fi.Sys().(*syscall.Win32FileAttributeData); ok {
		_ = st
		info.Extended = true
	}

	return info, nil
}

// SameDevice reports whether a and b live on the same volume, comparing
// volume serial numbers via GetFileInformationByHandle.
func SameDevice(a, b string) (bool, error) {
	sa, err := volumeSerial(a)
	if err != nil {
		return false, corerr.New("fsinfo.SameDevice", corerr.FromOSError(err), a, err)
	}
	sb, err := volumeSerial(b)
	if err != nil {
		return false, corerr.New("fsinfo.SameDevice", corerr.FromOSError(err), b, err)
	}
	return sa == sb, nil
}

func volumeSerial(path string) (uint32, error) {
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	h, err := syscall.CreateFile(p, 0, syscall.FILE_SHARE_READ|syscall.FILE_SHARE_WRITE,
		nil, syscall.OPEN_EXISTING, syscall.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return 0, err
	}
	defer syscall.CloseHandle(h)

	var data syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(h, &data); err != nil {
		return 0, err
	}
	return data.VolumeSerialNumber, nil
}

// IsMountPoint reports whether path is a volume root or reparse mount
// point, comparing its volume serial against its parent's.
func IsMountPoint(path string) (bool, error) {
	clean := filepath.Clean(path)
	if filepath.Dir(clean) == clean {
		return true, nil
	}
	same, err := SameDevice(clean, filepath.Join(clean, ".."))
	if err != nil {
		return false, err
	}
	return !same, nil
}
