//go:build linux

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

import "golang.org/x/sys/unix"

// noOwnershipFilesystems lists the magic numbers (from statfs(2)) of
// filesystems that don't carry POSIX ownership/permission bits at all
// (FAT family, ISO9660). Apply treats ownership changes on these as
// NotSupported rather than surfacing the raw EPERM the kernel returns.
var noOwnershipFilesystems = map[int64]bool{
	unix.MSDOS_SUPER_MAGIC: true,
	unix.ISOFS_SUPER_MAGIC: true,
}

// fsSupportsOwnership reports whether path's filesystem is expected to
// support chown/chmod semantics, adapted from utils.GetFsName's
// statfs-magic lookup table.
func fsSupportsOwnership(path string) bool {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return true // unknown, assume yes; Apply's chmod/chown will surface the real error
	}
	return !noOwnershipFilesystems[int64(fs.Type)]
}
