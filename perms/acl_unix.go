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

	acl "github.com/joshlf/go-acl"
	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"golang.org/x/sys/unix"
)

// aclSupported probes whether path's filesystem accepts the POSIX ACL
// extended attribute by trying to set it and inspecting the error.
func aclSupported(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	err = unix.Fsetxattr(int(file.Fd()), "system.posix_acl_access", []byte{}, 0)
	return err != unix.ENOTSUP
}

// applyACL writes an ACL_USER/ACL_GROUP entry for perms' named user/group
// onto path, supplementing (not replacing) the chmod/chown Apply already
// performed.
func (s *Set) applyACL(path string) error {
	facl, err := acl.Get(path)
	if err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}

	newACL := acl.ACL{}
	for _, e := range facl {
		if s.user.set && e.Tag == acl.TagUser {
			continue
		}
		if s.group.set && e.Tag == acl.TagGroup {
			continue
		}
		newACL = append(newACL, e)
	}

	if s.user.set {
		if uid, err := strconv.Atoi(s.user.id); err == nil {
			newACL = append(newACL, acl.Entry{
				Tag:       acl.TagUser,
				Qualifier: strconv.Itoa(uid),
				Perms:     modeToACLPerm(userEffectiveMode(s)),
			})
		}
	}
	if s.group.set {
		if gid, err := strconv.Atoi(s.group.id); err == nil {
			newACL = append(newACL, acl.Entry{
				Tag:       acl.TagGroup,
				Qualifier: strconv.Itoa(gid),
				Perms:     modeToACLPerm(groupEffectiveMode(s)),
			})
		}
	}

	if err := acl.Set(path, newACL); err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}
	return nil
}

func userEffectiveMode(s *Set) Mode {
	if s.base[User].isSet {
		return s.base[User].mode
	}
	return Read | Write | Exec
}

func groupEffectiveMode(s *Set) Mode {
	if s.base[Group].isSet {
		return s.base[Group].mode
	}
	return Read
}

func modeToACLPerm(m Mode) os.FileMode {
	var perm os.FileMode
	if m&Read != 0 {
		perm |= 0400
	}
	if m&Write != 0 {
		perm |= 0200
	}
	if m&Exec != 0 {
		perm |= 0100
	}
	return perm
}
