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

package perms

import (
	"os"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"golang.org/x/sys/windows"
)

// whoShift is unused on Windows (there is no single mode word); kept only
// so cross-platform callers referencing the Who enum compile unchanged.
var whoShift = [numWho]uint{}

// ownerAlwaysGranted are the rights the owner always retains regardless of
// perms' configuration.
const ownerAlwaysGranted = windows.WRITE_DAC | windows.READ_CONTROL | windows.WRITE_OWNER | windows.DELETE

func modeToAccessMask(m Mode) uint32 {
	var mask uint32
	if m&Read != 0 {
		mask |= windows.GENERIC_READ | windows.FILE_GENERIC_READ
	}
	if m&Write != 0 {
		mask |= windows.GENERIC_WRITE | windows.FILE_GENERIC_WRITE
	}
	if m&Exec != 0 {
		mask |= windows.GENERIC_EXECUTE | windows.FILE_GENERIC_EXECUTE
	}
	return mask
}

// Apply emits a DACL with three explicit access entries (user, group,
// Everyone for "other"). An empty DACL denies all; a nil DACL grants all —
// Apply only ever produces the former shape.
func (s *Set) Apply(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}
	isDir := fi.IsDir()

	entries, err := s.buildExplicitAccess(isDir)
	if err != nil {
		return corerr.New("perms.Apply", corerr.Invalid, path, err)
	}

	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.OWNER_SECURITY_INFORMATION|windows.GROUP_SECURITY_INFORMATION)
	if err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}
	owner, _, err := sd.Owner()
	if err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}

	acl, err := windows.ACLFromEntries(entries, nil)
	if err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}

	if err := windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION, nil, nil, acl, nil); err != nil {
		return corerr.New("perms.Apply", corerr.FromOSError(err), path, err)
	}

	_ = owner // owner is left unchanged unless a named user was resolved above
	if s.user.set {
		if newOwner, err := windows.StringToSid(s.user.id); err == nil {
			_ = windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
				windows.OWNER_SECURITY_INFORMATION, newOwner, nil, nil, nil)
		}
	}
	if s.group.set {
		if newGroup, err := windows.StringToSid(s.group.id); err == nil {
			_ = windows.SetNamedSecurityInfo(path, windows.SE_FILE_OBJECT,
				windows.GROUP_SECURITY_INFORMATION, nil, newGroup, nil, nil)
		}
	}

	return nil
}

// ApplyToOpenFile behaves like Apply but targets an open handle's DACL.
func (s *Set) ApplyToOpenFile(f *os.File) error {
	fi, err := f.Stat()
	if err != nil {
		return corerr.New("perms.ApplyToOpenFile", corerr.FromOSError(err), f.Name(), err)
	}
	entries, err := s.buildExplicitAccess(fi.IsDir())
	if err != nil {
		return corerr.New("perms.ApplyToOpenFile", corerr.Invalid, f.Name(), err)
	}
	acl, err := windows.ACLFromEntries(entries, nil)
	if err != nil {
		return corerr.New("perms.ApplyToOpenFile", corerr.FromOSError(err), f.Name(), err)
	}
	if err := windows.SetSecurityInfo(windows.Handle(f.Fd()), windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION, nil, nil, acl, nil); err != nil {
		return corerr.New("perms.ApplyToOpenFile", corerr.FromOSError(err), f.Name(), err)
	}
	return nil
}

// buildExplicitAccess computes one windows.EXPLICIT_ACCESS entry per
// who-bucket, choosing the directory-override entry over the base entry
// whenever isDir is true and a dir-override is set, exactly as computeMode
// does for POSIX. "Other" is always mapped to the well-known Everyone SID.
func (s *Set) buildExplicitAccess(isDir bool) ([]windows.EXPLICIT_ACCESS, error) {
	var out []windows.EXPLICIT_ACCESS

	pick := func(w Who) (entry, bool) {
		if isDir && s.dir[w].isSet {
			return s.dir[w], true
		}
		if s.base[w].isSet {
			return s.base[w], true
		}
		return entry{}, false
	}

	if e, ok := pick(User); ok && s.user.set {
		sid, err := windows.StringToSid(s.user.id)
		if err != nil {
			return nil, err
		}
		out = append(out, explicitAccess(sid, e, true))
	}
	if e, ok := pick(Group); ok && s.group.set {
		sid, err := windows.StringToSid(s.group.id)
		if err != nil {
			return nil, err
		}
		out = append(out, explicitAccess(sid, e, false))
	}
	if e, ok := pick(Other); ok {
		everyone, err := windows.CreateWellKnownSid(windows.WinWorldSid)
		if err != nil {
			return nil, err
		}
		out = append(out, explicitAccess(everyone, e, false))
	}

	return out, nil
}

func explicitAccess(sid *windows.SID, e entry, isOwner bool) windows.EXPLICIT_ACCESS {
	mask := modeToAccessMask(e.mode)
	if isOwner {
		mask |= ownerAlwaysGranted
	}
	accessMode := windows.GRANT_ACCESS
	trustee := windows.TRUSTEE{
		TrusteeForm:  windows.TRUSTEE_IS_SID,
		TrusteeType:  windows.TRUSTEE_IS_UNKNOWN,
		TrusteeValue: windows.TrusteeValueFromSID(sid),
	}
	return windows.EXPLICIT_ACCESS{
		AccessPermissions: windows.ACCESS_MASK(mask),
		AccessMode:        windows.ACCESS_MODE(accessMode),
		Inheritance:       windows.NO_INHERITANCE,
		Trustee:           trustee,
	}
}

// CanAccess reports whether the calling process has all accesses in mask
// for path, or (mask == 0) simply that path exists.
func CanAccess(path string, mask Mode) error {
	if mask == 0 {
		if _, err := os.Stat(path); err != nil {
			return corerr.New("perms.CanAccess", corerr.FromOSError(err), path, err)
		}
		return nil
	}
	var want uint32
	if mask&Read != 0 {
		want |= windows.GENERIC_READ
	}
	if mask&Write != 0 {
		want |= windows.GENERIC_WRITE
	}
	if mask&Exec != 0 {
		want |= windows.GENERIC_EXECUTE
	}
	handle, err := windows.CreateFile(windows.StringToUTF16Ptr(path), want, windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return corerr.New("perms.CanAccess", corerr.FromOSError(err), path, err)
	}
	windows.CloseHandle(handle)
	return nil
}

// FromPath returns a new, EXACT-typed permission set built from os.Stat's
// view of path: every who-bucket gets Read, plus Exec for a non-directory
// and Write when the file is not read-only. The DACL is not consulted.
func FromPath(path string) (*Set, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, corerr.New("perms.FromPath", corerr.FromOSError(err), path, err)
	}
	s := Create()
	var mode Mode = Read
	if !fi.Mode().IsDir() {
		mode |= Exec
	}
	if fi.Mode()&0200 != 0 {
		mode |= Write
	}
	for w := Who(0); w < numWho; w++ {
		s.SetMode(w, mode, Exact)
	}
	return s, nil
}
