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

// ProcessCanAccess emulates the path resolution and permission checking
// performed by the Linux kernel, as described in path_resolution(7), for
// an arbitrary pid rather than only the calling process. CanAccess is
// built on top of it using the caller's own pid.

package perms

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"golang.org/x/sys/unix"
)

// maxSymlinkHops bounds how many links a single chain may be resolved
// through, the same limit the kernel itself enforces during path walks.
const maxSymlinkHops = 40

// actor is the subset of a process's credentials that a permission walk
// needs: its root/cwd (for resolving relative vs. absolute paths) and the
// uid/gid/groups/capabilities that decide which of a file's mode bits
// apply to it.
type actor struct {
	rootDir string
	workDir string
	uid     int
	gid     int
	groups  []int
	effCaps uint64
}

func inGroups(groups []int, gid int) bool {
	for _, g := range groups {
		if g == gid {
			return true
		}
	}
	return false
}

// bucketBits extracts the 3-bit rwx field belonging to one who-bucket out
// of a POSIX permission word (shift 6 for owner, 3 for group, 0 for other).
func bucketBits(perm os.FileMode, shift uint) Mode {
	return Mode((perm >> shift) & 07)
}

// capabilityGrants reports whether either of the two DAC-bypassing
// capabilities this package recognizes (CAP_DAC_OVERRIDE,
// CAP_DAC_READ_SEARCH) grants want on fi regardless of its owner/group/
// other bits.
func capabilityGrants(effCaps uint64, fi os.FileInfo, want Mode) bool {
	perm := fi.Mode().Perm()

	if effCaps&(1<<unix.CAP_DAC_OVERRIDE) != 0 {
		switch {
		case fi.IsDir():
			return true
		case want&Exec == 0:
			return true
		case perm&0111 != 0:
			return true
		}
	}

	if effCaps&(1<<unix.CAP_DAC_READ_SEARCH) != 0 {
		switch {
		case fi.IsDir() && want&Write == 0:
			return true
		case !fi.IsDir() && want == Read:
			return true
		}
	}

	return false
}

// checkPerm reports whether act has want access to the non-symlink entry
// at path: owner bits if act owns the file, group bits if act's primary or
// supplementary group matches, other bits unconditionally, and finally the
// two capability bypasses — the same precedence order and each-bucket-
// independently-tested shape the kernel uses.
func checkPerm(act *actor, path string, want Mode) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("perms: %s: no syscall.Stat_t", path)
	}

	perm := fi.Mode().Perm()
	buckets := [3]struct {
		applies bool
		shift   uint
	}{
		{int(st.Uid) == act.uid, 6},
		{int(st.Gid) == act.gid || inGroups(act.groups, int(st.Gid)), 3},
		{true, 0},
	}
	for _, b := range buckets {
		if b.applies && bucketBits(perm, b.shift)&want == want {
			return true, nil
		}
	}

	return capabilityGrants(act.effCaps, fi, want), nil
}

// parentWithin returns dir's parent, clamped to root: a ".." that would
// otherwise escape root resolves to root itself.
func parentWithin(dir, root string) string {
	parent := filepath.Dir(dir)
	if !strings.HasPrefix(parent, root) {
		return root
	}
	return parent
}

// followSymlinks resolves cursor through its full symlink chain (absolute
// targets against root, relative ones against the link's own directory),
// counting hops against the caller's running total so several short chains
// along one path still trip the same overall limit a single long one would.
func followSymlinks(cursor, root string, hops int) (string, int, error) {
	for {
		if hops >= maxSymlinkHops {
			return "", hops, syscall.ELOOP
		}
		target, err := os.Readlink(cursor)
		if err != nil {
			return "", hops, syscall.ENOENT
		}
		if filepath.IsAbs(target) {
			cursor = filepath.Join(root, target)
		} else {
			cursor = filepath.Join(filepath.Dir(cursor), target)
		}
		fi, err := os.Lstat(cursor)
		if err != nil {
			return "", hops, syscall.ENOENT
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			return cursor, hops, nil
		}
		hops++
	}
}

func symlinkErrKind(err error) corerr.Kind {
	if err == syscall.ELOOP {
		return corerr.LinkLoop
	}
	return corerr.NotFound
}

// walkPath resolves path component by component starting from act's root
// (absolute paths) or cwd (relative paths), following symlinks and
// checking exec permission on every intermediate directory and mode
// permission on the final component, exactly as the kernel's own path
// walk does for open(2)/access(2).
func walkPath(act *actor, path string, mode Mode) error {
	if path == "" {
		return corerr.New("perms.ProcessCanAccess", corerr.NotFound, path, syscall.ENOENT)
	}
	if len(path)+1 > unix.PathMax {
		return corerr.New("perms.ProcessCanAccess", corerr.NameTooLong, path, syscall.ENAMETOOLONG)
	}

	cursor := act.workDir
	if filepath.IsAbs(path) {
		cursor = act.rootDir
	}

	parts := strings.Split(path, "/")
	hops := 0

	for i, part := range parts {
		last := i == len(parts)-1

		switch part {
		case "", ".":
			continue
		case "..":
			cursor = parentWithin(cursor, act.rootDir)
		default:
			cursor = filepath.Join(cursor, part)
		}

		fi, err := os.Lstat(cursor)
		if err != nil {
			return corerr.New("perms.ProcessCanAccess", corerr.NotFound, path, syscall.ENOENT)
		}

		if fi.Mode()&os.ModeSymlink != 0 && cursor != act.rootDir {
			resolved, n, err := followSymlinks(cursor, act.rootDir, hops)
			if err != nil {
				return corerr.New("perms.ProcessCanAccess", symlinkErrKind(err), path, err)
			}
			hops = n
			cursor = resolved
			if fi, err = os.Stat(cursor); err != nil {
				return corerr.New("perms.ProcessCanAccess", corerr.NotFound, path, syscall.ENOENT)
			}
		}

		if !last && !fi.IsDir() {
			return corerr.New("perms.ProcessCanAccess", corerr.NotDirectory, path, syscall.ENOTDIR)
		}

		want := Exec
		if last {
			want = mode
		}
		ok, err := checkPerm(act, cursor, want)
		if err != nil || !ok {
			return corerr.New("perms.ProcessCanAccess", corerr.PermissionDenied, path, syscall.EACCES)
		}
	}

	return nil
}

// readStatusFields scans /proc/[pid]/status once, collecting the raw value
// portion of each line whose key is in want.
func readStatusFields(pid int, want ...string) (map[string]string, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string, len(want))
	s := bufio.NewScanner(f)
	for s.Scan() {
		key, val, ok := strings.Cut(s.Text(), ":")
		if !ok {
			continue
		}
		for _, w := range want {
			if key == w {
				out[w] = val
			}
		}
	}
	return out, s.Err()
}

// nthField splits line on whitespace and parses its n'th field as an int;
// /proc status lines like "Uid:\t1000\t1000\t1000\t1000" use this layout
// for real/effective/saved/filesystem ids.
func nthField(line string, n int) (int, error) {
	fields := strings.Fields(line)
	if len(fields) <= n {
		return 0, fmt.Errorf("status line %q: missing field %d", line, n)
	}
	return strconv.Atoi(fields[n])
}

// actorForPid reads the four /proc/[pid]/status fields a permission walk
// needs: effective uid, effective gid, supplementary groups, and the
// effective capability mask.
func actorForPid(pid int) (*actor, error) {
	fields, err := readStatusFields(pid, "Uid", "Gid", "Groups", "CapEff")
	if err != nil {
		return nil, err
	}

	uid, err := nthField(fields["Uid"], 1)
	if err != nil {
		return nil, fmt.Errorf("perms: pid %d: invalid Uid status: %w", pid, err)
	}
	gid, err := nthField(fields["Gid"], 1)
	if err != nil {
		return nil, fmt.Errorf("perms: pid %d: invalid Gid status: %w", pid, err)
	}

	var groups []int
	for _, g := range strings.Fields(fields["Groups"]) {
		n, err := strconv.Atoi(g)
		if err != nil {
			return nil, fmt.Errorf("perms: pid %d: invalid group %q", pid, g)
		}
		groups = append(groups, n)
	}

	effCaps, err := strconv.ParseUint(strings.TrimSpace(fields["CapEff"]), 16, 64)
	if err != nil {
		return nil, fmt.Errorf("perms: pid %d: invalid CapEff status", pid)
	}

	return &actor{
		rootDir: fmt.Sprintf("/proc/%d/root", pid),
		workDir: fmt.Sprintf("/proc/%d/cwd", pid),
		uid:     uid,
		gid:     gid,
		groups:  groups,
		effCaps: effCaps,
	}, nil
}

// ProcessCanAccess checks whether the process with the given pid can
// access path under mode, resolving "." / ".." / symlinks exactly as the
// kernel's path_resolution(7) does, starting from the process' root
// directory (absolute paths) or current working directory (relative
// paths).
func ProcessCanAccess(pid int, path string, mode Mode) error {
	act, err := actorForPid(pid)
	if err != nil {
		return corerr.New("perms.ProcessCanAccess", corerr.FromOSError(err), path, err)
	}
	return walkPath(act, path, mode)
}
