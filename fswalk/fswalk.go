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

package fswalk

import (
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/karrick/godirwalk"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nestybox/sysbox-libs/corefs/corecfg"
	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"github.com/nestybox/sysbox-libs/corefs/fsinfo"
	"github.com/nestybox/sysbox-libs/corefs/pathnorm"
)

// walker carries the two seen-sets and configuration for a single Walk
// invocation, accumulating visited state around godirwalk.Walk the same
// way a uid/gid set accumulates across a tree traversal.
type walker struct {
	root       string
	pattern    string
	flags      Flags
	callback   Callback
	user       any
	stopped    bool
	abortErr   error
	traversed  mapset.Set[string] // symlink targets already traversed
	visitedDir mapset.Set[string] // directories currently being descended
}

// Walk enumerates root: normalized (absolute, fully resolved) first, then
// recursively traversed with pattern matching, jail enforcement, and
// symlink-loop detection.
func Walk(root, pattern string, flags Flags, callback Callback, user any) error {
	normRoot, err := pathnorm.Normalize(root, pathnorm.Absolute|pathnorm.FollowSymlinks, pathnorm.Native)
	if err != nil {
		return err
	}

	w := &walker{
		root:       normRoot,
		pattern:    pattern,
		flags:      flags,
		callback:   callback,
		user:       user,
		traversed:  mapset.NewSet[string](),
		visitedDir: mapset.NewSet[string](),
	}

	err = godirwalk.Walk(normRoot, &godirwalk.Options{
		Unsorted:             true,
		FollowSymbolicLinks:  flags&FollowSymlink != 0,
		Callback:             w.visit,
		PostChildrenCallback: w.postChildren,
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			w.abortErr = corerr.New("fswalk.Walk", corerr.FromOSError(err), path, err)
			return godirwalk.Halt
		},
	})
	if w.abortErr != nil {
		return w.abortErr
	}
	if err != nil {
		return corerr.New("fswalk.Walk", corerr.FromOSError(err), normRoot, err)
	}
	return nil
}

// WalkDefault is Walk with FullInfo applied or withheld according to the
// package-wide default (corecfg.Defaults().WalkFullInfoDefault), for
// callers with no tuning need of their own.
func WalkDefault(root, pattern string, flags Flags, callback Callback, user any) error {
	if corecfg.Defaults().WalkFullInfoDefault {
		flags |= FullInfo
	}
	return Walk(root, pattern, flags, callback, user)
}

func (w *walker) visit(path string, de *godirwalk.Dirent) error {
	if w.stopped {
		return godirwalk.SkipThis
	}

	// The root itself is not reported and is always enumerated; Recurse
	// governs only whether its subdirectories are descended.
	if path == w.root {
		return nil
	}

	name := filepath.Base(path)
	if name == "." || name == ".." {
		return nil
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}

	// Jail enforcement, against the entry's normalized (resolved) path.
	if w.flags&(JailFail|JailSkip) != 0 {
		resolved, normErr := pathnorm.Normalize(path, pathnorm.Absolute|pathnorm.FollowSymlinks, pathnorm.Native)
		if normErr != nil {
			resolved = path
		}
		if !strings.HasPrefix(resolved, w.root) {
			if w.flags&JailFail != 0 {
				w.stopped = true
				w.abortErr = corerr.New("fswalk.Walk", corerr.Invalid, path, nil)
				return godirwalk.Halt
			}
			return godirwalk.SkipThis
		}
	}

	isSymlink := de.IsSymlink()
	followSymlink := w.flags&FollowSymlink != 0
	isDir := de.IsDir()

	// godirwalk only resolves a symlink dirent far enough to decide whether
	// to recurse into it; the type it hands the callback is still the
	// symlink's own. Stat through it ourselves so a followed symlink-to-dir
	// is treated as a directory for loop-tracking and type filtering.
	if isSymlink && followSymlink {
		if target, statErr := os.Stat(path); statErr == nil {
			isDir = target.IsDir()
		}
	}

	// Symlink-loop tracking happens only for directories we are about to
	// descend into (post-resolution type).
	if isDir {
		if w.visitedDir.Contains(path) {
			if w.flags&AsSet != 0 {
				return godirwalk.SkipThis
			}
			if !w.emit(path, rel, name, nil, corerr.New("fswalk.Walk", corerr.LinkLoop, path, nil), NotFiltered) {
				w.stopped = true
			}
			return godirwalk.SkipThis
		}
		w.visitedDir.Add(path)
	}

	if isSymlink && followSymlink {
		target, err := os.Readlink(path)
		if err == nil {
			if w.traversed.Contains(target) {
				if !w.emit(path, rel, name, nil, corerr.New("fswalk.Walk", corerr.LinkLoop, path, nil), NotFiltered) {
					w.stopped = true
				}
				return godirwalk.SkipThis
			}
			w.traversed.Add(target)
		}
	}

	isPipe := de.ModeType()&os.ModeNamedPipe != 0
	filterReason := w.filter(name, isDir, isSymlink, followSymlink, isPipe)
	if filterReason == NotFiltered {
		infoFlags := fsinfo.BasicOnly
		if w.flags&FullInfo != 0 {
			infoFlags = 0
		}
		if isSymlink && followSymlink {
			infoFlags |= fsinfo.FollowSymlinks
		}
		info, infoErr := fsinfo.Get(path, infoFlags)

		if !w.callback(Entry{Path: path, Rel: rel, Name: name, Info: info, Err: infoErr, FilterOut: NotFiltered}, w.user) {
			w.stopped = true
			return godirwalk.SkipThis
		}
	}

	if isDir {
		if w.flags&Recurse == 0 {
			return godirwalk.SkipThis
		}
		if isSymlink && !followSymlink {
			return godirwalk.SkipThis
		}
	}

	return nil
}

// emit reports an entry to the callback directly, bypassing the filter and
// fsinfo.Get steps — used for loop-detection entries whose path is already
// known to be undesirable before either step would run.
func (w *walker) emit(path, rel, name string, info *fsinfo.Info, err error, filterReason FilterReason) bool {
	return w.callback(Entry{Path: path, Rel: rel, Name: name, Info: info, Err: err, FilterOut: filterReason}, w.user)
}

// postChildren is invoked by godirwalk after a directory's children have
// all been visited; wired via the PostChildrenCallback option so
// visitedDir is cleared on leaving a directory.
func (w *walker) postChildren(path string, de *godirwalk.Dirent) error {
	if w.flags&AsSet == 0 {
		w.visitedDir.Remove(path)
	}
	return nil
}

func (w *walker) filter(name string, isDir, isSymlink, followSymlink, isPipe bool) FilterReason {
	if w.flags&IncludeHidden == 0 && strings.HasPrefix(name, ".") {
		return FilteredHidden
	}

	// isDir already reflects the followed-symlink target's type (see
	// visit), so a followed symlink-to-dir lands in the Dir case here, not
	// the Symlink one.
	wantType := false
	switch {
	case isDir:
		wantType = w.flags&Dir != 0
	case isSymlink && !followSymlink:
		wantType = w.flags&Symlink != 0
	case isPipe:
		wantType = w.flags&Pipe != 0
	default:
		wantType = w.flags&File != 0
	}
	if !wantType {
		return FilteredByType
	}

	if w.pattern != "" {
		matchName := name
		pattern := w.pattern
		if w.flags&CaseInsensitive != 0 {
			matchName = strings.ToLower(matchName)
			pattern = strings.ToLower(pattern)
		}
		ok, err := doublestar.Match(pattern, matchName)
		if err != nil || !ok {
			return FilteredByPattern
		}
	}

	return NotFiltered
}
