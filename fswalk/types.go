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

// Package fswalk implements a jail-aware, symlink-loop-safe recursive
// directory enumeration grounded on godirwalk's entry-by-entry callback
// model.
package fswalk

import "github.com/nestybox/sysbox-libs/corefs/fsinfo"

// Flags controls what the walk reports and how it traverses.
type Flags int

const (
	File Flags = 1 << iota
	Dir
	Pipe
	Symlink

	// Recurse descends into directories.
	Recurse
	// FollowSymlink resolves symlinked directories and descends into them.
	FollowSymlink
	// IncludeHidden reports dot-files; otherwise they are skipped.
	IncludeHidden
	// CaseInsensitive makes pattern matching case-insensitive.
	CaseInsensitive
	// FullInfo loads ownership/permission info per entry instead of the
	// basic-only fast path.
	FullInfo
	// JailFail aborts the walk if a resolved path escapes root.
	JailFail
	// JailSkip silently skips entries that escape root.
	JailSkip
	// AsSet silently skips directories already visited rather than
	// reporting a LinkLoop error.
	AsSet
)

// FilterReason classifies the outcome of the walker's per-entry filter.
// Entries the filter excludes are not passed to Callback, so every
// reported Entry carries NotFiltered; FilteredByJail is never produced.
type FilterReason int

const (
	NotFiltered FilterReason = iota
	FilteredByType
	FilteredByPattern
	FilteredHidden
	FilteredByJail
)

// Entry is reported once per walked path via Callback.
type Entry struct {
	Path      string // full path
	Rel       string // path relative to root
	Name      string
	Info      *fsinfo.Info
	Err       error // LinkLoop, etc. — entry still reported when non-nil
	FilterOut FilterReason
}

// Callback is invoked once per matched entry. Returning false stops the
// entire walk.
type Callback func(e Entry, user any) bool
