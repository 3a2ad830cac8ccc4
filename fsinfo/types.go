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

// Package fsinfo provides a single Get call that can be asked to skip
// ownership/permission decoding for the performance-sensitive
// directory-walk path.
package fsinfo

import (
	"os"
	"time"
)

// Flags controls how much of Info is populated.
type Flags int

const (
	// FollowSymlinks resolves a trailing symlink before stat'ing.
	FollowSymlinks Flags = 1 << iota
	// BasicOnly skips ownership and permission decoding.
	BasicOnly
)

// Info is a platform-neutral snapshot of a filesystem entry.
type Info struct {
	Name      string
	Size      int64
	Mode      os.FileMode
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool

	// Extended is false when BasicOnly was requested; Uid/Gid/Dev/Ino
	// are only meaningful when Extended is true.
	Extended bool
	Uid      uint32
	Gid      uint32
	Dev      uint64
	Ino      uint64
}
