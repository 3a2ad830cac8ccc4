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

// Package corerr implements the unified error taxonomy shared by every
// core in this module (permissions, path info, buffered I/O, directory
// walking, the state-machine engine, the pipeline scheduler, and the
// process launcher).
package corerr

// Kind classifies a failure independent of the OS or core that raised it.
type Kind int

const (
	// Generic covers any OS error that doesn't map to a more specific Kind.
	Generic Kind = iota
	NotFound
	AlreadyExists
	PermissionDenied
	IsDirectory
	NotDirectory
	DirNotEmpty
	LinkLoop
	NameTooLong
	IOError
	Quota
	FileTooBig
	TooManyFiles
	TooManyLinks
	ReadOnly
	NotSupported
	Seek
	NotSameDevice
	Invalid

	// State-machine specific.
	BadID
	NoNext
	BadNext
	SelfNext
	NoPrev
	InfContinue
	StopCleanup
	StateError

	// Process-launch specific.
	CommandNotFound
	NotExecutable
	Pipe
	Spawn
	Wait
	KillSignal
)

var kindNames = map[Kind]string{
	Generic:         "generic",
	NotFound:        "not found",
	AlreadyExists:   "already exists",
	PermissionDenied: "permission denied",
	IsDirectory:     "is a directory",
	NotDirectory:    "not a directory",
	DirNotEmpty:     "directory not empty",
	LinkLoop:        "symlink loop",
	NameTooLong:     "name too long",
	IOError:         "I/O error",
	Quota:           "quota exceeded",
	FileTooBig:      "file too big",
	TooManyFiles:    "too many open files",
	TooManyLinks:    "too many links",
	ReadOnly:        "read-only",
	NotSupported:    "not supported",
	Seek:            "seek not permitted",
	NotSameDevice:   "not same device",
	Invalid:         "invalid argument",
	BadID:           "bad state id",
	NoNext:          "no next state",
	BadNext:         "disallowed next state",
	SelfNext:        "self transition not allowed",
	NoPrev:          "no previous state",
	InfContinue:     "continuation loop detected",
	StopCleanup:     "cleanup stopped",
	StateError:      "state returned an error",
	CommandNotFound: "command not found",
	NotExecutable:   "not executable",
	Pipe:            "pipe error",
	Spawn:           "spawn failed",
	Wait:            "wait failed",
	KillSignal:      "killed by signal",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}
