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

// Package fsio implements buffered file I/O: a read/write/seek contract
// layered over an injectable afero.Fs so the read-offset and write-buffer
// bookkeeping can be exercised without touching a real disk.
package fsio

// OpenFlags selects how Open creates/opens the underlying file.
type OpenFlags int

const (
	Read OpenFlags = 1 << iota
	Write
	Append
	Truncate // a.k.a. OVERWRITE
	NoCreate
	NoCloseOnExec
)

// Whence mirrors io.Seeker's constants so callers don't need an extra
// import just to call Seek.
type Whence int

const (
	SeekStart Whence = iota
	SeekCur
	SeekEnd
)

// RWFlags modifies the behavior of a single Read or Write call.
type RWFlags int

const (
	// FullBuf loops the operation until the full request is satisfied
	// or EOF/an error is hit, instead of returning a short result.
	FullBuf RWFlags = 1 << iota
)

// SyncFlags selects which part of sync's work to perform.
type SyncFlags int

const (
	// SyncBuffer flushes the write buffer to the OS file.
	SyncBuffer SyncFlags = 1 << iota
	// SyncOS additionally requests an OS-level fsync.
	SyncOS
)
