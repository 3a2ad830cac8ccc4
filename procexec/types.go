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

// Package procexec launches a child process wired to three pipes (stdin,
// stdout, stderr) and exposes blocking-with-timeout read/write plus a
// two-step wait-then-kill close.
package procexec

import "time"

// Fd identifies one of the three standard streams a Process exposes.
type Fd int

const (
	FdStdin Fd = iota
	FdStdout
	FdStderr
)

// TimeoutInfinite tells Read/Wait/CloseEx to block with no deadline.
const TimeoutInfinite time.Duration = -1

// Status reports whether the child has exited yet.
type Status int

const (
	StatusRunning Status = iota
	StatusDone
	StatusError
)

// Read sentinels, returned alongside a non-negative byte count: 0 means
// the timeout elapsed with no data, ReadError means the fd failed and was
// closed, ReadEOF means the fd hit end-of-stream and was closed.
const (
	ReadError int64 = -1
	ReadEOF   int64 = -2
)
