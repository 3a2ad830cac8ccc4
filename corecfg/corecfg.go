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

// Package corecfg loads optional tunables for the cores in this module
// from a TOML file. Every tunable has a hardcoded default, so the file
// itself is optional; this is library configuration, not a service's
// configuration surface.
package corecfg

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Tunables holds the defaults consulted by fsio, fswalk, and procexec.
// Zero-value fields are replaced by their documented default on Load.
type Tunables struct {
	// FileBufferSize is the default buffer size for fsio.Open.
	FileBufferSize int `toml:"file_buffer_size"`

	// WalkFullInfoDefault controls whether fswalk.WalkDefault requests
	// full info (fswalk.FullInfo) for every entry.
	WalkFullInfoDefault bool `toml:"walk_full_info_default"`

	// ProcessReadPoll is the timeout procexec.ReadDefault passes to
	// Process.Read.
	ProcessReadPoll time.Duration `toml:"process_read_poll"`

	// ProcessKillGrace is the deadline procexec.CloseExDefault gives the
	// child to exit before CloseEx kills it with SIGKILL / TerminateProcess.
	ProcessKillGrace time.Duration `toml:"process_kill_grace"`
}

// Defaults returns the hardcoded tunable values used when no file is
// loaded, or a loaded file omits a field.
func Defaults() Tunables {
	return Tunables{
		FileBufferSize:      64 * 1024,
		WalkFullInfoDefault: false,
		ProcessReadPoll:     15 * time.Millisecond,
		ProcessKillGrace:    5 * time.Second,
	}
}

// Load reads tunables from a TOML file at path, starting from Defaults()
// and overwriting only the fields present in the file.
func Load(path string) (Tunables, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return Tunables{}, err
	}
	return validate(t)
}

// validate clamps obviously-invalid values back to their defaults rather
// than letting an out-of-range poll interval or buffer size through.
func validate(t Tunables) (Tunables, error) {
	d := Defaults()
	if t.FileBufferSize <= 0 {
		t.FileBufferSize = d.FileBufferSize
	}
	if t.ProcessReadPoll <= 0 {
		t.ProcessReadPoll = d.ProcessReadPoll
	}
	if t.ProcessKillGrace <= 0 {
		t.ProcessKillGrace = d.ProcessKillGrace
	}
	return t, nil
}
