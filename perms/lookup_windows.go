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
	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"golang.org/x/sys/windows"
)

// lookupUser resolves a user name to its SID string.
func lookupUser(name string) (string, error) {
	return lookupSID(name)
}

// lookupGroup resolves a group name to its SID string.
func lookupGroup(name string) (string, error) {
	return lookupSID(name)
}

func lookupSID(name string) (string, error) {
	sid, _, _, err := windows.LookupSID("", name)
	if err != nil {
		return "", corerr.New("perms.lookupSID", corerr.NotFound, name, err)
	}
	return sid.String(), nil
}
