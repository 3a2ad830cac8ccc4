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

// Package pathnorm implements a path normalization sequence: separator
// conversion, environment and home-directory expansion, dot walking, and
// optional symlink splicing with loop detection.
package pathnorm

import (
	"os"
	"os/user"
	"strings"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
)

// System selects the separator and UNC conventions to normalize against.
type System int

const (
	// Native normalizes using the separator of the host OS.
	Native System = iota
	POSIX
	Windows
)

// Flags controls which normalization steps run.
type Flags int

const (
	// Absolute prepends the current working directory if the input
	// path is not already absolute.
	Absolute Flags = 1 << iota
	// NoParent disables ".." popping (step 6 leaves ".." components
	// alone instead of walking up).
	NoParent
	// FollowSymlinks enables step 7's symlink splicing.
	FollowSymlinks
)

const maxRedirects = 25

func separator(sys System) byte {
	switch sys {
	case Windows:
		return '\\'
	default:
		return '/'
	}
}

// Normalize runs the seven-step normalization sequence and returns a
// canonical path string. A path that reduces to no components yields "."
// (or the bare separator when the path is absolute).
func Normalize(path string, flags Flags, sys System) (string, error) {
	if sys == Native {
		sys = nativeSystem()
	}
	sep := separator(sys)

	// Step 1: convert separators; detect UNC (disables symlink resolution).
	isUNC := false
	converted := convertSeparators(path, sep)
	if sys == Windows && len(converted) >= 2 && converted[0] == sep && converted[1] == sep {
		isUNC = true
	}

	// Step 2: split into components.
	isAbs := isUNC || (len(converted) > 0 && converted[0] == sep) ||
		(sys == Windows && len(converted) >= 2 && converted[1] == ':')
	comps := splitComponents(converted, sep, isUNC)

	// Step 3: expand environment variables.
	for i, c := range comps {
		expanded, err := expandEnvComponent(c)
		if err != nil {
			return "", corerr.New("pathnorm.Normalize", corerr.Invalid, path, err)
		}
		comps[i] = expanded
	}

	// Step 4: leading "~" expands to the user's home directory.
	if len(comps) > 0 && comps[0] == "~" {
		home, err := homeDir()
		if err != nil {
			return "", corerr.New("pathnorm.Normalize", corerr.Invalid, path, err)
		}
		homeComps := splitComponents(convertSeparators(home, sep), sep, false)
		comps = append(homeComps, comps[1:]...)
	}

	// Step 5: prepend cwd if ABSOLUTE requested and path isn't absolute.
	if flags&Absolute != 0 && !isAbs {
		cwd, err := os.Getwd()
		if err != nil {
			return "", corerr.New("pathnorm.Normalize", corerr.Generic, path, err)
		}
		cwdComps := splitComponents(convertSeparators(cwd, sep), sep, false)
		comps = append(cwdComps, comps...)
		isAbs = true
	}

	// Step 6: walk components, collapsing "." and "..".
	comps = walkDots(comps, flags&NoParent != 0)

	// Step 7: symlink splicing, if requested and not a UNC path.
	if flags&FollowSymlinks != 0 && !isUNC {
		var err error
		comps, err = spliceSymlinks(comps, sep, isAbs)
		if err != nil {
			return "", err
		}
	}

	return joinComponents(comps, sep, isUNC, isAbs), nil
}

func convertSeparators(path string, sep byte) string {
	b := []byte(path)
	for i, c := range b {
		if c == '/' || c == '\\' {
			b[i] = sep
		}
	}
	return string(b)
}

func splitComponents(path string, sep byte, isUNC bool) []string {
	s := path
	if isUNC {
		s = strings.TrimPrefix(s, string(sep)+string(sep))
	}
	raw := strings.Split(s, string(sep))
	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func walkDots(comps []string, noParent bool) []string {
	out := make([]string, 0, len(comps))
	for _, c := range comps {
		switch {
		case c == ".":
			continue
		case c == "..":
			if noParent {
				out = append(out, c)
				continue
			}
			if len(out) == 0 || out[len(out)-1] == ".." {
				out = append(out, c)
			} else {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

func joinComponents(comps []string, sep byte, isUNC, isAbs bool) string {
	if len(comps) == 0 {
		if isAbs {
			return string(sep)
		}
		return "."
	}
	joined := strings.Join(comps, string(sep))
	switch {
	case isUNC:
		return string(sep) + string(sep) + joined
	case isAbs:
		return string(sep) + joined
	default:
		return joined
	}
}

func expandEnvComponent(c string) (string, error) {
	switch {
	case strings.HasPrefix(c, "$"):
		name := strings.TrimPrefix(c, "$")
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", corerr.New("pathnorm.expandEnvComponent", corerr.NotFound, name, nil)
		}
		return v, nil
	case strings.HasPrefix(c, "%") && strings.HasSuffix(c, "%") && len(c) > 1:
		name := strings.TrimSuffix(strings.TrimPrefix(c, "%"), "%")
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", corerr.New("pathnorm.expandEnvComponent", corerr.NotFound, name, nil)
		}
		return v, nil
	default:
		return c, nil
	}
}

func homeDir() (string, error) {
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		return u.HomeDir, nil
	}
	if h, ok := os.LookupEnv("HOME"); ok && h != "" {
		return h, nil
	}
	return "", corerr.New("pathnorm.homeDir", corerr.NotFound, "~", nil)
}

// spliceSymlinks walks the accepted components left to right; after each
// one it forms the partial path so far and, if it names a symlink,
// splices the link target into the remaining stream (an absolute target
// replaces everything accepted so far, a relative target replaces only
// the last component). A set of partial paths already visited this call
// guards against loops.
func spliceSymlinks(comps []string, sep byte, isAbs bool) ([]string, error) {
	visited := make(map[string]bool)
	var out []string
	pending := append([]string(nil), comps...)
	redirects := 0

	for len(pending) > 0 {
		c := pending[0]
		pending = pending[1:]
		out = append(out, c)

		partial := joinComponents(out, sep, false, isAbs)
		if visited[partial] {
			return nil, corerr.New("pathnorm.spliceSymlinks", corerr.LinkLoop, partial, nil)
		}

		target, err := os.Readlink(partial)
		if err != nil {
			// Not a symlink (or doesn't exist yet); leave as-is and
			// continue — normalization does not require existence.
			continue
		}

		redirects++
		if redirects > maxRedirects {
			return nil, corerr.New("pathnorm.spliceSymlinks", corerr.LinkLoop, partial, nil)
		}
		visited[partial] = true

		targetComps := splitComponents(convertSeparators(target, sep), sep, false)
		isAbsTarget := strings.HasPrefix(target, string(sep)) || strings.HasPrefix(target, "/")

		if isAbsTarget {
			out = nil
			isAbs = true
			pending = append(targetComps, pending...)
		} else {
			out = out[:len(out)-1]
			pending = append(targetComps, pending...)
		}
	}

	return out, nil
}
