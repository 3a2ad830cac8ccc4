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

package procexec

import (
	"context"
	"time"

	"github.com/nestybox/sysbox-libs/corefs/corecfg"
	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"github.com/nestybox/sysbox-libs/corefs/internal/corelog"
	"golang.org/x/sync/errgroup"
)

var log = corelog.New(nil, "procexec")

// CloseResult carries the drained stdout/stderr collected by CloseEx, when
// requested.
type CloseResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// CloseEx closes stdin first (signaling EOF to the child), waits up to
// timeout for it to exit, kills it with SIGKILL/TerminateProcess if the
// deadline elapses, optionally drains stdout/stderr, and always releases
// every remaining fd. It is idempotent: closing an already-closed Process
// just returns its cached exit status.
func CloseEx(p *Process, collectStdout, collectStderr bool, timeout time.Duration) (*CloseResult, error) {
	p.CloseFd(FdStdin)

	status, waitErr := p.wait(timeout)
	killed := false
	if status == StatusRunning {
		killed = true
		log.WithField("timeout", timeout).Debug("killing child after wait deadline")
		if err := p.kill(); err != nil {
			waitErr = err
		}
	}

	res := &CloseResult{}

	if !killed && waitErr == nil {
		deadline := timeout
		if deadline == TimeoutInfinite {
			deadline = 0
		}
		var ctx context.Context
		var cancel context.CancelFunc
		if deadline > 0 {
			ctx, cancel = context.WithTimeout(context.Background(), deadline)
		} else {
			ctx, cancel = context.WithCancel(context.Background())
		}
		defer cancel()

		g, _ := errgroup.WithContext(ctx)
		if collectStdout {
			g.Go(func() error {
				res.Stdout = drain(p, FdStdout)
				return nil
			})
		}
		if collectStderr {
			g.Go(func() error {
				res.Stderr = drain(p, FdStderr)
				return nil
			})
		}
		g.Wait()
	}

	p.CloseFd(FdStdout)
	p.CloseFd(FdStderr)

	code, kind := p.result()
	res.ExitCode = code

	if waitErr != nil {
		return res, waitErr
	}
	if kind != corerr.Generic {
		return res, corerr.New("procexec.CloseEx", kind, "", nil)
	}
	return res, nil
}

// CloseExDefault is CloseEx with the package-wide kill grace period
// (corecfg.Defaults().ProcessKillGrace) as the wait deadline, for callers
// with no tuning need of their own.
func CloseExDefault(p *Process, collectStdout, collectStderr bool) (*CloseResult, error) {
	return CloseEx(p, collectStdout, collectStderr, corecfg.Defaults().ProcessKillGrace)
}

// ReadDefault reads fd with the package-wide poll granularity
// (corecfg.Defaults().ProcessReadPoll) as the wait deadline, for callers
// that want to tick rather than block indefinitely.
func ReadDefault(p *Process, fd Fd, buf []byte) (int64, error) {
	return p.Read(fd, buf, corecfg.Defaults().ProcessReadPoll)
}

func drain(p *Process, fd Fd) []byte {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := p.Read(fd, buf, TimeoutInfinite)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if n < 0 || err != nil {
			break
		}
	}
	return out
}
