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

//go:build windows

package procexec

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"golang.org/x/sys/windows"
)

// Process is a running (or exited) child wired to three pipes, from the
// caller's perspective. Wait/kill ride on *os.Process, which already owns
// the CreateProcess handle lifecycle; Popen only needs to wire the pipes
// and the no-window flag the way the POSIX path wires fork+exec.
type Process struct {
	mu sync.Mutex

	proc *os.Process

	stdinW  *os.File
	stdoutR *os.File
	stderrR *os.File

	waitOnce sync.Once
	waitCh   chan struct{}
	waitErr  error

	done       bool
	exitCode   int
	exitKind   corerr.Kind
	killedByUs bool
}

// Popen creates a child process with stdin/stdout/stderr redirected to the
// corresponding pipe ends and the no-window flag set, handing the caller a
// handle for the target command exactly like the POSIX fork+exec path.
func Popen(cmd string) (*Process, error) {
	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, corerr.New("procexec.Popen", corerr.Pipe, "", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, corerr.New("procexec.Popen", corerr.Pipe, "", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, corerr.New("procexec.Popen", corerr.Pipe, "", err)
	}

	procAttr := &os.ProcAttr{
		Files: []*os.File{stdinR, stdoutW, stderrW},
		Sys:   &windows.SysProcAttr{HideWindow: true},
	}

	comspec := os.Getenv("COMSPEC")
	if comspec == "" {
		comspec = "cmd.exe"
	}

	proc, err := os.StartProcess(comspec, []string{comspec, "/C", cmd}, procAttr)

	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	if err != nil {
		stdinW.Close()
		stdoutR.Close()
		stderrR.Close()
		log.WithField("cmd", cmd).WithError(err).Debug("CreateProcess failed")
		if errors.Is(err, os.ErrNotExist) {
			return nil, corerr.New("procexec.Popen", corerr.CommandNotFound, "", err)
		}
		return nil, corerr.New("procexec.Popen", corerr.Spawn, "", err)
	}

	p := &Process{
		proc:    proc,
		stdinW:  stdinW,
		stdoutR: stdoutR,
		stderrR: stderrR,
		waitCh:  make(chan struct{}),
	}
	p.startReaper()
	return p, nil
}

// startReaper runs proc.Wait() in the background exactly once, since
// os.Process doesn't expose a poll-with-timeout wait; wait() below just
// selects on waitCh with its own deadline.
func (p *Process) startReaper() {
	p.waitOnce.Do(func() {
		go func() {
			state, err := p.proc.Wait()
			p.mu.Lock()
			p.done = true
			if err != nil {
				p.waitErr = err
				p.exitCode = -1
				p.exitKind = corerr.Wait
			} else {
				p.setExitStatusLocked(state.ExitCode())
			}
			p.mu.Unlock()
			close(p.waitCh)
		}()
	})
}

func (p *Process) setExitStatusLocked(code int) {
	switch {
	case p.killedByUs:
		p.exitCode = -2
		p.exitKind = corerr.KillSignal
	case code == 127:
		p.exitCode = code
		p.exitKind = corerr.CommandNotFound
	case code == 126:
		p.exitCode = code
		p.exitKind = corerr.PermissionDenied
	case code == 125:
		p.exitCode = code
		p.exitKind = corerr.NotExecutable
	case code == 124:
		p.exitCode = code
		p.exitKind = corerr.Spawn
	default:
		p.exitCode = code
		p.exitKind = corerr.Generic
	}
}

func (p *Process) fileFor(fd Fd) *os.File {
	switch fd {
	case FdStdin:
		return p.stdinW
	case FdStdout:
		return p.stdoutR
	case FdStderr:
		return p.stderrR
	}
	return nil
}

func (p *Process) setFile(fd Fd, f *os.File) {
	switch fd {
	case FdStdin:
		p.stdinW = f
	case FdStdout:
		p.stdoutR = f
	case FdStderr:
		p.stderrR = f
	}
}

// Read waits up to timeout for data on fd, mirroring the PeekNamedPipe
// 15ms-tick loop: a blocking ReadFile is used once data is known to be
// available, or directly when timeout is TimeoutInfinite.
func (p *Process) Read(fd Fd, buf []byte, timeout time.Duration) (int64, error) {
	if fd != FdStdout && fd != FdStderr {
		return ReadError, corerr.New("procexec.Read", corerr.Invalid, "", nil)
	}

	p.mu.Lock()
	f := p.fileFor(fd)
	p.mu.Unlock()
	if f == nil {
		return ReadError, corerr.New("procexec.Read", corerr.Invalid, "", nil)
	}

	if timeout != TimeoutInfinite {
		const tick = 15 * time.Millisecond
		remaining := timeout
		for {
			var avail uint32
			if err := windows.PeekNamedPipe(windows.Handle(f.Fd()), nil, 0, nil, &avail, nil); err != nil {
				p.CloseFd(fd)
				return ReadError, corerr.New("procexec.Read", corerr.IOError, "", err)
			}
			if avail > 0 {
				break
			}
			if remaining <= 0 {
				return 0, nil
			}
			sleep := tick
			if sleep > remaining {
				sleep = remaining
			}
			time.Sleep(sleep)
			remaining -= sleep
		}
	}

	n, err := f.Read(buf)
	if n > 0 {
		return int64(n), nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		p.CloseFd(fd)
		return ReadError, corerr.New("procexec.Read", corerr.IOError, "", err)
	}
	p.CloseFd(fd)
	return ReadEOF, nil
}

// Write writes to the child's stdin; on failure the fd is closed.
func (p *Process) Write(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	f := p.stdinW
	p.mu.Unlock()
	if f == nil {
		return 0, corerr.New("procexec.Write", corerr.Invalid, "", nil)
	}

	n, err := f.Write(buf)
	if err != nil {
		p.CloseFd(FdStdin)
		return n, corerr.New("procexec.Write", corerr.IOError, "", err)
	}
	return n, nil
}

// CloseFd closes one of the three pipe ends; idempotent.
func (p *Process) CloseFd(fd Fd) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.fileFor(fd)
	if f == nil {
		return nil
	}
	err := f.Close()
	p.setFile(fd, nil)
	return err
}

// Check reports whether the child has exited, without blocking.
func (p *Process) Check() (Status, error) {
	return p.wait(0)
}

func (p *Process) wait(timeout time.Duration) (Status, error) {
	if timeout == TimeoutInfinite {
		<-p.waitCh
	} else {
		select {
		case <-p.waitCh:
		case <-time.After(timeout):
			return StatusRunning, nil
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.waitErr != nil {
		return StatusError, corerr.New("procexec.wait", corerr.Wait, "", p.waitErr)
	}
	return StatusDone, nil
}

// kill calls TerminateProcess and blocks until the reaper goroutine has
// observed the exit.
func (p *Process) kill() error {
	p.mu.Lock()
	p.killedByUs = true
	p.mu.Unlock()

	if err := p.proc.Kill(); err != nil {
		return corerr.New("procexec.kill", corerr.KillSignal, "", err)
	}
	_, err := p.wait(TimeoutInfinite)
	return err
}

func (p *Process) result() (int, corerr.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exitKind
}
