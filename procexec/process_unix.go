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

//go:build !windows

package procexec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nestybox/sysbox-libs/corefs/corerr"
	"github.com/nestybox/sysbox-libs/pidfd"
	"golang.org/x/sys/unix"
)

const shell = "/bin/sh"

// Process is a running (or exited) child wired to three pipes, from the
// caller's perspective.
type Process struct {
	mu sync.Mutex

	pid int

	// pidfd, when non-zero, lets wait() block on a pollable fd instead of
	// ticking waitpid(WNOHANG) in a sleep loop; it's immune to pid reuse,
	// unlike a bare pid. Left zero on kernels without pidfd_open (< 5.3).
	pidfd    pidfd.PidFd
	havePidfd bool

	stdinW  *os.File
	stdoutR *os.File
	stderrR *os.File

	done       bool
	exitCode   int
	exitKind   corerr.Kind
	killedByUs bool
}

// Popen forks a child that runs cmd under `/bin/sh -c "exec <cmd>"`, with
// SIGPIPE ignored in the shell via `trap`, so the pid returned by the wait
// syscalls always names the target command rather than the shell wrapper.
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

	script := fmt.Sprintf("trap '' PIPE; exec %s", cmd)
	argv := []string{shell, "-c", script}

	attr := &syscall.ProcAttr{
		Env:   os.Environ(),
		Files: []uintptr{stdinR.Fd(), stdoutW.Fd(), stderrW.Fd()},
	}

	pid, err := syscall.ForkExec(shell, argv, attr)

	// The parent never touches the child's pipe ends past this point.
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()

	if err != nil {
		stdinW.Close()
		stdoutR.Close()
		stderrR.Close()
		log.WithField("cmd", cmd).WithError(err).Debug("fork/exec failed")
		return nil, corerr.New("procexec.Popen", corerr.Spawn, "", err)
	}

	p := &Process{
		pid:     pid,
		stdinW:  stdinW,
		stdoutR: stdoutR,
		stderrR: stderrR,
	}
	if fd, err := pidfd.Open(pid, 0); err == nil {
		p.pidfd = fd
		p.havePidfd = true
	}
	return p, nil
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

// Read waits up to timeout for data on fd (stdout or stderr), blocking
// indefinitely when timeout is TimeoutInfinite. It returns the byte count,
// 0 on timeout with no data, ReadError on failure, or ReadEOF at end of
// stream; on error or EOF the fd is closed and further reads return
// ReadError.
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
		pfd := []unix.PollFd{{Fd: int32(f.Fd()), Events: unix.POLLIN}}
		n, err := unix.Poll(pfd, int(timeout.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				return 0, nil
			}
			p.CloseFd(fd)
			return ReadError, corerr.New("procexec.Read", corerr.IOError, "", err)
		}
		if n == 0 {
			return 0, nil
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
			return 0, nil
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

// wait blocks up to timeout (TimeoutInfinite for no deadline) for the
// child to exit. When a pidfd was obtained at Popen time it polls that fd
// (woken the instant the kernel reaps-eligible the child, no busy loop and
// no pid-reuse race); otherwise it falls back to ticking
// waitpid(WNOHANG) every 15ms, mirroring the loop the original popen
// implementation used for its own non-blocking wait points.
func (p *Process) wait(timeout time.Duration) (Status, error) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return StatusDone, nil
	}
	havePidfd, pfd := p.havePidfd, p.pidfd
	p.mu.Unlock()

	if havePidfd {
		return p.waitPidfd(pfd, timeout)
	}
	return p.waitTick(timeout)
}

func (p *Process) waitPidfd(pfd pidfd.PidFd, timeout time.Duration) (Status, error) {
	ms := -1
	if timeout != TimeoutInfinite {
		ms = int(timeout.Milliseconds())
	}

	for {
		fds := []unix.PollFd{{Fd: int32(pfd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return StatusError, corerr.New("procexec.wait", corerr.Wait, "", err)
		}
		if n == 0 {
			return StatusRunning, nil
		}
		break
	}

	return p.reap()
}

func (p *Process) waitTick(timeout time.Duration) (Status, error) {
	const tick = 15 * time.Millisecond
	remaining := timeout

	for {
		status, done, err := p.tryReap()
		if err != nil {
			return StatusError, err
		}
		if done {
			return status, nil
		}

		if timeout == TimeoutInfinite {
			time.Sleep(tick)
			continue
		}
		if remaining <= 0 {
			return StatusRunning, nil
		}
		sleep := tick
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)
		remaining -= sleep
	}
}

// reap performs a final blocking wait4 once the pidfd has told us the
// child is reap-eligible, so this call returns immediately.
func (p *Process) reap() (Status, error) {
	for {
		status, done, err := p.tryReap()
		if err != nil {
			return StatusError, err
		}
		if done {
			return status, nil
		}
		// Reap-eligible per the pidfd but waitpid(WNOHANG) raced ahead of
		// the kernel's own bookkeeping; yield briefly and retry.
		time.Sleep(time.Millisecond)
	}
}

func (p *Process) tryReap() (Status, bool, error) {
	var ws syscall.WaitStatus
	rpid, err := syscall.Wait4(p.pid, &ws, syscall.WNOHANG, nil)
	if err == syscall.EINTR {
		return 0, false, nil
	}
	if err != nil {
		p.mu.Lock()
		p.done = true
		p.exitCode = -1
		p.exitKind = corerr.Wait
		p.mu.Unlock()
		return StatusError, true, corerr.New("procexec.wait", corerr.Wait, "", err)
	}
	if rpid == p.pid {
		p.setExitStatus(ws)
		p.mu.Lock()
		if p.havePidfd {
			unix.Close(int(p.pidfd))
			p.havePidfd = false
		}
		p.mu.Unlock()
		return StatusDone, true, nil
	}
	return 0, false, nil
}

func (p *Process) setExitStatus(ws syscall.WaitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true

	if ws.Signaled() {
		p.exitCode = -2
		p.exitKind = corerr.KillSignal
		return
	}

	code := ws.ExitStatus()
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
		p.exitKind = corerr.Generic // Generic with exit code 0 just means success
	}
}

// kill sends SIGKILL (via the pidfd when available, so the signal can
// never land on a reused pid) and blocks until the child has been reaped.
func (p *Process) kill() error {
	p.mu.Lock()
	p.killedByUs = true
	havePidfd, pfd := p.havePidfd, p.pidfd
	p.mu.Unlock()

	var err error
	if havePidfd {
		err = pfd.SendSignal(syscall.SIGKILL, 0)
	} else {
		err = syscall.Kill(p.pid, syscall.SIGKILL)
	}
	if err != nil && err != syscall.ESRCH {
		return corerr.New("procexec.kill", corerr.KillSignal, "", err)
	}
	_, waitErr := p.wait(TimeoutInfinite)
	return waitErr
}

func (p *Process) result() (int, corerr.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exitKind
}
