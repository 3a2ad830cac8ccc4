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

// Package statemachine implements a hierarchical, trace-enabled
// finite-state-machine engine: states may be plain functions, cleanup
// functions, or nested sub-machines, with WAIT as the sole
// cooperative-suspension point and a LIFO cleanup drain on exit.
package statemachine

// Status is the result a state, sub-machine, or cleanup function returns
// from one step.
type Status int

const (
	StatusNone Status = iota
	StatusNext
	StatusPrev
	StatusContinue
	StatusWait
	StatusDone
	StatusErrorInvalid
	StatusErrorBadID
	StatusErrorNoNext
	StatusErrorBadNext
	StatusErrorSelfNext
	StatusErrorNoPrev
	StatusErrorInfContinue
	StatusStopCleanup
	StatusErrorState
)

func (s Status) isError() bool {
	switch s {
	case StatusErrorInvalid, StatusErrorBadID, StatusErrorNoNext, StatusErrorBadNext,
		StatusErrorSelfNext, StatusErrorNoPrev, StatusErrorInfContinue, StatusStopCleanup,
		StatusErrorState:
		return true
	}
	return false
}

// CleanupReason records why a machine entered its cleanup drain.
type CleanupReason int

const (
	ReasonNone CleanupReason = iota
	ReasonError
	ReasonDone
)

// Flags configures per-machine behavior as a bitset.
type Flags int

const (
	// SinglePrev keeps only the most recent entry in the previous-id
	// stack instead of the full history.
	SinglePrev Flags = 1 << iota
	// OneCleanup runs each state's cleanup sub-machine at most once per
	// cleanup drain, tracked via the seen-ids set.
	OneCleanup
	// ExplicitNext disables the linear insertion-order fallthrough; every
	// state must return an explicit next id.
	ExplicitNext
	// LinearEnd allows falling off the end of the state list (next_id==0
	// on the last state) to count as success rather than ERROR_NO_NEXT.
	LinearEnd
	// DoneCleanup routes a successful linear-end or DONE status through
	// the cleanup drain (with reason DONE) instead of returning directly.
	DoneCleanup
	// ContinueLoop permits a CONTINUE transition to revisit an id already
	// present in the continuations set without raising ERROR_INF_CONT.
	ContinueLoop
	// SelfCall permits a NEXT/CONTINUE transition back to the same state.
	SelfCall
)

// StateFunc is a plain state's body: given user data, return the status
// and (for NEXT/CONTINUE) the id to transition to.
type StateFunc func(data any) (Status, uint64)

// CleanupFunc is a cleanup sub-machine state's body; it additionally
// receives the reason cleanup was triggered.
type CleanupFunc func(data any, reason CleanupReason) (Status, uint64)

// PreFunc runs before a sub-machine that hasn't started yet. Returning
// run=false suppresses running the sub-machine and substitutes status/
// nextID directly.
type PreFunc func(data any) (run bool, status Status, nextID uint64)

// PostFunc runs after a sub-machine finishes (never called after WAIT).
type PostFunc func(data any, status Status) (Status, uint64)

// TraceEvent identifies the point in the run loop a trace callback fired
// from.
type TraceEvent int

const (
	TraceMachineEnter TraceEvent = iota
	TraceMachineExit
	TraceStateStart
	TraceStateFinish
	TracePreStart
	TracePreFinish
	TracePostStart
	TracePostFinish
	TraceCleanup
)

// TraceFunc is invoked on every state start/finish, sub-machine enter/
// exit, and cleanup dispatch when registered via EnableTrace.
type TraceFunc func(event TraceEvent, machineDescr, stateDescr string, index uint64, status Status, nextID uint64, thunk any)

type stateType int

const (
	stateFunc stateType = iota
	stateCleanupFunc
	stateSub
)

type state struct {
	typ     stateType
	ndescr  uint64
	descr   string
	nextIDs map[uint64]bool // nil means any next id is allowed
	cleanup *Machine

	fn        StateFunc
	cleanupFn CleanupFunc

	sub  *Machine
	pre  PreFunc
	post PostFunc
}
