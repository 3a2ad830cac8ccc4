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

package statemachine

import mapset "github.com/deckarep/golang-set/v2"

// Machine is either a top-level/sub state machine or a cleanup
// state machine (isCleanup); the two share every behavior except what
// signature their state functions take.
type Machine struct {
	isCleanup bool
	ndescr    uint64
	descr     string
	flags     Flags

	states   map[uint64]*state
	stateIDs []uint64 // insertion order

	cleanupIDs     []uint64 // stack, appended/popped at the back
	cleanupSeenIDs mapset.Set[uint64]

	cleanupReason       CleanupReason
	parentCleanupReason CleanupReason
	returnStatus        Status

	continuations mapset.Set[uint64]
	prevIDs       []uint64

	currentID        uint64
	currentCleanupID uint64
	running          bool

	traceFn    TraceFunc
	traceThunk any
}

// Create returns a new, empty top-level or sub state machine.
func Create(ndescr uint64, descr string, flags Flags) *Machine {
	return newMachine(ndescr, descr, flags, false)
}

// CreateCleanup returns a new, empty cleanup state machine: its states
// receive a CleanupReason alongside user data.
func CreateCleanup(ndescr uint64, descr string, flags Flags) *Machine {
	return newMachine(ndescr, descr, flags, true)
}

func newMachine(ndescr uint64, descr string, flags Flags, isCleanup bool) *Machine {
	return &Machine{
		isCleanup:      isCleanup,
		ndescr:         ndescr,
		descr:          descr,
		flags:          flags,
		states:         make(map[uint64]*state),
		cleanupSeenIDs: mapset.NewSet[uint64](),
		continuations:  mapset.NewSet[uint64](),
	}
}

func toNextIDSet(ids []uint64) map[uint64]bool {
	if ids == nil {
		return nil
	}
	out := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// InsertState adds a plain function state. It fails if id is 0, fn is
// nil, or id is already present.
func (m *Machine) InsertState(id, ndescr uint64, descr string, fn StateFunc, cleanup *Machine, nextIDs []uint64) bool {
	if m == nil || id == 0 || fn == nil || m.HasState(id) {
		return false
	}
	m.states[id] = &state{
		typ: stateFunc, ndescr: ndescr, descr: descr,
		nextIDs: toNextIDSet(nextIDs), cleanup: cleanup.Duplicate(), fn: fn,
	}
	m.stateIDs = append(m.stateIDs, id)
	return true
}

// InsertCleanupState adds a cleanup-function state to a cleanup machine.
func (m *Machine) InsertCleanupState(id, ndescr uint64, descr string, fn CleanupFunc, cleanup *Machine, nextIDs []uint64) bool {
	if m == nil || id == 0 || fn == nil || m.HasState(id) {
		return false
	}
	m.states[id] = &state{
		typ: stateCleanupFunc, ndescr: ndescr, descr: descr,
		nextIDs: toNextIDSet(nextIDs), cleanup: cleanup.Duplicate(), cleanupFn: fn,
	}
	m.stateIDs = append(m.stateIDs, id)
	return true
}

// InsertSubStateMachine transfers a deep copy of subm into m as a single
// state at id, optionally gated/finished by pre/post callbacks.
func (m *Machine) InsertSubStateMachine(id, ndescr uint64, descr string, subm *Machine, pre PreFunc, post PostFunc, cleanup *Machine, nextIDs []uint64) bool {
	if m == nil || id == 0 || subm == nil || m.HasState(id) {
		return false
	}
	m.states[id] = &state{
		typ: stateSub, ndescr: ndescr, descr: descr,
		nextIDs: toNextIDSet(nextIDs), cleanup: cleanup.Duplicate(),
		sub: subm.Duplicate(), pre: pre, post: post,
	}
	m.stateIDs = append(m.stateIDs, id)
	return true
}

// RemoveState drops a state by id.
func (m *Machine) RemoveState(id uint64) bool {
	if m == nil {
		return false
	}
	if _, ok := m.states[id]; !ok {
		return false
	}
	delete(m.states, id)
	for i, v := range m.stateIDs {
		if v == id {
			m.stateIDs = append(m.stateIDs[:i], m.stateIDs[i+1:]...)
			break
		}
	}
	return true
}

// HasState reports whether id is present.
func (m *Machine) HasState(id uint64) bool {
	if m == nil {
		return false
	}
	_, ok := m.states[id]
	return ok
}

// ListStates returns the state ids in insertion order.
func (m *Machine) ListStates() []uint64 {
	if m == nil {
		return nil
	}
	out := make([]uint64, len(m.stateIDs))
	copy(out, m.stateIDs)
	return out
}

// StateDescr returns the free-text description given to id at insertion
// time, or "" if id isn't present. This is the same text the trace
// callback receives as stateDescr; StateDescr lets a caller look it up
// outside of a trace event too.
func (m *Machine) StateDescr(id uint64) string {
	if m == nil {
		return ""
	}
	s, ok := m.states[id]
	if !ok {
		return ""
	}
	return s.descr
}

// EnableTrace registers a trace callback, invoked on every state/sub-
// machine/cleanup transition.
func (m *Machine) EnableTrace(fn TraceFunc, thunk any) {
	if m == nil {
		return
	}
	m.traceFn = fn
	m.traceThunk = thunk
}

// Duplicate deep-copies m, including every state and its cleanup
// sub-machine. A nil receiver duplicates to nil: duplicating an absent
// cleanup machine is a no-op.
func (m *Machine) Duplicate() *Machine {
	if m == nil {
		return nil
	}
	dup := newMachine(m.ndescr, m.descr, m.flags, m.isCleanup)
	for _, id := range m.stateIDs {
		s := m.states[id]
		nextIDs := setToSlice(s.nextIDs)
		switch s.typ {
		case stateFunc:
			dup.InsertState(id, s.ndescr, s.descr, s.fn, s.cleanup, nextIDs)
		case stateCleanupFunc:
			dup.InsertCleanupState(id, s.ndescr, s.descr, s.cleanupFn, s.cleanup, nextIDs)
		case stateSub:
			dup.InsertSubStateMachine(id, s.ndescr, s.descr, s.sub, s.pre, s.post, s.cleanup, nextIDs)
		}
	}
	return dup
}

func setToSlice(s map[uint64]bool) []uint64 {
	if s == nil {
		return nil
	}
	out := make([]uint64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

func (m *Machine) clearPrevIDs()       { m.prevIDs = nil }
func (m *Machine) clearContinuations() { m.continuations = mapset.NewSet[uint64]() }

func (m *Machine) clearCleanupIDs() {
	m.cleanupIDs = nil
	m.currentCleanupID = 0
	m.cleanupSeenIDs = mapset.NewSet[uint64]()
}

func (m *Machine) pushPrevID(id uint64) {
	if m.flags&SinglePrev != 0 && len(m.prevIDs) > 0 {
		m.prevIDs[len(m.prevIDs)-1] = id
		return
	}
	m.prevIDs = append(m.prevIDs, id)
}

func (m *Machine) popPrevID() uint64 {
	if len(m.prevIDs) == 0 {
		return 0
	}
	id := m.prevIDs[len(m.prevIDs)-1]
	m.prevIDs = m.prevIDs[:len(m.prevIDs)-1]
	return id
}
