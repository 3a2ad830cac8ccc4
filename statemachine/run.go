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

// Run executes m until it returns WAIT, DONE, or an error status. A
// machine not currently running starts from its first inserted state; a
// machine already suspended on WAIT resumes where it left off.
func Run(m *Machine, data any) Status {
	return runMachine(m, m, data)
}

func runMachine(master, current *Machine, data any) Status {
	master.trace(TraceMachineEnter, current, "", 0, StatusNone, 0)
	status := runStates(master, current, data)
	master.trace(TraceMachineExit, current, "", 0, StatusNone, 0)
	return status
}

func (m *Machine) trace(event TraceEvent, current *Machine, stateDescr string, idx uint64, status Status, nextID uint64) {
	if m.traceFn == nil {
		return
	}
	m.traceFn(event, current.descr, stateDescr, idx, status, nextID, m.traceThunk)
}

// runStates is the single-threaded step loop driving one machine run.
func runStates(master, m *Machine, data any) Status {
	if len(m.stateIDs) == 0 {
		m.running = false
		m.currentID = 0
		return StatusDone
	}

	if !m.running {
		m.clearContinuations()
		m.clearCleanupIDs()
		m.clearPrevIDs()
		m.currentID = m.stateIDs[0]
		m.cleanupReason = ReasonNone
		m.returnStatus = StatusNone
	}
	m.running = true

	for {
		st, ok := m.states[m.currentID]
		if !ok {
			m.cleanupReason = ReasonError
			m.returnStatus = StatusErrorBadID
		}

		if m.cleanupReason != ReasonNone {
			if st != nil && st.typ == stateSub && st.sub.running {
				if status := runMachine(master, st.sub, data); status == StatusWait {
					return status
				}
			}
			status := runCleanup(master, m, data)
			if status == StatusWait {
				return status
			}
			m.clearCleanupIDs()
			m.running = false
			return m.returnStatus
		}

		var nextID uint64
		if m.flags&ExplicitNext == 0 {
			idx := indexOf(m.stateIDs, m.currentID)
			if idx < 0 {
				m.cleanupReason = ReasonError
				m.returnStatus = StatusErrorBadID
				continue
			}
			if idx != len(m.stateIDs)-1 {
				nextID = m.stateIDs[idx+1]
			}
		}

		var status Status
		if st.typ == stateSub {
			status, nextID = m.runSubState(master, st, data, nextID)
		} else {
			status, nextID = m.runFuncState(master, st, data, nextID)
		}

		if st.typ != stateSub && status != StatusWait {
			m.cleanupIDs = append(m.cleanupIDs, m.currentID)
		}

		switch status {
		case StatusNext, StatusContinue:
			if nextID == 0 {
				if m.flags&ExplicitNext != 0 || m.flags&LinearEnd == 0 {
					m.cleanupReason = ReasonError
					m.returnStatus = StatusErrorNoNext
					continue
				}
				if m.flags&DoneCleanup != 0 {
					m.cleanupReason = ReasonDone
					m.returnStatus = StatusDone
					continue
				}
				m.clearCleanupIDs()
				m.running = false
				m.clearContinuations()
				return StatusDone
			}
			if st.nextIDs != nil && !st.nextIDs[nextID] {
				m.cleanupReason = ReasonError
				m.returnStatus = StatusErrorBadNext
				continue
			}

			if status == StatusContinue {
				if m.flags&ContinueLoop == 0 && m.continuations.Contains(nextID) {
					m.cleanupReason = ReasonError
					m.returnStatus = StatusErrorInfContinue
					continue
				}
				m.continuations.Add(nextID)
			} else {
				m.pushPrevID(m.currentID)
				m.clearContinuations()
			}

			if m.flags&SelfCall == 0 && m.currentID == nextID {
				m.cleanupReason = ReasonError
				m.returnStatus = StatusErrorSelfNext
				continue
			}
			m.currentID = nextID

		case StatusPrev:
			m.currentID = m.popPrevID()
			if m.currentID == 0 {
				m.cleanupReason = ReasonError
				m.returnStatus = StatusErrorNoPrev
				continue
			}

		case StatusWait:
			m.clearContinuations()
			return status

		case StatusDone:
			if m.flags&DoneCleanup != 0 {
				m.cleanupReason = ReasonDone
				m.returnStatus = StatusDone
				m.clearContinuations()
				continue
			}
			m.clearCleanupIDs()
			m.running = false
			m.clearContinuations()
			return StatusDone

		default: // any error status
			m.cleanupReason = ReasonError
			m.returnStatus = status
			m.clearContinuations()
		}
	}
}

func (m *Machine) runSubState(master *Machine, st *state, data any, fallthroughNext uint64) (Status, uint64) {
	nextID := fallthroughNext
	runSub := true
	status := StatusContinue

	if st.pre != nil && !st.sub.running {
		master.trace(TracePreStart, m, st.descr, st.ndescr, StatusNone, 0)
		runSub, status, nextID = st.pre(data)
		master.trace(TracePreFinish, m, st.descr, st.ndescr, status, nextID)
	}

	if !runSub {
		return status, nextID
	}

	if !st.sub.running {
		m.cleanupIDs = append(m.cleanupIDs, m.currentID)
	}

	status = runMachine(master, st.sub, data)
	if m.cleanupReason == ReasonNone && status != StatusWait {
		if st.post != nil {
			master.trace(TracePostStart, m, st.descr, st.ndescr, StatusNone, 0)
			status, nextID = st.post(data, status)
			master.trace(TracePostFinish, m, st.descr, st.ndescr, status, nextID)
		} else if status == StatusDone {
			status = StatusNext
		}
	}

	return status, nextID
}

func (m *Machine) runFuncState(master *Machine, st *state, data any, fallthroughNext uint64) (Status, uint64) {
	nextID := fallthroughNext
	master.trace(TraceStateStart, m, st.descr, st.ndescr, StatusNone, 0)

	var status Status
	var retNext uint64
	if m.isCleanup {
		status, retNext = st.cleanupFn(data, m.parentCleanupReason)
	} else {
		status, retNext = st.fn(data)
	}
	// A returned id of 0 keeps the fallthrough next id.
	if retNext != 0 {
		nextID = retNext
	}
	master.trace(TraceStateFinish, m, st.descr, st.ndescr, status, nextID)

	if status != StatusNext && status != StatusPrev && status != StatusContinue &&
		status != StatusWait && status != StatusDone {
		status = StatusErrorState
	}

	return status, nextID
}

// runCleanup drains m's cleanup list in LIFO order.
func runCleanup(master, m *Machine, data any) Status {
	if m.cleanupReason == ReasonNone {
		return StatusDone
	}

	status := StatusDone
	for len(m.cleanupIDs) > 0 {
		id := m.cleanupIDs[len(m.cleanupIDs)-1]
		m.cleanupIDs = m.cleanupIDs[:len(m.cleanupIDs)-1]
		if id == 0 {
			break
		}

		if m.flags&OneCleanup != 0 {
			if m.cleanupSeenIDs.Contains(id) {
				continue
			}
			m.cleanupSeenIDs.Add(id)
		}

		st, ok := m.states[id]
		if !ok || st.cleanup == nil {
			continue
		}

		m.currentCleanupID = id
		st.cleanup.parentCleanupReason = m.cleanupReason
		status = runMachine(master, st.cleanup, data)
		master.trace(TraceCleanup, m, st.descr, st.ndescr, status, 0)
		st.cleanup.parentCleanupReason = ReasonNone

		wasError := false
		switch status {
		case StatusNext, StatusPrev, StatusContinue, StatusWait:
			m.cleanupIDs = append(m.cleanupIDs, id)
			return status
		case StatusDone:
			// A clean finish never re-enables the seen-id for retry.
			continue
		default:
			// Errors in cleanup are swallowed so they don't cascade, but
			// under OneCleanup the id is un-marked so a later occurrence
			// of the same id in this drain runs its cleanup again.
			status = StatusDone
			wasError = true
		}

		if m.flags&OneCleanup != 0 && wasError {
			m.cleanupSeenIDs.Remove(id)
		}
	}

	m.clearCleanupIDs()
	return m.returnStatus
}

// Reset marks the innermost active sub-machine (and every ancestor) for
// cleanup with the given reason; the next Run call enters the drain.
func Reset(m *Machine, reason CleanupReason) {
	if m == nil || !m.running {
		return
	}

	st, ok := m.states[m.currentID]
	if !ok {
		return
	}

	if st.typ == stateSub {
		Reset(st.sub, reason)
	} else if len(m.cleanupIDs) > 0 {
		lastID := m.cleanupIDs[len(m.cleanupIDs)-1]
		if last, ok := m.states[lastID]; ok && last.cleanup != nil {
			Reset(last.cleanup, reason)
		}
	}

	if reason == ReasonNone {
		m.clearCleanupIDs()
		m.clearContinuations()
		m.clearPrevIDs()
		m.currentID = 0
		m.running = false
	}

	m.cleanupReason = reason
	m.returnStatus = StatusDone
}

func indexOf(ids []uint64, id uint64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
