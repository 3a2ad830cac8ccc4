package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinearRunFallsThroughToDone(t *testing.T) {
	m := Create(1, "linear", LinearEnd)
	var order []uint64
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		order = append(order, 1)
		return StatusNext, 0
	}, nil, nil)
	m.InsertState(2, 0, "s2", func(data any) (Status, uint64) {
		order = append(order, 2)
		return StatusNext, 0
	}, nil, nil)

	status := Run(m, nil)
	require.Equal(t, StatusDone, status)
	require.Equal(t, []uint64{1, 2}, order)
}

func TestStateDescrLooksUpInsertionText(t *testing.T) {
	m := Create(1, "linear", LinearEnd)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		return StatusNext, 0
	}, nil, nil)

	require.Equal(t, "s1", m.StateDescr(1))
	require.Equal(t, "", m.StateDescr(99))
}

func TestExplicitNextRequired(t *testing.T) {
	m := Create(1, "explicit", ExplicitNext)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		return StatusNext, 2
	}, nil, nil)
	m.InsertState(2, 0, "s2", func(data any) (Status, uint64) {
		return StatusDone, 0
	}, nil, nil)

	status := Run(m, nil)
	require.Equal(t, StatusDone, status)
}

func TestWaitSuspendsAndResumes(t *testing.T) {
	calls := 0
	m := Create(1, "waiter", LinearEnd)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		calls++
		if calls == 1 {
			return StatusWait, 0
		}
		return StatusNext, 0
	}, nil, nil)

	status := Run(m, nil)
	require.Equal(t, StatusWait, status)
	require.True(t, m.running)

	status = Run(m, nil)
	require.Equal(t, StatusDone, status)
	require.Equal(t, 2, calls)
}

func TestBadNextTriggersCleanupAndError(t *testing.T) {
	m := Create(1, "badnext", ExplicitNext)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		return StatusNext, 99
	}, nil, []uint64{2})
	m.InsertState(2, 0, "s2", func(data any) (Status, uint64) {
		return StatusDone, 0
	}, nil, nil)

	status := Run(m, nil)
	require.Equal(t, StatusErrorBadNext, status)
}

func TestSelfNextRejectedUnlessSelfCall(t *testing.T) {
	m := Create(1, "self", ExplicitNext)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		return StatusNext, 1
	}, nil, nil)

	status := Run(m, nil)
	require.Equal(t, StatusErrorSelfNext, status)

	m2 := Create(1, "self-ok", ExplicitNext|SelfCall)
	calls := 0
	m2.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		calls++
		if calls < 3 {
			return StatusNext, 1
		}
		return StatusDone, 0
	}, nil, nil)
	status = Run(m2, nil)
	require.Equal(t, StatusDone, status)
	require.Equal(t, 3, calls)
}

func TestPrevPopsStack(t *testing.T) {
	visited := []uint64{}
	m := Create(1, "prev", ExplicitNext)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		visited = append(visited, 1)
		return StatusNext, 2
	}, nil, nil)
	m.InsertState(2, 0, "s2", func(data any) (Status, uint64) {
		visited = append(visited, 2)
		if len(visited) < 3 {
			return StatusPrev, 0
		}
		return StatusDone, 0
	}, nil, nil)

	status := Run(m, nil)
	require.Equal(t, StatusDone, status)
	require.Equal(t, []uint64{1, 2, 1, 2}, visited)
}

func TestCleanupRunsInLIFOOrder(t *testing.T) {
	var cleaned []uint64

	mkCleanup := func(id uint64) *Machine {
		cm := CreateCleanup(0, "cleanup", 0)
		cm.InsertCleanupState(1, 0, "c", func(data any, reason CleanupReason) (Status, uint64) {
			cleaned = append(cleaned, id)
			return StatusDone, 0
		}, nil, nil)
		return cm
	}

	m := Create(1, "cleanup-order", ExplicitNext)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		return StatusNext, 2
	}, mkCleanup(1), nil)
	m.InsertState(2, 0, "s2", func(data any) (Status, uint64) {
		return StatusErrorState, 0
	}, mkCleanup(2), nil)

	status := Run(m, nil)
	require.Equal(t, StatusErrorState, status)
	require.Equal(t, []uint64{2, 1}, cleaned)
}

func TestOneCleanupRunsOnceAcrossRevisits(t *testing.T) {
	runs := 0
	cm := CreateCleanup(0, "cleanup", 0)
	cm.InsertCleanupState(1, 0, "c", func(data any, reason CleanupReason) (Status, uint64) {
		runs++
		return StatusDone, 0
	}, nil, nil)

	m := Create(1, "one-cleanup", ExplicitNext|OneCleanup|SelfCall|DoneCleanup)
	visits := 0
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) {
		visits++
		if visits < 3 {
			return StatusNext, 1
		}
		return StatusDone, 0
	}, cm, nil)

	status := Run(m, nil)
	require.Equal(t, StatusDone, status)
	require.Equal(t, 1, runs)
}

func TestSubStateMachinePropagatesWaitThenDone(t *testing.T) {
	sub := Create(10, "sub", LinearEnd)
	calls := 0
	sub.InsertState(1, 0, "sub-s1", func(data any) (Status, uint64) {
		calls++
		if calls == 1 {
			return StatusWait, 0
		}
		return StatusNext, 0
	}, nil, nil)

	m := Create(1, "parent", LinearEnd)
	m.InsertSubStateMachine(1, 0, "subm", sub, nil, nil, nil, nil)

	status := Run(m, nil)
	require.Equal(t, StatusWait, status)

	status = Run(m, nil)
	require.Equal(t, StatusDone, status)
	require.Equal(t, 2, calls)
}

func TestInsertStateRejectsDuplicateOrZeroID(t *testing.T) {
	m := Create(1, "m", 0)
	require.True(t, m.InsertState(1, 0, "s1", func(data any) (Status, uint64) { return StatusDone, 0 }, nil, nil))
	require.False(t, m.InsertState(1, 0, "dup", func(data any) (Status, uint64) { return StatusDone, 0 }, nil, nil))
	require.False(t, m.InsertState(0, 0, "zero", func(data any) (Status, uint64) { return StatusDone, 0 }, nil, nil))
}

func TestDuplicateIsIndependent(t *testing.T) {
	m := Create(1, "orig", LinearEnd)
	m.InsertState(1, 0, "s1", func(data any) (Status, uint64) { return StatusDone, 0 }, nil, nil)

	dup := m.Duplicate()
	require.True(t, dup.HasState(1))
	dup.InsertState(2, 0, "s2", func(data any) (Status, uint64) { return StatusDone, 0 }, nil, nil)
	require.False(t, m.HasState(2))
}
