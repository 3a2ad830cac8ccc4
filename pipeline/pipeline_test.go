package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/poll"
)

func TestPipelineRunsThroughAllStages(t *testing.T) {
	var mu sync.Mutex
	var results []Result

	stage1 := func(task *Task) bool {
		task.Data = task.Data.(int) + 1
		return true
	}
	stage2 := func(task *Task) bool {
		task.Data = task.Data.(int) * 2
		return true
	}

	done := make(chan struct{}, 10)
	finished := func(task *Task, result Result) {
		mu.Lock()
		results = append(results, result)
		mu.Unlock()
		done <- struct{}{}
	}

	p := New([]StageFunc{stage1, stage2}, finished, 0)
	defer p.Destroy()

	task, ok := p.Insert(1)
	require.True(t, ok)
	require.NotZero(t, task.ID)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never finished")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Result{ResultSuccess}, results)
}

func TestPipelineFailurePropagatesAbort(t *testing.T) {
	var mu sync.Mutex
	results := map[Result]int{}

	stage1 := func(task *Task) bool { return false }
	stage2 := func(task *Task) bool { return true }

	done := make(chan struct{}, 10)
	finished := func(task *Task, result Result) {
		mu.Lock()
		results[result]++
		mu.Unlock()
		done <- struct{}{}
	}

	p := New([]StageFunc{stage1, stage2}, finished, 0)
	defer p.Destroy()

	_, ok := p.Insert("x")
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never finished")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, results[ResultFail])

	_, ok = p.Insert("y")
	require.False(t, ok, "pipeline should reject inserts after an abort")
}

func TestPipelineWaitBlocksUntilLimit(t *testing.T) {
	release := make(chan struct{})
	stage1 := func(task *Task) bool {
		<-release
		return true
	}

	finished := func(task *Task, result Result) {}
	p := New([]StageFunc{stage1}, finished, 0)
	defer p.Destroy()

	_, ok := p.Insert(1)
	require.True(t, ok)

	poll.WaitOn(t, func(t poll.LogT) poll.Result {
		if p.QueueCount() == 1 {
			return poll.Success()
		}
		return poll.Continue("queue count not yet 1")
	}, poll.WithTimeout(time.Second), poll.WithDelay(10*time.Millisecond))

	close(release)

	done := make(chan struct{})
	go func() {
		p.Wait(0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never returned once the stage drained")
	}
}

func TestNoAbortKeepsOtherTasksRunning(t *testing.T) {
	var mu sync.Mutex
	results := map[Result]int{}
	done := make(chan struct{}, 10)

	stage1 := func(task *Task) bool {
		return task.Data.(int) != 0
	}

	finished := func(task *Task, result Result) {
		mu.Lock()
		results[result]++
		mu.Unlock()
		done <- struct{}{}
	}

	p := New([]StageFunc{stage1}, finished, NoAbort)
	defer p.Destroy()

	_, ok1 := p.Insert(0)
	require.True(t, ok1)
	<-done

	_, ok2 := p.Insert(1)
	require.True(t, ok2, "NoAbort must keep accepting after a failure")
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, results[ResultFail])
	require.Equal(t, 1, results[ResultSuccess])
}
