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

package pipeline

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nestybox/sysbox-libs/corefs/internal/corelog"
)

// stage owns the single slot a task occupies while waiting to be picked
// up by this stage's worker, guarded by its own mutex/condvar.
type stage struct {
	mu   sync.Mutex
	cond *sync.Cond
	task *Task
	fn   StageFunc
}

// Pipeline is a bounded, ordered multi-stage task scheduler.
type Pipeline struct {
	stages   []*stage
	finished FinishedFunc
	noAbort  bool

	mu         sync.Mutex
	cond       *sync.Cond // signalled whenever status, the input queue, or inFlight changes
	status     bool       // true while accepting/running
	inputQueue []*Task
	inFlight   int

	log *logrus.Entry

	wg sync.WaitGroup
}

// New starts one worker goroutine per stage and returns a running
// pipeline. Stage failures and aborts are logged through the standard
// logger tagged "pipeline"; use SetLogger to redirect them.
func New(stages []StageFunc, finished FinishedFunc, flags Flags) *Pipeline {
	p := &Pipeline{
		finished: finished,
		noAbort:  flags&NoAbort != 0,
		status:   true,
		log:      corelog.New(nil, "pipeline"),
	}
	p.cond = sync.NewCond(&p.mu)

	p.stages = make([]*stage, len(stages))
	for i, fn := range stages {
		st := &stage{fn: fn}
		st.cond = sync.NewCond(&st.mu)
		p.stages[i] = st
	}

	p.wg.Add(len(p.stages))
	for i := range p.stages {
		go p.runStage(i)
	}

	return p
}

// SetLogger redirects this pipeline's stage-failure and abort logging to
// log, tagged "pipeline". A nil log reverts to the standard logger.
func (p *Pipeline) SetLogger(log *logrus.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = corelog.New(log, "pipeline")
}

// Insert enqueues a new task for stage 0. It fails (returns nil, false)
// if the pipeline has been aborted or destroyed.
func (p *Pipeline) Insert(data any) (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.status {
		return nil, false
	}

	task := &Task{ID: uuid.New(), Data: data}
	p.inputQueue = append(p.inputQueue, task)
	p.inFlight++
	p.cond.Broadcast()
	return task, true
}

// Wait blocks until the number of in-flight tasks is at most limit.
func (p *Pipeline) Wait(limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inFlight > limit {
		p.cond.Wait()
	}
}

// QueueCount returns the current number of in-flight tasks.
func (p *Pipeline) QueueCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Destroy stops accepting new tasks, aborts everything queued or
// in-flight, and waits for every worker goroutine to exit.
func (p *Pipeline) Destroy() {
	p.mu.Lock()
	p.status = false
	drained := p.inputQueue
	p.inputQueue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, st := range p.stages {
		st.mu.Lock()
		st.cond.Broadcast()
		st.mu.Unlock()
	}

	for _, task := range drained {
		p.finishTask(task, ResultAbort)
	}

	p.wg.Wait()
}

func (p *Pipeline) finishTask(task *Task, result Result) {
	p.finished(task, result)
	p.mu.Lock()
	p.inFlight--
	p.cond.Broadcast()
	p.mu.Unlock()
}

// abortAll flips status to false so Insert starts rejecting and every
// worker drains its current slot (and the input queue) with ABORT.
func (p *Pipeline) abortAll() {
	p.mu.Lock()
	if p.status {
		p.status = false
		p.log.Debug("aborting pipeline after stage failure")
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, st := range p.stages {
		st.mu.Lock()
		st.cond.Broadcast()
		st.mu.Unlock()
	}
}

func (p *Pipeline) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// takeFromInput blocks stage 0's worker until a task is queued or the
// pipeline stops running, in which case it returns nil.
func (p *Pipeline) takeFromInput() *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.inputQueue) == 0 && p.status {
		p.cond.Wait()
	}
	if len(p.inputQueue) == 0 {
		return nil
	}
	task := p.inputQueue[0]
	p.inputQueue = p.inputQueue[1:]
	return task
}

func (p *Pipeline) runStage(i int) {
	defer p.wg.Done()
	st := p.stages[i]

	for {
		var task *Task
		if i == 0 {
			task = p.takeFromInput()
			if task == nil {
				return
			}
		} else {
			st.mu.Lock()
			for st.task == nil && p.running() {
				st.cond.Wait()
			}
			task = st.task
			st.task = nil
			st.mu.Unlock()
			if task == nil {
				return
			}

			prev := p.stages[i-1]
			prev.mu.Lock()
			prev.cond.Broadcast()
			prev.mu.Unlock()
		}

		if !p.running() {
			p.finishTask(task, ResultAbort)
			continue
		}

		if !st.fn(task) {
			p.log.WithField("task", task.ID).WithField("stage", i).Debug("stage rejected task")
			if !p.noAbort {
				p.abortAll()
			}
			p.finishTask(task, ResultFail)
			continue
		}

		if i == len(p.stages)-1 {
			p.finishTask(task, ResultSuccess)
			continue
		}

		next := p.stages[i+1]
		next.mu.Lock()
		for next.task != nil && p.running() {
			next.cond.Wait()
		}
		if !p.running() {
			next.mu.Unlock()
			p.finishTask(task, ResultAbort)
			continue
		}
		next.task = task
		next.cond.Broadcast()
		next.mu.Unlock()
	}
}
