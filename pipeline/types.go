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

// Package pipeline implements a bounded multi-stage scheduler: one worker
// goroutine per stage, a condition variable per stage guarding its single
// task slot, and back-pressure from the in-flight counter.
package pipeline

import "github.com/google/uuid"

// Flags configures pipeline-wide behavior.
type Flags int

const (
	// NoAbort keeps other in-flight tasks running after a stage failure
	// instead of flipping the whole pipeline to the abort state.
	NoAbort Flags = 1 << iota
)

// Result is reported to the finished callback once a task leaves the
// pipeline, whichever way it left.
type Result int

const (
	ResultSuccess Result = iota
	ResultFail
	ResultAbort
)

// StageFunc is one stage's body. Returning false fails the task.
type StageFunc func(task *Task) bool

// FinishedFunc is invoked exactly once per task, when it leaves the
// pipeline (success at the last stage, failure at any stage, or abort).
type FinishedFunc func(task *Task, result Result)

// Task is a single unit of work flowing through the pipeline's stages in
// order.
type Task struct {
	ID   uuid.UUID
	Data any
}
