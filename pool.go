// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashset

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool schedules the tasks that construct a bucket table in parallel. A Set
// calls Enqueue exactly once per task, passing the index of the worker the
// task is meant for, and waits on every returned Future before the
// allocation returns. An error from Enqueue means the task was not
// scheduled.
type Pool interface {
	Enqueue(worker int, task func() error) (Future, error)
}

// Future is the handle to one enqueued task. Wait blocks until the task has
// finished and returns its error.
type Future interface {
	Wait() error
}

// WorkerPool is a Pool running every task on its own goroutine, with the
// number of concurrently running tasks bounded by an errgroup limit.
//
// A WorkerPool created with NewPool(n) only accepts worker indexes in
// [0, n). The process-wide default pool accepts any non-negative index.
type WorkerPool struct {
	// size is the number of workers, or 0 if worker indexes are unbounded.
	size int
	g    errgroup.Group
}

// NewPool returns a WorkerPool with size workers, running at most size
// tasks at a time.
func NewPool(size int) (*WorkerPool, error) {
	if size <= 0 {
		return nil, ErrInvalidWorkers
	}
	p := &WorkerPool{size: size}
	p.g.SetLimit(size)
	return p, nil
}

var defaultPool = sync.OnceValue(func() *WorkerPool {
	p := &WorkerPool{}
	p.g.SetLimit(runtime.GOMAXPROCS(0))
	return p
})

// Size returns the number of workers, or 0 for a pool that accepts any
// worker index.
func (p *WorkerPool) Size() int {
	return p.size
}

// Enqueue schedules task. It blocks while the pool is running as many tasks
// as its limit allows. A panic in task is recovered and reported by the
// returned Future.
func (p *WorkerPool) Enqueue(worker int, task func() error) (Future, error) {
	if worker < 0 || (p.size > 0 && worker >= p.size) {
		return nil, errorf(CodeInvalidWorker,
			"the worker index %d is out of range for a pool with %d workers", worker, p.size)
	}
	f := &future{done: make(chan struct{})}
	p.g.Go(func() error {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("hashset: task on worker %d panicked: %v", worker, r)
			}
		}()
		f.err = task()
		return nil
	})
	return f, nil
}

type future struct {
	done chan struct{}
	err  error
}

func (f *future) Wait() error {
	<-f.done
	return f.err
}
