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
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestLog2FromHint(t *testing.T) {
	testCases := []struct {
		hint     int
		expected uint
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{1 << 20, 20},
		{1<<20 + 1, 21},
		{1 << (bits.UintSize - 2), bits.UintSize - 2},
	}
	for _, c := range testCases {
		t.Run(fmt.Sprint(c.hint), func(t *testing.T) {
			log2Size, err := log2FromHint(c.hint)
			require.NoError(t, err)
			require.EqualValues(t, c.expected, log2Size)
		})
	}

	_, err := log2FromHint(1<<(bits.UintSize-2) + 1)
	require.ErrorIs(t, err, ErrAllocation)
	_, err = log2FromHint(math.MaxInt)
	require.ErrorIs(t, err, ErrAllocation)
}

// recyclingAllocator hands out storage that still holds stale elements, and
// remembers the last table it handed out.
type recyclingAllocator struct {
	last  []Bucket[int]
	alloc int
	free  int
}

func (a *recyclingAllocator) AllocBuckets(n int) []Bucket[int] {
	a.alloc++
	a.last = make([]Bucket[int], n)
	for i := range a.last {
		a.last[i].insert(-i)
	}
	return a.last
}

func (a *recyclingAllocator) FreeBuckets(_ []Bucket[int]) {
	a.free++
}

func TestNewTable(t *testing.T) {
	for _, workers := range []int{1, 2, 3, 4, 7, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			a := &recyclingAllocator{}
			tab, err := newTable[int](1000, workers, defaultPool(), a)
			require.NoError(t, err)
			require.EqualValues(t, 10, tab.log2Size)
			require.EqualValues(t, 1024, len(tab.buckets))
			for i := range tab.buckets {
				require.True(t, tab.buckets[i].empty(), "bucket %d", i)
			}
			require.EqualValues(t, 1, a.alloc)
			require.EqualValues(t, 0, a.free)

			tab.free(a)
			require.Nil(t, tab.buckets)
			require.EqualValues(t, 1, a.free)
		})
	}

	t.Run("more workers than buckets", func(t *testing.T) {
		tab, err := newTable[int](2, 5, defaultPool(), defaultAllocator[int]{})
		require.NoError(t, err)
		require.EqualValues(t, 2, len(tab.buckets))
	})

	t.Run("unallocated", func(t *testing.T) {
		tab, err := newTable[int](0, 4, defaultPool(), defaultAllocator[int]{})
		require.NoError(t, err)
		require.Nil(t, tab.buckets)
		require.EqualValues(t, 0, tab.log2Size)
	})

	t.Run("invalid workers", func(t *testing.T) {
		_, err := newTable[int](16, 0, defaultPool(), defaultAllocator[int]{})
		require.ErrorIs(t, err, ErrInvalidWorkers)
	})
}

func TestNewTableRejectingPool(t *testing.T) {
	// A pool with two workers rejects the third task.
	p, err := NewPool(2)
	require.NoError(t, err)
	a := &recyclingAllocator{}
	_, err = newTable[int](1024, 4, p, a)
	require.ErrorIs(t, err, ErrInvalidWorker)
	require.EqualValues(t, 1, a.alloc)
	require.EqualValues(t, 1, a.free)
	for i := range a.last[:512] {
		require.True(t, a.last[i].empty(), "bucket %d", i)
	}

	s, err := New[int](1024, WithPool[int](p), WithWorkers[int](4))
	require.ErrorIs(t, err, ErrInvalidWorker)
	require.Nil(t, s)
}

// failingPool runs tasks inline, except for the task of one worker which
// is never run and reported as failed.
type failingPool struct {
	mu     sync.Mutex
	fail   int
	ran    []int
	failed error
}

type doneFuture struct {
	err error
}

func (f doneFuture) Wait() error {
	return f.err
}

func (p *failingPool) Enqueue(worker int, task func() error) (Future, error) {
	if worker == p.fail {
		return doneFuture{err: p.failed}, nil
	}
	p.mu.Lock()
	p.ran = append(p.ran, worker)
	p.mu.Unlock()
	return doneFuture{err: task()}, nil
}

func TestNewTableFailingTask(t *testing.T) {
	errTask := errors.New("task failed")
	p := &failingPool{fail: 1, failed: errTask}
	a := &recyclingAllocator{}
	_, err := newTable[int](64, 4, p, a)
	require.ErrorIs(t, err, errTask)
	require.Equal(t, []int{0, 2, 3}, p.ran)
	require.EqualValues(t, 1, a.free)

	// The completed ranges were torn down. The range of the failed task
	// still holds whatever the storage held.
	for i, b := range a.last {
		if i >= 16 && i < 32 {
			require.False(t, b.empty(), "bucket %d", i)
			continue
		}
		require.True(t, b.empty(), "bucket %d", i)
	}
}

func TestNewTablePanickingTask(t *testing.T) {
	p := &panickingPool{}
	_, err := newTable[int](64, 2, p, defaultAllocator[int]{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "panicked")
}

// panickingPool runs every task on a WorkerPool, replacing the task of
// worker 0 with one that panics.
type panickingPool struct{}

func (panickingPool) Enqueue(worker int, task func() error) (Future, error) {
	if worker == 0 {
		task = func() error {
			panic("boom")
		}
	}
	return defaultPool().Enqueue(worker, task)
}

func TestTableIndex(t *testing.T) {
	tab, err := newTable[int](8, 1, defaultPool(), defaultAllocator[int]{})
	require.NoError(t, err)
	require.EqualValues(t, 0, tab.index(0))
	require.EqualValues(t, 7, tab.index(7))
	require.EqualValues(t, 0, tab.index(8))
	require.EqualValues(t, 7, tab.index(math.MaxUint64))
}

func TestChainEnd(t *testing.T) {
	// The terminator is a single process-wide address.
	require.True(t, endLink() == unsafe.Pointer(&chainEnd))
	var a, b Bucket[string]
	a.insert("x")
	b.insert("y")
	require.True(t, a.head.next == b.head.next)
}
