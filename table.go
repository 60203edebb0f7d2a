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
	"math/bits"
)

// maxLog2Size bounds table sizes: a bucket count 1<<log2Size must be a
// positive int, so log2Size < bits.UintSize-1.
const maxLog2Size = bits.UintSize - 1

// table is the bucket array of a Set. Its length is always a power of two,
// 1<<log2Size, except in the unallocated state where buckets is nil and
// log2Size is 0.
type table[T any] struct {
	buckets  []Bucket[T]
	log2Size uint
}

// log2FromHint returns the smallest i such that 1<<i >= hint.
func log2FromHint(hint int) (uint, error) {
	for i := uint(0); i < maxLog2Size; i++ {
		if 1<<i >= hint {
			return i, nil
		}
	}
	return 0, errorf(CodeAllocation, "a table of %d buckets cannot be represented", hint)
}

// newTable allocates a table with at least hint buckets, constructing the
// buckets with the given number of workers. A hint <= 0 yields the
// unallocated table. On failure nothing is left allocated.
func newTable[T any](hint, workers int, pool Pool, alloc Allocator[T]) (table[T], error) {
	if workers <= 0 {
		return table[T]{}, ErrInvalidWorkers
	}
	if hint <= 0 {
		return table[T]{}, nil
	}
	log2Size, err := log2FromHint(hint)
	if err != nil {
		return table[T]{}, err
	}
	n := 1 << log2Size

	buckets := alloc.AllocBuckets(n)
	if len(buckets) < n {
		if buckets != nil {
			alloc.FreeBuckets(buckets)
		}
		return table[T]{}, errorf(CodeAllocation, "allocator provided %d of %d buckets", len(buckets), n)
	}
	buckets = buckets[:n:n]

	if debug {
		fmt.Printf("table: allocating %d buckets (hint=%d workers=%d)\n", n, hint, workers)
	}
	if err := constructBuckets(buckets, workers, pool); err != nil {
		alloc.FreeBuckets(buckets)
		return table[T]{}, err
	}
	return table[T]{buckets: buckets, log2Size: log2Size}, nil
}

// constructBuckets resets every bucket to empty. With more than one worker
// the buckets are split into workers contiguous ranges, the last range
// absorbing the remainder, and each range is handed to the pool as an
// independent task.
//
// If scheduling fails or a task reports an error, the ranges whose tasks
// completed are destroyed again before the error is returned.
func constructBuckets[T any](buckets []Bucket[T], workers int, pool Pool) error {
	if workers == 1 {
		for i := range buckets {
			buckets[i] = Bucket[T]{}
		}
		return nil
	}

	type span struct {
		start, end int
	}
	// constructed[i] is written by task i once its range is done. Reads
	// happen after the corresponding Future has been waited on.
	constructed := make([]span, workers)
	futures := make([]Future, 0, workers)
	perWorker := len(buckets) / workers

	var err error
	for i := 0; i < workers; i++ {
		start, end := perWorker*i, perWorker*(i+1)
		if i == workers-1 {
			end = len(buckets)
		}
		f, ferr := pool.Enqueue(i, func() error {
			for j := start; j < end; j++ {
				buckets[j] = Bucket[T]{}
			}
			constructed[i] = span{start, end}
			return nil
		})
		if ferr != nil {
			err = ferr
			break
		}
		futures = append(futures, f)
	}
	for _, f := range futures {
		if werr := f.Wait(); werr != nil && err == nil {
			err = werr
		}
	}

	if err != nil {
		if debug {
			fmt.Printf("table: construction failed after %d of %d tasks: %v\n", len(futures), workers, err)
		}
		for _, r := range constructed {
			for j := r.start; j < r.end; j++ {
				buckets[j].destroy()
			}
		}
		return err
	}
	return nil
}

// index maps a hash value to a bucket index. The table must be allocated.
func (t *table[T]) index(h uint64) int {
	return int(h & uint64(len(t.buckets)-1))
}

// free destroys every bucket and returns the storage to alloc, leaving t
// unallocated.
func (t *table[T]) free(alloc Allocator[T]) {
	if t.buckets == nil {
		return
	}
	for i := range t.buckets {
		t.buckets[i].destroy()
	}
	alloc.FreeBuckets(t.buckets)
	*t = table[T]{}
}
