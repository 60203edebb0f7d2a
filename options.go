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

// option provide an interface to do work on Set while it is being created.
type option[T any] interface {
	apply(s *Set[T])
}

type hashOption[T any] struct {
	hash func(key *T) uint64
}

func (op hashOption[T]) apply(s *Set[T]) {
	s.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Set[T].
// Elements that compare equal must hash equal.
func WithHash[T any](hash func(key *T) uint64) option[T] {
	return hashOption[T]{hash}
}

type equalOption[T any] struct {
	equal func(a, b *T) bool
}

func (op equalOption[T]) apply(s *Set[T]) {
	s.equal = op.equal
}

// WithEqual is an option to specify the equality predicate to use for a
// Set[T]. It must be an equivalence relation consistent with the hash
// function.
func WithEqual[T any](equal func(a, b *T) bool) option[T] {
	return equalOption[T]{equal}
}

// Allocator specifies an interface for allocating and releasing the bucket
// tables used by a Set. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// The Set constructs (resets to empty) every bucket it receives from
// AllocBuckets before use, so an allocator may hand out recycled storage.
// Every bucket passed to FreeBuckets has been emptied.
type Allocator[T any] interface {
	// AllocBuckets should return a slice equivalent to make([]Bucket[T], n).
	// Returning a shorter slice (or nil) reports an allocation failure.
	AllocBuckets(n int) []Bucket[T]

	// FreeBuckets can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets.
	FreeBuckets(v []Bucket[T])
}

type defaultAllocator[T any] struct{}

func (defaultAllocator[T]) AllocBuckets(n int) []Bucket[T] {
	return make([]Bucket[T], n)
}

func (defaultAllocator[T]) FreeBuckets(v []Bucket[T]) {
}

type allocatorOption[T any] struct {
	allocator Allocator[T]
}

func (op allocatorOption[T]) apply(s *Set[T]) {
	s.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Set[T].
func WithAllocator[T any](allocator Allocator[T]) option[T] {
	return allocatorOption[T]{allocator}
}

type poolOption[T any] struct {
	pool Pool
}

func (op poolOption[T]) apply(s *Set[T]) {
	s.pool = op.pool
}

// WithPool is an option to specify the Pool used to construct bucket tables
// in parallel. Without it, a process-wide pool limited to GOMAXPROCS
// concurrent tasks is used.
func WithPool[T any](pool Pool) option[T] {
	return poolOption[T]{pool}
}

type workersOption[T any] struct {
	workers int
}

func (op workersOption[T]) apply(s *Set[T]) {
	s.workers = op.workers
}

// WithWorkers is an option to specify how many tasks construct a new bucket
// table, both for the initial table and whenever the Set grows or is
// rehashed with Rehash. The default is 1, which constructs tables on the
// calling goroutine. Zero or negative values make the constructor fail with
// ErrInvalidWorkers.
func WithWorkers[T any](workers int) option[T] {
	return workersOption[T]{workers}
}
