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

// package hashset is a separate-chaining hash set intended as the storage
// backbone of symbolic algebra containers: polynomial terms keyed by packed
// exponent encodings are stored, looked up, merged and removed through it.
//
// # Layout
//
// A Set owns a table of 2^N buckets (or no table at all when it has never
// held anything). Each bucket is a singly linked chain. The first element of
// a chain is stored inline in the bucket, so the common case of a bucket
// holding a single element costs no heap allocation; further elements are
// individually allocated slots linked after the inline head.
//
//	 table (N=2)
//	+---------------+
//	| head: a  next-+--> [c] --> [d] --> end
//	+---------------+
//	| head: -       |                          (empty)
//	+---------------+
//	| head: b  end  |
//	+---------------+
//	| head: -       |
//	+---------------+
//
// The link of a slot doubles as its occupancy flag: nil means empty, the
// address of a process-wide terminator means "last element of the chain",
// and anything else is the next slot.
//
// A new element goes into the inline head if the bucket is empty and
// directly after the head otherwise. Erasing the head of a chain with more
// than one element moves the second element into the head, which keeps the
// first element of every chain inline.
//
// # Growth
//
// The maximum load factor is fixed at 1. An insertion that would push the
// load factor above it doubles the table first. Growth and explicit Rehash
// allocate a complete new table and reinsert every element into it. The
// buckets of a new table can be constructed by several tasks running on a
// Pool, which pays off for very large tables.
//
// # Failure guarantees
//
// Growth and Rehash provide a weak guarantee: if they fail, the set is
// either functionally unchanged (the new table could not be allocated) or
// empty (reinsertion was interrupted by a panicking hash function).
//
// A Set is NOT goroutine-safe.
package hashset

import (
	"fmt"
	"hash/maphash"
	"math"
	"strings"
)

const (
	debug = false

	maxLoadFactor = 1.0
)

// Set is an unordered set of elements of type T. By default, a Set[T] for a
// comparable T hashes with hash/maphash and compares with ==; any element
// type can be used with NewFunc, or with the WithHash and WithEqual options.
//
// The zero value for a Set is not usable.
type Set[T any] struct {
	hash  func(key *T) uint64
	equal func(a, b *T) bool
	// The allocator to use for bucket tables.
	allocator Allocator[T]
	// The pool and the number of tasks used to construct new tables.
	pool    Pool
	workers int
	table   table[T]
	// The number of elements in the set.
	used int
}

// New constructs a new Set with at least the specified number of buckets.
// If buckets is 0 the set starts without a table and allocates one on the
// first insert.
func New[T comparable](buckets int, options ...option[T]) (*Set[T], error) {
	seed := maphash.MakeSeed()
	hash := func(key *T) uint64 {
		return maphash.Comparable(seed, *key)
	}
	equal := func(a, b *T) bool {
		return *a == *b
	}
	return newSet(buckets, hash, equal, options)
}

// NewFunc constructs a new Set with at least the specified number of
// buckets, hashing and comparing elements with the supplied functions.
func NewFunc[T any](
	buckets int, hash func(key *T) uint64, equal func(a, b *T) bool, options ...option[T],
) (*Set[T], error) {
	if hash == nil || equal == nil {
		panic("hashset: NewFunc requires a hash function and an equality predicate")
	}
	return newSet(buckets, hash, equal, options)
}

// NewFrom constructs a new Set sized for and holding the given values.
// Duplicates in values are stored once.
func NewFrom[T comparable](values []T, options ...option[T]) (*Set[T], error) {
	s, err := New[T](len(values), options...)
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if _, _, err := s.Insert(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newSet[T any](
	buckets int, hash func(key *T) uint64, equal func(a, b *T) bool, options []option[T],
) (*Set[T], error) {
	s := &Set[T]{
		hash:      hash,
		equal:     equal,
		allocator: defaultAllocator[T]{},
		workers:   1,
	}
	for _, op := range options {
		op.apply(s)
	}
	if s.pool == nil {
		s.pool = defaultPool()
	}
	if s.workers <= 0 {
		return nil, ErrInvalidWorkers
	}

	t, err := newTable(buckets, s.workers, s.pool, s.allocator)
	if err != nil {
		return nil, err
	}
	s.table = t
	s.checkInvariants()
	return s, nil
}

// Close releases the table back to the configured allocator. It is
// unnecessary to close a set using the default allocator. It is invalid to
// use a Set after it has been closed, though Close itself is idempotent.
func (s *Set[T]) Close() {
	if s.allocator != nil {
		s.table.free(s.allocator)
	}
	s.used = 0
	s.allocator = nil
}

// Len returns the number of elements in the set.
func (s *Set[T]) Len() int {
	return s.used
}

// Empty reports whether the set holds no elements.
func (s *Set[T]) Empty() bool {
	return s.used == 0
}

// BucketCount returns the number of buckets, 0 if no table is allocated.
func (s *Set[T]) BucketCount() int {
	return len(s.table.buckets)
}

// LoadFactor returns Len()/BucketCount(), or 0 if no table is allocated.
func (s *Set[T]) LoadFactor() float64 {
	if n := s.BucketCount(); n > 0 {
		return float64(s.used) / float64(n)
	}
	return 0
}

// MaxLoadFactor returns the maximum load factor, which is fixed at 1.
func (s *Set[T]) MaxLoadFactor() float64 {
	return maxLoadFactor
}

// Hash returns the hash of key under the set's hash function.
func (s *Set[T]) Hash(key T) uint64 {
	return s.hash(&key)
}

// Bucket returns the index of the bucket key belongs to. It fails with
// ErrZeroDivision if no table is allocated.
func (s *Set[T]) Bucket(key T) (int, error) {
	if s.BucketCount() == 0 {
		return 0, ErrZeroDivision
	}
	return s.table.index(s.hash(&key)), nil
}

// Find returns an iterator to the element equal to key, or End() if there
// is none.
func (s *Set[T]) Find(key T) Iterator[T] {
	if s.BucketCount() == 0 {
		return s.End()
	}
	return s.find(&key, s.table.index(s.hash(&key)))
}

// Contains reports whether an element equal to key is present.
func (s *Set[T]) Contains(key T) bool {
	return !s.Find(key).Done()
}

// find scans the bucket at idx for key.
func (s *Set[T]) find(key *T, idx int) Iterator[T] {
	for p := s.table.buckets[idx].first(); p != nil; p = p.successor() {
		if s.equal(&p.value, key) {
			return Iterator[T]{s: s, idx: idx, slot: p}
		}
	}
	return s.End()
}

// Insert adds v to the set unless an equal element is already present. It
// returns an iterator to the element in the set and whether v was
// inserted.
//
// If the insertion requires growing the table and the growth fails, the
// error is returned and the set is left unchanged.
func (s *Set[T]) Insert(v T) (Iterator[T], bool, error) {
	if s.BucketCount() == 0 {
		if err := s.increaseSize(); err != nil {
			return s.End(), false, err
		}
	}
	h := s.hash(&v)
	idx := s.table.index(h)
	if it := s.find(&v, idx); !it.Done() {
		return it, false, nil
	}
	if s.used == math.MaxInt {
		return s.End(), false, ErrOverflow
	}
	if float64(s.used+1)/float64(s.BucketCount()) > maxLoadFactor {
		if err := s.increaseSize(); err != nil {
			return s.End(), false, err
		}
		// The table changed size, so the index has to be recomputed.
		idx = s.table.index(h)
	}
	it := Iterator[T]{s: s, idx: idx, slot: s.table.buckets[idx].insert(v)}
	s.used++
	s.checkInvariants()
	return it, true, nil
}

// Erase removes the element it points to and returns an iterator to the
// element that followed it, or End(). it must point to an element of s.
func (s *Set[T]) Erase(it Iterator[T]) Iterator[T] {
	if it.s != s || it.slot == nil {
		panic("hashset: erase of an iterator that does not point into the set")
	}
	next := s.table.buckets[it.idx].erase(it.slot)
	s.used--
	s.checkInvariants()
	if next != nil {
		return Iterator[T]{s: s, idx: it.idx, slot: next}
	}
	return s.seek(it.idx + 1)
}

// Remove erases the element equal to key, reporting whether there was one.
func (s *Set[T]) Remove(key T) bool {
	it := s.Find(key)
	if it.Done() {
		return false
	}
	s.Erase(it)
	return true
}

// Clear removes every element and releases the table. BucketCount() is 0
// afterwards.
func (s *Set[T]) Clear() {
	s.table.free(s.allocator)
	s.used = 0
}

// Swap exchanges the contents, functions and configuration of s and other.
func (s *Set[T]) Swap(other *Set[T]) {
	*s, *other = *other, *s
}

// Move returns a new Set that takes over the table and configuration of s.
// s is left empty and without a table, and remains usable.
func (s *Set[T]) Move() *Set[T] {
	m := *s
	s.table = table[T]{}
	s.used = 0
	return &m
}

// Clone returns a deep copy of s with the same bucket layout.
func (s *Set[T]) Clone() (*Set[T], error) {
	return s.CloneFunc(func(v *T) (T, error) {
		return *v, nil
	})
}

// CloneFunc returns a deep copy of s, copying each element with clone. If
// clone fails, everything copied so far is released and the error is
// returned; s is not modified.
func (s *Set[T]) CloneFunc(clone func(v *T) (T, error)) (*Set[T], error) {
	c := &Set[T]{
		hash:      s.hash,
		equal:     s.equal,
		allocator: s.allocator,
		pool:      s.pool,
		workers:   s.workers,
	}
	n := s.BucketCount()
	if n == 0 {
		return c, nil
	}

	buckets := s.allocator.AllocBuckets(n)
	if len(buckets) < n {
		if buckets != nil {
			s.allocator.FreeBuckets(buckets)
		}
		return nil, errorf(CodeAllocation, "allocator provided %d of %d buckets", len(buckets), n)
	}
	buckets = buckets[:n:n]
	for i := range buckets {
		buckets[i] = Bucket[T]{}
		if err := buckets[i].cloneFrom(&s.table.buckets[i], clone); err != nil {
			for j := 0; j < i; j++ {
				buckets[j].destroy()
			}
			s.allocator.FreeBuckets(buckets)
			return nil, err
		}
	}
	c.table = table[T]{buckets: buckets, log2Size: s.table.log2Size}
	c.used = s.used
	c.checkInvariants()
	return c, nil
}

// Rehash changes the number of buckets to at least n, using the number of
// workers configured with WithWorkers to construct the new table. See
// RehashWorkers.
func (s *Set[T]) Rehash(n int) error {
	return s.RehashWorkers(n, s.workers)
}

// RehashWorkers changes the number of buckets to the smallest power of two
// >= n and redistributes every element, constructing the new table with the
// given number of workers.
//
// If n is 0, an empty set releases its table and a non-empty set is left
// alone. If n buckets would push the load factor above 1, RehashWorkers does
// nothing.
//
// If the new table cannot be allocated, the set is unchanged. If the hash
// function panics while elements are being moved, both the old and the new
// table are cleared before the panic continues, leaving s empty.
func (s *Set[T]) RehashWorkers(n, workers int) error {
	if workers <= 0 {
		return ErrInvalidWorkers
	}
	if n <= 0 {
		if s.used == 0 {
			s.Clear()
		}
		return nil
	}
	if float64(s.used)/float64(n) > maxLoadFactor {
		return nil
	}

	nt, err := newTable(n, workers, s.pool, s.allocator)
	if err != nil {
		return err
	}
	if debug {
		fmt.Printf("rehash: buckets=%d->%d  used=%d\n", s.BucketCount(), len(nt.buckets), s.used)
	}

	moved := false
	defer func() {
		if !moved {
			s.Clear()
			nt.free(s.allocator)
			if debug {
				fmt.Printf("rehash: interrupted, set cleared\n")
			}
		}
	}()
	for i := range s.table.buckets {
		for p := s.table.buckets[i].first(); p != nil; p = p.successor() {
			nt.buckets[nt.index(s.hash(&p.value))].insert(p.value)
		}
	}
	moved = true

	old := s.table
	s.table = nt
	old.free(s.allocator)
	s.checkInvariants()
	return nil
}

// increaseSize doubles the number of buckets, or allocates a single bucket
// if no table is allocated.
func (s *Set[T]) increaseSize() error {
	if s.table.log2Size >= maxLog2Size-1 {
		return errorf(CodeAllocation, "cannot grow a table of 2^%d buckets", s.table.log2Size)
	}
	var log2Size uint
	if s.table.buckets != nil {
		log2Size = s.table.log2Size + 1
	}
	if debug {
		fmt.Printf("grow: log2Size=%d->%d  used=%d\n", s.table.log2Size, log2Size, s.used)
	}
	return s.RehashWorkers(1<<log2Size, s.workers)
}

// UniqueInsert stores v in the bucket at idx without looking for an equal
// element and without updating the element count. It is meant for bulk
// callers that know v is absent and already computed idx with
// BucketFromHash; they call UpdateSize once they are done. Violating either
// precondition corrupts the set.
func (s *Set[T]) UniqueInsert(v T, idx int) Iterator[T] {
	if invariants {
		if want := s.table.index(s.hash(&v)); want != idx {
			panic(fmt.Sprintf("invariant failed: %v belongs to bucket %d, not %d", v, want, idx))
		}
		if !s.find(&v, idx).Done() {
			panic(fmt.Sprintf("invariant failed: %v is already present", v))
		}
	}
	return Iterator[T]{s: s, idx: idx, slot: s.table.buckets[idx].insert(v)}
}

// BucketFromHash maps a hash value to a bucket index. A table must be
// allocated.
func (s *Set[T]) BucketFromHash(h uint64) int {
	return s.table.index(h)
}

// UpdateSize overwrites the element count. It is meant to be called after a
// series of UniqueInsert calls.
func (s *Set[T]) UpdateSize(n int) {
	s.used = n
}

// Sparsity returns, for each chain length present in the table, the number
// of buckets with that length. It is a diagnostic of hash quality.
func (s *Set[T]) Sparsity() map[int]int {
	r := make(map[int]int)
	for i := range s.table.buckets {
		r[s.table.buckets[i].len()]++
	}
	return r
}

// SanityCheck verifies the structural invariants of the set: every element
// sits in the bucket its hash selects, the element count matches both the
// chains and a full traversal, the table size is representable and the load
// factor does not exceed the maximum.
func (s *Set[T]) SanityCheck() error {
	if s.table.buckets == nil {
		if s.table.log2Size != 0 || s.used != 0 {
			return fmt.Errorf("unallocated table with log2Size=%d and %d elements", s.table.log2Size, s.used)
		}
		return nil
	}
	if s.table.log2Size >= maxLog2Size {
		return fmt.Errorf("log2Size=%d is out of range", s.table.log2Size)
	}
	if len(s.table.buckets) != 1<<s.table.log2Size {
		return fmt.Errorf("%d buckets but log2Size=%d", len(s.table.buckets), s.table.log2Size)
	}

	var count int
	for i := range s.table.buckets {
		for p := s.table.buckets[i].first(); p != nil; p = p.successor() {
			if idx := s.table.index(s.hash(&p.value)); idx != i {
				return fmt.Errorf("%v found in bucket %d but hashes to bucket %d", p.value, i, idx)
			}
			count++
		}
	}
	if count != s.used {
		return fmt.Errorf("found %d elements in the chains, but used count is %d", count, s.used)
	}

	count = 0
	for it := s.Begin(); !it.Done(); it = it.Next() {
		count++
	}
	if count != s.used {
		return fmt.Errorf("traversal visited %d elements, but used count is %d", count, s.used)
	}

	if s.LoadFactor() > maxLoadFactor {
		return fmt.Errorf("load factor %f exceeds %f", s.LoadFactor(), maxLoadFactor)
	}
	return nil
}

func (s *Set[T]) checkInvariants() {
	if invariants {
		if err := s.SanityCheck(); err != nil {
			panic(fmt.Sprintf("invariant failed: %v\n%s", err, s.debugString()))
		}
	}
}

func (s *Set[T]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  used=%d  log2Size=%d\n", s.BucketCount(), s.used, s.table.log2Size)
	for i := range s.table.buckets {
		b := &s.table.buckets[i]
		if b.empty() {
			continue
		}
		fmt.Fprintf(&buf, "  %4d:", i)
		for p := b.first(); p != nil; p = p.successor() {
			fmt.Fprintf(&buf, " %v", p.value)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}
