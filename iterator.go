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

// Iterator is a forward cursor over the elements of a Set. It is made of a
// bucket index and a position within that bucket's chain. The end iterator
// has the bucket index BucketCount() and no position.
//
// Any insertion, rehash or clear invalidates every iterator of the Set.
// Erase invalidates the erased iterator and, when the erased element was the
// first of its bucket, any iterator to the second element of that bucket;
// use the iterator returned by Erase to continue.
type Iterator[T any] struct {
	s    *Set[T]
	idx  int
	slot *slot[T]
}

// Done reports whether it is the end iterator.
func (it Iterator[T]) Done() bool {
	return it.slot == nil
}

// Value returns the element it points to. It panics on the end iterator.
func (it Iterator[T]) Value() T {
	return it.slot.value
}

// Ptr returns a pointer to the element it points to. Mutating the element
// in a way that changes its hash or its equivalence class corrupts the Set.
func (it Iterator[T]) Ptr() *T {
	return &it.slot.value
}

// Bucket returns the index of the bucket it points into.
func (it Iterator[T]) Bucket() int {
	return it.idx
}

// Equal reports whether it and other point to the same position.
func (it Iterator[T]) Equal(other Iterator[T]) bool {
	return it.s == other.s && it.idx == other.idx && it.slot == other.slot
}

// Next returns the iterator to the element following it, moving on to the
// next non-empty bucket when the current chain is exhausted.
func (it Iterator[T]) Next() Iterator[T] {
	if next := it.slot.successor(); next != nil {
		it.slot = next
		return it
	}
	return it.s.seek(it.idx + 1)
}

// LocalIterator is a forward cursor over the chain of a single bucket.
type LocalIterator[T any] struct {
	slot *slot[T]
}

// Done reports whether the chain is exhausted.
func (it LocalIterator[T]) Done() bool {
	return it.slot == nil
}

// Value returns the element it points to.
func (it LocalIterator[T]) Value() T {
	return it.slot.value
}

// Next returns the iterator to the next element of the chain.
func (it LocalIterator[T]) Next() LocalIterator[T] {
	return LocalIterator[T]{slot: it.slot.successor()}
}

// Begin returns an iterator to the first element of s, or End() if s is
// empty.
func (s *Set[T]) Begin() Iterator[T] {
	return s.seek(0)
}

// End returns the end iterator of s.
func (s *Set[T]) End() Iterator[T] {
	return Iterator[T]{s: s, idx: s.BucketCount()}
}

// seek returns an iterator to the head of the first non-empty bucket at or
// after idx, or End().
func (s *Set[T]) seek(idx int) Iterator[T] {
	for n := len(s.table.buckets); idx < n; idx++ {
		if b := &s.table.buckets[idx]; !b.empty() {
			return Iterator[T]{s: s, idx: idx, slot: &b.head}
		}
	}
	return s.End()
}

// BucketAt returns an iterator over the chain of the bucket at index idx,
// which must be in [0, BucketCount()).
func (s *Set[T]) BucketAt(idx int) LocalIterator[T] {
	return LocalIterator[T]{slot: s.table.buckets[idx].first()}
}

// All calls yield sequentially for each element present in the set. If
// yield returns false, iteration stops. The set must not be mutated during
// iteration.
func (s *Set[T]) All(yield func(v T) bool) {
	for i := range s.table.buckets {
		for p := s.table.buckets[i].first(); p != nil; p = p.successor() {
			if !yield(p.value) {
				return
			}
		}
	}
}
