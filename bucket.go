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

import "unsafe"

// chainEnd terminates every non-empty chain. Only its address is ever used:
// it is compared by identity and never dereferenced.
var chainEnd byte

func endLink() unsafe.Pointer {
	return unsafe.Pointer(&chainEnd)
}

// slot holds one element plus the link to the next slot of its chain. The
// link doubles as the occupancy flag and has three states:
//
//	nil        the slot is empty and value is the zero T
//	&chainEnd  the slot holds the last element of its chain
//	otherwise  the slot holds an element and next is a *slot[T]
type slot[T any] struct {
	value T
	next  unsafe.Pointer
}

func (s *slot[T]) occupied() bool {
	return s.next != nil
}

// successor returns the slot following s in its chain, or nil if s is the
// last one.
func (s *slot[T]) successor() *slot[T] {
	if s.next == endLink() {
		return nil
	}
	return (*slot[T])(s.next)
}

// Bucket is one chain of a Set's table. The first element of a chain is
// stored inline in the bucket so that a bucket holding a single element
// needs no heap allocation. Further elements live in individually
// allocated slots linked from the inline head.
//
// Bucket is exported only so that an Allocator can provide storage for
// tables. Its zero value is an empty bucket.
type Bucket[T any] struct {
	head slot[T]
}

func (b *Bucket[T]) empty() bool {
	return b.head.next == nil
}

// first returns the inline head, or nil if the bucket is empty.
func (b *Bucket[T]) first() *slot[T] {
	if b.head.next == nil {
		return nil
	}
	return &b.head
}

func (b *Bucket[T]) len() int {
	var n int
	for s := b.first(); s != nil; s = s.successor() {
		n++
	}
	return n
}

// insert adds v to the bucket without checking for duplicates and returns
// the slot now holding it. If the head is taken, v goes into a new slot
// linked directly after the head.
func (b *Bucket[T]) insert(v T) *slot[T] {
	if b.head.next == nil {
		b.head.value = v
		b.head.next = endLink()
		return &b.head
	}
	s := &slot[T]{value: v, next: b.head.next}
	b.head.next = unsafe.Pointer(s)
	return s
}

// destroy zeroes every element, unlinks every heap slot and leaves the
// bucket empty.
func (b *Bucket[T]) destroy() {
	for cur := b.first(); cur != nil; {
		next := cur.successor()
		*cur = slot[T]{}
		cur = next
	}
}

// cloneFrom deep-copies src into b, which must be empty, preserving element
// order. If clone fails, the elements copied so far are destroyed, b is left
// empty and the error is returned.
func (b *Bucket[T]) cloneFrom(src *Bucket[T], clone func(*T) (T, error)) error {
	tail := &b.head
	for o := src.first(); o != nil; o = o.successor() {
		v, err := clone(&o.value)
		if err != nil {
			b.destroy()
			return err
		}
		if tail.next == nil {
			tail.value = v
			tail.next = endLink()
			continue
		}
		s := &slot[T]{value: v, next: endLink()}
		tail.next = unsafe.Pointer(s)
		tail = s
	}
	return nil
}

// moveFrom steals the chain of src, leaving src empty. b must be empty.
func (b *Bucket[T]) moveFrom(src *Bucket[T]) {
	b.head = src.head
	src.head = slot[T]{}
}

// erase removes the element held by s and returns the slot holding the
// element that logically follows it in the bucket, or nil if there is none.
//
// The first element of a chain always lives in the inline head, so erasing
// the head of a chain with more than one element relocates the second
// element into the head and frees the second slot. The returned slot is
// then the head itself.
func (b *Bucket[T]) erase(s *slot[T]) *slot[T] {
	if s == &b.head {
		next := b.head.successor()
		if next == nil {
			b.head = slot[T]{}
			return nil
		}
		b.head.value = next.value
		b.head.next = next.next
		*next = slot[T]{}
		return &b.head
	}

	prev := &b.head
	for cur := prev.successor(); cur != nil; prev, cur = cur, cur.successor() {
		if cur == s {
			prev.next = cur.next
			*cur = slot[T]{}
			return prev.successor()
		}
	}
	panic("hashset: erased slot does not belong to its bucket")
}
