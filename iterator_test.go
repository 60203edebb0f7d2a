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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIterate(t *testing.T) {
	s := mustSet[int](t, 0)
	require.True(t, s.Begin().Done())

	e := make(map[int]struct{})
	for i := 0; i < 500; i++ {
		mustInsert(t, s, i*i)
		e[i*i] = struct{}{}
	}

	seen := make(map[int]struct{})
	var count int
	prev := -1
	for it := s.Begin(); !it.Equal(s.End()); it = it.Next() {
		require.GreaterOrEqual(t, it.Bucket(), prev)
		prev = it.Bucket()
		seen[it.Value()] = struct{}{}
		require.EqualValues(t, it.Value(), *it.Ptr())
		count++
	}
	require.EqualValues(t, s.Len(), count)
	require.Equal(t, e, seen)
}

func TestLocalIterator(t *testing.T) {
	s, err := NewFunc[int](8, identityHash, intEqual)
	require.NoError(t, err)
	for _, v := range []int{3, 11, 19, 4} {
		mustInsert(t, s, v)
	}

	var chain []int
	for it := s.BucketAt(3); !it.Done(); it = it.Next() {
		chain = append(chain, it.Value())
	}
	require.Equal(t, []int{3, 19, 11}, chain)
	require.True(t, s.BucketAt(0).Done())

	var total int
	for i := 0; i < s.BucketCount(); i++ {
		for it := s.BucketAt(i); !it.Done(); it = it.Next() {
			total++
		}
	}
	require.EqualValues(t, s.Len(), total)
}

func TestAll(t *testing.T) {
	s := mustSet[int](t, 0)
	for i := 0; i < 100; i++ {
		mustInsert(t, s, i)
	}

	var n int
	s.All(func(v int) bool {
		n++
		return n < 10
	})
	require.EqualValues(t, 10, n)

	n = 0
	for range s.All {
		n++
	}
	require.EqualValues(t, 100, n)
}

func TestIteratorPtr(t *testing.T) {
	type term struct {
		key   int
		coeff float64
	}
	s, err := NewFunc[term](0,
		func(k *term) uint64 { return uint64(k.key) },
		func(a, b *term) bool { return a.key == b.key })
	require.NoError(t, err)
	mustInsert(t, s, term{key: 1, coeff: 2})

	// Mutating a part of the element that does not take part in hashing or
	// equality is allowed.
	s.Find(term{key: 1}).Ptr().coeff += 3
	require.EqualValues(t, 5, s.Find(term{key: 1}).Value().coeff)
}
