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
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	_, err := NewPool(0)
	require.ErrorIs(t, err, ErrInvalidWorkers)
	_, err = NewPool(-3)
	require.ErrorIs(t, err, ErrInvalidWorkers)

	p, err := NewPool(3)
	require.NoError(t, err)
	require.EqualValues(t, 3, p.Size())
	require.EqualValues(t, 0, defaultPool().Size())
}

func TestPoolEnqueue(t *testing.T) {
	p, err := NewPool(4)
	require.NoError(t, err)

	var n atomic.Int64
	var futures []Future
	for i := 0; i < 4; i++ {
		f, err := p.Enqueue(i, func() error {
			n.Add(1)
			return nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}
	for _, f := range futures {
		require.NoError(t, f.Wait())
	}
	require.EqualValues(t, 4, n.Load())

	for _, worker := range []int{-1, 4, 100} {
		_, err := p.Enqueue(worker, func() error { return nil })
		require.ErrorIs(t, err, ErrInvalidWorker)
	}

	// The default pool accepts any worker index.
	f, err := defaultPool().Enqueue(1000, func() error { return nil })
	require.NoError(t, err)
	require.NoError(t, f.Wait())
}

func TestPoolTaskFailure(t *testing.T) {
	p, err := NewPool(2)
	require.NoError(t, err)

	errTask := errors.New("task failed")
	f, err := p.Enqueue(0, func() error { return errTask })
	require.NoError(t, err)
	require.ErrorIs(t, f.Wait(), errTask)

	f, err = p.Enqueue(1, func() error { panic("boom") })
	require.NoError(t, err)
	err = f.Wait()
	require.Error(t, err)
	require.Contains(t, err.Error(), "worker 1 panicked: boom")
}
