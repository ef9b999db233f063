// Mgmt
// Copyright (C) 2013-2021+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package semaphore contains a counting semaphore used to bound how many
// non-trivial vertex bodies graph.PoolExecutor runs concurrently. Acquiring
// n > 1 at once lets a caller reserve a block of the pool in one call
// instead of looping P(1) n times.
package semaphore

import (
	"fmt"
)

// Semaphore is a counting semaphore. It must be initialized before use.
type Semaphore struct {
	C      chan struct{}
	closed chan struct{}
}

// NewSemaphore creates a new semaphore of the given size.
func NewSemaphore(size int) *Semaphore {
	obj := &Semaphore{}
	obj.Init(size)
	return obj
}

// Init initializes the semaphore.
func (obj *Semaphore) Init(size int) {
	obj.C = make(chan struct{}, size)
	obj.closed = make(chan struct{})
}

// Close shuts the semaphore down: every blocked or future P/V returns an
// error instead of hanging, so a PoolExecutor can drain in-flight vertex
// bodies during host shutdown instead of waiting forever for a slot.
func (obj *Semaphore) Close() {
	close(obj.closed)
}

// P acquires n resources, blocking until they're all available or the
// semaphore is closed.
func (obj *Semaphore) P(n int) error {
	for i := 0; i < n; i++ {
		select {
		case <-obj.closed: // checked first, so a free slot can't win after Close
			return fmt.Errorf("semaphore: closed")
		default:
		}
		select {
		case obj.C <- struct{}{}: // acquire one
		case <-obj.closed: // exit signal
			return fmt.Errorf("semaphore: closed")
		}
	}
	return nil
}

// V releases n resources previously acquired with P.
func (obj *Semaphore) V(n int) error {
	for i := 0; i < n; i++ {
		select {
		case <-obj.closed: // checked first, same as P
			return fmt.Errorf("semaphore: closed")
		default:
		}
		select {
		case <-obj.C: // release one
		case <-obj.closed: // exit signal
			return fmt.Errorf("semaphore: closed")
		default: // trying to release something that isn't locked
			panic("semaphore: V > P")
		}
	}
	return nil
}
