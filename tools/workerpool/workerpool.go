/* workerpool runs a limited number of error returning jobs concurrently, and collects their errors.
 *
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package workerpool

import (
	"errors"
	"fmt"
	"sync"
)

// MultiErr contains multiple errors.
type MultiErr []error

// Is returns true if any of the contained errors match target.
func (m MultiErr) Is(target error) bool {
	for _, err := range m {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Error returns a string representation of the multi error.
func (m MultiErr) Error() string {
	return fmt.Sprint([]error(m))
}

// WorkerPool runs jobs in their own goroutines, at most a fixed number at a time.
type WorkerPool struct {
	// tickets is nil for unlimited pools.
	tickets chan struct{}
	wg      sync.WaitGroup

	mu   sync.Mutex
	errs MultiErr
}

// New returns a new worker pool running at most concurrency jobs at a time.
// A concurrency of zero or less means no limit.
func New(concurrency int) *WorkerPool {
	w := &WorkerPool{}
	if concurrency > 0 {
		w.tickets = make(chan struct{}, concurrency)
	}
	return w
}

// Go will run the function, blocking while the pool is at its concurrency limit.
// It must not be called after Wait.
func (w *WorkerPool) Go(f func() error) {
	if w.tickets != nil {
		w.tickets <- struct{}{}
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := f()
		if w.tickets != nil {
			<-w.tickets
		}
		if err != nil {
			w.mu.Lock()
			w.errs = append(w.errs, err)
			w.mu.Unlock()
		}
	}()
}

// Wait waits for all submitted jobs to finish and returns their errors as a MultiErr, or nil if none failed.
func (w *WorkerPool) Wait() error {
	w.wg.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.errs) == 0 {
		return nil
	}
	return w.errs
}
