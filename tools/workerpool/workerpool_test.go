/*
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
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerpool(t *testing.T) {
	for _, tc := range []struct {
		concurrency   int
		wantedLimited bool
	}{
		{
			concurrency:   10,
			wantedLimited: true,
		},
		{
			concurrency:   0,
			wantedLimited: false,
		},
	} {
		wp := New(tc.concurrency)
		var running int64
		var maxRunning int64
		var done int64
		for j := 0; j < 100; j++ {
			wp.Go(func() error {
				now := atomic.AddInt64(&running, 1)
				for {
					seen := atomic.LoadInt64(&maxRunning)
					if now <= seen || atomic.CompareAndSwapInt64(&maxRunning, seen, now) {
						break
					}
				}
				time.Sleep(time.Millisecond * 5)
				atomic.AddInt64(&running, -1)
				atomic.AddInt64(&done, 1)
				return nil
			})
		}
		if err := wp.Wait(); err != nil {
			t.Fatal(err)
		}
		if done != 100 {
			t.Errorf("%v: only %v of 100 jobs ran", tc.concurrency, done)
		}
		if tc.wantedLimited && maxRunning > int64(tc.concurrency) {
			t.Errorf("limited job queue ran %v jobs at once, limit was %v", maxRunning, tc.concurrency)
		}
		if !tc.wantedLimited && maxRunning <= 10 {
			t.Errorf("unlimited job queue never ran more than %v jobs at once", maxRunning)
		}
	}
}

func TestWorkerpoolErrors(t *testing.T) {
	wantedErr := errors.New("job failed")
	wp := New(2)
	for j := 0; j < 5; j++ {
		fail := j%2 == 0
		wp.Go(func() error {
			if fail {
				return wantedErr
			}
			return nil
		})
	}
	err := wp.Wait()
	me, ok := err.(MultiErr)
	if !ok {
		t.Fatalf("got %v, wanted a MultiErr", err)
	}
	if len(me) != 3 {
		t.Errorf("got %v errors, wanted 3", len(me))
	}
	if !errors.Is(err, wantedErr) {
		t.Errorf("errors.Is(%v, %v) is false", err, wantedErr)
	}
}
