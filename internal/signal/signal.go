// Copyright 2019 Google LLC
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

// Package signal handles terminating applications on Ctrl+Break or SIGTERM.
package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// New waits for a manual termination or a user initiated termination IE: Ctrl+Break.
// waitForFunc() blocks until either happens and may be called any number of times.
// terminateFunc() completes waitForFunc() immediately. It is safe to call more than once.
func New() (waitForFunc func(), terminateFunc func()) {
	incoming := make(chan os.Signal, 1)
	signal.Notify(incoming, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once
	terminateFunc = func() {
		once.Do(func() {
			signal.Stop(incoming)
			close(done)
		})
	}
	go func() {
		select {
		case <-incoming:
			terminateFunc()
		case <-done:
		}
	}()

	waitForFunc = func() {
		<-done
	}
	return waitForFunc, terminateFunc
}
