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

// Package util holds small helpers shared by the evaluation server and client commands.
package util

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "evalsocket",
		"component": "util",
	})
)

// MultiClose releases resources in the reverse order they were acquired.
type MultiClose struct {
	closers []func() error
	m       sync.Mutex
}

// NewMultiClose creates a new multi-closer.
func NewMultiClose() *MultiClose {
	return &MultiClose{}
}

// AddCloseFunc adds a close function that cannot fail.
func (mc *MultiClose) AddCloseFunc(closer func()) {
	mc.AddCloseWithErrorFunc(func() error {
		closer()
		return nil
	})
}

// AddCloseWithErrorFunc adds a close function.
func (mc *MultiClose) AddCloseWithErrorFunc(closer func() error) {
	mc.m.Lock()
	defer mc.m.Unlock()
	mc.closers = append(mc.closers, closer)
}

// Close runs every close function, last added first, and returns the first
// error met. Later failures are logged. Close may be called again; functions
// already run are not repeated.
func (mc *MultiClose) Close() error {
	mc.m.Lock()
	closers := mc.closers
	mc.closers = nil
	mc.m.Unlock()

	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			if first == nil {
				first = err
				continue
			}
			logger.WithError(err).Warning("close function failed")
		}
	}
	return first
}
