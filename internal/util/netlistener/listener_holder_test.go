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

package netlistener

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
)

const (
	numIterations = 1000
)

// TestObtain verifies that a ListenerHolder only returns Obtain() once.
func TestObtain(t *testing.T) {
	var errCount uint64
	var obtainCount uint64
	lh, err := NewFromPortNumber(0)
	if err != nil {
		t.Fatalf("NewFromPortNumber(0) had error, %s", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < numIterations; i++ {
		wg.Add(1)
		go func() {
			listener, err := lh.Obtain()
			if err != nil {
				atomic.AddUint64(&errCount, 1)
			} else if listener != nil {
				atomic.AddUint64(&obtainCount, 1)
			} else {
				t.Error("err and listener were both nil.")
			}
			wg.Done()
		}()
	}
	wg.Wait()
	finalErrCount := atomic.LoadUint64(&errCount)
	finalObtainCount := atomic.LoadUint64(&obtainCount)
	if finalErrCount != numIterations-1 {
		t.Errorf("expected %d errors, got %d", numIterations-1, finalErrCount)
	}
	if finalObtainCount != 1 {
		t.Errorf("expected %d obtains, got %d", 1, finalObtainCount)
	}
}

func TestNewFromHostPort(t *testing.T) {
	lh, err := NewFromHostPort("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewFromHostPort(127.0.0.1, 0) had error, %s", err)
	}
	defer lh.Close()
	if lh.Number() <= 0 {
		t.Errorf("expected a bound port, got %d", lh.Number())
	}
	host, _, err := net.SplitHostPort(lh.AddrString())
	if err != nil || host != "127.0.0.1" {
		t.Errorf("unexpected address %q, %v", lh.AddrString(), err)
	}

	if _, err := NewFromHostPort("127.0.0.1", lh.Number()); err == nil {
		t.Errorf("expected an error listening twice on port %d", lh.Number())
	}
}

func TestCloseAfterObtain(t *testing.T) {
	lh, err := NewFromPortNumber(0)
	if err != nil {
		t.Fatalf("NewFromPortNumber(0) had error, %s", err)
	}
	l, err := lh.Obtain()
	if err != nil {
		t.Fatalf("Obtain() had error, %s", err)
	}
	defer l.Close()
	if err := lh.Close(); err != nil {
		t.Errorf("Close() after Obtain() had error, %s", err)
	}
}
