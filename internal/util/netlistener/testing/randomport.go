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

// Package testing opens listeners on free loopback ports for tests.
package testing

import (
	"evalsocket.dev/evalsocket/internal/util/netlistener"
)

// MustListen finds the next available port on the loopback interface.
// It panics when no port can be opened.
func MustListen() *netlistener.ListenerHolder {
	// Port 0 in Go is a special port number to randomly choose an available port.
	// Reference, https://golang.org/pkg/net/#ListenTCP.
	lh, err := netlistener.NewFromHostPort("127.0.0.1", 0)
	if err != nil {
		panic(err)
	}
	return lh
}
