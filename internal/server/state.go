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

package server

// State is the lifecycle position of a Server.
type State int32

const (
	// Listening waits for a client to connect.
	Listening State = iota
	// Connected serves one client.
	Connected
	// Terminated is final. The listener is closed and no client is served again.
	Terminated
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Connected:
		return "connected"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}
