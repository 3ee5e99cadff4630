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

package protocol

import "strings"

const (
	// Reset asks the evaluator to drop the connection and keep listening.
	Reset = "RESET"
	// Shutdown asks the evaluator to drop the connection and terminate.
	Shutdown = "SHUTDOWN"
)

// IsReset reports whether msg is the RESET control message.
func IsReset(msg string) bool {
	return strings.TrimSpace(msg) == Reset
}

// IsShutdown reports whether msg is the SHUTDOWN control message.
func IsShutdown(msg string) bool {
	return strings.TrimSpace(msg) == Shutdown
}
