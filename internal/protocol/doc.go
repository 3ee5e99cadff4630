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

// Package protocol implements the text wire format spoken between the
// benchmark harness and an external evaluator.
//
// A request is a single line of space separated tokens:
//
//	s <suite> t <kind> r <count> f <function> i <instance> d <dim> x <x1> ... <xdim>
//
// and the matching response holds exactly <count> values in scientific
// notation. Two control messages, RESET and SHUTDOWN, may be sent in place of
// a request.
package protocol
