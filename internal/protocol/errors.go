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

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrMalformed is returned when a message cannot be parsed.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrUnsupported is returned for suite, function, kind or result count
	// combinations no evaluator handles.
	ErrUnsupported = errors.New("protocol: unsupported request")
	// ErrMessageTooLarge is returned when a message exceeds the read limit.
	ErrMessageTooLarge = errors.New("protocol: message too large")
	// ErrTruncatedResponse is returned when a response holds fewer values than
	// the request asked for.
	ErrTruncatedResponse = errors.Wrap(ErrMalformed, "truncated response")
)

// ErrorCode classifies an error reported by the evaluator.
type ErrorCode string

const (
	// CodeMalformed reports a message the evaluator could not parse.
	CodeMalformed ErrorCode = "malformed"
	// CodeUnsupported reports a request no evaluator is registered for.
	CodeUnsupported ErrorCode = "unsupported"
)

const errorTag = "ERROR"

// RemoteError is a per-request failure reported by the evaluator. The
// connection it arrived on stays usable.
type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("evaluator error (%s): %s", e.Code, e.Message)
}

// Unwrap lets errors.Is match RemoteError against ErrMalformed and
// ErrUnsupported.
func (e *RemoteError) Unwrap() error {
	if e.Code == CodeUnsupported {
		return ErrUnsupported
	}
	return ErrMalformed
}

// CodeOf returns the code an error is reported under.
func CodeOf(err error) ErrorCode {
	if errors.Is(err, ErrUnsupported) {
		return CodeUnsupported
	}
	return CodeMalformed
}

// EncodeError renders err as an error response line.
func EncodeError(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return fmt.Sprintf("%s %s %s", errorTag, CodeOf(err), msg)
}

// IsError reports whether a response line carries an error.
func IsError(msg string) bool {
	return msg == errorTag || strings.HasPrefix(msg, errorTag+" ")
}

// DecodeError parses an error response line.
func DecodeError(msg string) *RemoteError {
	fields := strings.SplitN(strings.TrimSpace(msg), " ", 3)
	e := &RemoteError{Code: CodeMalformed}
	if len(fields) > 1 {
		e.Code = ErrorCode(fields[1])
	}
	if len(fields) > 2 {
		e.Message = fields[2]
	}
	return e
}
