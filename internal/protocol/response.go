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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ResultPrecision is the number of decimals used for response values.
const ResultPrecision = 16

// EncodeResponse renders values, each followed by a single space.
func EncodeResponse(values []float64) string {
	var b strings.Builder
	b.Grow(len(values) * (ResultPrecision + 8))
	for _, v := range values {
		b.WriteString(strconv.FormatFloat(v, 'e', ResultPrecision, 64))
		b.WriteByte(' ')
	}
	return b.String()
}

// DecodeResponse reads exactly count values from a response line. Error lines
// are returned as *RemoteError.
func DecodeResponse(msg string, count uint64) ([]float64, error) {
	if IsError(msg) {
		return nil, DecodeError(msg)
	}
	fields := strings.Fields(msg)
	if uint64(len(fields)) < count {
		return nil, errors.Wrapf(ErrTruncatedResponse, "read %d of %d values from %q", len(fields), count, msg)
	}
	if uint64(len(fields)) > count {
		return nil, errors.Wrapf(ErrMalformed, "response %q holds more than %d values", msg, count)
	}
	values := make([]float64, count)
	for i, tok := range fields {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "failed to read response %q at %q", msg, tok)
		}
		values[i] = v
	}
	return values, nil
}
