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
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultPrecision is the number of decimals used for real-valued x.
	DefaultPrecision = 8
	// MinPrecision and MaxPrecision bound the accepted x precision.
	MinPrecision = 1
	MaxPrecision = 32
)

// Request is a decoded evaluation request.
type Request struct {
	Suite     string
	Kind      Kind
	Count     uint64
	Function  uint64
	Instance  uint64
	Dimension uint64
	X         []float64
}

// Encoder renders requests. The zero value is not usable, call NewEncoder.
type Encoder struct {
	precision int
}

// NewEncoder returns an encoder writing real-valued x with the given number of
// decimals. Precisions outside [MinPrecision, MaxPrecision] fall back to
// DefaultPrecision.
func NewEncoder(precision int) *Encoder {
	if !ValidPrecision(precision) {
		precision = DefaultPrecision
	}
	return &Encoder{precision: precision}
}

// ValidPrecision reports whether p is an accepted x precision.
func ValidPrecision(p int) bool {
	return p >= MinPrecision && p <= MaxPrecision
}

// Precision returns the number of decimals used for real-valued x.
func (e *Encoder) Precision() int {
	return e.precision
}

// EncodeRequest renders the request evaluating x for problem p.
func (e *Encoder) EncodeRequest(p *Problem, k Kind, x []float64) (string, error) {
	if err := p.Validate(x); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(64 + len(x)*(e.precision+8))
	b.WriteString("s ")
	b.WriteString(p.Suite)
	b.WriteString(" t ")
	b.WriteString(k.String())
	writeUint(&b, " r ", p.ResultCount(k))
	writeUint(&b, " f ", p.Function)
	writeUint(&b, " i ", p.Instance)
	writeUint(&b, " d ", p.Dimension)
	b.WriteString(" x")
	for i, v := range x {
		b.WriteByte(' ')
		if uint64(i) < p.IntegerVariables {
			b.WriteString(strconv.FormatInt(int64(math.Round(v)), 10))
		} else {
			b.WriteString(strconv.FormatFloat(v, 'e', e.precision, 64))
		}
	}
	return b.String(), nil
}

func writeUint(b *strings.Builder, tag string, v uint64) {
	b.WriteString(tag)
	b.WriteString(strconv.FormatUint(v, 10))
}

var headerTags = [...]string{"s", "t", "r", "f", "i", "d", "x"}

// DecodeRequest parses a request line. It checks the message shape only, the
// suite and function are validated by the evaluator.
func DecodeRequest(msg string) (*Request, error) {
	fields := strings.Fields(msg)
	// s <suite> t <kind> r <count> f <function> i <instance> d <dim> x
	if len(fields) < 13 {
		return nil, errors.Wrapf(ErrMalformed, "failed to read beginning of the message %q", msg)
	}
	for i, tag := range headerTags {
		if fields[2*i] != tag {
			return nil, errors.Wrapf(ErrMalformed, "expected tag %q at token %d, got %q", tag, 2*i, fields[2*i])
		}
	}

	req := &Request{Suite: fields[1]}
	var err error
	if req.Kind, err = ParseKind(fields[3]); err != nil {
		return nil, err
	}
	counts := []*uint64{&req.Count, &req.Function, &req.Instance, &req.Dimension}
	for i, dst := range counts {
		tok := fields[5+2*i]
		if *dst, err = strconv.ParseUint(tok, 10, 64); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "cannot parse %s value %q", headerTags[2+i], tok)
		}
	}

	values := fields[13:]
	if uint64(len(values)) != req.Dimension {
		return nil, errors.Wrapf(ErrMalformed, "number of x values %d does not match dimension %d", len(values), req.Dimension)
	}
	req.X = make([]float64, len(values))
	for i, tok := range values {
		if req.X[i], err = strconv.ParseFloat(tok, 64); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "cannot parse x value %q", tok)
		}
	}
	return req, nil
}

func containsSpace(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == 0
	}) >= 0
}
