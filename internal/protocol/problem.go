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
	"github.com/pkg/errors"
)

// Problem describes the problem instance a decision vector belongs to. It is
// owned by the benchmark harness and never modified by this package.
type Problem struct {
	Suite     string
	Function  uint64
	Instance  uint64
	Dimension uint64

	Objectives  uint64
	Constraints uint64

	// IntegerVariables is the number of leading decision variables that are
	// integer typed. They are sent as plain integers.
	IntegerVariables uint64
}

// ResultCount returns the number of values an evaluation of kind k yields.
func (p *Problem) ResultCount(k Kind) uint64 {
	if k == Constraints {
		return p.Constraints
	}
	return p.Objectives
}

// Validate checks that x can be evaluated for p.
func (p *Problem) Validate(x []float64) error {
	if p == nil {
		return errors.Wrap(ErrMalformed, "problem is nil")
	}
	if p.Suite == "" || containsSpace(p.Suite) {
		return errors.Wrapf(ErrMalformed, "invalid suite name %q", p.Suite)
	}
	if uint64(len(x)) != p.Dimension {
		return errors.Wrapf(ErrMalformed, "decision vector has %d values, problem %s has dimension %d", len(x), p.Suite, p.Dimension)
	}
	if p.IntegerVariables > p.Dimension {
		return errors.Wrapf(ErrMalformed, "%d integer variables exceed dimension %d", p.IntegerVariables, p.Dimension)
	}
	return nil
}
