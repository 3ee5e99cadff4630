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

// Package toysocket evaluates the toy-socket demonstration suites.
package toysocket

import (
	"math"

	"evalsocket.dev/evalsocket/internal/evaluator"
	"evalsocket.dev/evalsocket/internal/protocol"
	"github.com/pkg/errors"
)

const (
	// Suite is the single-objective toy suite.
	Suite = "toy-socket"
	// BiobjSuite is the bi-objective toy suite.
	BiobjSuite = "toy-socket-biobj"

	instanceOffset = 1e-5
)

// Register adds both toy suites to r.
func Register(r *evaluator.Registry) error {
	c := evaluator.Capability{
		Objectives:  evaluator.Func(Objectives),
		Constraints: evaluator.Func(Constraints),
	}
	if err := r.Register(Suite, c); err != nil {
		return err
	}
	return r.Register(BiobjSuite, c)
}

func sumAbs(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += math.Abs(v)
	}
	return s
}

func sumSquares(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v * v
	}
	return s
}

// Objectives evaluates toy-socket (f1 sum of |x|, f2 sum of squares) and
// toy-socket-biobj (both at once). Every value is offset by 1e-5 * instance.
func Objectives(suite string, count, function, instance, dimension uint64, x []float64) ([]float64, error) {
	offset := instanceOffset * float64(instance)
	switch {
	case suite == Suite && count == 1:
		switch function {
		case 1:
			return []float64{offset + sumAbs(x)}, nil
		case 2:
			return []float64{offset + sumSquares(x)}, nil
		}
	case suite == BiobjSuite && count == 2:
		if function == 1 || function == 2 {
			return []float64{offset + sumAbs(x), offset + sumSquares(x)}, nil
		}
	default:
		return nil, errors.Wrapf(protocol.ErrUnsupported, "suite %s cannot have %d objectives", suite, count)
	}
	return nil, errors.Wrapf(protocol.ErrUnsupported, "suite %s has no function %d", suite, function)
}

// Constraints evaluates the constraint violations of toy-socket f1 (average of
// |x| below 0.2 or above 0.5) and toy-socket-biobj f2 (average above 0.5).
func Constraints(suite string, count, function, instance, dimension uint64, x []float64) ([]float64, error) {
	if dimension == 0 || len(x) == 0 {
		return nil, errors.Wrapf(protocol.ErrUnsupported, "suite %s function %d cannot be evaluated in dimension 0", suite, function)
	}
	average := sumAbs(x) / float64(len(x))

	switch {
	case suite == Suite && function == 1 && count == 2:
		return []float64{math.Max(0, 0.2-average), math.Max(0, average-0.5)}, nil
	case suite == BiobjSuite && function == 2 && count == 1:
		return []float64{math.Max(0, average-0.5)}, nil
	}
	return nil, errors.Wrapf(protocol.ErrUnsupported, "suite %s function %d does not have %d constraints", suite, function, count)
}
