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

// Package evaluator maps suite names to the functions that evaluate them.
package evaluator

import (
	"sort"
	"sync"

	"evalsocket.dev/evalsocket/internal/protocol"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "evalsocket",
		"component": "evaluator",
	})
)

// Evaluator computes count values for the decision vector x. It must return
// exactly count values or an error wrapping protocol.ErrUnsupported.
type Evaluator interface {
	Evaluate(suite string, count, function, instance, dimension uint64, x []float64) ([]float64, error)
}

// Func adapts an ordinary function to the Evaluator interface.
type Func func(suite string, count, function, instance, dimension uint64, x []float64) ([]float64, error)

// Evaluate calls f.
func (f Func) Evaluate(suite string, count, function, instance, dimension uint64, x []float64) ([]float64, error) {
	return f(suite, count, function, instance, dimension, x)
}

// Capability holds the evaluators of one suite. Either may be nil when the
// suite does not support that kind of evaluation.
type Capability struct {
	Objectives  Evaluator
	Constraints Evaluator
}

func (c Capability) forKind(k protocol.Kind) Evaluator {
	switch k {
	case protocol.Objectives:
		return c.Objectives
	case protocol.Constraints:
		return c.Constraints
	}
	return nil
}

// Registry is the dispatch table from suite name to Capability. It is filled
// at startup and read concurrently afterwards.
type Registry struct {
	m      sync.RWMutex
	suites map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{suites: make(map[string]Capability)}
}

// Register adds the capability of a suite.
func (r *Registry) Register(suite string, c Capability) error {
	if suite == "" {
		return errors.New("cannot register an evaluator without a suite name")
	}
	if c.Objectives == nil && c.Constraints == nil {
		return errors.Errorf("suite %s registered without evaluators", suite)
	}

	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.suites[suite]; ok {
		return errors.Errorf("suite %s is already registered", suite)
	}
	r.suites[suite] = c
	logger.WithFields(logrus.Fields{
		"suite":       suite,
		"objectives":  c.Objectives != nil,
		"constraints": c.Constraints != nil,
	}).Debug("Registered evaluator")
	return nil
}

// Suites returns the registered suite names in sorted order.
func (r *Registry) Suites() []string {
	r.m.RLock()
	defer r.m.RUnlock()
	names := make([]string, 0, len(r.suites))
	for name := range r.suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the evaluator for suite and kind.
func (r *Registry) Lookup(suite string, k protocol.Kind) (Evaluator, error) {
	r.m.RLock()
	c, ok := r.suites[suite]
	r.m.RUnlock()
	if !ok {
		return nil, errors.Wrapf(protocol.ErrUnsupported, "suite %s not supported", suite)
	}
	e := c.forKind(k)
	if e == nil {
		return nil, errors.Wrapf(protocol.ErrUnsupported, "suite %s does not evaluate %s", suite, k)
	}
	return e, nil
}

// Evaluate dispatches req and checks that exactly req.Count values come back.
// No partial result is ever returned.
func (r *Registry) Evaluate(req *protocol.Request) ([]float64, error) {
	e, err := r.Lookup(req.Suite, req.Kind)
	if err != nil {
		return nil, err
	}
	values, err := e.Evaluate(req.Suite, req.Count, req.Function, req.Instance, req.Dimension, req.X)
	if err != nil {
		return nil, err
	}
	if uint64(len(values)) != req.Count {
		return nil, errors.Wrapf(protocol.ErrUnsupported, "number of result values %d does not match %d", len(values), req.Count)
	}
	return values, nil
}
