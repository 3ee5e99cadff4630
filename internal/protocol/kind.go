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

// Kind selects which evaluation capability a request addresses.
type Kind int

const (
	// Objectives requests objective values.
	Objectives Kind = iota
	// Constraints requests constraint violations.
	Constraints
)

// Kinds lists every evaluation kind.
var Kinds = []Kind{Objectives, Constraints}

const (
	objectivesTag  = "objectives"
	constraintsTag = "constraints"
)

func (k Kind) String() string {
	switch k {
	case Objectives:
		return objectivesTag
	case Constraints:
		return constraintsTag
	default:
		return "unknown"
	}
}

// ParseKind converts a wire tag into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case objectivesTag:
		return Objectives, nil
	case constraintsTag:
		return Constraints, nil
	}
	return 0, errors.Wrapf(ErrUnsupported, "evaluation type %s not supported", s)
}
