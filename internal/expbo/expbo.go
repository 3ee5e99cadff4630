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

// Package expbo reads exponential back-off policies from short strings so
// they can live in a single configuration value.
package expbo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

// Parse fills b from s, a space separated list of words:
//
//	[min        InitialInterval in seconds
//	max]        MaxInterval in seconds
//	*mult       Multiplier
//	~rand       RandomizationFactor, between 0 and 1
//	<limit      MaxElapsedTime in seconds, 0 retries forever
//
// Example: "[0.1 1] *1.5 ~0.33 <5"
//
// Words that are absent leave the matching field of b untouched.
func Parse(s string, b *backoff.ExponentialBackOff) error {
	for _, word := range strings.Fields(s) {
		var (
			field string
			value string
		)
		switch {
		case strings.HasPrefix(word, "["):
			field, value = "InitialInterval", strings.TrimPrefix(word, "[")
		case strings.HasSuffix(word, "]"):
			field, value = "MaxInterval", strings.TrimSuffix(word, "]")
		case strings.HasPrefix(word, "*"):
			field, value = "Multiplier", strings.TrimPrefix(word, "*")
		case strings.HasPrefix(word, "~"):
			field, value = "RandomizationFactor", strings.TrimPrefix(word, "~")
		case strings.HasPrefix(word, "<"):
			field, value = "MaxElapsedTime", strings.TrimPrefix(word, "<")
		default:
			return fmt.Errorf(`unexpected word "%s"`, word)
		}

		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errors.Wrapf(err, "cannot parse %s value", field)
		}
		if f < 0 {
			return fmt.Errorf("%s must not be negative, got %v", field, f)
		}

		switch field {
		case "InitialInterval":
			b.InitialInterval = seconds(f)
		case "MaxInterval":
			b.MaxInterval = seconds(f)
		case "Multiplier":
			if f < 1 {
				return fmt.Errorf("Multiplier must be at least 1, got %v", f)
			}
			b.Multiplier = f
		case "RandomizationFactor":
			if f > 1 {
				return fmt.Errorf("RandomizationFactor must be at most 1, got %v", f)
			}
			b.RandomizationFactor = f
		case "MaxElapsedTime":
			b.MaxElapsedTime = seconds(f)
		}
	}

	if b.MaxInterval < b.InitialInterval {
		return fmt.Errorf("MaxInterval %s is shorter than InitialInterval %s", b.MaxInterval, b.InitialInterval)
	}
	return nil
}

// New returns a back-off starting from the library defaults with s applied.
// An empty s yields a policy that never retries.
func New(s string) (backoff.BackOff, error) {
	if strings.TrimSpace(s) == "" {
		return &backoff.StopBackOff{}, nil
	}
	b := backoff.NewExponentialBackOff()
	if err := Parse(s, b); err != nil {
		return nil, errors.Wrapf(err, "invalid back-off %q", s)
	}
	b.Reset()
	return b, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
