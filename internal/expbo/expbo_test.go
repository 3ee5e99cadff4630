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

package expbo

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	require := require.New(t)
	b := &backoff.ExponentialBackOff{}
	require.NoError(Parse("[0.250 30] *1.5 ~0.33 <300", b))

	require.Equal(250*time.Millisecond, b.InitialInterval)
	require.Equal(30*time.Second, b.MaxInterval)
	require.InDelta(1.5, b.Multiplier, 1e-8)
	require.InDelta(0.33, b.RandomizationFactor, 1e-8)
	require.Equal(5*time.Minute, b.MaxElapsedTime)
}

func TestParsePartial(t *testing.T) {
	require := require.New(t)
	b := backoff.NewExponentialBackOff()
	require.NoError(Parse("  <2  ", b))

	require.Equal(2*time.Second, b.MaxElapsedTime)
	require.Equal(backoff.DefaultInitialInterval, b.InitialInterval)
	require.Equal(backoff.DefaultMaxInterval, b.MaxInterval)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{
		{"unknown word", "[0.1 1] fast"},
		{"bad number", "[abc 1]"},
		{"negative", "[0.1 1] <-3"},
		{"small multiplier", "[0.1 1] *0.5"},
		{"large randomization", "[0.1 1] ~2"},
		{"inverted interval", "[5 1]"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, Parse(tc.in, backoff.NewExponentialBackOff()))
		})
	}
}

func TestNew(t *testing.T) {
	require := require.New(t)

	b, err := New("[0.1 1] *1.5 ~0.33 <5")
	require.NoError(err)
	exp, ok := b.(*backoff.ExponentialBackOff)
	require.True(ok)
	require.Equal(100*time.Millisecond, exp.InitialInterval)
	require.Equal(5*time.Second, exp.MaxElapsedTime)
	next := b.NextBackOff()
	require.True(next >= 67*time.Millisecond && next <= 133*time.Millisecond, "first interval %s", next)

	b, err = New("")
	require.NoError(err)
	require.Equal(backoff.Stop, b.NextBackOff())

	_, err = New("[1 0.1]")
	require.Error(err)
}
