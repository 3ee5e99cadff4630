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

// Package telemetry holds the OpenCensus measures and views recorded by the
// evaluation server and client, and binds them to a Prometheus endpoint.
package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

var (
	logger = logrus.WithFields(logrus.Fields{
		"app":       "evalsocket",
		"component": "telemetry",
	})
)

// Tag keys
var (
	// KeyKind tags a measurement with the evaluation kind.
	KeyKind = tag.MustNewKey("kind")
	// KeySuite tags a measurement with the suite name.
	KeySuite = tag.MustNewKey("suite")
	// KeyCode tags a failure with its protocol error code.
	KeyCode = tag.MustNewKey("code")
	// KeyControl tags a control message (reset or shutdown).
	KeyControl = tag.MustNewKey("control")
	// KeySeverity tags a log line with its level.
	KeySeverity = tag.MustNewKey("severity")
)

// Server measures
var (
	ConnectionsAccepted = stats.Int64("evalsocket/server/connections", "Connections accepted by the evaluation server", stats.UnitDimensionless)
	MessagesReceived    = stats.Int64("evalsocket/server/messages", "Evaluation requests received", stats.UnitDimensionless)
	ControlMessages     = stats.Int64("evalsocket/server/control_messages", "Control messages received", stats.UnitDimensionless)
	EvaluationFailures  = stats.Int64("evalsocket/server/failures", "Requests answered with an error", stats.UnitDimensionless)
	EvaluationLatency   = stats.Float64("evalsocket/server/evaluation_latency", "Time spent decoding, evaluating and encoding a request", stats.UnitMilliseconds)
)

// Client measures
var (
	CacheHits        = stats.Int64("evalsocket/client/cache_hits", "Evaluations answered from the response cache", stats.UnitDimensionless)
	CacheMisses      = stats.Int64("evalsocket/client/cache_misses", "Evaluations sent to the evaluator", stats.UnitDimensionless)
	RoundTripLatency = stats.Float64("evalsocket/client/round_trip_latency", "Time between sending a request and decoding its response", stats.UnitMilliseconds)
)

// LogLines counts log lines per severity, see NewLogLineHook.
var LogLines = stats.Int64("evalsocket/log_lines", "Lines logged", stats.UnitDimensionless)

// RecordUnitMeasurement records a data point using the input metric by one unit with given tags.
func RecordUnitMeasurement(ctx context.Context, s *stats.Int64Measure, tags ...tag.Mutator) {
	RecordNUnitMeasurement(ctx, s, 1, tags...)
}

// RecordNUnitMeasurement records a data point using the input metric by N units with given tags.
func RecordNUnitMeasurement(ctx context.Context, s *stats.Int64Measure, n int64, tags ...tag.Mutator) {
	if err := stats.RecordWithTags(ctx, tags, s.M(n)); err != nil {
		logger.WithError(err).Infof("cannot record stat with tags %#v", tags)
	}
}

// RecordLatency records the milliseconds elapsed since start.
func RecordLatency(ctx context.Context, s *stats.Float64Measure, start time.Time, tags ...tag.Mutator) {
	ms := float64(time.Since(start)) / float64(time.Millisecond)
	if err := stats.RecordWithTags(ctx, tags, s.M(ms)); err != nil {
		logger.WithError(err).Infof("cannot record latency with tags %#v", tags)
	}
}
