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

package telemetry

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// DefaultMillisecondsDistribution buckets latencies from 10us to 100s.
var DefaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)

// Server views
var (
	ConnectionsAcceptedView = countView(ConnectionsAccepted)
	MessagesReceivedView    = countView(MessagesReceived, KeySuite, KeyKind)
	ControlMessagesView     = countView(ControlMessages, KeyControl)
	EvaluationFailuresView  = countView(EvaluationFailures, KeyCode)
	EvaluationLatencyView   = &view.View{
		Name:        EvaluationLatency.Name(),
		Measure:     EvaluationLatency,
		Description: EvaluationLatency.Description(),
		Aggregation: DefaultMillisecondsDistribution,
		TagKeys:     []tag.Key{KeySuite, KeyKind},
	}
)

// Client views
var (
	CacheHitsView        = countView(CacheHits, KeyKind)
	CacheMissesView      = countView(CacheMisses, KeyKind)
	RoundTripLatencyView = &view.View{
		Name:        RoundTripLatency.Name(),
		Measure:     RoundTripLatency,
		Description: RoundTripLatency.Description(),
		Aggregation: DefaultMillisecondsDistribution,
		TagKeys:     []tag.Key{KeyKind},
	}
)

// LogLinesView counts log lines per severity.
var LogLinesView = countView(LogLines, KeySeverity)

// DefaultViews are registered by Register.
var DefaultViews = []*view.View{
	ConnectionsAcceptedView,
	MessagesReceivedView,
	ControlMessagesView,
	EvaluationFailuresView,
	EvaluationLatencyView,
	CacheHitsView,
	CacheMissesView,
	RoundTripLatencyView,
	LogLinesView,
}

// Register starts collecting data for DefaultViews. Nothing is collected for a
// measure until its view is registered.
func Register() error {
	return view.Register(DefaultViews...)
}

// Unregister stops collecting data for DefaultViews.
func Unregister() {
	view.Unregister(DefaultViews...)
}

func countView(m stats.Measure, keys ...tag.Key) *view.View {
	return &view.View{
		Name:        m.Name(),
		Measure:     m,
		Description: "Count of " + m.Description(),
		Aggregation: view.Count(),
		TagKeys:     keys,
	}
}
