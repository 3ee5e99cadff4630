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
	"context"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// LogLineHook is a log hook that counts log lines using OpenCensus.
type LogLineHook struct {
	count       *stats.Int64Measure
	keySeverity tag.Key
}

// NewLogLineHook returns a logrus hook counting lines into LogLines.
func NewLogLineHook() logrus.Hook {
	return LogLineHook{
		count:       LogLines,
		keySeverity: KeySeverity,
	}
}

// Fire is run every time a line is logged and increments the counter tagged with the line's level.
func (h LogLineHook) Fire(e *logrus.Entry) error {
	return stats.RecordWithTags(context.Background(), []tag.Mutator{tag.Upsert(h.keySeverity, e.Level.String())}, h.count.M(1))
}

// Levels returns all log levels, because we want the hook to always fire when a line is logged.
func (h LogLineHook) Levels() []logrus.Level {
	return logrus.AllLevels
}
