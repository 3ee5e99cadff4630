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
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.opencensus.io/stats/view"
)

// ClientViews are the views a client session records into.
var ClientViews = []*view.View{
	CacheHitsView,
	CacheMissesView,
	RoundTripLatencyView,
}

// WriteReport prints one line per row of vs: the view name, its tags and the
// aggregated value. Views must be registered.
func WriteReport(w io.Writer, vs ...*view.View) error {
	for _, v := range vs {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			return errors.Wrapf(err, "cannot read view %s", v.Name)
		}
		for _, row := range rows {
			tags := make([]string, len(row.Tags))
			for i, t := range row.Tags {
				tags[i] = t.Key.Name() + "=" + t.Value
			}
			if _, err := fmt.Fprintf(w, "%s{%s} %s\n", v.Name, strings.Join(tags, ","), formatData(row.Data)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatData(d view.AggregationData) string {
	switch d := d.(type) {
	case *view.CountData:
		return fmt.Sprintf("%d", d.Value)
	case *view.DistributionData:
		return fmt.Sprintf("count=%d mean=%.3fms", d.Count, d.Mean)
	case *view.SumData:
		return fmt.Sprintf("%g", d.Value)
	case *view.LastValueData:
		return fmt.Sprintf("%g", d.Value)
	}
	return fmt.Sprintf("%v", d)
}
