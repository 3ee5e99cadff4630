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
	"net/http"

	ocPrometheus "contrib.go.opencensus.io/exporter/prometheus"
	"evalsocket.dev/evalsocket/internal/config"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/stats/view"
)

const (
	// ConfigNameEnableMetrics indicates that the Prometheus endpoint is served.
	ConfigNameEnableMetrics = "monitoring.prometheus.enable"
	configNameEndpoint      = "monitoring.prometheus.endpoint"
	configNameReporting     = "monitoring.reporting_period"
)

// BindPrometheus registers the Prometheus exporter on mux when enabled in cfg.
func BindPrometheus(mux *http.ServeMux, cfg config.View) error {
	if !cfg.GetBool(ConfigNameEnableMetrics) {
		logger.Info("Prometheus Metrics: Disabled")
		return nil
	}

	endpoint := cfg.GetString(configNameEndpoint)
	registry := prometheus.NewRegistry()
	// Register standard prometheus instrumentation.
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	promExporter, err := ocPrometheus.NewExporter(
		ocPrometheus.Options{
			Namespace: "evalsocket",
			Registry:  registry,
			OnError: func(err error) {
				logger.WithError(err).Warn("Prometheus exporter failed")
			},
		})
	if err != nil {
		return errors.Wrap(err, "failed to initialize OpenCensus exporter to Prometheus")
	}

	// Register the Prometheus exporters as a stats exporter.
	view.RegisterExporter(promExporter)
	if period := cfg.GetDuration(configNameReporting); period > 0 {
		view.SetReportingPeriod(period)
	}

	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
	}).Info("Prometheus Metrics: ENABLED")
	mux.Handle(endpoint, promExporter)
	return nil
}
