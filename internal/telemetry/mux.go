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
	"fmt"
	"html/template"
	"net/http"
	"sort"

	"evalsocket.dev/evalsocket/internal/config"
	"github.com/spf13/viper"
)

const (
	configEndpoint = "/configz"
	configPage     = `<!DOCTYPE html>
<head>
	<title>Evaluation Server Configuration</title>
</head>
<body>
<table>
<tr><th>Key</th><th>Value</th></tr>
{{ range . }}
<tr><td>{{ .Key }}</td><td>{{ .Value }}</td></tr>
{{ end }}
</table>
</body>
`
	helpEndpoint = "/help"
	helpPage     = `<!DOCTYPE html>
<head>
	<title>Evaluation Server Help</title>
</head>
<body>
<pre>
* <a href="/healthz">/healthz</a> - Liveness, add ?readiness=true for readiness
* <a href="/configz">/configz</a> - Effective configuration
* <a href="/metrics">/metrics</a> - Raw Metrics, when monitoring.prometheus.enable is set
</pre>
</body>
`
)

var configPageTemplate = template.Must(template.New("configz").Parse(configPage))

type configz struct {
	cfg config.View
}

type configZValue struct {
	Key   string
	Value interface{}
}

func (cz *configz) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	cfg, ok := cz.cfg.(*viper.Viper)
	if !ok {
		http.Error(w, "Configuration is not a *viper.Viper object", http.StatusInternalServerError)
		return
	}
	values := []configZValue{}
	for _, k := range cfg.AllKeys() {
		values = append(values, configZValue{Key: k, Value: cfg.Get(k)})
	}
	sort.Slice(values, func(i, j int) bool {
		return values[i].Key < values[j].Key
	})
	if err := configPageTemplate.Execute(w, values); err != nil {
		http.Error(w, fmt.Sprintf("cannot render HTML template, %s", err), http.StatusInternalServerError)
	}
}

func help(w http.ResponseWriter, req *http.Request) {
	fmt.Fprint(w, helpPage)
}

// NewMux returns the monitoring mux: health, configuration and help pages,
// plus the Prometheus endpoint when enabled.
func NewMux(cfg config.View, probes ...func(ctx context.Context) error) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.Handle(HealthCheckEndpoint, NewHealthCheck(probes...))
	mux.Handle(configEndpoint, &configz{cfg: cfg})
	mux.HandleFunc(helpEndpoint, help)
	if err := BindPrometheus(mux, cfg); err != nil {
		return nil, err
	}
	return mux, nil
}
