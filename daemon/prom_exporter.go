/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const metricPrefix = "tcd_"

// PrometheusExporter exposes stats counters as prometheus gauges
type PrometheusExporter struct {
	sync.Mutex
	registry *prometheus.Registry
	stats    StatsServer
	handler  http.Handler
}

// NewPrometheusExporter creates a new instance of PrometheusExporter
func NewPrometheusExporter(stats StatsServer) *PrometheusExporter {
	e := &PrometheusExporter{registry: prometheus.NewRegistry(), stats: stats}
	e.handler = promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
	return e
}

// ServeHTTP refreshes the gauges and serves them
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.scrapeMetrics()
	e.handler.ServeHTTP(w, r)
}

// Handler returns the mux to serve metrics on
func (e *PrometheusExporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e)
	return mux
}

func (e *PrometheusExporter) scrapeMetrics() {
	e.Lock()
	defer e.Unlock()
	for mkey, mval := range e.stats.Get() {
		promCollector := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: flattenKey(mkey),
			Help: mkey,
		})
		if err := e.registry.Register(promCollector); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, are) {
				promCollector = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("failed to register metric %s %v", mkey, err)
				continue
			}
		}
		promCollector.Set(float64(mval))
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return metricPrefix + key
}
