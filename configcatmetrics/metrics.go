// Package configcatmetrics exposes Prometheus metrics about a ConfigCat
// client. The metrics are fed from the client's hooks and registered in
// their own registry.
package configcatmetrics

import (
	"net/http"
	"strconv"

	configcat "github.com/configcat/go-sdk/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors updated by the hooks returned from Hooks.
type Metrics struct {
	Registry *prometheus.Registry

	EvaluationsTotal   *prometheus.CounterVec
	ErrorsTotal        prometheus.Counter
	ConfigChangesTotal prometheus.Counter
	Settings           prometheus.Gauge
	Ready              prometheus.Gauge
}

// New creates and registers the client metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,

		EvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "configcat_evaluations_total",
			Help: "Total number of feature flag evaluations.",
		}, []string{"key", "default"}),

		ErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "configcat_errors_total",
			Help: "Total number of errors reported by the client.",
		}),

		ConfigChangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "configcat_config_changes_total",
			Help: "Total number of times a new config JSON was adopted.",
		}),

		Settings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "configcat_settings",
			Help: "Number of settings in the current config JSON.",
		}),

		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "configcat_client_ready",
			Help: "Whether the client has finished initializing.",
		}),
	}
	reg.MustRegister(
		m.EvaluationsTotal,
		m.ErrorsTotal,
		m.ConfigChangesTotal,
		m.Settings,
		m.Ready,
	)
	return m
}

// Hooks returns hooks that update m and then call the
// corresponding hook in next, if any. The result is
// suitable for configcat.Config.Hooks.
func (m *Metrics) Hooks(next *configcat.Hooks) *configcat.Hooks {
	if next == nil {
		next = &configcat.Hooks{}
	}
	return &configcat.Hooks{
		OnFlagEvaluated: func(details *configcat.EvaluationDetails) {
			m.EvaluationsTotal.WithLabelValues(details.Data.Key, strconv.FormatBool(details.Data.IsDefaultValue)).Inc()
			if next.OnFlagEvaluated != nil {
				next.OnFlagEvaluated(details)
			}
		},
		OnError: func(err error) {
			m.ErrorsTotal.Inc()
			if next.OnError != nil {
				next.OnError(err)
			}
		},
		OnConfigChanged: func(settings map[string]*configcat.Setting) {
			m.ConfigChangesTotal.Inc()
			m.Settings.Set(float64(len(settings)))
			if next.OnConfigChanged != nil {
				next.OnConfigChanged(settings)
			}
		},
		OnClientReady: func() {
			m.Ready.Set(1)
			if next.OnClientReady != nil {
				next.OnClientReady()
			}
		},
	}
}

// Handler returns an HTTP handler serving the metrics in the
// Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
