package rpcfallback

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records fallback client activity. A nil *Metrics records nothing.
type Metrics struct {
	probes        *prometheus.CounterVec
	operations    *prometheus.CounterVec
	retries       prometheus.Counter
	exhausted     prometheus.Counter
	endpointLive  *prometheus.GaugeVec
	endpointError *prometheus.GaugeVec
}

// NewMetrics creates the fallback collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "varayield",
				Subsystem: "rpc",
				Name:      "probes_total",
				Help:      "Endpoint liveness probes by result",
			},
			[]string{"endpoint", "result"},
		),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "varayield",
				Subsystem: "rpc",
				Name:      "operations_total",
				Help:      "Operations executed through the fallback client by result",
			},
			[]string{"endpoint", "result"},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "varayield",
				Subsystem: "rpc",
				Name:      "retries_total",
				Help:      "Retries scheduled after a failed attempt",
			},
		),
		exhausted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "varayield",
				Subsystem: "rpc",
				Name:      "exhausted_total",
				Help:      "Calls that failed after reaching the retry ceiling",
			},
		),
		endpointLive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "varayield",
				Subsystem: "rpc",
				Name:      "endpoint_live",
				Help:      "Endpoint liveness (1=live, 0=dead)",
			},
			[]string{"endpoint"},
		),
		endpointError: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "varayield",
				Subsystem: "rpc",
				Name:      "endpoint_error_count",
				Help:      "Current consecutive error count per endpoint",
			},
			[]string{"endpoint"},
		),
	}

	for _, c := range []prometheus.Collector{m.probes, m.operations, m.retries, m.exhausted, m.endpointLive, m.endpointError} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) recordProbe(endpoint string, err error) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(endpoint, resultLabel(err)).Inc()
}

func (m *Metrics) recordOperation(endpoint string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(endpoint, resultLabel(err)).Inc()
}

func (m *Metrics) recordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) recordExhausted() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}

func (m *Metrics) setEndpoint(ep Endpoint) {
	if m == nil {
		return
	}
	live := 0.0
	if ep.IsLive {
		live = 1
	}
	m.endpointLive.WithLabelValues(ep.Name).Set(live)
	m.endpointError.WithLabelValues(ep.Name).Set(float64(ep.ErrorCount))
}
