// Package metrics records connection and request counters on a private
// Prometheus registry.
//
// Metrics:
//   - formserver_connections_accepted_total: connections handed to the pool
//   - formserver_connections_in_flight: connections currently being served
//   - formserver_connections_queued: connections waiting for a worker
//   - formserver_requests_total: requests by method and response status
//   - formserver_request_duration_seconds: decode-to-close duration by method
//   - formserver_decode_errors_total: requests that failed to decode, by kind
package metrics

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/nhdewitt/formserver/internal/headers"
	"github.com/nhdewitt/formserver/internal/request"
	"github.com/nhdewitt/formserver/internal/response"
)

const namespace = "formserver"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	accepted     prometheus.Counter
	inFlight     prometheus.Gauge
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	decodeErrors *prometheus.CounterVec
}

// New creates the collectors and registers them with registry. A nil
// registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted connections",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_in_flight",
			Help:      "Connections currently being served by a worker",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests by method and response status",
			},
			[]string{"method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time from the start of decoding to connection close",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Requests that could not be decoded, by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(m.accepted, m.inFlight, m.requests, m.duration, m.decodeErrors)
	return m
}

// TrackQueue exposes depth as the number of connections waiting for a worker.
func (m *Metrics) TrackQueue(depth func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_queued",
			Help:      "Accepted connections waiting for a free worker",
		},
		func() float64 { return float64(depth()) },
	))
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

func (m *Metrics) ConnectionStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) ConnectionFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

// RequestServed records one finished request. method becomes a label
// value and must come from a bounded set. An unknown status (0) is
// recorded as "unknown".
func (m *Metrics) RequestServed(method string, status response.StatusCode, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "unknown"
	if status != 0 {
		label = strconv.Itoa(int(status))
	}
	m.requests.WithLabelValues(method, label).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) DecodeFailed(kind string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteText renders every registered metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding metrics: %w", err)
		}
	}
	return nil
}

// Handle serves the metrics page.
func (m *Metrics) Handle(w *response.Writer, req *request.Request) error {
	var body bytes.Buffer
	if err := m.WriteText(&body); err != nil {
		return err
	}
	h := headers.Headers{"Content-Type": string(expfmt.NewFormat(expfmt.TypeTextPlain))}
	if err := w.Respond(response.StatusOK, h, body.Bytes()); err != nil {
		return err
	}
	return w.Flush()
}
