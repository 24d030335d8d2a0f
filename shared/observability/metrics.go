package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics groups the counters emitted by the chat and audio services. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	commands    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	notices     *prometheus.CounterVec
	persistErrs prometheus.Counter

	persistLatency otelmetric.Float64Histogram
}

// NewMetrics registers the service counters with reg
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "commands_total",
			Help:      "Chat store commands by name and whether they changed state.",
		}, []string{"command", "applied"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "audio",
			Name:      "session_transitions_total",
			Help:      "Recording session state transitions.",
		}, []string{"from", "to"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "notices_total",
			Help:      "User-facing notices by error code.",
		}, []string{"code"}),
		persistErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "persist_failures_total",
			Help:      "Failed writes of the persisted chat snapshot.",
		}),
	}

	for _, c := range []prometheus.Collector{m.commands, m.transitions, m.notices, m.persistErrs} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	hist, err := otel.Meter("pratham-chat/persist").Float64Histogram(
		"chat.persist.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Duration of chat snapshot writes."),
	)
	if err != nil {
		return nil, err
	}
	m.persistLatency = hist

	return m, nil
}

// Command counts a dispatched chat command
func (m *Metrics) Command(name string, applied bool) {
	if m == nil {
		return
	}
	a := "false"
	if applied {
		a = "true"
	}
	m.commands.WithLabelValues(name, a).Inc()
}

// Transition counts a recording session state change
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Notice counts a user-facing notice
func (m *Metrics) Notice(code string) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(code).Inc()
}

// PersistWrite records one snapshot write
func (m *Metrics) PersistWrite(ctx context.Context, took time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.persistErrs.Inc()
	}
	m.persistLatency.Record(ctx, float64(took.Microseconds())/1000)
}
