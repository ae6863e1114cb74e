package observability

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payidcheck/internal/payid"
)

const OutcomeValid = "valid"

// Metrics holds the service collectors on a private registry. All methods are
// safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	Validations   *prometheus.CounterVec
	LivenessCheck *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payid_validations_total",
			Help: "PayID validations by outcome",
		}, []string{"outcome"}), // outcome: "valid" or an error kind
		LivenessCheck: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payid_liveness_checks_total",
			Help: "Liveness checks by outcome",
		}, []string{"outcome"}), // outcome: usable, retry, unusable, error
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payid_liveness_queue_depth",
			Help: "Liveness jobs waiting in the queue",
		}),
	}
}

// ObserveValidation counts one validation using err's kind as the outcome.
func (m *Metrics) ObserveValidation(err error) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(ValidationOutcome(err)).Inc()
}

func (m *Metrics) ObserveLiveness(outcome string) {
	if m == nil {
		return
	}
	m.LivenessCheck.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func ValidationOutcome(err error) string {
	if err == nil {
		return OutcomeValid
	}
	var perr *payid.Error
	if errors.As(err, &perr) {
		return perr.Kind.String()
	}
	return "error"
}
