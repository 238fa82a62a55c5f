package sender

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// SendMetrics counts outbound calls by action. A nil *SendMetrics records nothing.
type SendMetrics struct {
	sends   *prometheus.CounterVec
	retries *prometheus.CounterVec
}

// NewSendMetrics registers the dispatcher collectors on reg under namespace.
// Registering twice on the same registry returns the existing collectors.
func NewSendMetrics(reg prometheus.Registerer, namespace string) *SendMetrics {
	return &SendMetrics{
		sends: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "sends_total",
			Help:      "Outbound Telegram calls by action and outcome (ok or error kind).",
		}, []string{"action", "outcome"})),
		retries: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "send_retries_total",
			Help:      "Retried outbound Telegram calls by action.",
		}, []string{"action"})),
	}
}

func (m *SendMetrics) retry(action string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(action).Inc()
}

func (m *SendMetrics) observe(action string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = classifyError(err)
	}
	m.sends.WithLabelValues(action, outcome).Inc()
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}
