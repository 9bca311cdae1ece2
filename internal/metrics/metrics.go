// Package metrics объявляет счетчики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultSuccess   = "success"
	ResultDuplicate = "duplicate"
	ResultInvalid   = "invalid"
	ResultFailure   = "failure"
	ResultBlocked   = "blocked"
)

// Metrics — набор счетчиков. Методы безопасны для nil-получателя.
type Metrics struct {
	registrations        *prometheus.CounterVec
	logins               *prometheus.CounterVec
	assessmentsCompleted prometheus.Counter
}

// New создает счетчики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmap_registrations_total",
			Help: "Registration attempts by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmap_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		assessmentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthmap_assessments_completed_total",
			Help: "Completed assessment attempts.",
		}),
	}
	reg.MustRegister(m.registrations, m.logins, m.assessmentsCompleted)
	return m
}

// Registration учитывает попытку регистрации.
func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// Login учитывает попытку входа.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// AssessmentCompleted учитывает завершенную анкету.
func (m *Metrics) AssessmentCompleted() {
	if m == nil {
		return
	}
	m.assessmentsCompleted.Inc()
}
