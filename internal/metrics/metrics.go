package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sos"

// Escalation outcomes.
const (
	OutcomePushDelivered = "push_delivered"
	OutcomeSMSFallback   = "sms_fallback"
	OutcomeDuplicate     = "duplicate"
	OutcomeFailed        = "failed"
)

// Metrics groups every instrument the service records.
type Metrics struct {
	// escalations counts alert-created handlings by outcome.
	escalations *prometheus.CounterVec
	// escalationDuration observes how long one fan-out takes.
	escalationDuration prometheus.Histogram
	// pushSuccesses counts push deliveries reported by the gateway.
	pushSuccesses prometheus.Counter
	// pushFailures counts failed push send attempts.
	pushFailures prometheus.Counter
	// smsRecords counts outbound message records by audience and result.
	smsRecords *prometheus.CounterVec
	// claims counts claim attempts by result kind.
	claims *prometheus.CounterVec
	// httpRequests counts HTTP requests by route and status.
	httpRequests *prometheus.CounterVec
}

// New registers the instruments in reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		escalations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Alert-created handlings by outcome",
		}, []string{"outcome"}),
		escalationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "escalation_duration_seconds",
			Help:      "Time spent handling one alert-created trigger",
			Buckets:   prometheus.DefBuckets,
		}),
		pushSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_successes_total",
			Help:      "Push notifications accepted by the gateway",
		}),
		pushFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_failures_total",
			Help:      "Push send attempts that failed as a whole",
		}),
		smsRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_records_total",
			Help:      "Outbound message records by audience and result",
		}, []string{"audience", "result"}),
		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claim attempts by result",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
	}
}

// Escalation records one handled trigger.
func (m *Metrics) Escalation(outcome string, took time.Duration) {
	if m == nil {
		return
	}

	m.escalations.WithLabelValues(outcome).Inc()
	m.escalationDuration.Observe(took.Seconds())
}

// Push records the result of one push send.
func (m *Metrics) Push(successes int, err error) {
	if m == nil {
		return
	}

	if err != nil {
		m.pushFailures.Inc()

		return
	}

	m.pushSuccesses.Add(float64(successes))
}

// SMSRecord records one outbound message write.
func (m *Metrics) SMSRecord(audience string, err error) {
	if m == nil {
		return
	}

	result := "written"
	if err != nil {
		result = "failed"
	}

	m.smsRecords.WithLabelValues(audience, result).Inc()
}

// Claim records one claim attempt; result is "accepted" or an error kind.
func (m *Metrics) Claim(result string) {
	if m == nil {
		return
	}

	m.claims.WithLabelValues(result).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route, method, status string) {
	if m == nil {
		return
	}

	m.httpRequests.WithLabelValues(route, method, status).Inc()
}
