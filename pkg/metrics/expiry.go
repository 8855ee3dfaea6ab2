package metrics

import "github.com/prometheus/client_golang/prometheus"

// Digest delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// ExpiryMetrics covers the lifecycle engine, digest delivery and remote sync.
type ExpiryMetrics struct {
	transitions *prometheus.CounterVec
	digests     *prometheus.CounterVec
	remoteCalls *prometheus.CounterVec
}

func NewExpiryMetrics(reg prometheus.Registerer) *ExpiryMetrics {
	if reg == nil {
		return &ExpiryMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_item_transitions_total",
		Help: "Item status transitions by resulting status.",
	}, []string{"status"})
	digests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_digest_emails_total",
		Help: "Daily digest decisions per user by outcome.",
	}, []string{"outcome"})
	remoteCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "expiry_remote_calls_total",
		Help: "Remote inventory calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(transitions, digests, remoteCalls)
	return &ExpiryMetrics{
		transitions: transitions,
		digests:     digests,
		remoteCalls: remoteCalls,
	}
}

func (m *ExpiryMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *ExpiryMetrics) IncDigest(outcome string) {
	if m == nil || m.digests == nil {
		return
	}
	m.digests.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveRemoteCall records one remote inventory request.
func (m *ExpiryMetrics) ObserveRemoteCall(operation string, ok bool) {
	if m == nil || m.remoteCalls == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.remoteCalls.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}
