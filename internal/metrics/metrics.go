package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters recorded by the membership core. A nil
// *Metrics records nothing.
type Metrics struct {
	inviteTransitions *prometheus.CounterVec
	tokenRedemptions  *prometheus.CounterVec
	emails            *prometheus.CounterVec
	teardowns         *prometheus.CounterVec
	sweptRows         *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		inviteTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "invite_transitions_total",
			Help:      "Invite status changes by resulting status.",
		}, []string{"status"}),
		tokenRedemptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "token_redemptions_total",
			Help:      "Token redemption attempts by token kind and outcome.",
		}, []string{"kind", "result"}),
		emails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "emails_total",
			Help:      "Outbound emails by kind and outcome.",
		}, []string{"kind", "result"}),
		teardowns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "teardowns_total",
			Help:      "Completed account and household teardowns.",
		}, []string{"kind"}),
		sweptRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Name:      "swept_rows_total",
			Help:      "Expired rows removed by the background sweeper.",
		}, []string{"table"}),
	}
}

func (m *Metrics) InviteTransition(status string) {
	if m == nil {
		return
	}
	m.inviteTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) TokenRedemption(kind, result string) {
	if m == nil {
		return
	}
	m.tokenRedemptions.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Email(kind string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.emails.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Teardown(kind string) {
	if m == nil {
		return
	}
	m.teardowns.WithLabelValues(kind).Inc()
}

func (m *Metrics) Swept(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptRows.WithLabelValues(table).Add(float64(n))
}
