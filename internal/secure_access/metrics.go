package secure_access

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	issuedCnt     *prometheus.CounterVec
	authChecksCnt *prometheus.CounterVec
	evictedCnt    prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "secure_access"
	return &metrics{
		issuedCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "issued_tokens_cnt",
			Subsystem: ss,
			Help:      "Count of issued tokens",
		}, []string{"type"}),
		authChecksCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "auth_checks_cnt",
			Subsystem: ss,
			Help:      "Count of authorization checks",
		}, []string{"code"}),
		evictedCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "evicted_tokens_cnt",
			Subsystem: ss,
			Help:      "Count of expired tokens evicted",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.issuedCnt,
		m.authChecksCnt,
		m.evictedCnt,
	}
}
