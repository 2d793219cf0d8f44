package registrar

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registrationsCnt *prometheus.CounterVec
	lostCnt          prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "registrar"
	return &metrics{
		registrationsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "registrations_cnt",
			Subsystem: ss,
			Help:      "Count of registration attempts",
		}, []string{"code"}),
		lostCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "lost_registrations_cnt",
			Subsystem: ss,
			Help:      "Count of checks that found the worker unregistered",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.registrationsCnt,
		m.lostCnt,
	}
}
