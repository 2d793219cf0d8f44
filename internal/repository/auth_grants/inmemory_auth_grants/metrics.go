package inmemory_auth_grants

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	hitsCnt        *prometheus.CounterVec
	missesCnt      *prometheus.CounterVec
	keysSizeGauge  prometheus.GaugeFunc
	rolesSizeGauge prometheus.GaugeFunc
}

func newMetrics(repo *inmemoryAuthGrants) *metrics {
	const ss = "inmemory_auth_grants"
	return &metrics{
		hitsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "hits_cnt",
			Subsystem: ss,
			Help:      "Count of lookups of existing grants",
		}, []string{"kind"}),
		missesCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "misses_cnt",
			Subsystem: ss,
			Help:      "Count of lookups of unknown grants",
		}, []string{"kind"}),
		keysSizeGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "keys_size_gauge",
			Subsystem: ss,
			Help:      "actual count of access keys in repo",
		}, func() float64 {
			keys, _ := repo.counts()
			return float64(keys)
		}),
		rolesSizeGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "roles_size_gauge",
			Subsystem: ss,
			Help:      "actual count of roles in repo",
		}, func() float64 {
			_, roles := repo.counts()
			return float64(roles)
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.hitsCnt,
		m.missesCnt,
		m.keysSizeGauge,
		m.rolesSizeGauge,
	}
}
