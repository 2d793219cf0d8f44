package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	submittedCnt prometheus.Counter
	doneCnt      prometheus.Counter
	panicsCnt    prometheus.Counter
	queuedGauge  prometheus.GaugeFunc
}

func newMetrics(name string, p *Pool) *metrics {
	const ss = "pool"
	labels := prometheus.Labels{"pool": name}
	return &metrics{
		submittedCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "submitted_cnt",
			Subsystem:   ss,
			Help:        "Count of submitted tasks",
			ConstLabels: labels,
		}),
		doneCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "done_cnt",
			Subsystem:   ss,
			Help:        "Count of finished tasks",
			ConstLabels: labels,
		}),
		panicsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "panics_cnt",
			Subsystem:   ss,
			Help:        "Count of tasks finished with panic",
			ConstLabels: labels,
		}),
		queuedGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "queued_gauge",
			Subsystem:   ss,
			Help:        "actual count of queued tasks",
			ConstLabels: labels,
		}, func() float64 {
			return float64(p.queued())
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.submittedCnt,
		m.doneCnt,
		m.panicsCnt,
		m.queuedGauge,
	}
}
