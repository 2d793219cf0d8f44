package registry_server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	checksCnt             *prometheus.CounterVec
	notifyCnt             *prometheus.CounterVec
	collectedListenersCnt prometheus.Counter
	subscriptionsGauge    prometheus.GaugeFunc
}

func newMetrics(svc *Service) *metrics {
	const ss = "registry_server"
	return &metrics{
		checksCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "checks_cnt",
			Subsystem: ss,
			Help:      "Count of checked elements",
		}, []string{"type", "code"}),
		notifyCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "notify_cnt",
			Subsystem: ss,
			Help:      "Count of notifications sent to listeners",
		}, []string{"result"}),
		collectedListenersCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "collected_listeners_cnt",
			Subsystem: ss,
			Help:      "Count of offline listeners purged by the collector",
		}),
		subscriptionsGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "subscriptions_gauge",
			Subsystem: ss,
			Help:      "actual count of subscriptions",
		}, func() float64 {
			return float64(svc.subs.count())
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.checksCnt,
		m.notifyCnt,
		m.collectedListenersCnt,
		m.subscriptionsGauge,
	}
}
