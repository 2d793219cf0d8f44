package fit_registry

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	callTimeHist prometheus.Histogram
	callsCnt     *prometheus.CounterVec
	notifyCnt    *prometheus.CounterVec
}

func newMetrics() *metrics {
	const ss = "registry_gateway"
	return &metrics{
		callTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"call_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Registry call time distribution"),
		)),
		callsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "calls_cnt",
			Subsystem: ss,
			Help:      "Count of registry calls",
		}, []string{"generic_id", "code"}),
		notifyCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "notify_cnt",
			Subsystem: ss,
			Help:      "Count of listener notifications sent",
		}, []string{"code"}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.callTimeHist,
		m.callsCnt,
		m.notifyCnt,
	}
}
