package inmemory_registry_records

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist    prometheus.Histogram
	requestsCnt       *prometheus.CounterVec
	errProcessCnt     prometheus.Counter
	fitableMetasGauge prometheus.GaugeFunc
	applicationsGauge prometheus.GaugeFunc
}

func newMetrics(repo *inmemoryRegistryRecords) *metrics {
	const ss = "inmemory_registry_records"
	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
		)),
		requestsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "requests_cnt",
			Subsystem: ss,
			Help:      "Count of incoming requests",
		}, []string{"op"}),
		errProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_processes_cnt",
			Subsystem: ss,
			Help:      "Count of processes finished with non-nil error",
		}),
		fitableMetasGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "fitable_metas_gauge",
			Subsystem: ss,
			Help:      "actual count of registered fitable metas",
		}, func() float64 {
			return float64(repo.metas.Count())
		}),
		applicationsGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "applications_gauge",
			Subsystem: ss,
			Help:      "actual count of registered applications",
		}, func() float64 {
			return float64(repo.applications.Count())
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.requestsCnt,
		m.errProcessCnt,
		m.fitableMetasGauge,
		m.applicationsGauge,
	}
}
