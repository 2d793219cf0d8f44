package inmemory_local_fitables

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist     prometheus.Histogram
	requestsCnt        *prometheus.CounterVec
	errProcessCnt      prometheus.Counter
	repoSizeItemsGauge prometheus.GaugeFunc
	enabledItemsGauge  prometheus.GaugeFunc
}

func newMetrics(repo *inmemoryLocalFitables) *metrics {
	const ss = "inmemory_local_fitables"
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
		repoSizeItemsGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "repo_size_items_gauge",
			Subsystem: ss,
			Help:      "actual count of registered fitables",
		}, func() float64 {
			total, _ := repo.counts()
			return float64(total)
		}),
		enabledItemsGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "enabled_items_gauge",
			Subsystem: ss,
			Help:      "actual count of enabled fitables",
		}, func() float64 {
			_, enabled := repo.counts()
			return float64(enabled)
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.requestsCnt,
		m.errProcessCnt,
		m.repoSizeItemsGauge,
		m.enabledItemsGauge,
	}
}
