package processor

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist    prometheus.Histogram
	callsCnt          *prometheus.CounterVec
	successProcessCnt prometheus.Counter
	errProcessCnt     *prometheus.CounterVec
}

func newMetrics() *metrics {
	const ss = "processor"
	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Inbound call handle time distribution"),
		)),
		callsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "calls_cnt",
			Subsystem: ss,
			Help:      "Count of dispatched inbound calls",
		}, []string{"generic_id"}),
		successProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "success_processes_cnt",
			Subsystem: ss,
			Help:      "Count of successfully finished processes",
		}),
		errProcessCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "err_processes_cnt",
			Subsystem: ss,
			Help:      "Count of processes finished with non-nil error",
		}, []string{"code"}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.callsCnt,
		m.successProcessCnt,
		m.errProcessCnt,
	}
}
