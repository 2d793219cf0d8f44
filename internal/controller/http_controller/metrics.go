package http_controller

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist   prometheus.Histogram
	envelopeSizeHist *prometheus.HistogramVec
	callsCnt         *prometheus.CounterVec
	rejectedCnt      *prometheus.CounterVec
	writeErrCnt      prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "http_controller"
	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Inbound call handle time distribution"),
		)),
		envelopeSizeHist: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      "envelope_size_bytes_hist",
			Subsystem: ss,
			Help:      "Size distribution of envelopes by direction",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"direction"}),
		callsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "calls_cnt",
			Subsystem: ss,
			Help:      "Count of inbound calls handed to processor by generic",
		}, []string{"generic_id"}),
		rejectedCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "rejected_calls_cnt",
			Subsystem: ss,
			Help:      "Count of inbound calls rejected before processing by reason",
		}, []string{"reason"}),
		writeErrCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "write_errors_cnt",
			Subsystem: ss,
			Help:      "Count of responses failed to be written",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.envelopeSizeHist,
		m.callsCnt,
		m.rejectedCnt,
		m.writeErrCnt,
	}
}
