package registry_listener

import (
	"time"

	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	syncTimeHist          *prometheus.HistogramVec
	syncCnt               *prometheus.CounterVec
	cachedFitablesGauge   prometheus.GaugeFunc
	cachedAppsGauge       prometheus.GaugeFunc
	unavailableItemsGauge prometheus.GaugeFunc
	markedUnavailableCnt  prometheus.Counter
}

func newMetrics(cache *Cache) *metrics {
	const ss = "registry_listener"
	return &metrics{
		syncTimeHist: prometheus.NewHistogramVec(*prometheus_helpers.NewHistOpts(
			"sync_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Synchronization cycle time distribution"),
		), []string{"strategy"}),
		syncCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "sync_cnt",
			Subsystem: ss,
			Help:      "Count of synchronization cycles",
		}, []string{"strategy", "result"}),
		cachedFitablesGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "cached_fitables_gauge",
			Subsystem: ss,
			Help:      "actual count of fitables this worker depends on",
		}, func() float64 {
			return float64(cache.fitables.Count())
		}),
		cachedAppsGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "cached_applications_gauge",
			Subsystem: ss,
			Help:      "actual count of cached applications",
		}, func() float64 {
			return float64(cache.applications.Count())
		}),
		unavailableItemsGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "unavailable_endpoints_gauge",
			Subsystem: ss,
			Help:      "actual count of endpoints marked unavailable",
		}, func() float64 {
			return float64(cache.unavailable.Count())
		}),
		markedUnavailableCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "marked_unavailable_cnt",
			Subsystem: ss,
			Help:      "Count of endpoints marked unavailable after failed calls",
		}),
	}
}

func (m *metrics) observeSync(strategy string, ts time.Time, err *error) {
	m.syncTimeHist.WithLabelValues(strategy).Observe(float64(time.Since(ts)))
	result := "ok"
	if err != nil && *err != nil {
		result = "error"
	}
	m.syncCnt.WithLabelValues(strategy, result).Inc()
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.syncTimeHist,
		m.syncCnt,
		m.cachedFitablesGauge,
		m.cachedAppsGauge,
		m.unavailableItemsGauge,
		m.markedUnavailableCnt,
	}
}
