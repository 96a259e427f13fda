package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type SyncMetrics struct {
	watermarkGauge        *prometheus.GaugeVec
	persistedItemsCount   *prometheus.CounterVec
	providerRequestsCount prometheus.Counter
	narrowedWindowsCount  prometheus.Counter
	truncatedWindowsCount prometheus.Counter
	failedWindowsCount    *prometheus.CounterVec
	failedClientsCount    prometheus.Counter
	runDuration           prometheus.Histogram
}

func NewSyncMetrics(namespace string) *SyncMetrics {
	m := SyncMetrics{
		// progress per account
		watermarkGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_last_sync_watermark", namespace),
			Help: "The unix time up to which the account statement is synchronized",
		}, []string{"account"}),
		persistedItemsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_persisted_statement_items_count", namespace),
			Help: "The total number of persisted statement items",
		}, []string{"account"}),
		failedWindowsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_failed_windows_count", namespace),
			Help: "The total number of statement windows that could not be resolved",
		}, []string{"account"}),
		// provider interaction
		providerRequestsCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_provider_statement_requests_count", namespace),
			Help: "The total number of statement requests sent to the provider",
		}),
		narrowedWindowsCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_narrowed_windows_count", namespace),
			Help: "The total number of truncated responses that led to a narrower window",
		}),
		truncatedWindowsCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_truncated_windows_count", namespace),
			Help: "The total number of truncated responses that could not be narrowed any further",
		}),
		failedClientsCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_failed_client_info_count", namespace),
			Help: "The total number of failed client info requests",
		}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_sync_run_duration_seconds", namespace),
			Help:    "The duration of a full synchronization run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
	return &m
}

func (metrics *SyncMetrics) SetWatermark(account string, watermark int64) {
	metrics.watermarkGauge.WithLabelValues(account).Set(float64(watermark))
}

func (metrics *SyncMetrics) AddPersistedItems(account string, count int) {
	metrics.persistedItemsCount.WithLabelValues(account).Add(float64(count))
}

func (metrics *SyncMetrics) IncFailedWindows(account string) {
	metrics.failedWindowsCount.WithLabelValues(account).Inc()
}

func (metrics *SyncMetrics) IncProviderRequests() {
	metrics.providerRequestsCount.Inc()
}

func (metrics *SyncMetrics) IncNarrowedWindows() {
	metrics.narrowedWindowsCount.Inc()
}

func (metrics *SyncMetrics) IncTruncatedWindows() {
	metrics.truncatedWindowsCount.Inc()
}

func (metrics *SyncMetrics) IncFailedClients() {
	metrics.failedClientsCount.Inc()
}

func (metrics *SyncMetrics) ObserveRunDuration(seconds float64) {
	metrics.runDuration.Observe(seconds)
}
