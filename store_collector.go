package mangashark

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// StoreCollector exposes the health of the progress store's pebble
// instance: compaction debt tells us whether bulk imports are keeping
// up, WAL counters bound the progress we could lose on a crash.
type StoreCollector struct {
	db *pebble.DB

	compactionCount *prometheus.Desc
	compactionDebt  *prometheus.Desc
	memtableSize    *prometheus.Desc
	walSize         *prometheus.Desc
	walBytesWritten *prometheus.Desc
}

func NewStoreCollector(store *PebbleStore) *StoreCollector {
	return &StoreCollector{
		db: store.Database(),

		compactionCount: prometheus.NewDesc(
			"mangashark_store_compaction_count_total",
			"Total number of compactions performed by the progress store",
			nil, nil,
		),
		compactionDebt: prometheus.NewDesc(
			"mangashark_store_compaction_estimated_debt_bytes",
			"Estimated bytes to compact before the progress store is stable",
			nil, nil,
		),
		memtableSize: prometheus.NewDesc(
			"mangashark_store_memtable_size_bytes",
			"Current memtable size of the progress store",
			nil, nil,
		),
		walSize: prometheus.NewDesc(
			"mangashark_store_wal_size_bytes",
			"Size of live WAL data in the progress store",
			nil, nil,
		),
		walBytesWritten: prometheus.NewDesc(
			"mangashark_store_wal_bytes_written_total",
			"Total physical bytes written to the progress store WAL",
			nil, nil,
		),
	}
}

func (sc *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.compactionCount
	ch <- sc.compactionDebt
	ch <- sc.memtableSize
	ch <- sc.walSize
	ch <- sc.walBytesWritten
}

func (sc *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	metrics := sc.db.Metrics()

	ch <- prometheus.MustNewConstMetric(
		sc.compactionCount,
		prometheus.CounterValue,
		float64(metrics.Compact.Count),
	)
	ch <- prometheus.MustNewConstMetric(
		sc.compactionDebt,
		prometheus.GaugeValue,
		float64(metrics.Compact.EstimatedDebt),
	)
	ch <- prometheus.MustNewConstMetric(
		sc.memtableSize,
		prometheus.GaugeValue,
		float64(metrics.MemTable.Size),
	)
	ch <- prometheus.MustNewConstMetric(
		sc.walSize,
		prometheus.GaugeValue,
		float64(metrics.WAL.Size),
	)
	ch <- prometheus.MustNewConstMetric(
		sc.walBytesWritten,
		prometheus.CounterValue,
		float64(metrics.WAL.BytesWritten),
	)
}
