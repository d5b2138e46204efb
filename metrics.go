package kvdb

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	metricSet   = metrics.NewSet()
	cacheHits   = metricSet.NewCounter("kvdb_cache_hits_total")
	cacheMisses = metricSet.NewCounter("kvdb_cache_misses_total")
)

func countOp(kind Kind, op string) {
	metricSet.GetOrCreateCounter(fmt.Sprintf(`kvdb_operations_total{backend=%q,op=%q}`, kind, op)).Inc()
}

func countError(kind Kind, op string) {
	metricSet.GetOrCreateCounter(fmt.Sprintf(`kvdb_errors_total{backend=%q,op=%q}`, kind, op)).Inc()
}

// WriteMetrics writes the counters of every handle in the process in
// Prometheus text format.
func WriteMetrics(w io.Writer) {
	metricSet.WritePrometheus(w)
}
