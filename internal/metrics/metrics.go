package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync cycle outcomes: ok, skipped (overlapping tick), error
var SyncCycles = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trackarr_sync_cycles_total",
	Help: "Reconciliation cycles by outcome.",
}, []string{"result"})

// Enrichment lookup outcomes: matched, unmatched, error
var EnrichmentLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trackarr_enrichment_lookups_total",
	Help: "Media enrichment lookups by outcome.",
}, []string{"result"})

var RetentionRemoved = promauto.NewCounter(prometheus.CounterOpts{
	Name: "trackarr_retention_removed_total",
	Help: "Terminal records removed by the retention sweep.",
})
