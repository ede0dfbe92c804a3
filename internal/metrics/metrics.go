// Package metrics exposes prometheus counters for ingestion and exception
// activity. Constructed once at process start and injected; a nil *Metrics
// disables collection, which keeps tests quiet.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DocumentsIngested *prometheus.CounterVec
	RecordsCreated    prometheus.Counter
	RecordsMerged     prometheus.Counter
	ExceptionsRaised  *prometheus.CounterVec
	AutoFixesApplied  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		DocumentsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loantrack_documents_ingested_total",
			Help: "Total documents ingested, by source type",
		}, []string{"source_type"}),
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loantrack_tracking_records_created_total",
			Help: "Total tracking records created",
		}),
		RecordsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loantrack_tracking_records_merged_total",
			Help: "Total documents merged into existing tracking records",
		}),
		ExceptionsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loantrack_exceptions_raised_total",
			Help: "Total exceptions raised, by severity",
		}, []string{"severity"}),
		AutoFixesApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loantrack_auto_fixes_applied_total",
			Help: "Total auto-fixes applied successfully",
		}),
	}
}

func (m *Metrics) DocumentIngested(sourceType string) {
	if m == nil {
		return
	}
	m.DocumentsIngested.WithLabelValues(sourceType).Inc()
}

func (m *Metrics) RecordCreated() {
	if m == nil {
		return
	}
	m.RecordsCreated.Inc()
}

func (m *Metrics) RecordMerged() {
	if m == nil {
		return
	}
	m.RecordsMerged.Inc()
}

func (m *Metrics) ExceptionRaised(severity string) {
	if m == nil {
		return
	}
	m.ExceptionsRaised.WithLabelValues(severity).Inc()
}

func (m *Metrics) AutoFixApplied() {
	if m == nil {
		return
	}
	m.AutoFixesApplied.Inc()
}
