package models

import "time"

// ServiceMetrics is the aggregated instrumentation snapshot served on the status endpoint.
type ServiceMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	RevisionsWritten         uint64    `json:"revisions_written"`
	SignoffConflicts         uint64    `json:"signoff_conflicts"`
	LedgerSeedFailures       uint64    `json:"ledger_seed_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
