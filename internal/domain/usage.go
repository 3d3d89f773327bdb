package domain

import "time"

// UsageType identifies the metered quantity a usage record counts.
type UsageType string

const (
	UsageTypeTokens UsageType = "tokens"
)

// UsageRecord is one append-only ledger entry of metered usage for a tenant.
// Totals come from summing entries over a period, never from mutating a counter.
type UsageRecord struct {
	ID           string
	TenantID     string
	Type         UsageType
	Quantity     int64
	RecordedDate time.Time // date-level granularity, UTC
	CreatedAt    time.Time
}
