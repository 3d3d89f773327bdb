package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/leadline/internal/domain"
)

// UsageRepository appends to and sums the metered usage ledger. Entries are
// never updated or deleted.
type UsageRepository struct {
	db dbtx
}

func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: pool}
}

func (r *UsageRepository) Record(ctx context.Context, u *domain.UsageRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO usage_records (id, tenant_id, type, quantity, recorded_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.TenantID, u.Type, u.Quantity, u.RecordedDate, u.CreatedAt,
	)
	return err
}

// SumForPeriod totals a tenant's usage of one type over [from, to] inclusive,
// at date granularity.
func (r *UsageRepository) SumForPeriod(ctx context.Context, tenantID string, usageType domain.UsageType, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0)
		 FROM usage_records
		 WHERE tenant_id = $1 AND type = $2 AND recorded_date >= $3 AND recorded_date <= $4`,
		tenantID, usageType, from, to,
	).Scan(&total)
	return total, err
}
