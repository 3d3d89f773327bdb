package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
)

type UsageRepositoryInterface interface {
	Record(ctx context.Context, u *domain.UsageRecord) error
	SumForPeriod(ctx context.Context, tenantID string, usageType domain.UsageType, from, to time.Time) (int64, error)
}

// UsageService meters tenant consumption through an append-only ledger.
type UsageService struct {
	usageRepo UsageRepositoryInterface
	uuidGen   UUIDGenerator
}

func NewUsageService(usageRepo UsageRepositoryInterface) *UsageService {
	return &UsageService{
		usageRepo: usageRepo,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// RecordTokens appends one token-usage entry for the current UTC date.
func (s *UsageService) RecordTokens(ctx context.Context, tenantID string, tokens int64) error {
	if tokens <= 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.usageRepo.Record(ctx, &domain.UsageRecord{
		ID:           s.uuidGen.NewString(),
		TenantID:     tenantID,
		Type:         domain.UsageTypeTokens,
		Quantity:     tokens,
		RecordedDate: now.Truncate(24 * time.Hour),
		CreatedAt:    now,
	})
}

// TokensUsed totals token usage over [from, to] inclusive.
func (s *UsageService) TokensUsed(ctx context.Context, tenantID string, from, to time.Time) (int64, error) {
	return s.usageRepo.SumForPeriod(ctx, tenantID, domain.UsageTypeTokens, from, to)
}
