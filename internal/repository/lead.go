package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/pagination"
	"github.com/cloo-solutions/leadline/internal/service"
)

type LeadRepository struct {
	db dbtx
}

func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: pool}
}

func NewLeadRepositoryWithTx(tx pgx.Tx) *LeadRepository {
	return &LeadRepository{db: tx}
}

func (r *LeadRepository) Create(ctx context.Context, l *domain.Lead) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO leads (id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		l.ID, l.TenantID, nullableString(l.Name), nullableString(l.Email), nullableString(l.Phone), nullableString(l.Company),
		l.Score, l.Status, nullableString(l.Source), scoreHistory(l.ScoreHistory), l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *LeadRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Lead, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at
		 FROM leads WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
}

// GetByIDForUpdate row-locks the lead for the duration of the enclosing
// transaction. Score mutations go through the locked variants so concurrent
// turns cannot clobber each other's read-modify-write.
func (r *LeadRepository) GetByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Lead, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at
		 FROM leads WHERE tenant_id = $1 AND id = $2
		 FOR UPDATE`,
		tenantID, id,
	)
}

// FindByEmail and FindByPhone back lead dedup. Matching is exact and
// tenant-scoped.
func (r *LeadRepository) FindByEmail(ctx context.Context, tenantID, email string) (*domain.Lead, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at
		 FROM leads WHERE tenant_id = $1 AND email = $2
		 ORDER BY created_at ASC LIMIT 1`,
		tenantID, email,
	)
}

func (r *LeadRepository) FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Lead, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at
		 FROM leads WHERE tenant_id = $1 AND phone = $2
		 ORDER BY created_at ASC LIMIT 1`,
		tenantID, phone,
	)
}

func (r *LeadRepository) FindByEmailForUpdate(ctx context.Context, tenantID, email string) (*domain.Lead, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at
		 FROM leads WHERE tenant_id = $1 AND email = $2
		 ORDER BY created_at ASC LIMIT 1
		 FOR UPDATE`,
		tenantID, email,
	)
}

func (r *LeadRepository) FindByPhoneForUpdate(ctx context.Context, tenantID, phone string) (*domain.Lead, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at
		 FROM leads WHERE tenant_id = $1 AND phone = $2
		 ORDER BY created_at ASC LIMIT 1
		 FOR UPDATE`,
		tenantID, phone,
	)
}

func (r *LeadRepository) get(ctx context.Context, query string, args ...any) (*domain.Lead, error) {
	row := r.db.QueryRow(ctx, query, args...)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLeadNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *LeadRepository) Update(ctx context.Context, l *domain.Lead) error {
	l.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE leads SET name = $1, email = $2, phone = $3, company = $4, score = $5, status = $6, score_history = $7, updated_at = $8
		 WHERE id = $9`,
		nullableString(l.Name), nullableString(l.Email), nullableString(l.Phone), nullableString(l.Company),
		l.Score, l.Status, scoreHistory(l.ScoreHistory), l.UpdatedAt, l.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrLeadNotFound
	}
	return nil
}

func (r *LeadRepository) ListByTenantWithCursor(ctx context.Context, tenantID string, status domain.LeadStatus, cursor *pagination.Cursor, limit int) (*service.LeadPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, tenant_id, name, email, phone, company, score, status, source, score_history, created_at, updated_at
	          FROM leads WHERE tenant_id = $1`
	args := []any{tenantID}

	if status != "" {
		args = append(args, status)
		query += ` AND status = $2`
	}
	if cursor != nil {
		n := len(args)
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += ` AND (updated_at, id) < ($` + strconv.Itoa(n+1) + `, $` + strconv.Itoa(n+2) + `)`
	}
	args = append(args, limit+1)
	query += ` ORDER BY updated_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(leads) > limit
	if hasMore {
		leads = leads[:limit]
	}

	var nextCursor string
	if hasMore {
		nextCursor = pagination.CreateNextCursor(leads, limit,
			func(l *domain.Lead) string { return l.ID },
			func(l *domain.Lead) time.Time { return l.UpdatedAt },
		)
	}

	return &service.LeadPageResult{
		Leads:      leads,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var l domain.Lead
	var name, email, phone, company, source *string
	if err := row.Scan(&l.ID, &l.TenantID, &name, &email, &phone, &company, &l.Score, &l.Status, &source, &l.ScoreHistory, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if name != nil {
		l.Name = *name
	}
	if email != nil {
		l.Email = *email
	}
	if phone != nil {
		l.Phone = *phone
	}
	if company != nil {
		l.Company = *company
	}
	if source != nil {
		l.Source = *source
	}
	return &l, nil
}

// scoreHistory normalizes nil to an empty JSON array so the column never
// stores SQL NULL.
func scoreHistory(h []domain.ScoreAdjustment) []domain.ScoreAdjustment {
	if h == nil {
		return []domain.ScoreAdjustment{}
	}
	return h
}
