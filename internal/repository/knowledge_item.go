package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/pagination"
	"github.com/cloo-solutions/leadline/internal/service"
)

type KnowledgeItemRepository struct {
	db dbtx
}

func NewKnowledgeItemRepository(pool *pgxpool.Pool) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: pool}
}

func NewKnowledgeItemRepositoryWithTx(tx pgx.Tx) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: tx}
}

func (r *KnowledgeItemRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (id, tenant_id, type, status, title, content, source_url, file_path, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		k.ID, k.TenantID, k.Type, k.Status, k.Title, k.Content, nullableString(k.SourceURL), nullableString(k.FilePath), nullableString(k.FailureReason), k.CreatedAt, k.UpdatedAt,
	)
	return err
}

func (r *KnowledgeItemRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeItem, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, type, status, title, content, source_url, file_path, failure_reason, created_at, updated_at
		 FROM knowledge_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
}

// GetAnyByID looks an item up without a tenant filter. Only the job workers
// use this; API paths stay tenant-scoped.
func (r *KnowledgeItemRepository) GetAnyByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, type, status, title, content, source_url, file_path, failure_reason, created_at, updated_at
		 FROM knowledge_items WHERE id = $1`,
		id,
	)
}

func (r *KnowledgeItemRepository) get(ctx context.Context, query string, args ...any) (*domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	var sourceURL, filePath, failureReason *string
	err := r.db.QueryRow(ctx, query, args...).
		Scan(&k.ID, &k.TenantID, &k.Type, &k.Status, &k.Title, &k.Content, &sourceURL, &filePath, &failureReason, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	if sourceURL != nil {
		k.SourceURL = *sourceURL
	}
	if filePath != nil {
		k.FilePath = *filePath
	}
	if failureReason != nil {
		k.FailureReason = *failureReason
	}
	return &k, nil
}

func (r *KnowledgeItemRepository) ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*service.KnowledgeItemPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, type, status, title, content, source_url, file_path, failure_reason, created_at, updated_at
			 FROM knowledge_items
			 WHERE tenant_id = $1 AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			tenantID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, tenant_id, type, status, title, content, source_url, file_path, failure_reason, created_at, updated_at
			 FROM knowledge_items
			 WHERE tenant_id = $1
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			tenantID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItemRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore {
		nextCursor = pagination.CreateNextCursor(items, limit,
			func(k *domain.KnowledgeItem) string { return k.ID },
			func(k *domain.KnowledgeItem) time.Time { return k.UpdatedAt },
		)
	}

	return &service.KnowledgeItemPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ClaimForProcessing moves a pending or failed item to processing. Exactly one
// caller wins; everyone else gets ErrItemAlreadyClaimed. Failed items are
// claimable so a rescheduled job can retry them.
func (r *KnowledgeItemRepository) ClaimForProcessing(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET status = $1, updated_at = $2
		 WHERE id = $3 AND status IN ($4, $5)`,
		domain.ItemStatusProcessing, time.Now().UTC(), id, domain.ItemStatusPending, domain.ItemStatusFailed,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemAlreadyClaimed
	}
	return nil
}

// SetContent stores extracted text alongside a status change.
func (r *KnowledgeItemRepository) SetContent(ctx context.Context, id, content string, status domain.ItemStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET content = $1, status = $2, failure_reason = NULL, updated_at = $3 WHERE id = $4`,
		content, status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *KnowledgeItemRepository) UpdateStatus(ctx context.Context, id string, status domain.ItemStatus, failureReason string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET status = $1, failure_reason = $2, updated_at = $3 WHERE id = $4`,
		status, nullableString(failureReason), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ResetForReprocess returns a failed or ready item to pending so the pipeline
// can pick it up again. Items mid-flight cannot be reset.
func (r *KnowledgeItemRepository) ResetForReprocess(ctx context.Context, tenantID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET status = $1, failure_reason = NULL, updated_at = $2
		 WHERE tenant_id = $3 AND id = $4 AND status IN ($5, $6)`,
		domain.ItemStatusPending, time.Now().UTC(), tenantID, id, domain.ItemStatusFailed, domain.ItemStatusReady,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFailed
	}
	return nil
}

func (r *KnowledgeItemRepository) Delete(ctx context.Context, tenantID, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func scanItemRows(rows pgx.Rows) ([]*domain.KnowledgeItem, error) {
	var results []*domain.KnowledgeItem
	for rows.Next() {
		var k domain.KnowledgeItem
		var sourceURL, filePath, failureReason *string
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Type, &k.Status, &k.Title, &k.Content, &sourceURL, &filePath, &failureReason, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		if sourceURL != nil {
			k.SourceURL = *sourceURL
		}
		if filePath != nil {
			k.FilePath = *filePath
		}
		if failureReason != nil {
			k.FailureReason = *failureReason
		}
		results = append(results, &k)
	}
	return results, rows.Err()
}
