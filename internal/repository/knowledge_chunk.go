package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/leadline/internal/domain"
)

// KnowledgeChunkRepository handles persistence of segmented knowledge text
// and its embeddings.
type KnowledgeChunkRepository struct {
	db dbtx
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: pool}
}

func NewKnowledgeChunkRepositoryWithTx(tx pgx.Tx) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for an item and inserts the new set,
// preserving chunk order.
func (r *KnowledgeChunkRepository) ReplaceChunks(ctx context.Context, itemID string, chunks []domain.KnowledgeChunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE item_id = $1`, itemID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO knowledge_chunks (id, item_id, tenant_id, chunk_index, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.ItemID, c.TenantID, c.ChunkIndex, c.Content, nullableVector(c.Embedding), createdAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *KnowledgeChunkRepository) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_chunks SET embedding = $1 WHERE id = $2`,
		nullableVector(embedding), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// ListUnembedded returns an item's chunks that still need embeddings, in
// chunk order.
func (r *KnowledgeChunkRepository) ListUnembedded(ctx context.Context, itemID string) ([]*domain.KnowledgeChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, item_id, tenant_id, chunk_index, content, embedding, created_at
		 FROM knowledge_chunks
		 WHERE item_id = $1 AND embedding IS NULL
		 ORDER BY chunk_index ASC`,
		itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListEmbedded returns every embedded chunk belonging to the tenant's ready
// items. These are the retrieval candidates.
func (r *KnowledgeChunkRepository) ListEmbedded(ctx context.Context, tenantID string) ([]*domain.KnowledgeChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.item_id, c.tenant_id, c.chunk_index, c.content, c.embedding, c.created_at
		 FROM knowledge_chunks c
		 JOIN knowledge_items k ON k.id = c.item_id
		 WHERE c.tenant_id = $1 AND k.status = $2 AND c.embedding IS NOT NULL
		 ORDER BY c.item_id, c.chunk_index ASC`,
		tenantID, domain.ItemStatusReady,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListReady returns all chunks of the tenant's ready items, embedded or not.
// Keyword fallback search runs over this set.
func (r *KnowledgeChunkRepository) ListReady(ctx context.Context, tenantID string) ([]*domain.KnowledgeChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.item_id, c.tenant_id, c.chunk_index, c.content, c.embedding, c.created_at
		 FROM knowledge_chunks c
		 JOIN knowledge_items k ON k.id = c.item_id
		 WHERE c.tenant_id = $1 AND k.status = $2
		 ORDER BY c.item_id, c.chunk_index ASC`,
		tenantID, domain.ItemStatusReady,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func (r *KnowledgeChunkRepository) DeleteByItem(ctx context.Context, itemID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE item_id = $1`, itemID)
	return err
}

func scanChunkRows(rows pgx.Rows) ([]*domain.KnowledgeChunk, error) {
	var results []*domain.KnowledgeChunk
	for rows.Next() {
		var c domain.KnowledgeChunk
		var emb *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.ItemID, &c.TenantID, &c.ChunkIndex, &c.Content, &emb, &c.CreatedAt); err != nil {
			return nil, err
		}
		if emb != nil {
			c.Embedding = emb.Slice()
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
