package domain

import "time"

// KnowledgeChunk represents an ordered segment of an item's extracted text.
// ChunkIndex is contiguous 0..N-1 within an item; Embedding is nil until the
// embedding stage runs.
type KnowledgeChunk struct {
	ID         string
	ItemID     string
	TenantID   string
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// HasEmbedding reports whether the chunk's embedding has been generated
func (c *KnowledgeChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}
