package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/leadline/internal/domain"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, tenant_id, session_id, lead_id, status, started_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.TenantID, c.SessionID, nullableString(c.LeadID), c.Status, c.StartedAt, c.ClosedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, session_id, lead_id, status, started_at, closed_at
		 FROM conversations WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
}

// GetActiveBySession returns the tenant's open conversation for a widget
// session, if one exists.
func (r *ConversationRepository) GetActiveBySession(ctx context.Context, tenantID, sessionID string) (*domain.Conversation, error) {
	return r.get(ctx,
		`SELECT id, tenant_id, session_id, lead_id, status, started_at, closed_at
		 FROM conversations
		 WHERE tenant_id = $1 AND session_id = $2 AND status = 'active'
		 ORDER BY started_at DESC LIMIT 1`,
		tenantID, sessionID,
	)
}

func (r *ConversationRepository) get(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	var c domain.Conversation
	var leadID *string
	err := r.db.QueryRow(ctx, query, args...).
		Scan(&c.ID, &c.TenantID, &c.SessionID, &leadID, &c.Status, &c.StartedAt, &c.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	if leadID != nil {
		c.LeadID = *leadID
	}
	return &c, nil
}

// AttachLead links a captured lead to the conversation.
func (r *ConversationRepository) AttachLead(ctx context.Context, conversationID, leadID string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE conversations SET lead_id = $1 WHERE id = $2`,
		leadID, conversationID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus) error {
	var closedAt *time.Time
	if status == domain.ConversationStatusClosed {
		now := time.Now().UTC()
		closedAt = &now
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE conversations SET status = $1, closed_at = $2 WHERE id = $3`,
		status, closedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// CountUserMessages reports how many user turns a conversation has. Lead
// scoring reads this for its engagement signal.
func (r *ConversationRepository) CountUserMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1 AND role = $2`,
		conversationID, domain.MessageRoleUser,
	).Scan(&n)
	return n, err
}
