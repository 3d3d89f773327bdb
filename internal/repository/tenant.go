package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/leadline/internal/domain"
)

// TenantRepository manages tenant accounts. The API only reads tenants;
// provisioning goes through the admin CLI.
type TenantRepository struct {
	db dbtx
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: pool}
}

func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tenants (id, name, api_key, bot_archetype, bot_tone, custom_instructions, welcome_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, t.APIKey, string(t.Archetype()), string(t.Tone()),
		nullableString(t.CustomInstructions), nullableString(t.WelcomeMessage),
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// List returns all tenants ordered by creation time. Admin CLI only; tenant
// counts are small enough that pagination is not worth it here.
func (r *TenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, api_key, bot_archetype, bot_tone, custom_instructions, welcome_message, created_at, updated_at
		 FROM tenants
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		var customInstructions, welcomeMessage *string
		if err := rows.Scan(&t.ID, &t.Name, &t.APIKey, &t.BotArchetype, &t.BotTone, &customInstructions, &welcomeMessage, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if customInstructions != nil {
			t.CustomInstructions = *customInstructions
		}
		if welcomeMessage != nil {
			t.WelcomeMessage = *welcomeMessage
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *TenantRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Tenant, error) {
	return r.get(ctx, `WHERE api_key = $1`, apiKey)
}

func (r *TenantRepository) get(ctx context.Context, where string, arg any) (*domain.Tenant, error) {
	var t domain.Tenant
	var customInstructions, welcomeMessage *string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, api_key, bot_archetype, bot_tone, custom_instructions, welcome_message, created_at, updated_at
		 FROM tenants `+where,
		arg,
	).Scan(&t.ID, &t.Name, &t.APIKey, &t.BotArchetype, &t.BotTone, &customInstructions, &welcomeMessage, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	if customInstructions != nil {
		t.CustomInstructions = *customInstructions
	}
	if welcomeMessage != nil {
		t.WelcomeMessage = *welcomeMessage
	}
	return &t, nil
}
