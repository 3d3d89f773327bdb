package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
)

const apiKeyPrefix = "llk_"

type TenantRepositoryInterface interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
}

// AuthService resolves API keys to tenants and provisions tenant accounts.
type AuthService struct {
	tenantRepo TenantRepositoryInterface
	uuidGen    UUIDGenerator
}

func NewAuthService(tenantRepo TenantRepositoryInterface, uuidGen UUIDGenerator) *AuthService {
	return &AuthService{tenantRepo: tenantRepo, uuidGen: uuidGen}
}

// Authenticate returns the tenant owning an API key, or ErrInvalidAPIKey.
func (s *AuthService) Authenticate(ctx context.Context, apiKey string) (*domain.Tenant, error) {
	if apiKey == "" {
		return nil, domain.ErrInvalidAPIKey
	}
	tenant, err := s.tenantRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if err == domain.ErrTenantNotFound {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}
	return tenant, nil
}

// GetTenant looks a tenant up by ID.
func (s *AuthService) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.tenantRepo.GetByID(ctx, id)
}

type CreateTenantInput struct {
	Name               string
	BotArchetype       domain.BotArchetype
	BotTone            domain.BotTone
	CustomInstructions string
	WelcomeMessage     string
}

// CreateTenant provisions a tenant with a freshly generated API key.
func (s *AuthService) CreateTenant(ctx context.Context, input CreateTenantInput) (*domain.Tenant, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant name is required")
	}
	if len(input.CustomInstructions) > domain.MaxCustomInstructions {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "custom instructions too long")
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tenant := &domain.Tenant{
		ID:                 s.uuidGen.NewString(),
		Name:               input.Name,
		APIKey:             apiKey,
		BotArchetype:       input.BotArchetype,
		BotTone:            input.BotTone,
		CustomInstructions: input.CustomInstructions,
		WelcomeMessage:     input.WelcomeMessage,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// ListTenants returns every tenant account.
func (s *AuthService) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	return s.tenantRepo.List(ctx)
}

func generateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(bytes), nil
}

// IsValidAPIKey reports whether a token has the expected shape.
func IsValidAPIKey(token string) bool {
	if !strings.HasPrefix(token, apiKeyPrefix) {
		return false
	}
	hexPart := token[len(apiKeyPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	for _, c := range hexPart {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
