package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/leadline/internal/api"
	"github.com/cloo-solutions/leadline/internal/domain"
)

type contextKey string

const TenantKey contextKey = "tenant"

// TenantAuthenticator resolves an API key to its tenant.
type TenantAuthenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*domain.Tenant, error)
}

// APIKeyAuth authenticates requests by bearer token and stores the resolved
// tenant on the request context.
func APIKeyAuth(auth TenantAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			tenant, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), TenantKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant returns the authenticated tenant from context, or nil.
func GetTenant(ctx context.Context) *domain.Tenant {
	tenant, _ := ctx.Value(TenantKey).(*domain.Tenant)
	return tenant
}

// GetTenantID returns the authenticated tenant's ID from context.
func GetTenantID(ctx context.Context) string {
	if t := GetTenant(ctx); t != nil {
		return t.ID
	}
	return ""
}
