package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/leadline/internal/api"
	"github.com/cloo-solutions/leadline/internal/api/middleware"
)

type UsageService interface {
	TokensUsed(ctx context.Context, tenantID string, from, to time.Time) (int64, error)
}

type UsageHandler struct {
	svc UsageService
}

func NewUsageHandler(svc UsageService) *UsageHandler {
	return &UsageHandler{svc: svc}
}

type UsageResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Tokens int64  `json:"tokens"`
}

// Get reports token usage for a date range. Defaults to the last 30 days.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed
	}
	if to.Before(from) {
		api.Error(w, http.StatusBadRequest, "to date precedes from date")
		return
	}

	tokens, err := h.svc.TokensUsed(r.Context(), tenant.ID, from, to)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, UsageResponse{
		From:   from.Format("2006-01-02"),
		To:     to.Format("2006-01-02"),
		Tokens: tokens,
	})
}
