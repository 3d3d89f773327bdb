package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/leadline/internal/api"
	"github.com/cloo-solutions/leadline/internal/api/middleware"
	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/service"
)

type LeadService interface {
	Get(ctx context.Context, tenantID, id string) (*domain.Lead, error)
	List(ctx context.Context, input service.ListLeadsInput) (*service.ListLeadsOutput, error)
	UpdateStatus(ctx context.Context, tenantID, id string, next domain.LeadStatus) (*domain.Lead, error)
	AdjustScore(ctx context.Context, tenantID, id string, delta int, reason string) (*domain.Lead, error)
}

type LeadHandler struct {
	svc LeadService
}

func NewLeadHandler(svc LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

type ScoreAdjustmentResponse struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
	At     string `json:"at"`
}

type LeadResponse struct {
	ID           string                    `json:"id"`
	Name         string                    `json:"name,omitempty"`
	Email        string                    `json:"email,omitempty"`
	Phone        string                    `json:"phone,omitempty"`
	Company      string                    `json:"company,omitempty"`
	Score        int                       `json:"score"`
	Temperature  string                    `json:"temperature"`
	Status       string                    `json:"status"`
	Source       string                    `json:"source"`
	ScoreHistory []ScoreAdjustmentResponse `json:"score_history"`
	CreatedAt    string                    `json:"created_at"`
	UpdatedAt    string                    `json:"updated_at"`
}

func leadToResponse(l *domain.Lead) *LeadResponse {
	history := make([]ScoreAdjustmentResponse, 0, len(l.ScoreHistory))
	for _, adj := range l.ScoreHistory {
		history = append(history, ScoreAdjustmentResponse{
			From:   adj.From,
			To:     adj.To,
			Delta:  adj.Delta,
			Reason: adj.Reason,
			At:     adj.At.Format("2006-01-02T15:04:05Z"),
		})
	}
	return &LeadResponse{
		ID:           l.ID,
		Name:         l.Name,
		Email:        l.Email,
		Phone:        l.Phone,
		Company:      l.Company,
		Score:        l.Score,
		Temperature:  string(domain.Temperature(l.Score)),
		Status:       string(l.Status),
		Source:       l.Source,
		ScoreHistory: history,
		CreatedAt:    l.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    l.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lead, err := h.svc.Get(r.Context(), tenant.ID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, leadToResponse(lead))
}

type ListLeadsResponse struct {
	Leads   []*LeadResponse `json:"leads"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	out, err := h.svc.List(r.Context(), service.ListLeadsInput{
		TenantID: tenant.ID,
		Status:   domain.LeadStatus(r.URL.Query().Get("status")),
		Cursor:   r.URL.Query().Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ListLeadsResponse{
		Leads:   make([]*LeadResponse, 0, len(out.Leads)),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	}
	for _, lead := range out.Leads {
		resp.Leads = append(resp.Leads, leadToResponse(lead))
	}

	api.Success(w, http.StatusOK, resp)
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status"`
}

func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateLeadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		api.Error(w, http.StatusBadRequest, "status is required")
		return
	}

	lead, err := h.svc.UpdateStatus(r.Context(), tenant.ID, chi.URLParam(r, "id"), domain.LeadStatus(req.Status))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, leadToResponse(lead))
}

type AdjustScoreRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *LeadHandler) AdjustScore(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AdjustScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lead, err := h.svc.AdjustScore(r.Context(), tenant.ID, chi.URLParam(r, "id"), req.Delta, req.Reason)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, leadToResponse(lead))
}
