package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cloo-solutions/leadline/internal/api"
	"github.com/cloo-solutions/leadline/internal/api/middleware"
	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/service"
)

type KnowledgeService interface {
	Create(ctx context.Context, input service.CreateItemInput) (*domain.KnowledgeItem, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.KnowledgeItem, error)
	List(ctx context.Context, input service.ListItemsInput) (*service.ListItemsOutput, error)
	Delete(ctx context.Context, tenantID, id string) error
	Reprocess(ctx context.Context, tenantID, id string) error
}

// UploadURLSigner issues presigned PUT URLs for document uploads.
type UploadURLSigner interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
}

type KnowledgeHandler struct {
	svc    KnowledgeService
	signer UploadURLSigner
}

func NewKnowledgeHandler(svc KnowledgeService, signer UploadURLSigner) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, signer: signer}
}

type CreateItemRequest struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url"`
	FilePath  string `json:"file_path"`
}

type ItemResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Title         string `json:"title"`
	SourceURL     string `json:"source_url,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func itemToResponse(k *domain.KnowledgeItem) *ItemResponse {
	return &ItemResponse{
		ID:            k.ID,
		Type:          string(k.Type),
		Status:        string(k.Status),
		Title:         k.Title,
		SourceURL:     k.SourceURL,
		FilePath:      k.FilePath,
		FailureReason: k.FailureReason,
		CreatedAt:     k.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:     k.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Type == "" {
		api.Error(w, http.StatusBadRequest, "type is required")
		return
	}

	item, err := h.svc.Create(r.Context(), service.CreateItemInput{
		TenantID:  tenant.ID,
		Type:      domain.ItemType(req.Type),
		Title:     req.Title,
		Content:   req.Content,
		SourceURL: req.SourceURL,
		FilePath:  req.FilePath,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, itemToResponse(item))
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	item, err := h.svc.GetByID(r.Context(), tenant.ID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

type ListItemsResponse struct {
	Items   []*ItemResponse `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
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

	out, err := h.svc.List(r.Context(), service.ListItemsInput{
		TenantID: tenant.ID,
		Cursor:   r.URL.Query().Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ListItemsResponse{
		Items:   make([]*ItemResponse, 0, len(out.Items)),
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	}
	for _, item := range out.Items {
		resp.Items = append(resp.Items, itemToResponse(item))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.Delete(r.Context(), tenant.ID, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *KnowledgeHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.Reprocess(r.Context(), tenant.ID, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type InitUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type InitUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FilePath  string `json:"file_path"`
}

// InitUpload hands out a presigned URL; the client uploads the document and
// then creates the item with the returned file path.
func (h *KnowledgeHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	key := path.Join(tenant.ID, uuid.NewString(), path.Base(req.Filename))
	url, err := h.signer.GenerateUploadURL(r.Context(), key, req.ContentType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, InitUploadResponse{
		UploadURL: url,
		FilePath:  key,
	})
}
