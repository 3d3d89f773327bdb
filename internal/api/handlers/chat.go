package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/leadline/internal/api"
	"github.com/cloo-solutions/leadline/internal/api/middleware"
	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/service"
)

type ChatService interface {
	StartConversation(ctx context.Context, tenant *domain.Tenant, sessionID string) (*domain.Conversation, error)
	CloseConversation(ctx context.Context, tenant *domain.Tenant, conversationID string) error
	History(ctx context.Context, tenant *domain.Tenant, conversationID string) ([]*domain.Message, error)
	GenerateResponse(ctx context.Context, tenant *domain.Tenant, conversationID, userText string) (*service.ChatResponse, error)
	StreamResponse(ctx context.Context, tenant *domain.Tenant, conversationID, userText string, emit func(delta string) error) (*service.ChatResponse, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type StartConversationRequest struct {
	SessionID string `json:"session_id"`
}

type ConversationResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	LeadID    string `json:"lead_id,omitempty"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	ClosedAt  string `json:"closed_at,omitempty"`
}

func conversationToResponse(c *domain.Conversation) *ConversationResponse {
	resp := &ConversationResponse{
		ID:        c.ID,
		SessionID: c.SessionID,
		LeadID:    c.LeadID,
		Status:    string(c.Status),
		StartedAt: c.StartedAt.Format("2006-01-02T15:04:05Z"),
	}
	if c.ClosedAt != nil {
		resp.ClosedAt = c.ClosedAt.Format("2006-01-02T15:04:05Z")
	}
	return resp
}

type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func messageToResponse(m *domain.Message) *MessageResponse {
	return &MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

type WidgetConfigResponse struct {
	TenantName     string `json:"tenant_name"`
	Archetype      string `json:"archetype"`
	Tone           string `json:"tone"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
}

// Init returns the widget bootstrap config the embed script needs before it
// opens a conversation.
func (h *ChatHandler) Init(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	api.Success(w, http.StatusOK, WidgetConfigResponse{
		TenantName:     tenant.Name,
		Archetype:      string(tenant.Archetype()),
		Tone:           string(tenant.Tone()),
		WelcomeMessage: tenant.WelcomeMessage,
	})
}

func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.svc.StartConversation(r.Context(), tenant, req.SessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, conversationToResponse(conv))
}

func (h *ChatHandler) Close(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.CloseConversation(r.Context(), tenant, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	messages, err := h.svc.History(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := make([]*MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, messageToResponse(m))
	}

	api.Success(w, http.StatusOK, resp)
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type ChatTurnResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
	Fallback       bool   `json:"fallback"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.GenerateResponse(r.Context(), tenant, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatTurnResponse{
		ConversationID: resp.ConversationID,
		Reply:          resp.Text,
		Fallback:       resp.Fallback,
	})
}

type streamChunk struct {
	Chunk string `json:"chunk"`
}

type streamDone struct {
	Done     bool `json:"done"`
	Fallback bool `json:"fallback,omitempty"`
}

// StreamMessage responds over Server-Sent Events. Each token delta arrives as
// a chunk frame; the final frame signals completion.
func (h *ChatHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenant(r.Context())
	if tenant == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	emit := func(delta string) error {
		payload, err := json.Marshal(streamChunk{Chunk: delta})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	resp, err := h.svc.StreamResponse(r.Context(), tenant, chi.URLParam(r, "id"), req.Content, emit)
	if err != nil {
		// Headers are already sent; report the failure in-band.
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		return
	}

	payload, _ := json.Marshal(streamDone{Done: true, Fallback: resp.Fallback})
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
