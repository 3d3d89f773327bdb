package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/llm"
	"github.com/cloo-solutions/leadline/internal/telemetry"
)

// HistoryWindow is how many recent messages feed the prompt.
const HistoryWindow = 20

// FallbackReply is served verbatim when the generation backend fails.
const FallbackReply = "I apologize, but I'm having trouble processing your request right now. Please try again in a moment, or contact our support team for immediate assistance."

type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error)
	GetActiveBySession(ctx context.Context, tenantID, sessionID string) (*domain.Conversation, error)
	AttachLead(ctx context.Context, conversationID, leadID string) error
	UpdateStatus(ctx context.Context, id string, status domain.ConversationStatus) error
	CountUserMessages(ctx context.Context, conversationID string) (int, error)
}

type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Message) error
	ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error)
}

// KnowledgeRetriever selects knowledge chunks relevant to a query.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, tenantID, query string, limit int) ([]RetrievedChunk, error)
}

// LeadCapturer inspects a user turn for contact signals and maintains the lead.
type LeadCapturer interface {
	HandleMessage(ctx context.Context, tenant *domain.Tenant, conv *domain.Conversation, message string) (*domain.Lead, error)
}

// TokenRecorder appends token usage to the metering ledger.
type TokenRecorder interface {
	RecordTokens(ctx context.Context, tenantID string, tokens int64) error
}

// ChatResponse is the outcome of one assistant turn.
type ChatResponse struct {
	ConversationID string
	Text           string
	Fallback       bool
}

// ChatService orchestrates conversation turns: retrieval, prompt assembly,
// generation, persistence, usage metering and lead capture.
type ChatService struct {
	convRepo    ConversationRepositoryInterface
	messageRepo MessageRepositoryInterface
	retriever   KnowledgeRetriever
	completer   llm.Completer
	leads       LeadCapturer
	usage       TokenRecorder
	uuidGen     UUIDGenerator
}

func NewChatService(
	convRepo ConversationRepositoryInterface,
	messageRepo MessageRepositoryInterface,
	retriever KnowledgeRetriever,
	completer llm.Completer,
	leads LeadCapturer,
	usage TokenRecorder,
) *ChatService {
	return &ChatService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		retriever:   retriever,
		completer:   completer,
		leads:       leads,
		usage:       usage,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// StartConversation returns the session's active conversation, creating one
// if none exists. A tenant welcome message opens new conversations.
func (s *ChatService) StartConversation(ctx context.Context, tenant *domain.Tenant, sessionID string) (*domain.Conversation, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.StartConversation", telemetry.SpanAttributes{
		TenantID:  tenant.ID,
		Operation: "start_conversation",
	})
	defer span.End()

	if sessionID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "session id is required")
	}

	existing, err := s.convRepo.GetActiveBySession(ctx, tenant.ID, sessionID)
	if err == nil {
		return existing, nil
	}
	if err != domain.ErrConversationNotFound {
		span.SetError(err)
		return nil, err
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        s.uuidGen.NewString(),
		TenantID:  tenant.ID,
		SessionID: sessionID,
		Status:    domain.ConversationStatusActive,
		StartedAt: now,
	}
	if err := s.convRepo.Create(ctx, conv); err != nil {
		span.SetError(err)
		return nil, err
	}

	if tenant.WelcomeMessage != "" {
		welcome := &domain.Message{
			ID:             s.uuidGen.NewString(),
			ConversationID: conv.ID,
			Role:           domain.MessageRoleAssistant,
			Content:        tenant.WelcomeMessage,
			CreatedAt:      now,
		}
		if err := s.messageRepo.Create(ctx, welcome); err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	return conv, nil
}

// CloseConversation ends an active conversation.
func (s *ChatService) CloseConversation(ctx context.Context, tenant *domain.Tenant, conversationID string) error {
	if _, err := s.convRepo.GetByID(ctx, tenant.ID, conversationID); err != nil {
		return err
	}
	return s.convRepo.UpdateStatus(ctx, conversationID, domain.ConversationStatusClosed)
}

// History returns the full message log of a conversation.
func (s *ChatService) History(ctx context.Context, tenant *domain.Tenant, conversationID string) ([]*domain.Message, error) {
	if _, err := s.convRepo.GetByID(ctx, tenant.ID, conversationID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByConversation(ctx, conversationID)
}

// GenerateResponse runs one blocking assistant turn.
func (s *ChatService) GenerateResponse(ctx context.Context, tenant *domain.Tenant, conversationID, userText string) (*ChatResponse, error) {
	return s.respond(ctx, tenant, conversationID, userText, nil)
}

// StreamResponse runs one assistant turn, emitting response deltas as they
// arrive. The persisted message is the accumulated text. An emit failure stops
// delivery but never the turn: generation and persistence still complete.
func (s *ChatService) StreamResponse(ctx context.Context, tenant *domain.Tenant, conversationID, userText string, emit func(delta string) error) (*ChatResponse, error) {
	if emit == nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "emit callback is required")
	}
	return s.respond(ctx, tenant, conversationID, userText, emit)
}

func (s *ChatService) respond(ctx context.Context, tenant *domain.Tenant, conversationID, userText string, emit func(delta string) error) (*ChatResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Respond", telemetry.SpanAttributes{
		TenantID:       tenant.ID,
		ConversationID: conversationID,
		Operation:      "respond",
	})
	defer span.End()

	if strings.TrimSpace(userText) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "message content is required")
	}

	conv, err := s.convRepo.GetByID(ctx, tenant.ID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status != domain.ConversationStatusActive {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "conversation is not active")
	}

	userMsg := &domain.Message{
		ID:             s.uuidGen.NewString(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleUser,
		Content:        userText,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		span.SetError(err)
		return nil, err
	}

	// Lead capture runs before generation so the prompt reflects the
	// post-capture state.
	lead, leadErr := s.leads.HandleMessage(ctx, tenant, conv, userText)
	if leadErr != nil {
		telemetry.CaptureError(ctx, leadErr)
	}
	if lead != nil && conv.LeadID == "" {
		if err := s.convRepo.AttachLead(ctx, conv.ID, lead.ID); err != nil {
			telemetry.CaptureError(ctx, err)
		} else {
			conv.LeadID = lead.ID
		}
	}

	chunks, err := s.retriever.Retrieve(ctx, tenant.ID, userText, DefaultRetrievalLimit)
	if err != nil {
		// Retrieval trouble degrades the answer, it does not block it.
		telemetry.CaptureError(ctx, err)
		chunks = nil
	}

	history, err := s.messageRepo.ListRecent(ctx, conv.ID, HistoryWindow)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	state := captureState(conv, history)
	messages := buildPromptMessages(tenant, state, chunks, history)

	// A failing emit means the client went away. Delivery stops, but the
	// turn still runs to completion so the assistant message and usage are
	// persisted.
	var emitErr error
	send := emit
	if emit != nil {
		send = func(delta string) error {
			if emitErr != nil {
				return nil
			}
			if err := emit(delta); err != nil {
				emitErr = err
			}
			return nil
		}
	}

	var text string
	var usage llm.Usage
	var genErr error
	if emit != nil {
		text, usage, genErr = s.completer.Stream(ctx, messages, send)
	} else {
		text, usage, genErr = s.completer.Complete(ctx, messages)
	}

	fallback := false
	if genErr != nil {
		telemetry.CaptureError(ctx, genErr)
		text = FallbackReply
		usage = llm.Usage{}
		fallback = true
		if emit != nil {
			_ = send(text)
		}
	}
	if emitErr != nil {
		telemetry.CaptureError(ctx, emitErr)
	}

	assistantMsg := &domain.Message{
		ID:             s.uuidGen.NewString(),
		ConversationID: conv.ID,
		Role:           domain.MessageRoleAssistant,
		Content:        text,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, assistantMsg); err != nil {
		span.SetError(err)
		return nil, err
	}

	if usage.TotalTokens > 0 {
		if err := s.usage.RecordTokens(ctx, tenant.ID, int64(usage.TotalTokens)); err != nil {
			telemetry.CaptureError(ctx, err)
		}
	}

	return &ChatResponse{
		ConversationID: conv.ID,
		Text:           text,
		Fallback:       fallback,
	}, nil
}

// leadCaptureState drives which contact-request directive the prompt carries.
type leadCaptureState int

const (
	stateNoLeadNoAsk leadCaptureState = iota
	stateAskedNotCaptured
	stateLeadCaptured
)

var contactAskRe = regexp.MustCompile(`(?i)email|phone|contact.*info|reach.*out|get.*back`)

func captureState(conv *domain.Conversation, history []*domain.Message) leadCaptureState {
	if conv.LeadID != "" {
		return stateLeadCaptured
	}
	for _, m := range history {
		if m.Role == domain.MessageRoleAssistant && contactAskRe.MatchString(m.Content) {
			return stateAskedNotCaptured
		}
	}
	return stateNoLeadNoAsk
}

func buildPromptMessages(tenant *domain.Tenant, state leadCaptureState, chunks []RetrievedChunk, history []*domain.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: buildSystemPrompt(tenant, state, chunks),
	})
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == domain.MessageRoleAssistant {
			role = llm.RoleAssistant
		} else if m.Role == domain.MessageRoleSystem {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	return messages
}

func buildSystemPrompt(tenant *domain.Tenant, state leadCaptureState, chunks []RetrievedChunk) string {
	var b strings.Builder

	b.WriteString(personaBlock(tenant))
	b.WriteString("\n\n")
	b.WriteString(toneBlock(tenant.Tone()))

	if tenant.CustomInstructions != "" {
		b.WriteString("\n\n## Additional Instructions:\n")
		b.WriteString(tenant.CustomInstructions)
	}

	if tenant.CapturesLeads() {
		b.WriteString("\n\n")
		b.WriteString(leadDirective(state))
	}

	b.WriteString("\n\nAnswer using only the information provided below. If the information does not cover the question, say so honestly and offer to connect the user with the team. Never invent facts, prices or policies.")

	if len(chunks) > 0 {
		b.WriteString("\n\n## Relevant Information:\n")
		for _, c := range chunks {
			b.WriteString("\n")
			b.WriteString(c.Content)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func personaBlock(tenant *domain.Tenant) string {
	name := tenant.Name
	switch tenant.Archetype() {
	case domain.BotArchetypeSupport:
		return fmt.Sprintf("You are a customer support assistant for %s. Your goal is to resolve questions accurately and guide users to the right resources.", name)
	case domain.BotArchetypeSales:
		return fmt.Sprintf("You are a sales assistant for %s. Your goal is to understand what the visitor needs, highlight how %s can help, and move interested visitors toward a conversation with the team.", name, name)
	case domain.BotArchetypeInformation:
		return fmt.Sprintf("You are an information assistant for %s. Your goal is to answer questions factually and concisely based on the provided material.", name)
	default:
		return fmt.Sprintf("You are an assistant for %s. You help visitors with support questions and, when they show buying interest, guide them toward a conversation with the team.", name)
	}
}

func toneBlock(tone domain.BotTone) string {
	switch tone {
	case domain.BotToneFormal:
		return "Communicate in a professional, precise tone. Use complete sentences and avoid slang."
	case domain.BotToneCasual:
		return "Communicate in a relaxed, conversational tone, like chatting with a colleague."
	default:
		return "Communicate in a warm, friendly and approachable tone."
	}
}

func leadDirective(state leadCaptureState) string {
	switch state {
	case stateLeadCaptured:
		return "The visitor's contact details are already on file. Do not ask for contact information again."
	case stateAskedNotCaptured:
		return "You have already asked the visitor for contact details. Do not repeat the request unless they show renewed interest in a follow-up."
	default:
		return "If the visitor expresses interest in the product, pricing or a demo, politely ask for their name and an email address or phone number so the team can follow up."
	}
}
