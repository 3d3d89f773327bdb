package domain

import (
	"fmt"
	"time"
)

// ConversationStatus represents the lifecycle of a widget conversation
type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "active"
	ConversationStatusClosed    ConversationStatus = "closed"
	ConversationStatusEscalated ConversationStatus = "escalated"
)

// Conversation represents a tenant- and session-scoped turn sequence
type Conversation struct {
	ID        string
	TenantID  string
	SessionID string
	LeadID    string // empty until a lead is captured
	Status    ConversationStatus
	StartedAt time.Time
	ClosedAt  *time.Time
}

// MessageRole identifies the author of a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message represents an immutable turn in a conversation
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	CreatedAt      time.Time
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if m.ConversationID == "" {
		return fmt.Errorf("message ConversationID is required")
	}
	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}
	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}
	return nil
}

func isValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	}
	return false
}

func isValidConversationStatus(s ConversationStatus) bool {
	switch s {
	case ConversationStatusActive, ConversationStatusClosed, ConversationStatusEscalated:
		return true
	}
	return false
}

// ValidateConversation validates a Conversation instance
func ValidateConversation(c *Conversation) error {
	if c == nil {
		return fmt.Errorf("conversation cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("conversation ID is required")
	}
	if c.TenantID == "" {
		return fmt.Errorf("conversation TenantID is required")
	}
	if !isValidConversationStatus(c.Status) {
		return fmt.Errorf("conversation Status is invalid: %s", c.Status)
	}
	return nil
}
