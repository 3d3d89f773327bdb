package domain

import (
	"fmt"
	"time"
)

// ItemType represents the source kind of a knowledge item
type ItemType string

const (
	ItemTypeDocument ItemType = "document"
	ItemTypeFAQ      ItemType = "faq"
	ItemTypeWebpage  ItemType = "webpage"
	ItemTypeText     ItemType = "text"
)

// ItemStatus represents the ingestion lifecycle of a knowledge item
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusReady      ItemStatus = "ready"
	ItemStatusFailed     ItemStatus = "failed"
)

// KnowledgeItem represents a tenant-owned source document in the knowledge base
type KnowledgeItem struct {
	ID            string
	TenantID      string
	Type          ItemType
	Status        ItemStatus
	Title         string
	Content       string // inline text for faq/text items; extracted text after processing
	SourceURL     string // set for webpage items
	FilePath      string // blob store key for document items
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewKnowledgeItem creates a pending KnowledgeItem ready for ingestion
func NewKnowledgeItem(id, tenantID string, itemType ItemType, title string, now time.Time) *KnowledgeItem {
	return &KnowledgeItem{
		ID:        id,
		TenantID:  tenantID,
		Type:      itemType,
		Status:    ItemStatusPending,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasInlineContent reports whether the item carries its own text and skips extraction
func (k *KnowledgeItem) HasInlineContent() bool {
	return k.Type == ItemTypeFAQ || k.Type == ItemTypeText
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("knowledge item ID is required")
	}

	if k.TenantID == "" {
		return fmt.Errorf("knowledge item TenantID is required")
	}

	if k.Title == "" {
		return fmt.Errorf("knowledge item Title is required")
	}

	if !isValidItemType(k.Type) {
		return fmt.Errorf("knowledge item Type is invalid: %s", k.Type)
	}

	if !isValidItemStatus(k.Status) {
		return fmt.Errorf("knowledge item Status is invalid: %s", k.Status)
	}

	switch k.Type {
	case ItemTypeDocument:
		if k.FilePath == "" {
			return fmt.Errorf("document item requires FilePath")
		}
	case ItemTypeWebpage:
		if k.SourceURL == "" {
			return fmt.Errorf("webpage item requires SourceURL")
		}
	case ItemTypeFAQ, ItemTypeText:
		if k.Content == "" {
			return fmt.Errorf("%s item requires Content", k.Type)
		}
	}

	return nil
}

func isValidItemType(t ItemType) bool {
	switch t {
	case ItemTypeDocument, ItemTypeFAQ, ItemTypeWebpage, ItemTypeText:
		return true
	}
	return false
}

func isValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemStatusPending, ItemStatusProcessing, ItemStatusReady, ItemStatusFailed:
		return true
	}
	return false
}
