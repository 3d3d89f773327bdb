package domain

import "time"

// BotArchetype selects the persona block the orchestrator builds prompts from.
type BotArchetype string

const (
	BotArchetypeSupport     BotArchetype = "support"
	BotArchetypeSales       BotArchetype = "sales"
	BotArchetypeInformation BotArchetype = "information"
	BotArchetypeHybrid      BotArchetype = "hybrid"
)

// BotTone selects the communication style block.
type BotTone string

const (
	BotToneFormal   BotTone = "formal"
	BotToneFriendly BotTone = "friendly"
	BotToneCasual   BotTone = "casual"
)

// MaxCustomInstructions caps tenant-supplied prompt additions.
const MaxCustomInstructions = 2000

// Tenant represents a customer account owning knowledge, conversations and leads.
// The API reads tenants; provisioning goes through the admin CLI.
type Tenant struct {
	ID                 string
	Name               string
	APIKey             string
	BotArchetype       BotArchetype
	BotTone            BotTone
	CustomInstructions string
	WelcomeMessage     string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Archetype returns the tenant's bot archetype, defaulting to hybrid.
func (t *Tenant) Archetype() BotArchetype {
	switch t.BotArchetype {
	case BotArchetypeSupport, BotArchetypeSales, BotArchetypeInformation, BotArchetypeHybrid:
		return t.BotArchetype
	}
	return BotArchetypeHybrid
}

// Tone returns the tenant's bot tone, defaulting to friendly.
func (t *Tenant) Tone() BotTone {
	switch t.BotTone {
	case BotToneFormal, BotToneFriendly, BotToneCasual:
		return t.BotTone
	}
	return BotToneFriendly
}

// CapturesLeads reports whether the archetype participates in lead capture prompts.
func (t *Tenant) CapturesLeads() bool {
	a := t.Archetype()
	return a == BotArchetypeSales || a == BotArchetypeHybrid
}
