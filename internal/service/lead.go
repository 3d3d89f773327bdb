package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
	"github.com/cloo-solutions/leadline/internal/pagination"
	"github.com/cloo-solutions/leadline/internal/telemetry"
)

// Score weights for contact fields present at capture time.
const (
	scoreEmail   = 20
	scorePhone   = 15
	scoreName    = 10
	scoreCompany = 10
)

// Conversational scoring signals.
const (
	scorePerMessage     = 2
	scorePricingIntent  = 15
	scoreDemoIntent     = 20
	scoreTimelineIntent = 15
	scoreCompetitor     = 10
	scoreNegative       = -10
	scoreEngagement     = 10
	scoreReturnVisit    = 10

	// engagementThreshold is the user-message count at which the engagement
	// bonus applies, once per lead.
	engagementThreshold = 5
)

// LeadRepositoryInterface includes row-locked variants of the lookups. Score
// mutations run inside a transaction and use the ForUpdate finders so
// concurrent turns against the same lead serialize instead of clobbering each
// other.
type LeadRepositoryInterface interface {
	Create(ctx context.Context, l *domain.Lead) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Lead, error)
	GetByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Lead, error)
	FindByEmail(ctx context.Context, tenantID, email string) (*domain.Lead, error)
	FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Lead, error)
	FindByEmailForUpdate(ctx context.Context, tenantID, email string) (*domain.Lead, error)
	FindByPhoneForUpdate(ctx context.Context, tenantID, phone string) (*domain.Lead, error)
	Update(ctx context.Context, l *domain.Lead) error
	ListByTenantWithCursor(ctx context.Context, tenantID string, status domain.LeadStatus, cursor *pagination.Cursor, limit int) (*LeadPageResult, error)
}

type LeadPageResult struct {
	Leads      []*domain.Lead
	NextCursor string
	HasMore    bool
}

// LeadNotifier announces newly captured leads. Delivery failures never fail
// the capture.
type LeadNotifier interface {
	NotifyNewLead(ctx context.Context, tenant *domain.Tenant, lead *domain.Lead) error
}

// LeadService captures leads from conversational signals, deduplicates them
// per tenant, and maintains their scores with a full audit trail. Every lead
// mutation runs in a transaction that row-locks the lead first.
type LeadService struct {
	txRunner TxRunner
	leadRepo LeadRepositoryInterface
	convRepo ConversationRepositoryInterface
	notifier LeadNotifier
	uuidGen  UUIDGenerator
}

func NewLeadService(
	txRunner TxRunner,
	leadRepo LeadRepositoryInterface,
	convRepo ConversationRepositoryInterface,
	notifier LeadNotifier,
) *LeadService {
	return &LeadService{
		txRunner: txRunner,
		leadRepo: leadRepo,
		convRepo: convRepo,
		notifier: notifier,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// HandleMessage processes one user turn: extract contact info, capture or
// enrich the lead, and apply conversational score signals. The whole turn runs
// in one transaction holding the lead's row lock; new-lead notifications go
// out after commit. Returns the conversation's lead, if any.
func (s *LeadService) HandleMessage(ctx context.Context, tenant *domain.Tenant, conv *domain.Conversation, message string) (*domain.Lead, error) {
	ctx, span := telemetry.StartSpan(ctx, "LeadService.HandleMessage", telemetry.SpanAttributes{
		TenantID:       tenant.ID,
		ConversationID: conv.ID,
		Operation:      "handle_message",
	})
	defer span.End()

	info := ExtractContactInfo(message)

	var lead *domain.Lead
	var created bool
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		leads := repos.Leads()

		if conv.LeadID != "" {
			found, err := leads.GetByIDForUpdate(ctx, tenant.ID, conv.LeadID)
			if err != nil && err != domain.ErrLeadNotFound {
				return err
			}
			lead = found
		}

		if lead == nil {
			if info.Empty() {
				return nil
			}
			existing, err := findExisting(ctx, leads, tenant.ID, info)
			if err != nil {
				return err
			}
			if existing != nil {
				// Known contact showing up in a fresh conversation.
				lead = existing
				enrichLead(lead, info)
				applyAdjustment(lead, scoreReturnVisit, "return visit")
			} else {
				now := time.Now().UTC()
				lead = &domain.Lead{
					ID:        s.uuidGen.NewString(),
					TenantID:  tenant.ID,
					Name:      info.Name,
					Email:     info.Email,
					Phone:     info.Phone,
					Company:   info.Company,
					Status:    domain.LeadStatusNew,
					Source:    "chat",
					CreatedAt: now,
					UpdatedAt: now,
				}
				created = true
				applyAdjustment(lead, captureScore(info), "initial capture")
			}
		} else if !info.Empty() {
			enrichLead(lead, info)
		}

		if err := s.applyMessageSignals(ctx, lead, conv, message, created); err != nil {
			return err
		}

		if created {
			if err := domain.ValidateLead(lead); err != nil {
				return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, err.Error(), err)
			}
			return leads.Create(ctx, lead)
		}
		return leads.Update(ctx, lead)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if lead == nil {
		return nil, nil
	}

	if created && s.notifier != nil {
		if err := s.notifier.NotifyNewLead(ctx, tenant, lead); err != nil {
			telemetry.CaptureError(ctx, err)
		}
	}

	return lead, nil
}

// findExisting deduplicates by email first, then phone, locking whichever row
// matches. Matching an existing lead from another conversation counts as a
// return visit.
func findExisting(ctx context.Context, leads LeadRepositoryInterface, tenantID string, info domain.ContactInfo) (*domain.Lead, error) {
	if info.Email != "" {
		lead, err := leads.FindByEmailForUpdate(ctx, tenantID, info.Email)
		if err == nil {
			return lead, nil
		}
		if err != domain.ErrLeadNotFound {
			return nil, err
		}
	}
	if info.Phone != "" {
		lead, err := leads.FindByPhoneForUpdate(ctx, tenantID, info.Phone)
		if err == nil {
			return lead, nil
		}
		if err != domain.ErrLeadNotFound {
			return nil, err
		}
	}
	return nil, nil
}

// applyMessageSignals scores the turn itself, any intent keywords it carries,
// and the one-time engagement bonus. A fresh capture credits all the user
// turns that led up to it.
func (s *LeadService) applyMessageSignals(ctx context.Context, lead *domain.Lead, conv *domain.Conversation, message string, created bool) error {
	count, err := s.convRepo.CountUserMessages(ctx, conv.ID)
	if err != nil {
		return err
	}

	perTurn := scorePerMessage
	if created && count > 1 {
		perTurn = scorePerMessage * count
	}
	applyAdjustment(lead, perTurn, "message activity")

	for _, sig := range matchIntentSignals(message) {
		applyAdjustment(lead, sig.points, sig.reason)
	}

	if count > engagementThreshold && !hasAdjustment(lead, "engaged conversation") {
		applyAdjustment(lead, scoreEngagement, "engaged conversation")
	}
	return nil
}

// Get retrieves a lead scoped to its tenant.
func (s *LeadService) Get(ctx context.Context, tenantID, id string) (*domain.Lead, error) {
	return s.leadRepo.GetByID(ctx, tenantID, id)
}

type ListLeadsInput struct {
	TenantID string
	Status   domain.LeadStatus
	Cursor   string
	Limit    int
}

type ListLeadsOutput struct {
	Leads   []*domain.Lead
	Cursor  string
	HasMore bool
}

// List returns a page of the tenant's leads, newest activity first.
func (s *LeadService) List(ctx context.Context, input ListLeadsInput) (*ListLeadsOutput, error) {
	if input.Status != "" && !isKnownStatus(input.Status) {
		return nil, domain.ErrInvalidLeadStatus
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	page, err := s.leadRepo.ListByTenantWithCursor(ctx, input.TenantID, input.Status, cursor, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ListLeadsOutput{
		Leads:   page.Leads,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// UpdateStatus moves a lead along the pipeline, enforcing legal transitions.
func (s *LeadService) UpdateStatus(ctx context.Context, tenantID, id string, next domain.LeadStatus) (*domain.Lead, error) {
	ctx, span := telemetry.StartSpan(ctx, "LeadService.UpdateStatus", telemetry.SpanAttributes{
		TenantID:  tenantID,
		LeadID:    id,
		Operation: "update_status",
	})
	defer span.End()

	var lead *domain.Lead
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		var err error
		lead, err = repos.Leads().GetByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !lead.CanTransitionTo(next) {
			return domain.ErrLeadStatusTransition
		}
		lead.Status = next
		return repos.Leads().Update(ctx, lead)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return lead, nil
}

// AdjustScore applies a manual score change with a required reason.
func (s *LeadService) AdjustScore(ctx context.Context, tenantID, id string, delta int, reason string) (*domain.Lead, error) {
	ctx, span := telemetry.StartSpan(ctx, "LeadService.AdjustScore", telemetry.SpanAttributes{
		TenantID:  tenantID,
		LeadID:    id,
		Operation: "adjust_score",
	})
	defer span.End()

	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "adjustment reason is required")
	}

	var lead *domain.Lead
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		var err error
		lead, err = repos.Leads().GetByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		applyAdjustment(lead, delta, reason)
		return repos.Leads().Update(ctx, lead)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return lead, nil
}

// enrichLead fills blank contact fields from new info. Existing values are
// never overwritten or blanked.
func enrichLead(lead *domain.Lead, info domain.ContactInfo) bool {
	changed := false
	if lead.Email == "" && info.Email != "" {
		lead.Email = info.Email
		applyAdjustment(lead, scoreEmail, "email provided")
		changed = true
	}
	if lead.Phone == "" && info.Phone != "" {
		lead.Phone = info.Phone
		applyAdjustment(lead, scorePhone, "phone provided")
		changed = true
	}
	if lead.Name == "" && info.Name != "" {
		lead.Name = info.Name
		applyAdjustment(lead, scoreName, "name provided")
		changed = true
	}
	if lead.Company == "" && info.Company != "" {
		lead.Company = info.Company
		applyAdjustment(lead, scoreCompany, "company provided")
		changed = true
	}
	return changed
}

// applyAdjustment mutates the score with clamping and appends the audit entry.
func applyAdjustment(lead *domain.Lead, delta int, reason string) {
	if delta == 0 {
		return
	}
	from := lead.Score
	to := domain.ClampScore(from + delta)
	lead.Score = to
	lead.ScoreHistory = append(lead.ScoreHistory, domain.ScoreAdjustment{
		From:   from,
		To:     to,
		Delta:  delta,
		Reason: reason,
		At:     time.Now().UTC(),
	})
}

func hasAdjustment(lead *domain.Lead, reason string) bool {
	for _, a := range lead.ScoreHistory {
		if a.Reason == reason {
			return true
		}
	}
	return false
}

func captureScore(info domain.ContactInfo) int {
	score := 0
	if info.Email != "" {
		score += scoreEmail
	}
	if info.Phone != "" {
		score += scorePhone
	}
	if info.Name != "" {
		score += scoreName
	}
	if info.Company != "" {
		score += scoreCompany
	}
	return score
}

type intentSignal struct {
	points int
	reason string
}

var intentKeywords = []struct {
	signal   intentSignal
	keywords []string
}{
	{intentSignal{scoreDemoIntent, "asked for demo"}, []string{"demo", "free trial", "trial"}},
	{intentSignal{scorePricingIntent, "pricing interest"}, []string{"price", "pricing", "cost", "how much", "quote"}},
	{intentSignal{scoreTimelineIntent, "buying timeline"}, []string{"this week", "this month", "asap", "urgent", "timeline", "soon as possible"}},
	{intentSignal{scoreCompetitor, "competitor mention"}, []string{"currently using", "switch from", "alternative to", "competitor"}},
	{intentSignal{scoreNegative, "disinterest"}, []string{"not interested", "just looking", "just browsing", "unsubscribe"}},
}

// matchIntentSignals returns the score signals present in a message. Each
// signal fires at most once per message.
func matchIntentSignals(message string) []intentSignal {
	lower := strings.ToLower(message)
	var signals []intentSignal
	for _, entry := range intentKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				signals = append(signals, entry.signal)
				break
			}
		}
	}
	return signals
}

func isKnownStatus(s domain.LeadStatus) bool {
	switch s {
	case domain.LeadStatusNew, domain.LeadStatusContacted, domain.LeadStatusQualified,
		domain.LeadStatusConverted, domain.LeadStatusLost:
		return true
	}
	return false
}
