package domain

import (
	"fmt"
	"time"
)

// LeadStatus follows the new -> contacted -> qualified -> converted pipeline,
// with lost reachable from any non-terminal state.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// LeadTemperature buckets a score for reporting.
type LeadTemperature string

const (
	LeadTemperatureHot  LeadTemperature = "hot"
	LeadTemperatureWarm LeadTemperature = "warm"
	LeadTemperatureCold LeadTemperature = "cold"
)

// Canonical temperature thresholds.
const (
	HotScoreThreshold  = 60
	WarmScoreThreshold = 30
)

// ScoreAdjustment is one immutable audit entry in a lead's score history.
type ScoreAdjustment struct {
	From   int       `json:"from"`
	To     int       `json:"to"`
	Delta  int       `json:"delta"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// ContactInfo holds contact signals extracted from message text.
type ContactInfo struct {
	Email   string
	Phone   string
	Name    string
	Company string
}

// Empty reports whether no identity signal is present.
func (c ContactInfo) Empty() bool {
	return c.Email == "" && c.Phone == "" && c.Name == ""
}

// Lead represents a prospective contact captured from conversational signals.
type Lead struct {
	ID           string
	TenantID     string
	Name         string
	Email        string
	Phone        string
	Company      string
	Score        int
	Status       LeadStatus
	Source       string
	ScoreHistory []ScoreAdjustment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ClampScore bounds a score to [0, 100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Temperature buckets a score into hot/warm/cold.
func Temperature(score int) LeadTemperature {
	switch {
	case score >= HotScoreThreshold:
		return LeadTemperatureHot
	case score >= WarmScoreThreshold:
		return LeadTemperatureWarm
	default:
		return LeadTemperatureCold
	}
}

// CanTransitionTo reports whether a lead status change is allowed.
func (l *Lead) CanTransitionTo(next LeadStatus) bool {
	if !isValidLeadStatus(next) {
		return false
	}
	switch l.Status {
	case LeadStatusNew:
		return next == LeadStatusContacted || next == LeadStatusLost
	case LeadStatusContacted:
		return next == LeadStatusQualified || next == LeadStatusLost
	case LeadStatusQualified:
		return next == LeadStatusConverted || next == LeadStatusLost
	case LeadStatusConverted, LeadStatusLost:
		return false
	}
	return false
}

// ValidateLead validates a Lead instance
func ValidateLead(l *Lead) error {
	if l == nil {
		return fmt.Errorf("lead cannot be nil")
	}
	if l.ID == "" {
		return fmt.Errorf("lead ID is required")
	}
	if l.TenantID == "" {
		return fmt.Errorf("lead TenantID is required")
	}
	if l.Email == "" && l.Phone == "" && l.Name == "" {
		return fmt.Errorf("lead requires at least one of email, phone or name")
	}
	if l.Score < 0 || l.Score > 100 {
		return fmt.Errorf("lead Score must be in [0, 100], got %d", l.Score)
	}
	if !isValidLeadStatus(l.Status) {
		return fmt.Errorf("lead Status is invalid: %s", l.Status)
	}
	return nil
}

func isValidLeadStatus(s LeadStatus) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusLost:
		return true
	}
	return false
}
