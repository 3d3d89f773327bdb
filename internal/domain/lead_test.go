package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		expected int
	}{
		{"negative clamps to zero", -15, 0},
		{"zero stays zero", 0, 0},
		{"in range unchanged", 55, 55},
		{"hundred stays hundred", 100, 100},
		{"over hundred clamps", 140, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClampScore(tt.score))
		})
	}
}

func TestTemperature(t *testing.T) {
	tests := []struct {
		score    int
		expected LeadTemperature
	}{
		{0, LeadTemperatureCold},
		{29, LeadTemperatureCold},
		{30, LeadTemperatureWarm},
		{59, LeadTemperatureWarm},
		{60, LeadTemperatureHot},
		{100, LeadTemperatureHot},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Temperature(tt.score), "score %d", tt.score)
	}
}

func TestLeadStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    LeadStatus
		to      LeadStatus
		allowed bool
	}{
		{"new to contacted", LeadStatusNew, LeadStatusContacted, true},
		{"new to lost", LeadStatusNew, LeadStatusLost, true},
		{"new to qualified skips contacted", LeadStatusNew, LeadStatusQualified, false},
		{"contacted to qualified", LeadStatusContacted, LeadStatusQualified, true},
		{"qualified to converted", LeadStatusQualified, LeadStatusConverted, true},
		{"qualified to lost", LeadStatusQualified, LeadStatusLost, true},
		{"converted is terminal", LeadStatusConverted, LeadStatusLost, false},
		{"lost is terminal", LeadStatusLost, LeadStatusContacted, false},
		{"unknown target rejected", LeadStatusNew, LeadStatus("banana"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := &Lead{Status: tt.from}
			assert.Equal(t, tt.allowed, lead.CanTransitionTo(tt.to))
		})
	}
}

func TestValidateLead(t *testing.T) {
	valid := &Lead{
		ID:       "lead-1",
		TenantID: "tenant-1",
		Email:    "alice@example.com",
		Score:    40,
		Status:   LeadStatusNew,
	}
	assert.NoError(t, ValidateLead(valid))

	t.Run("requires identity signal", func(t *testing.T) {
		lead := &Lead{ID: "lead-1", TenantID: "tenant-1", Score: 10, Status: LeadStatusNew}
		assert.Error(t, ValidateLead(lead))
	})

	t.Run("rejects out of range score", func(t *testing.T) {
		lead := &Lead{ID: "lead-1", TenantID: "tenant-1", Email: "a@b.co", Score: 101, Status: LeadStatusNew}
		assert.Error(t, ValidateLead(lead))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		lead := &Lead{ID: "lead-1", TenantID: "tenant-1", Email: "a@b.co", Score: 10, Status: "archived"}
		assert.Error(t, ValidateLead(lead))
	})
}

func TestContactInfoEmpty(t *testing.T) {
	assert.True(t, ContactInfo{}.Empty())
	assert.True(t, ContactInfo{Company: "Acme"}.Empty())
	assert.False(t, ContactInfo{Email: "a@b.co"}.Empty())
	assert.False(t, ContactInfo{Phone: "+15551234567"}.Empty())
	assert.False(t, ContactInfo{Name: "Alice"}.Empty())
}
