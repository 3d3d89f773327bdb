package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractContactInfo_Email(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		email string
	}{
		{"plain address", "you can reach me at jane@example.com", "jane@example.com"},
		{"uppercase is lowered", "Contact JANE.DOE@Example.COM please", "jane.doe@example.com"},
		{"plus addressing", "jane+crm@example.co.uk works too", "jane+crm@example.co.uk"},
		{"no address", "just asking about pricing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractContactInfo(tt.text)
			assert.Equal(t, tt.email, info.Email)
		})
	}
}

func TestExtractContactInfo_Phone(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		phone string
	}{
		{"dashed", "call me at 555-123-4567", "5551234567"},
		{"international", "my number is +49 151 23456789", "+4915123456789"},
		{"parenthesized area code", "it's (555) 123-4567", "5551234567"},
		{"too few digits", "room 123-45", ""},
		{"eight digits is not a number", "my ticket is 1234-5678", ""},
		{"nine digits is not a number", "order 123-456-789 arrived", ""},
		{"fifteen digits is too long", "ref 123456789012345 please", ""},
		{"email digits are not a phone", "reach me at user12345678@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractContactInfo(tt.text)
			assert.Equal(t, tt.phone, info.Phone)
		})
	}
}

func TestExtractContactInfo_Name(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"my name is", "Hi, my name is Jane Doe", "Jane Doe"},
		{"contraction", "I'm Jordan and I have a question", "Jordan"},
		{"this is", "Hello, this is Sam Piper from accounting", "Sam Piper"},
		{"name here", "Jane Doe here, following up on my order", "Jane Doe"},
		{"lowercase is not a name", "my name is jane", ""},
		{"no introduction", "what's your refund policy?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractContactInfo(tt.text)
			assert.Equal(t, tt.expected, info.Name)
		})
	}
}

func TestExtractContactInfo_Company(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"work at", "I work at Initech and we need licenses", "Initech"},
		{"with", "I'm with Acme Corp, evaluating options", "Acme Corp"},
		{"no company", "just browsing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ExtractContactInfo(tt.text)
			assert.Equal(t, tt.expected, info.Company)
		})
	}
}

func TestExtractContactInfo_Combined(t *testing.T) {
	info := ExtractContactInfo("My name is Jane Doe, I work at Initech and you can email jane@initech.com or call 555-123-4567.")

	assert.Equal(t, "jane@initech.com", info.Email)
	assert.Equal(t, "5551234567", info.Phone)
	assert.Equal(t, "Jane Doe", info.Name)
	assert.Equal(t, "Initech", info.Company)
	assert.False(t, info.Empty())
}

func TestContactInfo_Empty(t *testing.T) {
	assert.True(t, ExtractContactInfo("nothing identifying here").Empty())
	assert.False(t, ExtractContactInfo("jane@example.com").Empty())
}
