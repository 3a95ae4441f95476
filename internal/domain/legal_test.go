package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionLegal(t *testing.T) {
	tests := []struct {
		from, to LegalStatus
		want     bool
	}{
		{LegalReceived, LegalInquirySent, true},
		{LegalInquirySent, LegalAgreedDelete, true},
		{LegalInquirySent, LegalRefusedDelete, true},
		{LegalAgreedDelete, LegalCompleted, true},
		// skipping
		{LegalReceived, LegalAgreedDelete, false},
		{LegalReceived, LegalCompleted, false},
		{LegalInquirySent, LegalCompleted, false},
		// regression
		{LegalInquirySent, LegalReceived, false},
		{LegalCompleted, LegalAgreedDelete, false},
		// terminal
		{LegalRefusedDelete, LegalAgreedDelete, false},
		{LegalRefusedDelete, LegalCompleted, false},
		// self
		{LegalReceived, LegalReceived, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionLegal(tt.from, tt.to))
		})
	}
}

func TestLegalStatusTerminal(t *testing.T) {
	assert.True(t, LegalCompleted.IsTerminal())
	assert.True(t, LegalRefusedDelete.IsTerminal())
	assert.False(t, LegalReceived.IsTerminal())
	assert.False(t, LegalInquirySent.IsTerminal())
	assert.False(t, LegalStatus("BOGUS").Valid())
}

func TestResponseDeadline(t *testing.T) {
	inquiry := &LegalInquiry{}
	_, ok := inquiry.ResponseDeadline()
	assert.False(t, ok, "no deadline before the inquiry is sent")

	sent := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inquiry.Details.InquirySentAt = &sent

	deadline, ok := inquiry.ResponseDeadline()
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC), deadline)

	days, _ := inquiry.DaysRemaining(sent)
	assert.Equal(t, 7, days)

	days, _ = inquiry.DaysRemaining(sent.Add(6*24*time.Hour + time.Hour))
	assert.Equal(t, 1, days)

	days, _ = inquiry.DaysRemaining(sent.Add(10 * 24 * time.Hour))
	assert.Equal(t, -3, days)
}

func TestLegalInquiryToResponse(t *testing.T) {
	sent := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inquiry := &LegalInquiry{Details: LegalDetails{LegalStatus: LegalInquirySent, InquirySentAt: &sent}}

	resp := inquiry.ToResponse(sent.Add(48 * time.Hour))
	assert.Equal(t, []LegalStatus{LegalAgreedDelete, LegalRefusedDelete}, resp.NextStatuses)
	if assert.NotNil(t, resp.DaysRemaining) {
		assert.Equal(t, 5, *resp.DaysRemaining)
	}
}
