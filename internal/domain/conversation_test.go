package domain

import "testing"

func TestTicketTransitions(t *testing.T) {
	cases := []struct {
		from TicketStatus
		to   TicketStatus
		ok   bool
	}{
		{TicketStatusOpen, TicketStatusInProgress, true},
		{TicketStatusOpen, TicketStatusWaitingCustomer, true},
		{TicketStatusOpen, TicketStatusResolved, true},
		{TicketStatusOpen, TicketStatusClosed, false},
		{TicketStatusInProgress, TicketStatusResolved, true},
		{TicketStatusInProgress, TicketStatusClosed, true},
		{TicketStatusInProgress, TicketStatusOpen, false},
		{TicketStatusWaitingCustomer, TicketStatusInProgress, true},
		{TicketStatusResolved, TicketStatusClosed, true},
		{TicketStatusResolved, TicketStatusOpen, false},
		{TicketStatusClosed, TicketStatusOpen, false},
		{TicketStatusClosed, TicketStatusInProgress, false},
	}
	for _, tc := range cases {
		if got := IsValidTicketTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("transition %s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestAcceptsMessages(t *testing.T) {
	for _, status := range []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusWaitingCustomer, TicketStatusResolved} {
		if !status.AcceptsMessages() {
			t.Errorf("%s should accept messages", status)
		}
	}
	if TicketStatusClosed.AcceptsMessages() {
		t.Errorf("closed tickets must not accept messages")
	}
}

func TestCustomerIdentityValid(t *testing.T) {
	if (CustomerIdentity{}).Valid() {
		t.Errorf("empty identity must be invalid")
	}
	if !(CustomerIdentity{Email: "a@b.c"}).Valid() {
		t.Errorf("email alone should be valid")
	}
	userID := "u1"
	if !(CustomerIdentity{UserID: &userID}).Valid() {
		t.Errorf("user id alone should be valid")
	}
}

func TestConversationRefIsZero(t *testing.T) {
	if !(ConversationRef{}).IsZero() {
		t.Errorf("empty ref should be zero")
	}
	id := "x"
	if (ConversationRef{SessionID: &id}).IsZero() {
		t.Errorf("ref with session id is not zero")
	}
}
