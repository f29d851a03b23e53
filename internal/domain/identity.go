package domain

import (
	"strings"
	"time"
)

// SubjectType distinguishes authenticated principals.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "CUSTOMER"
	SubjectTypeAdmin    SubjectType = "ADMIN"
)

// NotificationMethod controls how out-of-band delivery is attempted for an
// admin. Durability of the Notification record never depends on it.
type NotificationMethod string

const (
	NotificationMethodNone    NotificationMethod = "none"
	NotificationMethodEmail   NotificationMethod = "email"
	NotificationMethodWebhook NotificationMethod = "webhook"
)

// Admin is a support staff member able to triage tickets.
type Admin struct {
	ID                 string
	Email              string
	Name               string
	PasswordHash       string
	Active             bool
	NotificationMethod NotificationMethod
	CreatedAt          time.Time
}

// CustomerIdentity carries whatever is known about the customer side of a
// conversation. Guests may present only an email and display name.
type CustomerIdentity struct {
	Email  string
	Name   string
	UserID *string
}

// Valid reports whether the identity is addressable at all: at least one of
// email or linked user id must be present.
func (c CustomerIdentity) Valid() bool {
	return strings.TrimSpace(c.Email) != "" || c.UserID != nil
}
