package models

import "time"

// Link precedence values for a contact record.
const (
	LinkPrecedencePrimary   = "primary"
	LinkPrecedenceSecondary = "secondary"
)

// Contact is a single contact record. A person's identity is the cluster of
// one primary contact plus every secondary contact linked to it.
type Contact struct {
	ID             int64      `json:"id"`
	PhoneNumber    *string    `json:"phoneNumber,omitempty"`
	Email          *string    `json:"email,omitempty"`
	LinkedID       *int64     `json:"linkedId,omitempty"`
	LinkPrecedence string     `json:"linkPrecedence"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// IsPrimary reports whether the record is the canonical head of its identity.
func (c *Contact) IsPrimary() bool { return c.LinkPrecedence == LinkPrecedencePrimary }

// Identity is the unified view of one person across all their contact
// records: the canonical primary id, the deduplicated field values, and the
// ids of every absorbed secondary record.
//
// The primaryContatctId spelling is the published wire contract.
type Identity struct {
	PrimaryContactID    int64    `json:"primaryContatctId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// IdentifyRequest is the incoming request body for POST /identify.
type IdentifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// EmailValue returns the email or "" when absent.
func (r IdentifyRequest) EmailValue() string {
	if r.Email == nil {
		return ""
	}
	return *r.Email
}

// PhoneValue returns the phone number or "" when absent.
func (r IdentifyRequest) PhoneValue() string {
	if r.PhoneNumber == nil {
		return ""
	}
	return *r.PhoneNumber
}
