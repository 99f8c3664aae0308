package model

import "time"

// LinkPrecedence tells whether a contact is the canonical record of its identity cluster or was
// linked into one.
type LinkPrecedence string

const (
	Primary   LinkPrecedence = "primary"
	Secondary LinkPrecedence = "secondary"
)

// Contact is a single sighting of a customer, identified by an email address, a phone number or
// both. Secondary contacts always point directly at the primary of their cluster via LinkedId.
type Contact struct {
	Id             int64          `json:"id"                    db:"id"`
	Email          *string        `json:"email,omitempty"       db:"email"`
	PhoneNumber    *string        `json:"phoneNumber,omitempty" db:"phonenumber"`
	LinkedId       *int64         `json:"linkedId,omitempty"    db:"linkedid"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence"        db:"linkprecedence"`
	CreatedAt      time.Time      `json:"createdAt"             db:"createdat"`
	UpdatedAt      time.Time      `json:"updatedAt"             db:"updatedat"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty"   db:"deletedat"`
}

// IsPrimary returns true if the contact is the canonical record of its cluster.
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == Primary
}

// Before reports whether c was created before other. Contacts created at the same instant are
// ordered by id, which is assigned monotonically.
func (c Contact) Before(other Contact) bool {
	if c.CreatedAt.Equal(other.CreatedAt) {
		return c.Id < other.Id
	}
	return c.CreatedAt.Before(other.CreatedAt)
}
