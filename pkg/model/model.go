package model

import (
	"bytes"
	"encoding/json"
	"errors"
)

// IdentifyRequest is the body of a POST /identify call. At least one of the two fields must be
// present and non-empty.
type IdentifyRequest struct {
	Email       *string      `json:"email,omitempty"`
	PhoneNumber *PhoneNumber `json:"phoneNumber,omitempty"`
}

// IdentifyResponse wraps the consolidated view of an identity cluster.
type IdentifyResponse struct {
	Contact ContactSummary `json:"contact"`
}

// ContactSummary is the consolidated view of an identity cluster. The primary's own email and
// phone number come first in their lists.
type ContactSummary struct {
	PrimaryContactId    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIds []int64  `json:"secondaryContactIds"`
}

// ErrorResponse is the body of failed /identify and /contacts calls. The health check reports its
// own status object instead.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PhoneNumber is a phone number as sent by clients. Many clients send phone numbers as JSON
// numbers, so both `"123456"` and `123456` decode to the same value.
type PhoneNumber string

// UnmarshalJSON accepts a JSON string or a JSON number.
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PhoneNumber(s)
		return nil
	}
	var n json.Number
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&n); err != nil {
		return errors.New("phoneNumber must be a string or a number")
	}
	*p = PhoneNumber(n.String())
	return nil
}

// StringPtr returns the phone number as an optional string.
func (p *PhoneNumber) StringPtr() *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}
