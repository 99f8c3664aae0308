package identity

import (
	"time"

	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// epoch is the creation time of the first contact in every test scenario.
var epoch = time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC)

func str(s string) *string {
	return &s
}

// primary creates a primary contact created the given number of minutes after epoch.
func primary(id int64, email string, phone string, minutes int) model.Contact {
	return model.Contact{
		Id:             id,
		Email:          optional(email),
		PhoneNumber:    optional(phone),
		LinkPrecedence: model.Primary,
		CreatedAt:      epoch.Add(time.Duration(minutes) * time.Minute),
		UpdatedAt:      epoch.Add(time.Duration(minutes) * time.Minute),
	}
}

// secondary creates a secondary contact linked to the given primary id.
func secondary(id int64, email string, phone string, linkedId int64, minutes int) model.Contact {
	c := primary(id, email, phone, minutes)
	c.LinkPrecedence = model.Secondary
	c.LinkedId = &linkedId
	return c
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
