package store

import (
	"strings"

	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// Predicate is a typed condition on contacts. Every predicate can be rendered as a SQL condition
// and evaluated in memory, so the MySQL and the in-memory store match contacts identically.
type Predicate interface {
	// SQL returns the condition with '?' placeholders and its arguments.
	SQL() (string, []interface{})
	// Matches evaluates the condition against a contact.
	Matches(c model.Contact) bool
}

type emailEquals struct{ email string }

// EmailEquals matches contacts with exactly this email address.
func EmailEquals(email string) Predicate { return emailEquals{email} }

func (p emailEquals) SQL() (string, []interface{}) { return "email = ?", []interface{}{p.email} }

func (p emailEquals) Matches(c model.Contact) bool {
	return c.Email != nil && *c.Email == p.email
}

type phoneEquals struct{ phone string }

// PhoneEquals matches contacts with exactly this phone number.
func PhoneEquals(phone string) Predicate { return phoneEquals{phone} }

func (p phoneEquals) SQL() (string, []interface{}) {
	return "phonenumber = ?", []interface{}{p.phone}
}

func (p phoneEquals) Matches(c model.Contact) bool {
	return c.PhoneNumber != nil && *c.PhoneNumber == p.phone
}

type idIn struct{ ids []int64 }

// IDEquals matches the contact with the given id.
func IDEquals(id int64) Predicate { return idIn{[]int64{id}} }

// IDIn matches the contacts with any of the given ids.
func IDIn(ids ...int64) Predicate { return idIn{ids} }

func (p idIn) SQL() (string, []interface{}) { return inCondition("id", p.ids) }

func (p idIn) Matches(c model.Contact) bool { return containsID(p.ids, c.Id) }

type linkedIDIn struct{ ids []int64 }

// LinkedIDEquals matches the contacts linked to the given primary.
func LinkedIDEquals(id int64) Predicate { return linkedIDIn{[]int64{id}} }

// LinkedIDIn matches the contacts linked to any of the given primaries.
func LinkedIDIn(ids ...int64) Predicate { return linkedIDIn{ids} }

func (p linkedIDIn) SQL() (string, []interface{}) { return inCondition("linkedid", p.ids) }

func (p linkedIDIn) Matches(c model.Contact) bool {
	return c.LinkedId != nil && containsID(p.ids, *c.LinkedId)
}

// IDOrLinkedID matches a primary and every contact linked to it, i.e. its whole cluster.
func IDOrLinkedID(id int64) Predicate { return Or(IDEquals(id), LinkedIDEquals(id)) }

type or struct{ predicates []Predicate }

// Or matches contacts that satisfy at least one of the given predicates. An empty Or matches
// nothing.
func Or(predicates ...Predicate) Predicate { return or{predicates} }

func (p or) SQL() (string, []interface{}) {
	if len(p.predicates) == 0 {
		return "1 = 0", nil
	}
	conditions := make([]string, 0, len(p.predicates))
	var args []interface{}
	for _, predicate := range p.predicates {
		condition, conditionArgs := predicate.SQL()
		conditions = append(conditions, condition)
		args = append(args, conditionArgs...)
	}
	return "(" + strings.Join(conditions, " OR ") + ")", args
}

func (p or) Matches(c model.Contact) bool {
	for _, predicate := range p.predicates {
		if predicate.Matches(c) {
			return true
		}
	}
	return false
}

// Equality builds the matcher predicate for an observation: contacts whose email equals the given
// email OR whose phone number equals the given phone number. Nil values are ignored.
func Equality(email *string, phoneNumber *string) Predicate {
	var predicates []Predicate
	if email != nil {
		predicates = append(predicates, EmailEquals(*email))
	}
	if phoneNumber != nil {
		predicates = append(predicates, PhoneEquals(*phoneNumber))
	}
	return Or(predicates...)
}

func inCondition(column string, ids []int64) (string, []interface{}) {
	switch len(ids) {
	case 0:
		return "1 = 0", nil
	case 1:
		return column + " = ?", []interface{}{ids[0]}
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return column + " IN (?" + strings.Repeat(", ?", len(ids)-1) + ")", args
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
