package store

import (
	"context"
	"errors"

	"gitlab.com/dirk.krummacker/identity-service/internal/identity"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// ErrNotFound is returned when a contact with the requested id does not exist or is deleted.
var ErrNotFound = errors.New("contact not found")

// NewContact holds the fields of a contact to be inserted. Ids and timestamps are assigned by the
// store.
type NewContact struct {
	Email          *string              `db:"email"`
	PhoneNumber    *string              `db:"phonenumber"`
	LinkedId       *int64               `db:"linkedid"`
	LinkPrecedence model.LinkPrecedence `db:"linkprecedence"`
}

// ContactUpdate holds the fields to change on a single contact. Nil fields are left as they are.
type ContactUpdate struct {
	LinkedId       *int64
	LinkPrecedence *model.LinkPrecedence
}

// Store is the persistent home of all contacts.
type Store interface {
	// WithinTx runs fn in a transaction. The transaction is committed if fn returns nil and
	// rolled back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// FindContact returns a single non-deleted contact outside of any transaction.
	FindContact(ctx context.Context, id int64) (model.Contact, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// Tx is the set of operations available within one transaction. All reads exclude deleted
// contacts and return contacts ordered by creation.
type Tx interface {
	Select(ctx context.Context, predicate Predicate) ([]model.Contact, error)
	FindByEquality(ctx context.Context, email *string, phoneNumber *string) ([]model.Contact, error)
	FindByID(ctx context.Context, id int64) (model.Contact, error)
	FindByLinkedID(ctx context.Context, id int64) ([]model.Contact, error)
	Insert(ctx context.Context, contact NewContact) (model.Contact, error)
	Update(ctx context.Context, id int64, update ContactUpdate) error
	// ApplyConsolidation demotes and re-parents contacts as planned, as one batch.
	ApplyConsolidation(ctx context.Context, plan identity.Consolidation) error
}

// findByEquality, findByID and findByLinkedID implement the convenience lookups of Tx on top of
// Select, so every store shares them.
func findByEquality(ctx context.Context, tx Tx, email *string, phoneNumber *string) ([]model.Contact, error) {
	if email == nil && phoneNumber == nil {
		return nil, nil
	}
	return tx.Select(ctx, Equality(email, phoneNumber))
}

func findByID(ctx context.Context, tx Tx, id int64) (model.Contact, error) {
	contacts, err := tx.Select(ctx, IDEquals(id))
	if err != nil {
		return model.Contact{}, err
	}
	if len(contacts) == 0 {
		return model.Contact{}, ErrNotFound
	}
	return contacts[0], nil
}

func findByLinkedID(ctx context.Context, tx Tx, id int64) ([]model.Contact, error) {
	return tx.Select(ctx, LinkedIDEquals(id))
}

var (
	_ Store = (*MySQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
