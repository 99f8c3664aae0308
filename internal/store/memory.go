package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gitlab.com/dirk.krummacker/identity-service/internal/identity"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
)

// MemoryStore keeps contacts in memory. Transactions are serialized by a single mutex and work on
// a copy of the contacts that replaces the original only on commit. It is meant for development
// and tests.
type MemoryStore struct {
	mu       sync.Mutex
	contacts []model.Contact
	nextId   int64
	options  options
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{nextId: 1, options: buildOptions(opts)}
}

// Load adds existing contacts, e.g. fixtures, keeping their ids and timestamps.
func (s *MemoryStore) Load(contacts ...model.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range contacts {
		s.contacts = append(s.contacts, c)
		if c.Id >= s.nextId {
			s.nextId = c.Id + 1
		}
	}
}

// Contacts returns a snapshot of all contacts including deleted ones, ordered by id.
func (s *MemoryStore) Contacts() []model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]model.Contact, len(s.contacts))
	copy(snapshot, s.contacts)
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Id < snapshot[j].Id
	})
	return snapshot
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// FindContact returns the non-deleted contact with the given id.
func (s *MemoryStore) FindContact(_ context.Context, id int64) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contacts {
		if c.Id == id && c.DeletedAt == nil {
			return c, nil
		}
	}
	return model.Contact{}, ErrNotFound
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{
		contacts: make([]model.Contact, len(s.contacts)),
		nextId:   s.nextId,
		options:  s.options,
	}
	copy(tx.contacts, s.contacts)
	if err := fn(tx); err != nil {
		return err
	}
	s.contacts = tx.contacts
	s.nextId = tx.nextId
	return nil
}

// memoryTx works on its own copy of the contacts. Updates always replace pointer fields instead of
// writing through them, so the copy never shares mutable state with the committed contacts.
type memoryTx struct {
	contacts []model.Contact
	nextId   int64
	options  options
}

func (t *memoryTx) Select(_ context.Context, predicate Predicate) ([]model.Contact, error) {
	var contacts []model.Contact
	for _, c := range t.contacts {
		if c.DeletedAt == nil && predicate.Matches(c) {
			contacts = append(contacts, c)
		}
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Before(contacts[j])
	})
	return contacts, nil
}

func (t *memoryTx) FindByEquality(ctx context.Context, email *string, phoneNumber *string) ([]model.Contact, error) {
	return findByEquality(ctx, t, email, phoneNumber)
}

func (t *memoryTx) FindByID(ctx context.Context, id int64) (model.Contact, error) {
	return findByID(ctx, t, id)
}

func (t *memoryTx) FindByLinkedID(ctx context.Context, id int64) ([]model.Contact, error) {
	return findByLinkedID(ctx, t, id)
}

func (t *memoryTx) Insert(_ context.Context, contact NewContact) (model.Contact, error) {
	now := t.options.timestamp()
	c := model.Contact{
		Id:             t.nextId,
		Email:          contact.Email,
		PhoneNumber:    contact.PhoneNumber,
		LinkedId:       contact.LinkedId,
		LinkPrecedence: contact.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	t.nextId++
	t.contacts = append(t.contacts, c)
	return c, nil
}

func (t *memoryTx) Update(_ context.Context, id int64, update ContactUpdate) error {
	i := t.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	if update.LinkedId == nil && update.LinkPrecedence == nil {
		return nil
	}
	if update.LinkedId != nil {
		linkedId := *update.LinkedId
		t.contacts[i].LinkedId = &linkedId
	}
	if update.LinkPrecedence != nil {
		t.contacts[i].LinkPrecedence = *update.LinkPrecedence
	}
	t.contacts[i].UpdatedAt = t.options.timestamp()
	return nil
}

func (t *memoryTx) ApplyConsolidation(_ context.Context, plan identity.Consolidation) error {
	now := t.options.timestamp()
	for _, id := range plan.Reparented {
		i := t.indexOf(id)
		if i < 0 || t.contacts[i].LinkPrecedence != model.Secondary {
			return fmt.Errorf("%w: cannot re-parent contact %d", identity.ErrInconsistent, id)
		}
		survivor := plan.Survivor.Id
		t.contacts[i].LinkedId = &survivor
		t.contacts[i].UpdatedAt = now
	}
	for _, id := range plan.Demoted {
		i := t.indexOf(id)
		if i < 0 || t.contacts[i].LinkPrecedence != model.Primary {
			return fmt.Errorf("%w: cannot demote contact %d", identity.ErrInconsistent, id)
		}
		survivor := plan.Survivor.Id
		t.contacts[i].LinkPrecedence = model.Secondary
		t.contacts[i].LinkedId = &survivor
		t.contacts[i].UpdatedAt = now
	}
	return nil
}

// indexOf returns the position of the non-deleted contact with the given id, or -1.
func (t *memoryTx) indexOf(id int64) int {
	for i, c := range t.contacts {
		if c.Id == id && c.DeletedAt == nil {
			return i
		}
	}
	return -1
}
