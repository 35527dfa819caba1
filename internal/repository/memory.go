package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/models"
)

// Memory is an in-memory ContactRepository used by tests. It serializes
// transactions under one mutex and rolls back by restoring a snapshot, so
// commit-or-nothing semantics match the SQL implementation.
type Memory struct {
	mu       sync.Mutex
	seq      int64
	contacts map[int64]models.Contact
	writes   int64
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{contacts: make(map[int64]models.Contact)}
}

// InTx runs fn under the repository lock. A nil return keeps the mutations;
// any error restores the pre-transaction state.
func (m *Memory) InTx(ctx context.Context, fn func(ContactTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[int64]models.Contact, len(m.contacts))
	for id, c := range m.contacts {
		snapshot[id] = c
	}
	seq, writes := m.seq, m.writes

	if err := fn(&memTx{m: m}); err != nil {
		m.contacts, m.seq, m.writes = snapshot, seq, writes
		return err
	}
	return nil
}

// Writes returns the number of committed record mutations. Tests use it to
// assert that lookups stay write-free.
func (m *Memory) Writes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Seed inserts a contact as-is, assigning the next id and defaulting zero
// timestamps. It exists so tests can construct arbitrary repository states,
// including broken ones.
func (m *Memory) Seed(c models.Contact) *models.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	c.ID = m.seq
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	m.contacts[c.ID] = c
	return &c
}

type memTx struct {
	m *Memory
}

func (t *memTx) FindMatching(_ context.Context, email, phoneNumber string) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, c := range t.m.contacts {
		if c.DeletedAt != nil {
			continue
		}
		matchEmail := email != "" && c.Email != nil && *c.Email == email
		matchPhone := phoneNumber != "" && c.PhoneNumber != nil && *c.PhoneNumber == phoneNumber
		if matchEmail || matchPhone {
			cc := c
			out = append(out, &cc)
		}
	}
	sortByAge(out)
	return out, nil
}

func (t *memTx) FindByID(_ context.Context, id int64) (*models.Contact, error) {
	c, ok := t.m.contacts[id]
	if !ok || c.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cc := c
	return &cc, nil
}

func (t *memTx) FindCluster(_ context.Context, primaryID int64) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, c := range t.m.contacts {
		if c.DeletedAt != nil {
			continue
		}
		if c.ID == primaryID || (c.LinkedID != nil && *c.LinkedID == primaryID) {
			cc := c
			out = append(out, &cc)
		}
	}
	sortByAge(out)
	return out, nil
}

func (t *memTx) Create(_ context.Context, p CreateParams) (*models.Contact, error) {
	t.m.seq++
	now := time.Now().UTC()
	c := models.Contact{
		ID:             t.m.seq,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
		LinkedID:       p.LinkedID,
		LinkPrecedence: p.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	t.m.contacts[c.ID] = c
	t.m.writes++
	cc := c
	return &cc, nil
}

func (t *memTx) Demote(_ context.Context, ids []int64, primaryID int64) error {
	now := time.Now().UTC()
	for _, id := range ids {
		c, ok := t.m.contacts[id]
		if !ok {
			continue
		}
		linked := primaryID
		c.LinkPrecedence = models.LinkPrecedenceSecondary
		c.LinkedID = &linked
		c.UpdatedAt = now
		t.m.contacts[id] = c
		t.m.writes++
	}
	return nil
}

func (t *memTx) Repoint(_ context.Context, oldPrimaryID, newPrimaryID int64) error {
	now := time.Now().UTC()
	for id, c := range t.m.contacts {
		if c.DeletedAt != nil || c.LinkedID == nil || *c.LinkedID != oldPrimaryID {
			continue
		}
		linked := newPrimaryID
		c.LinkedID = &linked
		c.UpdatedAt = now
		t.m.contacts[id] = c
		t.m.writes++
	}
	return nil
}

func sortByAge(contacts []*models.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].CreatedAt.Equal(contacts[j].CreatedAt) {
			return contacts[i].ID < contacts[j].ID
		}
		return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
	})
}
