// Package repository provides persistence for contact records behind a
// transactional interface so the resolver never touches a storage engine
// directly.
package repository

import (
	"context"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/models"
)

// CreateParams are the caller-supplied fields for a new contact record.
// The repository assigns id and timestamps.
type CreateParams struct {
	Email          *string
	PhoneNumber    *string
	LinkPrecedence string
	LinkedID       *int64
}

// ContactTx is the set of contact operations available inside one
// transaction. All reads exclude soft-deleted records.
type ContactTx interface {
	// FindMatching returns every contact whose email or phone number equals
	// the given non-empty values, ordered oldest first (created_at, then id).
	FindMatching(ctx context.Context, email, phoneNumber string) ([]*models.Contact, error)

	// FindByID returns one contact by id, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Contact, error)

	// FindCluster returns the identity cluster of a primary: the primary
	// itself plus every contact linked to it, oldest first.
	FindCluster(ctx context.Context, primaryID int64) ([]*models.Contact, error)

	// Create inserts a new contact and returns it with its assigned id.
	Create(ctx context.Context, p CreateParams) (*models.Contact, error)

	// Demote turns the given contacts into secondaries of primaryID.
	Demote(ctx context.Context, ids []int64, primaryID int64) error

	// Repoint relinks every secondary of oldPrimaryID to newPrimaryID.
	Repoint(ctx context.Context, oldPrimaryID, newPrimaryID int64) error
}

// ContactRepository is the transactional entry point. InTx runs fn inside
// one transaction: a nil return commits, any error (or panic) rolls back,
// so partial merges are never observable.
type ContactRepository interface {
	InTx(ctx context.Context, fn func(ContactTx) error) error
}
