// Package service implements the identity reconciliation algorithm: matching
// contact records by email or phone, electing the oldest record as the
// canonical primary, absorbing colliding identities, and reporting the
// unified identity.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/models"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/repository"
)

// Resolution errors. Checked with errors.Is at the HTTP boundary.
var (
	// ErrInvalidInput is returned when neither email nor phoneNumber is given.
	ErrInvalidInput = errors.New("either email or phoneNumber must be provided")

	// ErrBrokenLink is returned when a secondary contact's linkedId is
	// missing or dangling. This is repository corruption the resolver
	// cannot repair, so it is never retried.
	ErrBrokenLink = errors.New("no reachable primary contact")
)

const (
	// maxConflictRetries bounds the retry loop around the resolve
	// transaction when concurrent merges collide.
	maxConflictRetries = 3

	// conflictBackoff is the pause between retry attempts.
	conflictBackoff = 25 * time.Millisecond

	// maxLinkDepth bounds transitive linkedId dereferencing so corrupt
	// link cycles cannot spin forever.
	maxLinkDepth = 8
)

// Resolver reconciles contact identities against an injected repository.
type Resolver struct {
	repo repository.ContactRepository
	log  zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(repo repository.ContactRepository, log zerolog.Logger) *Resolver {
	return &Resolver{repo: repo, log: log}
}

// Resolve determines the unified identity for the given email and/or phone
// number, creating or merging contact records as needed. The whole
// operation runs inside one repository transaction; write conflicts from
// concurrent merges are retried a bounded number of times, which is safe
// because Resolve is idempotent for unchanged input.
func (s *Resolver) Resolve(ctx context.Context, email, phoneNumber string) (*models.Identity, error) {
	if email == "" && phoneNumber == "" {
		return nil, ErrInvalidInput
	}

	var identity *models.Identity
	var err error
	for attempt := 0; ; attempt++ {
		err = s.repo.InTx(ctx, func(tx repository.ContactTx) error {
			var txErr error
			identity, txErr = s.resolveInTx(ctx, tx, email, phoneNumber)
			return txErr
		})
		if err == nil || !errors.Is(err, repository.ErrConflict) || attempt >= maxConflictRetries {
			break
		}

		s.log.Warn().Int("attempt", attempt+1).Err(err).Msg("resolve hit a write conflict, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(conflictBackoff):
		}
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *Resolver) resolveInTx(ctx context.Context, tx repository.ContactTx, email, phoneNumber string) (*models.Identity, error) {
	matches, err := tx.FindMatching(ctx, email, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("find matching contacts: %w", err)
	}

	// Unknown contact: start a fresh identity.
	if len(matches) == 0 {
		created, err := tx.Create(ctx, repository.CreateParams{
			Email:          optional(email),
			PhoneNumber:    optional(phoneNumber),
			LinkPrecedence: models.LinkPrecedencePrimary,
		})
		if err != nil {
			return nil, fmt.Errorf("create primary contact: %w", err)
		}
		s.log.Debug().Int64("contactId", created.ID).Msg("created new primary contact")
		return buildIdentity(created, []*models.Contact{created}), nil
	}

	primary, err := s.canonicalPrimary(ctx, tx, matches)
	if err != nil {
		return nil, err
	}

	if novelEmail, novelPhone := detectNovelty(matches, email, phoneNumber); novelEmail || novelPhone {
		// The new record carries only the novel field(s); known values are
		// not duplicated onto it.
		linked := primary.ID
		p := repository.CreateParams{
			LinkPrecedence: models.LinkPrecedenceSecondary,
			LinkedID:       &linked,
		}
		if novelEmail {
			p.Email = optional(email)
		}
		if novelPhone {
			p.PhoneNumber = optional(phoneNumber)
		}
		if _, err := tx.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("create secondary contact: %w", err)
		}
	}

	if err := s.absorbPrimaries(ctx, tx, matches, primary.ID); err != nil {
		return nil, err
	}

	// Re-read the authoritative post-merge cluster.
	cluster, err := tx.FindCluster(ctx, primary.ID)
	if err != nil {
		return nil, fmt.Errorf("load identity cluster: %w", err)
	}
	return buildIdentity(primary, cluster), nil
}

// canonicalPrimary elects the identity's canonical record: the oldest
// primary in the match set, or, when the match set is all secondaries, the
// primary reached through a matched secondary's linkedId.
func (s *Resolver) canonicalPrimary(ctx context.Context, tx repository.ContactTx, matches []*models.Contact) (*models.Contact, error) {
	// Matches are ordered oldest first, so the first primary is canonical.
	for _, c := range matches {
		if c.IsPrimary() {
			return c, nil
		}
	}

	for _, c := range matches {
		if c.LinkedID == nil {
			continue
		}
		return s.followLink(ctx, tx, *c.LinkedID)
	}
	return nil, fmt.Errorf("%w: no matched secondary carries a linked id", ErrBrokenLink)
}

// followLink walks linkedId references until it reaches a primary. Chains
// longer than one hop only exist in data written before demotion cascading;
// the walk tolerates them up to maxLinkDepth.
func (s *Resolver) followLink(ctx context.Context, tx repository.ContactTx, id int64) (*models.Contact, error) {
	for depth := 0; depth < maxLinkDepth; depth++ {
		c, err := tx.FindByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: linked contact %d does not exist", ErrBrokenLink, id)
		}
		if err != nil {
			return nil, fmt.Errorf("load linked contact %d: %w", id, err)
		}
		if c.IsPrimary() {
			return c, nil
		}
		if c.LinkedID == nil {
			return nil, fmt.Errorf("%w: secondary contact %d has no linked id", ErrBrokenLink, c.ID)
		}
		id = *c.LinkedID
	}
	return nil, fmt.Errorf("%w: link chain deeper than %d", ErrBrokenLink, maxLinkDepth)
}

// absorbPrimaries demotes every matched primary other than the canonical
// one and repoints their existing secondaries, keeping every linkedId one
// hop from its primary.
func (s *Resolver) absorbPrimaries(ctx context.Context, tx repository.ContactTx, matches []*models.Contact, primaryID int64) error {
	var demote []int64
	for _, c := range matches {
		if c.IsPrimary() && c.ID != primaryID {
			demote = append(demote, c.ID)
		}
	}
	if len(demote) == 0 {
		return nil
	}

	if err := tx.Demote(ctx, demote, primaryID); err != nil {
		return fmt.Errorf("demote colliding primaries: %w", err)
	}
	for _, id := range demote {
		if err := tx.Repoint(ctx, id, primaryID); err != nil {
			return fmt.Errorf("repoint secondaries of contact %d: %w", id, err)
		}
	}

	s.log.Info().Int64("primaryId", primaryID).Ints64("demotedIds", demote).Msg("merged colliding identities")
	return nil
}

// detectNovelty reports whether the request carries an email or phone number
// absent from every matched record.
func detectNovelty(matches []*models.Contact, email, phoneNumber string) (novelEmail, novelPhone bool) {
	knownEmails := make(map[string]bool)
	knownPhones := make(map[string]bool)
	for _, c := range matches {
		if c.Email != nil {
			knownEmails[*c.Email] = true
		}
		if c.PhoneNumber != nil {
			knownPhones[*c.PhoneNumber] = true
		}
	}
	novelEmail = email != "" && !knownEmails[email]
	novelPhone = phoneNumber != "" && !knownPhones[phoneNumber]
	return novelEmail, novelPhone
}

// buildIdentity flattens a cluster into the response shape: deduplicated
// field values with the canonical primary's own values listed first, and
// secondary ids oldest first.
func buildIdentity(primary *models.Contact, cluster []*models.Contact) *models.Identity {
	identity := &models.Identity{
		PrimaryContactID:    primary.ID,
		Emails:              []string{},
		PhoneNumbers:        []string{},
		SecondaryContactIDs: []int64{},
	}

	seenEmails := make(map[string]bool)
	seenPhones := make(map[string]bool)
	addFields := func(c *models.Contact) {
		if c.Email != nil && *c.Email != "" && !seenEmails[*c.Email] {
			seenEmails[*c.Email] = true
			identity.Emails = append(identity.Emails, *c.Email)
		}
		if c.PhoneNumber != nil && *c.PhoneNumber != "" && !seenPhones[*c.PhoneNumber] {
			seenPhones[*c.PhoneNumber] = true
			identity.PhoneNumbers = append(identity.PhoneNumbers, *c.PhoneNumber)
		}
	}

	addFields(primary)
	for _, c := range cluster {
		if c.ID == primary.ID {
			continue
		}
		identity.SecondaryContactIDs = append(identity.SecondaryContactIDs, c.ID)
		addFields(c)
	}
	return identity
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
