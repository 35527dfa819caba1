package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/database"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/models"
	"github.com/sahelii/bitespeed-identity-reconciliation/internal/repository"
)

func openRepo(t *testing.T) (*repository.SQL, *database.DB) {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.MigrateUp())
	return repository.NewSQL(db.Conn), db
}

func strp(s string) *string { return &s }

func TestCreateAndFindByID(t *testing.T) {
	repo, _ := openRepo(t)
	ctx := context.Background()

	var created *models.Contact
	err := repo.InTx(ctx, func(tx repository.ContactTx) error {
		var err error
		created, err = tx.Create(ctx, repository.CreateParams{
			Email:          strp("first@example.com"),
			PhoneNumber:    strp("+100"),
			LinkPrecedence: models.LinkPrecedencePrimary,
		})
		return err
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	err = repo.InTx(ctx, func(tx repository.ContactTx) error {
		got, err := tx.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		require.NotNil(t, got.Email)
		assert.Equal(t, "first@example.com", *got.Email)
		require.NotNil(t, got.PhoneNumber)
		assert.Equal(t, "+100", *got.PhoneNumber)
		assert.Equal(t, models.LinkPrecedencePrimary, got.LinkPrecedence)
		assert.Nil(t, got.LinkedID)
		assert.Nil(t, got.DeletedAt)

		_, err = tx.FindByID(ctx, created.ID+1000)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestFindMatchingMatchesEitherFieldOldestFirst(t *testing.T) {
	repo, db := openRepo(t)
	ctx := context.Background()

	var a, b, c *models.Contact
	err := repo.InTx(ctx, func(tx repository.ContactTx) error {
		var err error
		if a, err = tx.Create(ctx, repository.CreateParams{Email: strp("a@example.com"), PhoneNumber: strp("+1"), LinkPrecedence: models.LinkPrecedencePrimary}); err != nil {
			return err
		}
		if b, err = tx.Create(ctx, repository.CreateParams{Email: strp("b@example.com"), PhoneNumber: strp("+2"), LinkPrecedence: models.LinkPrecedencePrimary}); err != nil {
			return err
		}
		c, err = tx.Create(ctx, repository.CreateParams{Email: strp("c@example.com"), PhoneNumber: strp("+3"), LinkPrecedence: models.LinkPrecedencePrimary})
		return err
	})
	require.NoError(t, err)

	err = repo.InTx(ctx, func(tx repository.ContactTx) error {
		// One field from a, the other from c: both match, a (older) first.
		got, err := tx.FindMatching(ctx, "a@example.com", "+3")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, a.ID, got[0].ID)
		assert.Equal(t, c.ID, got[1].ID)

		got, err = tx.FindMatching(ctx, "", "+2")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, b.ID, got[0].ID)
		return nil
	})
	require.NoError(t, err)

	// Soft-deleted records are invisible to every resolution query.
	_, err = db.Conn.Exec(`UPDATE contacts SET deleted_at = CURRENT_TIMESTAMP WHERE id = $1`, b.ID)
	require.NoError(t, err)

	err = repo.InTx(ctx, func(tx repository.ContactTx) error {
		got, err := tx.FindMatching(ctx, "b@example.com", "+2")
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = tx.FindByID(ctx, b.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestDemoteRepointAndCluster(t *testing.T) {
	repo, _ := openRepo(t)
	ctx := context.Background()

	var a, b, s *models.Contact
	err := repo.InTx(ctx, func(tx repository.ContactTx) error {
		var err error
		if a, err = tx.Create(ctx, repository.CreateParams{Email: strp("a@example.com"), LinkPrecedence: models.LinkPrecedencePrimary}); err != nil {
			return err
		}
		if b, err = tx.Create(ctx, repository.CreateParams{Email: strp("b@example.com"), LinkPrecedence: models.LinkPrecedencePrimary}); err != nil {
			return err
		}
		s, err = tx.Create(ctx, repository.CreateParams{Email: strp("s@example.com"), LinkPrecedence: models.LinkPrecedenceSecondary, LinkedID: &b.ID})
		return err
	})
	require.NoError(t, err)

	err = repo.InTx(ctx, func(tx repository.ContactTx) error {
		if err := tx.Demote(ctx, []int64{b.ID}, a.ID); err != nil {
			return err
		}
		return tx.Repoint(ctx, b.ID, a.ID)
	})
	require.NoError(t, err)

	err = repo.InTx(ctx, func(tx repository.ContactTx) error {
		cluster, err := tx.FindCluster(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, cluster, 3)
		assert.Equal(t, a.ID, cluster[0].ID)

		for _, c := range cluster[1:] {
			assert.Equal(t, models.LinkPrecedenceSecondary, c.LinkPrecedence)
			require.NotNil(t, c.LinkedID)
			assert.Equal(t, a.ID, *c.LinkedID)
		}

		demoted, err := tx.FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, demoted.UpdatedAt.After(demoted.CreatedAt) || demoted.UpdatedAt.Equal(demoted.CreatedAt))

		moved, err := tx.FindByID(ctx, s.ID)
		require.NoError(t, err)
		require.NotNil(t, moved.LinkedID)
		assert.Equal(t, a.ID, *moved.LinkedID)
		return nil
	})
	require.NoError(t, err)
}

func TestInTxRollsBackOnError(t *testing.T) {
	repo, _ := openRepo(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(tx repository.ContactTx) error {
		if _, err := tx.Create(ctx, repository.CreateParams{Email: strp("ghost@example.com"), LinkPrecedence: models.LinkPrecedencePrimary}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = repo.InTx(ctx, func(tx repository.ContactTx) error {
		got, err := tx.FindMatching(ctx, "ghost@example.com", "")
		require.NoError(t, err)
		assert.Empty(t, got)
		return nil
	})
	require.NoError(t, err)
}
