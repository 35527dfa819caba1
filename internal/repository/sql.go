package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sahelii/bitespeed-identity-reconciliation/internal/models"
)

const contactColumns = `id, phone_number, email, linked_id, link_precedence, created_at, updated_at, deleted_at`

// SQL is the production ContactRepository backed by database/sql. The $N
// placeholder style is understood by both lib/pq and sqlite.
type SQL struct {
	db *sql.DB
}

// NewSQL returns a ContactRepository over an open connection pool.
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// InTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back on error or panic.
func (r *SQL) InTx(ctx context.Context, fn func(ContactTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) FindMatching(ctx context.Context, email, phoneNumber string) ([]*models.Contact, error) {
	var conds []string
	var args []any
	if email != "" {
		args = append(args, email)
		conds = append(conds, fmt.Sprintf("email = $%d", len(args)))
	}
	if phoneNumber != "" {
		args = append(args, phoneNumber)
		conds = append(conds, fmt.Sprintf("phone_number = $%d", len(args)))
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE (%s) AND deleted_at IS NULL ORDER BY created_at ASC, id ASC`,
		contactColumns, strings.Join(conds, " OR "))

	return t.queryContacts(ctx, query, args...)
}

func (t *sqlTx) FindByID(ctx context.Context, id int64) (*models.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE id = $1 AND deleted_at IS NULL`, contactColumns)
	contacts, err := t.queryContacts(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, ErrNotFound
	}
	return contacts[0], nil
}

func (t *sqlTx) FindCluster(ctx context.Context, primaryID int64) ([]*models.Contact, error) {
	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE (id = $1 OR linked_id = $2) AND deleted_at IS NULL ORDER BY created_at ASC, id ASC`,
		contactColumns)
	return t.queryContacts(ctx, query, primaryID, primaryID)
}

func (t *sqlTx) Create(ctx context.Context, p CreateParams) (*models.Contact, error) {
	query := `INSERT INTO contacts (phone_number, email, linked_id, link_precedence, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`

	now := time.Now().UTC()
	var id int64
	if err := t.tx.QueryRowContext(ctx, query, p.PhoneNumber, p.Email, p.LinkedID, p.LinkPrecedence, now).Scan(&id); err != nil {
		return nil, mapErr(err)
	}

	return &models.Contact{
		ID:             id,
		PhoneNumber:    p.PhoneNumber,
		Email:          p.Email,
		LinkedID:       p.LinkedID,
		LinkPrecedence: p.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (t *sqlTx) Demote(ctx context.Context, ids []int64, primaryID int64) error {
	if len(ids) == 0 {
		return nil
	}

	args := []any{primaryID, time.Now().UTC()}
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE contacts SET link_precedence = 'secondary', linked_id = $1, updated_at = $2 WHERE id IN (%s)`,
		strings.Join(placeholders, ", "))

	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return mapErr(err)
	}
	return nil
}

func (t *sqlTx) Repoint(ctx context.Context, oldPrimaryID, newPrimaryID int64) error {
	query := `UPDATE contacts SET linked_id = $1, updated_at = $2 WHERE linked_id = $3 AND deleted_at IS NULL`
	if _, err := t.tx.ExecContext(ctx, query, newPrimaryID, time.Now().UTC(), oldPrimaryID); err != nil {
		return mapErr(err)
	}
	return nil
}

func (t *sqlTx) queryContacts(ctx context.Context, query string, args ...any) ([]*models.Contact, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return contacts, nil
}

func scanContact(rows *sql.Rows) (*models.Contact, error) {
	c := &models.Contact{}
	var phone, email sql.NullString
	var linkedID sql.NullInt64
	var deletedAt sql.NullTime

	if err := rows.Scan(&c.ID, &phone, &email, &linkedID, &c.LinkPrecedence, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return nil, mapErr(err)
	}

	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	if email.Valid {
		c.Email = &email.String
	}
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return c, nil
}
