package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Sentinel errors. Callers check these with errors.Is.
var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("repository: contact not found")

	// ErrConflict is returned when concurrent transactions collide
	// (serialization failure, deadlock, or a locked sqlite database).
	// The whole resolve operation is safe to retry.
	ErrConflict = errors.New("repository: write conflict")

	// ErrUnavailable is returned when the storage backend cannot be reached.
	ErrUnavailable = errors.New("repository: storage unavailable")
)

// postgres SQLSTATE codes worth retrying as a unit.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// mapErr translates driver errors into the package sentinels so the service
// layer never depends on a specific storage engine.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case sqlite3.ErrCantOpen:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		if pqErr.Code.Class() == "08" { // connection exceptions
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	return err
}
