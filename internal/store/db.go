package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection backing the local persistent store:
// conversation snapshot windows, the send outbox, and the
// pending-read-op ledger. One daemon owns the store at a time; the
// data-dir lock enforces that.
type DB struct {
	*sql.DB
}

// Open creates a SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{db}, nil
}

// ErrQuotaExceeded marks a write rejected because the store is out of
// space. Snapshot writes degrade and finally no-op on it.
var ErrQuotaExceeded = errors.New("store quota exceeded")

// quotaErr maps storage-full failures onto ErrQuotaExceeded so callers
// can classify them with errors.Is. Other errors pass through.
func quotaErr(err error) error {
	if err == nil {
		return nil
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrFull {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	if strings.Contains(err.Error(), "database or disk is full") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}
