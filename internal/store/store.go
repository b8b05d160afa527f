// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// TimeFormat is how "Date Received" is stored. Plain text comparison on
// this layout orders chronologically, which is what compiled date
// predicates rely on.
const TimeFormat = "2006-01-02 15:04:05"

// Column names are quoted title case because that is how rule predicates
// address them.
const schema = `
CREATE TABLE IF NOT EXISTS emails (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	unique_id TEXT UNIQUE,
	"Subject" TEXT,
	"From" TEXT,
	"Date Received" DATETIME,
	"Message" TEXT
);
CREATE INDEX IF NOT EXISTS emails_date_received ON emails("Date Received");
`

// Email is one snapshot row. DateReceived carries UTC time in TimeFormat.
type Email struct {
	UniqueID     string
	Subject      string
	From         string
	DateReceived string
	Message      string
}

// DB is the local email snapshot, a single SQLite file.
type DB struct {
	db *sql.DB
}

// Open creates or opens the snapshot database at path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect snapshot %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot schema: %w", err)
	}
	return &DB{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Upsert inserts the row or refreshes it when unique_id already exists.
func (d *DB) Upsert(ctx context.Context, e Email) error {
	const q = `
INSERT INTO emails (unique_id, "Subject", "From", "Date Received", "Message")
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(unique_id) DO UPDATE SET
	"Subject" = excluded."Subject",
	"From" = excluded."From",
	"Date Received" = excluded."Date Received",
	"Message" = excluded."Message"`
	if _, err := d.db.ExecContext(ctx, q, e.UniqueID, e.Subject, e.From, e.DateReceived, e.Message); err != nil {
		return fmt.Errorf("upsert email %s: %w", e.UniqueID, err)
	}
	return nil
}

// Match returns rows satisfying the compiled predicate in insertion
// order. An empty predicate matches everything. The predicate must come
// from the rule compiler; Match never interpolates identifiers itself.
func (d *DB) Match(ctx context.Context, predicate string, values []any) ([]Email, error) {
	q := `SELECT unique_id, "Subject", "From", "Date Received", "Message" FROM emails`
	if predicate != "" {
		q += " WHERE " + predicate
	}
	q += " ORDER BY id"
	rows, err := d.db.QueryContext(ctx, q, values...)
	if err != nil {
		return nil, fmt.Errorf("query emails: %w", err)
	}
	defer rows.Close()

	var out []Email
	for rows.Next() {
		var uid, subject, from, received, message sql.NullString
		if err := rows.Scan(&uid, &subject, &from, &received, &message); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, Email{
			UniqueID:     uid.String,
			Subject:      subject.String,
			From:         from.String,
			DateReceived: received.String,
			Message:      message.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emails: %w", err)
	}
	return out, nil
}

// Count reports how many emails the snapshot holds.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM emails").Scan(&n); err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return n, nil
}
