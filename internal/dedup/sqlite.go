package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteBackend struct {
	path  string
	table string
}

func (b *sqliteBackend) Location() string { return b.path }

func (b *sqliteBackend) quoted() string {
	return `"` + strings.ReplaceAll(b.table, `"`, `""`) + `"`
}

func (b *sqliteBackend) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", b.path)
	if err != nil {
		return nil, err
	}
	//pragmas are per connection
	db.SetMaxOpenConns(1)
	return db, nil
}

// classifySQLite maps "not a database" and "malformed" results to corrupt.
func classifySQLite(op, location string, err error) *StoreError {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return corruptErr(op, location, err)
		}
	}
	return ioErr(op, location, err)
}

func (b *sqliteBackend) Read(ctx context.Context) ([]Entry, error) {
	if _, err := os.Stat(b.path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioErr("load", b.path, err)
	}

	db, err := b.open()
	if err != nil {
		return nil, ioErr("load", b.path, err)
	}
	defer db.Close()

	var n int
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, b.table).Scan(&n)
	if err != nil {
		return nil, classifySQLite("load", b.path, err)
	}
	if n == 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT identity, title, url, published_marker, category, apply_url, description, first_seen
		 FROM %s ORDER BY rowid`, b.quoted()))
	if err != nil {
		return nil, classifySQLite("load", b.path, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var published, category, applyURL, description, firstSeen sql.NullString
		if err := rows.Scan(&e.Identity, &e.Title, &e.URL, &published, &category, &applyURL, &description, &firstSeen); err != nil {
			return nil, corruptErr("load", b.path, err)
		}
		e.PublishedMarker = published.String
		e.Category = category.String
		e.ApplyURL = applyURL.String
		e.Description = description.String
		if err := fillEntry(&e, firstSeen.String); err != nil {
			return nil, corruptErr("load", b.path, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite("load", b.path, err)
	}
	return entries, nil
}

func (b *sqliteBackend) Commit(ctx context.Context, _, pending []Entry) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return ioErr("flush", b.path, err)
	}

	db, err := b.open()
	if err != nil {
		return ioErr("flush", b.path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return classifySQLite("flush", b.path, err)
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		identity TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		published_marker TEXT,
		category TEXT,
		apply_url TEXT,
		description TEXT,
		first_seen TEXT NOT NULL
	)`, b.quoted()))
	if err != nil {
		return classifySQLite("flush", b.path, err)
	}
	if len(pending) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLite("flush", b.path, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (identity, title, url, published_marker, category, apply_url, description, first_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, b.quoted()))
	if err != nil {
		return classifySQLite("flush", b.path, err)
	}
	defer stmt.Close()

	for _, e := range pending {
		_, err := stmt.ExecContext(ctx, e.Identity, e.Title, e.URL, e.PublishedMarker, e.Category,
			e.ApplyURL, e.Description, e.FirstSeen.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return classifySQLite("flush", b.path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classifySQLite("flush", b.path, err)
	}
	return nil
}
