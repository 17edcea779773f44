package dedup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// undefined_table
const pgUndefinedTable = "42P01"

type postgresBackend struct {
	dsn   string
	table string
}

// Location hides the password.
func (b *postgresBackend) Location() string {
	u, err := url.Parse(b.dsn)
	if err != nil || u.Host == "" {
		return "postgres/" + b.table
	}
	return fmt.Sprintf("postgres://%s%s/%s", u.Host, u.Path, b.table)
}

func (b *postgresBackend) connect(ctx context.Context) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(b.dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	// Transaction-mode poolers (PgBouncer, Supabase) do not keep prepared statements.
	cfg.DefaultQueryExecMode = pgx.QueryExecModeExec

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return conn, nil
}

func (b *postgresBackend) ident() string {
	return pgx.Identifier{b.table}.Sanitize()
}

func (b *postgresBackend) Read(ctx context.Context) ([]Entry, error) {
	conn, err := b.connect(ctx)
	if err != nil {
		return nil, ioErr("load", b.Location(), err)
	}
	defer conn.Close(context.Background())

	rows, err := conn.Query(ctx, fmt.Sprintf(
		`SELECT identity, title, url, published_marker, category, apply_url, description, first_seen
		 FROM %s ORDER BY first_seen, identity`, b.ident()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return nil, nil
		}
		return nil, ioErr("load", b.Location(), err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var published, category, applyURL, description pgtype.Text
		var firstSeen pgtype.Timestamptz
		if err := rows.Scan(&e.Identity, &e.Title, &e.URL, &published, &category, &applyURL, &description, &firstSeen); err != nil {
			return nil, corruptErr("load", b.Location(), err)
		}
		e.PublishedMarker = published.String
		e.Category = category.String
		e.ApplyURL = applyURL.String
		e.Description = description.String
		if firstSeen.Valid {
			e.FirstSeen = firstSeen.Time.UTC()
		}
		if strings.TrimSpace(e.Identity) == "" {
			return nil, corruptErr("load", b.Location(), errors.New("row with empty identity"))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return nil, nil
		}
		return nil, ioErr("load", b.Location(), err)
	}
	return entries, nil
}

func (b *postgresBackend) Commit(ctx context.Context, _, pending []Entry) error {
	conn, err := b.connect(ctx)
	if err != nil {
		return ioErr("flush", b.Location(), err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		identity TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		published_marker TEXT,
		category TEXT,
		apply_url TEXT,
		description TEXT,
		first_seen TIMESTAMPTZ NOT NULL
	)`, b.ident()))
	if err != nil {
		return ioErr("flush", b.Location(), err)
	}
	if len(pending) == 0 {
		return nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return ioErr("flush", b.Location(), err)
	}
	defer tx.Rollback(context.Background())

	query := fmt.Sprintf(`
		INSERT INTO %s (identity, title, url, published_marker, category, apply_url, description, first_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (identity) DO NOTHING`, b.ident())

	batch := &pgx.Batch{}
	for _, e := range pending {
		batch.Queue(query, e.Identity, e.Title, e.URL, e.PublishedMarker, e.Category,
			e.ApplyURL, e.Description, e.FirstSeen.UTC())
	}
	br := tx.SendBatch(ctx, batch)
	for range pending {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return ioErr("flush", b.Location(), err)
		}
	}
	if err := br.Close(); err != nil {
		return ioErr("flush", b.Location(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return ioErr("flush", b.Location(), err)
	}
	return nil
}
