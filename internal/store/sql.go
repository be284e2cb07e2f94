package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/livetemplate/slidestudio"
)

// deckKey is the row id of the single deck a database holds.
const deckKey = "default"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS decks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS slides (
		deck_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		title TEXT NOT NULL,
		code TEXT NOT NULL,
		notes TEXT NOT NULL,
		transition TEXT NOT NULL,
		PRIMARY KEY (deck_id, id)
	)`,
}

// SQLStore keeps the deck in a SQL database: sqlite through modernc.org/sqlite
// or PostgreSQL through lib/pq.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL connects and creates the schema if needed. driver is "sqlite" or
// "postgres"; dsn is a file path for sqlite.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: %s: connection string is required", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: %s: failed to open database: %w", driver, err)
	}
	if driver == "sqlite" {
		// One writer; avoids SQLITE_BUSY between the autosaver and loads.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: %s: failed to connect: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: create schema: %w", driver, err)
		}
	}
	return s, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Load(ctx context.Context) (*slidestudio.Deck, error) {
	var d slidestudio.Deck
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT title FROM decks WHERE id = ?`), deckKey).Scan(&d.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load deck: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, title, code, notes, transition FROM slides WHERE deck_id = ? ORDER BY position`), deckKey)
	if err != nil {
		return nil, fmt.Errorf("store: load slides: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sl slidestudio.Slide
		if err := rows.Scan(&sl.ID, &sl.Title, &sl.Code, &sl.Notes, &sl.Transition); err != nil {
			return nil, fmt.Errorf("store: scan slide: %w", err)
		}
		d.Slides = append(d.Slides, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load slides: %w", err)
	}
	return &d, nil
}

// Save replaces the stored deck in one transaction.
func (s *SQLStore) Save(ctx context.Context, d *slidestudio.Deck) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO decks (id, title, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`),
		deckKey, d.Title, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: save deck: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM slides WHERE deck_id = ?`), deckKey); err != nil {
		return fmt.Errorf("store: clear slides: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO slides (deck_id, position, id, title, code, notes, transition) VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()
	for i, sl := range d.Slides {
		if _, err := stmt.ExecContext(ctx, deckKey, i, sl.ID, sl.Title, sl.Code, sl.Notes, sl.Transition); err != nil {
			return fmt.Errorf("store: save slide %s: %w", sl.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
