// Package bookmark persists named viewports so an exploration session can
// be resumed: center, resolution, formula and seed, keyed by name in a
// local sqlite file.
package bookmark

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	name          TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	function_idx  INTEGER NOT NULL,
	center_x      REAL NOT NULL,
	center_y      REAL NOT NULL,
	resolution_x  REAL NOT NULL,
	resolution_y  REAL NOT NULL,
	seed_x        REAL NOT NULL,
	seed_y        REAL NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Bookmark is one saved viewport.
type Bookmark struct {
	Name          string
	SessionID     string
	FunctionIndex int
	CenterX       float64
	CenterY       float64
	ResolutionX   float64
	ResolutionY   float64
	SeedX         float64
	SeedY         float64
	CreatedAt     time.Time
}

// Store is a sqlite-backed bookmark collection.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the bookmark database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bookmark: path cannot be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("bookmark: open %s: %w", path, err)
	}

	// A single local writer; more connections just contend on the file lock.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bookmark: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bookmark: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the bookmark under its name.
func (s *Store) Save(ctx context.Context, b Bookmark) error {
	if b.Name == "" {
		return fmt.Errorf("bookmark: name cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks
			(name, session_id, function_idx, center_x, center_y,
			 resolution_x, resolution_y, seed_x, seed_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			session_id = excluded.session_id,
			function_idx = excluded.function_idx,
			center_x = excluded.center_x,
			center_y = excluded.center_y,
			resolution_x = excluded.resolution_x,
			resolution_y = excluded.resolution_y,
			seed_x = excluded.seed_x,
			seed_y = excluded.seed_y,
			created_at = CURRENT_TIMESTAMP`,
		b.Name, b.SessionID, b.FunctionIndex, b.CenterX, b.CenterY,
		b.ResolutionX, b.ResolutionY, b.SeedX, b.SeedY)
	if err != nil {
		return fmt.Errorf("bookmark: save %q: %w", b.Name, err)
	}
	return nil
}

// Load returns the bookmark saved under name, or sql.ErrNoRows.
func (s *Store) Load(ctx context.Context, name string) (Bookmark, error) {
	var b Bookmark
	err := s.db.QueryRowContext(ctx, `
		SELECT name, session_id, function_idx, center_x, center_y,
		       resolution_x, resolution_y, seed_x, seed_y, created_at
		FROM bookmarks WHERE name = ?`, name).
		Scan(&b.Name, &b.SessionID, &b.FunctionIndex, &b.CenterX, &b.CenterY,
			&b.ResolutionX, &b.ResolutionY, &b.SeedX, &b.SeedY, &b.CreatedAt)
	if err != nil {
		return Bookmark{}, fmt.Errorf("bookmark: load %q: %w", name, err)
	}
	return b, nil
}

// List returns all bookmarks, newest first.
func (s *Store) List(ctx context.Context) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, session_id, function_idx, center_x, center_y,
		       resolution_x, resolution_y, seed_x, seed_y, created_at
		FROM bookmarks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("bookmark: list: %w", err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.Name, &b.SessionID, &b.FunctionIndex,
			&b.CenterX, &b.CenterY, &b.ResolutionX, &b.ResolutionY,
			&b.SeedX, &b.SeedY, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("bookmark: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Delete removes the bookmark under name; deleting a missing name is not
// an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE name = ?`, name); err != nil {
		return fmt.Errorf("bookmark: delete %q: %w", name, err)
	}
	return nil
}
