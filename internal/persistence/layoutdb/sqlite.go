// Package layoutdb stores finished layouts: the exported pieces of a
// board at save time, so an external client can restore or review a
// run. It is a read-model on the side of the engine; losing it never
// affects live placement.
package layoutdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"gridscore.app/internal/engine"
)

type Store struct {
	db *sql.DB
}

// LayoutMeta is the list view of a saved layout.
type LayoutMeta struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	SavedAt    string `json:"saved_at"`
	Generation uint64 `json:"generation"`
	TotalScore int    `json:"total_score"`
}

// Layout is a full saved layout.
type Layout struct {
	LayoutMeta
	Pieces []engine.ExportedPiece `json:"pieces"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS layouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		saved_at TEXT NOT NULL,
		generation INTEGER NOT NULL,
		total_score INTEGER NOT NULL,
		pieces_json TEXT NOT NULL
	);`)
	return err
}

// Save persists one layout and returns its id.
func (s *Store) Save(name string, generation uint64, totalScore int, pieces []engine.ExportedPiece) (int64, error) {
	if name == "" {
		name = "layout"
	}
	pj, err := json.Marshal(pieces)
	if err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO layouts (name, saved_at, generation, total_score, pieces_json) VALUES (?, ?, ?, ?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339), int64(generation), totalScore, string(pj),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns saved layouts, newest first.
func (s *Store) List(limit int) ([]LayoutMeta, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, name, saved_at, generation, total_score FROM layouts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LayoutMeta
	for rows.Next() {
		var m LayoutMeta
		var gen int64
		if err := rows.Scan(&m.ID, &m.Name, &m.SavedAt, &gen, &m.TotalScore); err != nil {
			return nil, err
		}
		m.Generation = uint64(gen)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get loads one layout by id.
func (s *Store) Get(id int64) (Layout, error) {
	var l Layout
	var gen int64
	var pj string
	err := s.db.QueryRow(
		`SELECT id, name, saved_at, generation, total_score, pieces_json FROM layouts WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.SavedAt, &gen, &l.TotalScore, &pj)
	if err != nil {
		return Layout{}, err
	}
	l.Generation = uint64(gen)
	if err := json.Unmarshal([]byte(pj), &l.Pieces); err != nil {
		return Layout{}, fmt.Errorf("layout %d: %w", id, err)
	}
	return l, nil
}
