package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rendis/mapharvest/internal/model"
)

// SQLiteStore keeps one snapshot per search term in a local database, for
// querying collected data with SQL tools.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSQLiteSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		search_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT,
		address TEXT,
		domain TEXT,
		website TEXT,
		phone_number TEXT,
		category TEXT,
		location TEXT,
		reviews_count INTEGER,
		reviews_average REAL,
		latitude REAL,
		longitude REAL,
		plus_code TEXT,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (search_key, position)
	);
	CREATE INDEX IF NOT EXISTS idx_businesses_name ON businesses(name);
	CREATE INDEX IF NOT EXISTS idx_businesses_coords ON businesses(latitude, longitude);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// Save replaces the snapshot for key in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, key string, businesses []model.Business) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM businesses WHERE search_key = ?`, key); err != nil {
		return "", fmt.Errorf("clearing snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO businesses (search_key, position, `+columnList()+`)
		VALUES (?,?,`+placeholders(len(model.Fields))+`)`)
	if err != nil {
		return "", fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	for i, b := range businesses {
		args := append([]any{key, i}, sqlArgs(b)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return "", fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing tx: %w", err)
	}
	return s.path, nil
}

// Load returns the snapshot for key in saved order.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]model.Business, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columnList()+` FROM businesses WHERE search_key = ? ORDER BY position`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Keys lists the search terms stored in the database.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT search_key FROM businesses ORDER BY search_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
