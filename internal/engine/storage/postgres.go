package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/rendis/mapharvest/internal/model"
)

// PostgresStore mirrors snapshots into a shared PostgreSQL table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects and pings the database.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS mapharvest_businesses (
		search_key      TEXT    NOT NULL,
		position        INTEGER NOT NULL,
		name            TEXT,
		address         TEXT,
		domain          TEXT,
		website         TEXT,
		phone_number    TEXT,
		category        TEXT,
		location        TEXT,
		reviews_count   INTEGER,
		reviews_average NUMERIC(3,2),
		latitude        DOUBLE PRECISION,
		longitude       DOUBLE PRECISION,
		plus_code       TEXT,
		saved_at        TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (search_key, position)
	);

	CREATE INDEX IF NOT EXISTS idx_mapharvest_name ON mapharvest_businesses (name);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Name() string { return "postgres" }

// Save replaces the snapshot for key in a single transaction.
func (s *PostgresStore) Save(ctx context.Context, key string, businesses []model.Business) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM mapharvest_businesses WHERE search_key = $1`, key); err != nil {
		return "", fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO mapharvest_businesses (search_key, position, `+columnList()+`)
		VALUES ($1, $2, `+placeholdersFrom(3, len(model.Fields))+`)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, b := range businesses {
		args := append([]any{key, i}, sqlArgs(b)...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return "", fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return "postgres:mapharvest_businesses", nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
