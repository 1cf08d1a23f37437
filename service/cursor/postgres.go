package cursor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the cursor mapping in a Postgres table, one row
// per watched address. Used when DATABASE_URL is configured; the
// per-row upsert gives the same per-address durability as the file
// store without whole-file rewrites.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the cursor table if it doesn't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS wallet_cursors (
			address    TEXT PRIMARY KEY,
			signature  TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure cursor schema: %w", err)
	}
	return nil
}

// Load returns the last processed signature for the address, or ""
// when the address has never been observed.
func (s *PostgresStore) Load(ctx context.Context, address string) (string, error) {
	const query = `SELECT signature FROM wallet_cursors WHERE address = $1`
	var signature string
	err := s.pool.QueryRow(ctx, query, address).Scan(&signature)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cursor for %s: %w", address, err)
	}
	return signature, nil
}

// Save upserts the cursor for one address.
func (s *PostgresStore) Save(ctx context.Context, address, signature string) error {
	const query = `
		INSERT INTO wallet_cursors (address, signature, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (address)
		DO UPDATE SET signature = EXCLUDED.signature, updated_at = now()`
	if _, err := s.pool.Exec(ctx, query, address, signature); err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", address, err)
	}
	return nil
}

// All returns the full cursor mapping.
func (s *PostgresStore) All(ctx context.Context) (map[string]string, error) {
	const query = `SELECT address, signature FROM wallet_cursors ORDER BY address`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var address, signature string
		if err := rows.Scan(&address, &signature); err != nil {
			return nil, fmt.Errorf("failed to scan cursor row: %w", err)
		}
		out[address] = signature
	}
	return out, rows.Err()
}

// Clear removes all cursors.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM wallet_cursors`); err != nil {
		return fmt.Errorf("failed to clear cursors: %w", err)
	}
	return nil
}
