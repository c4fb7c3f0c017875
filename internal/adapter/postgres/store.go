package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Store implements the database ports on top of a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
