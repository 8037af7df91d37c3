// Package postgres stores graphs in PostgreSQL via pgx. Definitions are kept
// whole in a JSONB column so a save is a single row write.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements hookgraph.Store using PostgreSQL via pgx.
type PGStore struct {
	db *pgxpool.Pool
}

// New creates a new PGStore backed by the given pgx connection pool.
func New(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}
