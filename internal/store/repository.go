/**
 * @description
 * Shared plumbing for the data access layer. The repository is constructed
 * with the capability descriptor detected at startup so individual queries
 * can shape themselves to the columns that actually exist.
 */
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanforge/engine-service/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = domain.ErrNotFound

// PostgresRepository implements the engine's data access against Postgres.
type PostgresRepository struct {
	db   *pgxpool.Pool
	caps domain.SchemaCapabilities
}

// NewRepository creates a repository bound to the pool and the detected
// schema capabilities.
func NewRepository(db *pgxpool.Pool, caps domain.SchemaCapabilities) *PostgresRepository {
	return &PostgresRepository{db: db, caps: caps}
}

// Capabilities exposes the descriptor the repository was built with.
func (r *PostgresRepository) Capabilities() domain.SchemaCapabilities {
	return r.caps
}
