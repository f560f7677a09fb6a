/**
 * @description
 * Runtime schema introspection. Deployments of this engine migrate
 * incrementally, so optional tables and columns may be missing; every
 * downstream component treats absence as "feature not present" and degrades
 * to the conservative default.
 *
 * HasTable and HasColumn query the catalog per call and are intentionally
 * uncached (schema only changes during deploys). DetectCapabilities runs the
 * probes once at startup and folds the answers into a SchemaCapabilities
 * struct that is injected into the components.
 */
package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanforge/engine-service/internal/domain"
)

// SchemaProbe answers existence questions about the current schema.
type SchemaProbe struct {
	db *pgxpool.Pool
}

// NewSchemaProbe creates a probe bound to the given pool.
func NewSchemaProbe(db *pgxpool.Pool) *SchemaProbe {
	return &SchemaProbe{db: db}
}

// HasTable reports whether a table exists in the public schema.
func (p *SchemaProbe) HasTable(ctx context.Context, name string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = $1
        )
    `
	var exists bool
	if err := p.db.QueryRow(ctx, query, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// HasColumn reports whether a column exists on a table in the public schema.
func (p *SchemaProbe) HasColumn(ctx context.Context, table, column string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.columns
            WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
        )
    `
	var exists bool
	if err := p.db.QueryRow(ctx, query, table, column).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// DetectCapabilities probes every optional table and column the engine knows
// about. Probe failures degrade the capability to false rather than aborting
// startup.
func (p *SchemaProbe) DetectCapabilities(ctx context.Context, logger *slog.Logger) domain.SchemaCapabilities {
	table := func(name string) bool {
		ok, err := p.HasTable(ctx, name)
		if err != nil {
			logger.Debug("schema probe failed, treating table as absent", "table", name, "error", err)
			return false
		}
		return ok
	}
	column := func(tableName, columnName string) bool {
		ok, err := p.HasColumn(ctx, tableName, columnName)
		if err != nil {
			logger.Debug("schema probe failed, treating column as absent", "table", tableName, "column", columnName, "error", err)
			return false
		}
		return ok
	}

	caps := domain.SchemaCapabilities{}

	caps.UsersTable = table("users")
	if caps.UsersTable {
		caps.UserRoleColumn = column("users", "role")
		caps.UserOnboardedColumn = column("users", "payment_onboarded")
		caps.UserLegacyChargesFlag = column("users", "charges_enabled")
	}

	caps.ProfilesTable = table("profiles")
	if caps.ProfilesTable {
		caps.ProfileCompleteColumn = column("profiles", "is_profile_complete")
		caps.ProfileActiveColumn = column("profiles", "active")
		caps.ProfileChargesMirror = column("profiles", "stripe_charges_enabled")
	}

	caps.GalleryTable = table("gallery_images")

	caps.ProductsTable = table("products")
	if caps.ProductsTable {
		caps.ProductPublishedColumn = column("products", "published")
	}

	caps.ConnectivityTable = table("payment_connectivity")

	caps.MembershipsTable = table("memberships")
	if caps.MembershipsTable {
		caps.MembershipCancelColumn = column("memberships", "cancel_at_period_end")
	}

	caps.NotificationsTable = table("notifications")
	caps.EmailAttemptsTable = table("email_delivery_attempts")

	return caps
}
