package storage

import (
	"context"

	"github.com/FooledKiwi/hitchmap-api/internal/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations applies pending SQL migrations, then verifies the schema.
// Safe to call on every startup.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := migrations.Run(ctx, pool); err != nil {
		return err
	}
	return migrations.CheckSchema(ctx, pool)
}
