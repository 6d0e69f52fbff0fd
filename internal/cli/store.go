package cli

import (
	"context"
	"fmt"

	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/store"
)

// openStore connects to cfg.DatabaseURL and brings the schema up to date.
func openStore(ctx context.Context, cfg config.Config) (*store.SQLStore, error) {
	db, dialect, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, dialect, store.Migrations(dialect)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return store.NewSQLStore(db, dialect), nil
}
