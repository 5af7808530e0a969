package db

import (
	"context"
	"log/slog"

	"hrmportal/internal/domain/auth"
	"hrmportal/internal/platform/config"
)

// Seed creates the development accounts when RUN_SEED is on.
func Seed(ctx context.Context, store auth.StoreAPI, cfg config.Config) error {
	if !cfg.RunSeed {
		return nil
	}
	created, err := auth.Seed(ctx, store, auth.DefaultAccounts(), cfg.SeedPassword)
	if err != nil {
		return err
	}
	if created > 0 {
		slog.Info("seeded accounts", "count", created)
	}
	return nil
}
