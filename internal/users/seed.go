package users

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SeedAdmin creates the single admin account from config if none exists yet.
// Called once on boot; a failure here should stop the process.
func SeedAdmin(ctx context.Context, repo *Repo, username, email, password string, log *zap.Logger) error {
	exists, err := repo.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if exists {
		log.Debug("admin account already present")
		return nil
	}

	admin := &User{Username: username, Email: email, Role: RoleAdmin}
	if err := admin.SetPassword(password); err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := repo.Create(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	log.Info("admin account created", zap.String("email", email))
	return nil
}
