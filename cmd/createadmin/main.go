// Command createadmin bootstraps the first administrator.  It creates the
// admin group and an admin user in it, and does nothing when the group
// already exists.
package main

import (
	"context"
	"os"
	"time"

	"github.com/iliyamo/user-management/internal/config"
	"github.com/iliyamo/user-management/internal/database"
	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/repository"
	"github.com/iliyamo/user-management/internal/service"
	"github.com/iliyamo/user-management/internal/utils"
)

func main() {
	cfg := config.Load()
	admin := config.LoadAdminConfig()
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := run(ctx, cfg, admin, log); err != nil {
		log.Error(ctx, "createadmin failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, admin config.AdminConfig, log logging.Logger) error {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	codec, err := utils.NewTokenCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	if err != nil {
		return err
	}
	// no tokens are redeemed here, so revocations can stay in memory
	auth := service.NewAuthService(cfg, repository.NewUserRepo(db), repository.NewGroupRepo(db),
		utils.NewPasswordHasher(cfg.BcryptCost), service.NewTokenIssuer(codec, cfg),
		repository.NewMemoryRevocationStore(), nil, log)

	u, created, err := auth.BootstrapAdmin(ctx, service.SignupInput{
		Username:    admin.Username,
		Email:       admin.Email,
		PhoneNumber: admin.PhoneNumber,
		Password:    admin.Password,
		GroupName:   admin.Group,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Info(ctx, "group already exists, nothing to do", "group", admin.Group)
		return nil
	}
	log.Info(ctx, "admin created", "user_id", u.ID, "username", u.Username, "group_id", u.GroupID)
	return nil
}
