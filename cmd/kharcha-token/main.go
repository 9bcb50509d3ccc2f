// Command kharcha-token issues a bearer token for a resident, creating the
// resident first when asked to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"kharcha/internal/auth"
	"kharcha/internal/cli"
	"kharcha/internal/config"
	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	email := flag.String("email", "", "resident email (required)")
	create := flag.Bool("create", false, "create the resident if missing")
	role := flag.String("role", string(core.RoleViewer), "role for a created resident: admin or viewer")
	allowEdit := flag.Bool("allow-edit", false, "grant edit rights to a created viewer")
	flag.Parse()

	cfg := config.Load()
	logger := cli.SetupLogger(log.ComponentApp, cfg)

	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(os.Stderr, "usage: kharcha-token -email someone@example.com [-create -role admin|viewer -allow-edit]")
		os.Exit(2)
	}
	cli.MustValidate(logger, cfg.Validate)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()
	u, err := repo.GetUserByEmail(ctx, *email)
	switch {
	case errors.Is(err, storage.ErrNotFound) && *create:
		profile := core.UserProfile{Email: *email, Role: core.Role(*role), AllowEdit: *allowEdit}
		if err := profile.Validate(); err != nil {
			logger.Error("Invalid resident", log.FieldError, err)
			os.Exit(1)
		}
		u, err = repo.CreateUser(ctx, profile)
		if err != nil {
			logger.Error("Failed to create resident", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Resident created", log.FieldUserID, u.ID, "role", u.Role)
	case errors.Is(err, storage.ErrNotFound):
		logger.Error("Resident not found; pass -create to add them", "email", *email)
		os.Exit(1)
	case err != nil:
		logger.Error("Failed to load resident", log.FieldError, err)
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).Generate(u.ID, u.Email)
	if err != nil {
		logger.Error("Failed to issue token", log.FieldError, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
