package main

import (
	"fmt"
	"os"

	"planning/internal/auth"
	"planning/internal/config"
	"planning/internal/db"
	"planning/internal/jobs"
	"planning/internal/logging"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "planning",
		Short:         "Personal calendar service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newViewCommand(), newBrowseCommand())
	return root
}

type app struct {
	cfg  config.Config
	db   *gorm.DB
	jobs *jobs.Repo
	auth *auth.Service
}

// bootstrap loads configuration, installs the logger and connects to the
// database. Migrations run when migrate is set.
func bootstrap(migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DatabaseDriver, err)
	}
	if migrate {
		if err := db.AutoMigrateAndIndexes(gdb); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	repo := &jobs.Repo{DB: gdb}
	svc := &auth.Service{
		DB:        gdb,
		JWT:       auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL),
		Federated: auth.NewFederatedVerifier(cfg.FederatedSecret),
		Resets:    repo,
		ResetTTL:  cfg.ResetTokenTTL,
	}
	return &app{cfg: cfg, db: gdb, jobs: repo, auth: svc}, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(true)
			if err != nil {
				return err
			}
			logging.Component("migrate").Info().Str("driver", a.cfg.DatabaseDriver).Msg("migrations applied")
			return nil
		},
	}
}
