package db

import (
	"fmt"

	"planning/internal/auth"
	"planning/internal/event"
	"planning/internal/jobs"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY and keeps
		// :memory: databases alive for the process
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&auth.RevokedToken{},
		&auth.PasswordReset{},
		&event.Event{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	// Federated identity: unique per provider when linked
	stmts := []string{
		`create unique index if not exists uq_users_provider_subject on users(provider, provider_subject) where provider_subject <> '';`,
		`create index if not exists idx_events_user_start on events(user_id, start_date);`,
		`create index if not exists idx_events_user_color on events(user_id, color);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
		`create index if not exists idx_revoked_expires on revoked_tokens(expires_at);`,
		`create index if not exists idx_resets_expires on password_resets(expires_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
