package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lyftr/internal/config"
	"lyftr/internal/constants"
	"lyftr/internal/logger"
	"lyftr/internal/messages"
	"lyftr/pkg/retry"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
	Policy retry.Policy
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
		Policy: retry.DefaultPolicy(),
	}
}

// InitSQLite opens the configured database file, retrying while it is
// unavailable (for example a volume that is still being mounted).
func (dc *DatabaseConnector) InitSQLite(ctx context.Context) (*sql.DB, error) {
	path, err := config.SQLitePath(dc.Config.Database.URL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.StoreOpenTimeout)
	defer cancel()

	var db *sql.DB
	err = retry.Retry(ctx, dc.Policy, func() error {
		var openErr error
		db, openErr = messages.OpenDB(ctx, path)
		return openErr
	}, func(attempt int, err error, nextDelay time.Duration) {
		dc.Logger.WarnwCtx(ctx, "sqlite open failed, retrying",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	dc.Logger.InfowCtx(ctx, "sqlite connected", "path", path)
	return db, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(db *sql.DB) []error {
	var errs []error

	if db != nil {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite close error: %w", err))
		}
	}

	return errs
}
