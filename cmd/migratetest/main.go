package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/repositories"
	"github.com/myrjola/sleuth/internal/sqlite"
	"github.com/myrjola/sleuth/internal/testhelpers"
)

// migratetest runs the schema migration against a copy of the production database and checks that every stored
// investigation can still be decoded.
func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 30*time.Second) //nolint:mnd // large databases take a while to copy.
	defer cancel()

	if sqliteURL, ok = os.LookupEnv("SLEUTH_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "SLEUTH_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	var rows int
	if err = db.ReadOnly.QueryRowContext(ctx, `SELECT COUNT(*) FROM investigations`).Scan(&rows); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting investigations", errors.SlogError(err))
		os.Exit(1)
	}

	// List skips documents it cannot decode so a mismatch means that the migration broke some of them.
	sessions, err := repositories.NewSessionRepository(db, logger).List(ctx)
	if err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error listing investigations", errors.SlogError(err))
		os.Exit(1)
	}
	if len(sessions) != rows {
		logger.LogAttrs(ctx, slog.LevelError, "some investigations could not be decoded",
			slog.Int("rows", rows), slog.Int("decoded", len(sessions)))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "investigation count", slog.Int("count", rows))

	if err = db.Close(); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error closing database", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
}
