package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/joho/godotenv"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/envstruct"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/interview"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/pprofserver"
	"github.com/myrjola/sleuth/internal/repositories"
	"github.com/myrjola/sleuth/internal/sqlite"
)

type application struct {
	logger         *slog.Logger
	investigations *interview.Service
	sessionManager *scs.SessionManager
	db             *sqlite.Database
	secureCookies  bool
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"SLEUTH_ADDR" envDefault:"localhost:4000"`
	// PprofAddr is the address for the pprof server. It is disabled when empty.
	PprofAddr string `env:"SLEUTH_PPROF_ADDR" envDefault:""`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ephemeral in-memory database.
	SqliteURL     string `env:"SLEUTH_SQLITE_URL" envDefault:"./sleuth.sqlite"`
	SecureCookies bool   `env:"SLEUTH_SECURE_COOKIES" envDefault:"true"`

	OpenAIAPIKey     string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIBaseURL    string        `env:"SLEUTH_OPENAI_BASE_URL" envDefault:""`
	OpenAIModel      string        `env:"SLEUTH_OPENAI_MODEL" envDefault:"gpt-4o"`
	OracleAttempts   int           `env:"SLEUTH_ORACLE_MAX_ATTEMPTS" envDefault:"3"`
	OracleBaseDelay  time.Duration `env:"SLEUTH_ORACLE_BASE_DELAY" envDefault:"1s"`
	OracleTimeout    time.Duration `env:"SLEUTH_ORACLE_TIMEOUT" envDefault:"90s"`
	FuseExtraction   bool          `env:"SLEUTH_FUSE_EXTRACTION" envDefault:"true"`
	FuseTurn         bool          `env:"SLEUTH_FUSE_TURN" envDefault:"true"`
	DriftEvery       int           `env:"SLEUTH_DRIFT_EVERY" envDefault:"0"`
	DefaultThreshold int           `env:"SLEUTH_DEFAULT_CONFIDENCE_THRESHOLD" envDefault:"90"`
	// RequestTimeout bounds the handlers. Every request may make several oracle calls.
	RequestTimeout time.Duration `env:"SLEUTH_REQUEST_TIMEOUT" envDefault:"5m"`
}

func newApplication(cfg config, db *sqlite.Database, oracle ai.Oracle, logger *slog.Logger) *application {
	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite, 24*time.Hour) //nolint:mnd // daily
	sessionManager.Lifetime = 12 * time.Hour                                              //nolint:mnd // half a day
	sessionManager.Cookie.Secure = cfg.SecureCookies

	investigations := interview.NewService(
		repositories.NewSessionRepository(db, logger),
		oracle,
		interview.Config{
			FuseExtraction:   cfg.FuseExtraction,
			FuseTurn:         cfg.FuseTurn,
			Drift:            interview.DriftPolicy{Every: cfg.DriftEvery},
			DefaultThreshold: cfg.DefaultThreshold,
		},
		logger,
	)

	return &application{
		logger:         logger,
		investigations: investigations,
		sessionManager: sessionManager,
		db:             db,
		secureCookies:  cfg.SecureCookies,
	}
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", errors.SlogError(closeErr))
		}
	}()

	oracle := ai.NewClient(ai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		MaxAttempts: cfg.OracleAttempts,
		BaseDelay:   cfg.OracleBaseDelay,
		CallTimeout: cfg.OracleTimeout,
	}, logger)

	if cfg.PprofAddr != "" {
		pprofserver.Launch(ctx, cfg.PprofAddr, logger)
	}

	app := newApplication(cfg, db, oracle, logger)
	return app.configureAndStartServer(ctx, cfg.Addr, cfg.RequestTimeout)
}

func (cfg config) validate() error {
	if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		return errors.New("OPENAI_API_KEY must be set")
	}
	if cfg.DriftEvery < 0 {
		return errors.New("SLEUTH_DRIFT_EVERY must not be negative", slog.Int("value", cfg.DriftEvery))
	}
	return nil
}

func main() {
	ctx := context.Background()
	bootLogger := logging.NewLogger(os.Stdout, slog.LevelDebug, false)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		bootLogger.LogAttrs(ctx, slog.LevelError, "failed to load .env", errors.SlogError(err))
		os.Exit(1)
	}

	// SLEUTH_JSON_LOGS is read before the rest of the config so that config errors are logged in the right format.
	logger := logging.NewLogger(os.Stdout, slog.LevelDebug, os.Getenv("SLEUTH_JSON_LOGS") == "true")

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
