package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/sleuth/internal/ai"
	"github.com/myrjola/sleuth/internal/envstruct"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/interview"
	"github.com/myrjola/sleuth/internal/logging"
	"github.com/myrjola/sleuth/internal/repositories"
	"github.com/myrjola/sleuth/internal/sqlite"
	"github.com/spf13/cobra"
)

type config struct {
	SqliteURL        string        `env:"SLEUTH_SQLITE_URL" envDefault:"./sleuth.sqlite"`
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
}

// cli holds the dependencies of the commands. They are built lazily so that --help works without a database.
type cli struct {
	lookupEnv  func(string) (string, bool)
	newOracle  func(cfg config, logger *slog.Logger) ai.Oracle
	respondent respondent
	out        io.Writer
	logSink    io.Writer
	verbose    bool

	logger         *slog.Logger
	db             *sqlite.Database
	investigations *interview.Service
}

func newOpenAIOracle(cfg config, logger *slog.Logger) ai.Oracle {
	return ai.NewClient(ai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		MaxAttempts: cfg.OracleAttempts,
		BaseDelay:   cfg.OracleBaseDelay,
		CallTimeout: cfg.OracleTimeout,
	}, logger)
}

func (c *cli) setup(ctx context.Context) error {
	if c.investigations != nil {
		return nil
	}
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = logging.NewLogger(c.logSink, level, false)

	var cfg config
	if err := envstruct.Populate(&cfg, c.lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		return errors.New("OPENAI_API_KEY must be set")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, c.logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	c.db = db
	c.investigations = interview.NewService(
		repositories.NewSessionRepository(db, c.logger),
		c.newOracle(cfg, c.logger),
		interview.Config{
			FuseExtraction:   cfg.FuseExtraction,
			FuseTurn:         cfg.FuseTurn,
			Drift:            interview.DriftPolicy{Every: cfg.DriftEvery},
			DefaultThreshold: cfg.DefaultThreshold,
		},
		c.logger,
	)
	return nil
}

func (c *cli) close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sleuth",
		Short: "Interview a respondent about an interpersonal incident",
		Long: `sleuth reads an incident report, derives investigation goals and interviews you with multiple
choice questions until every goal is answered well enough. It finishes with a timeline and a verdict.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log oracle calls to stderr")

	root.AddCommand(
		c.investigateCmd(),
		c.listCmd(),
		c.resumeCmd(),
		c.pauseCmd(),
		c.analyzeCmd(),
	)
	return root
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	c := &cli{
		lookupEnv:  os.LookupEnv,
		newOracle:  newOpenAIOracle,
		respondent: promptRespondent{},
		out:        os.Stdout,
		logSink:    os.Stderr,
	}
	err := c.rootCmd().ExecuteContext(context.Background())
	if closeErr := c.close(); closeErr != nil {
		_, _ = fmt.Fprintln(os.Stderr, closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
