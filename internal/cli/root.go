// Package cli defines the evidence command-line interface.
package cli

import (
	"context"
	"os"

	"github.com/RushiGong/ESPEI/adapters/db"
	"github.com/RushiGong/ESPEI/adapters/db/migrations"
	"github.com/RushiGong/ESPEI/adapters/npy"
	"github.com/RushiGong/ESPEI/app"
	"github.com/RushiGong/ESPEI/internal"
	"github.com/RushiGong/ESPEI/internal/bayesfactor"
	"github.com/RushiGong/ESPEI/internal/config"
	"github.com/RushiGong/ESPEI/internal/estimator"
	"github.com/RushiGong/ESPEI/ports"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

// env is what every subcommand needs once flags are parsed
type env struct {
	cfg    *config.Config
	logger *internal.Logger
	db     *sqlx.DB
}

type options struct {
	configFile string
	logLevel   string
	noStore    bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "evidence",
		Short:         "Harmonic-mean model evidence and Bayes factor comparison",
		Long:          `Estimates the marginal likelihood of models from MCMC log-likelihood chains and grades Bayes factors on the Kass & Raftery scale.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default $EVIDENCE_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: ERROR, WARN, INFO, DEBUG, TRACE")
	root.PersistentFlags().BoolVar(&opts.noStore, "no-store", false, "do not persist results even if a database is configured")

	root.AddCommand(
		newEstimateCmd(opts),
		newCompareCmd(opts),
		newClassifyCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// Execute runs the CLI against os.Args
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func setup(ctx context.Context, opts *options, withStore bool) (*env, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	path := opts.configFile
	if path == "" {
		path = os.Getenv("EVIDENCE_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	e := &env{cfg: cfg, logger: internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level))}
	if withStore && !opts.noStore && cfg.Database.DSN != "" {
		conn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		e.db = conn
		if _, err := migrations.NewMigrator(conn).Up(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return e, nil
}

// openStore connects without migrating
func openStore(ctx context.Context, e *env) (*sqlx.DB, error) {
	conn, err := db.Open(ctx, e.cfg.Database.Driver, e.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	e.db = conn
	return conn, nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	_ = e.logger.Sync()
}

func (e *env) service() (*app.EvidenceService, error) {
	precision := e.cfg.ArithmeticPrecision()
	est, err := estimator.NewHarmonicMean(precision)
	if err != nil {
		return nil, err
	}
	cls, err := bayesfactor.NewClassifier(precision)
	if err != nil {
		return nil, err
	}

	var repo ports.ResultRepository
	if e.db != nil {
		repo = db.NewResultRepository(e.db)
	}
	return app.NewEvidenceService(npy.NewLoader(e.logger), est, cls, repo, e.logger), nil
}
