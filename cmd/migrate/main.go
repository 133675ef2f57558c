// Command migrate runs and inspects catalog migration passes.
//
//	migrate passes
//	migrate run --pass pricing-absolute [--dry-run] [--all] [-o json]
//	migrate enqueue --pass default-variant
//	migrate failures [-n 50]
//	migrate runs [-n 20]
//
// A run that finishes with failed products exits with status 2 after printing
// its report; rerunning the same pass retries exactly those products.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/infra"
	"storefront/internal/migrator"
	"storefront/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var errPartialFailure = errors.New("some products failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errPartialFailure):
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env is resolved lazily so `migrate passes` works without a database.
type env struct {
	cfg *config.Config
	db  *gorm.DB
	rdb *redis.Client
	mig *bootstrap.Migration
}

func connect() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	infra.SetupLogger(cfg.Env, cfg.LogLevel)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	mig, err := bootstrap.NewMigration(cfg, db, rdb)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, rdb: rdb, mig: mig}, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.rdb.Close()
}

func newRootCmd(out io.Writer) *cobra.Command {
	var format string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Run and inspect catalog variant migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return checkFormat(format)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&format, "output", "o", formatText, "output format: text, json or yaml")

	root.AddCommand(
		newPassesCmd(out),
		newRunCmd(out, &format),
		newEnqueueCmd(out),
		newFailuresCmd(out, &format),
		newRunsCmd(out, &format),
	)
	return root
}

func newPassesCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "List the available passes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, p := range migrator.DefaultRegistry().All() {
				fmt.Fprintf(tw, "%s\t%s\n", p.Name(), p.Description())
			}
			return tw.Flush()
		},
	}
}

func newRunCmd(out io.Writer, format *string) *cobra.Command {
	var (
		pass   string
		dryRun bool
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pass over the whole catalog in this process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := migrator.DefaultRegistry().Lookup(pass); err != nil {
				return err
			}
			e, err := connect()
			if err != nil {
				return err
			}
			defer e.close()

			report, err := e.mig.Runner.Run(cmd.Context(), pass, migrator.RunOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			if err := renderReport(out, *format, report, all); err != nil {
				return err
			}
			if report.Summary.Failed > 0 {
				return errPartialFailure
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pass, "pass", "", "pass to run (see `migrate passes`)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().BoolVar(&all, "all", false, "list every product in the report, not only failures")
	_ = cmd.MarkFlagRequired("pass")
	return cmd
}

func newEnqueueCmd(out io.Writer) *cobra.Command {
	var (
		pass   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a pass for the server's worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			defer e.close()

			job := worker.MigrationJob{Pass: pass, DryRun: dryRun, RequestedBy: requester()}
			if err := worker.NewDispatcher(e.rdb).EnqueueMigration(cmd.Context(), job); err != nil {
				return err
			}
			log.Info().Str("pass", pass).Bool("dry_run", dryRun).Msg("migration job enqueued")
			fmt.Fprintf(out, "queued %s on %s\n", pass, worker.QueueCatalogMigration)
			return nil
		},
	}
	cmd.Flags().StringVar(&pass, "pass", "", "pass to queue")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "queue a dry run")
	_ = cmd.MarkFlagRequired("pass")
	return cmd
}

func newFailuresCmd(out io.Writer, format *string) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Show the newest dead-lettered products and jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			defer e.close()

			entries, err := e.mig.DeadLetters.List(cmd.Context(), worker.QueueCatalogMigration, n)
			if err != nil {
				return err
			}
			return renderFailures(out, *format, entries)
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 50, "number of entries")
	return cmd
}

func newRunsCmd(out io.Writer, format *string) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent migration runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			defer e.close()

			runs, err := e.mig.Runs.ListRecent(cmd.Context(), n)
			if err != nil {
				return err
			}
			return renderRuns(out, *format, runs)
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of runs")
	return cmd
}

func requester() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "migrate-cli"
}
