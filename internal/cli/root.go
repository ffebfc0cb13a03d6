// Package cli implements the leasectl command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/backend"
	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/internal/config"
	"leasekeeper-service/internal/logger"
)

// Version is reported by `leasectl version`.
const Version = "0.3.0"

// Opener opens the configured store. Tests swap it for an in-memory store.
type Opener func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend.Backend, error)

// DefaultOpener opens the backend named in config without running migrations.
func DefaultOpener(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend.Backend, error) {
	return backend.Open(ctx, cfg, false, log)
}

// app carries what every subcommand needs once PersistentPreRunE has run.
type app struct {
	open       Opener
	configPath string
	timeout    time.Duration

	cfg     *config.Config
	log     *zap.Logger
	backend *backend.Backend
	svc     *service.LeaseService
	cancel  context.CancelFunc
}

// NewRootCommand builds the leasectl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "leasectl",
		Short: "Inspect and use leasekeeper leases",
		Long: fmt.Sprintf(`leasectl (v%s)

Runs commands and mutations under a lease stored in the same backend
leasekeeper-service uses, and inspects or clears leases by hand.`, Version),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("APP_CONFIG_FILE"), "path to the YAML config file")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "overall deadline for the command (0 for none)")

	root.AddCommand(
		newRunCommand(a),
		newStatusCommand(a),
		newGetCommand(a),
		newMutateCommand(a),
		newUnlockCommand(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the leasectl version",
			// Skip backend setup for version.
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "leasectl v%s\n", Version)
			},
		},
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logger.New(logger.Config{
		Level:   cfg.Logger.Level,
		Format:  "console",
		Output:  "stderr",
		Service: "leasectl",
	}, logger.SentryConfig{})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.log = log.Logger

	if a.timeout > 0 {
		ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
		a.cancel = cancel
		cmd.SetContext(ctx)
	}

	b, err := a.open(cmd.Context(), cfg, a.log)
	if err != nil {
		a.close()
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	a.backend = b
	a.svc = service.NewLeaseService(b.Store, service.LeaseConfig{Lock: cfg.Lock.Leaselock()}, a.log)

	return nil
}

// wrap closes the backend after fn whether or not it fails. PersistentPostRun
// hooks are skipped on error, so they cannot do this.
func (a *app) wrap(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		return fn(cmd, args)
	}
}

func (a *app) close() {
	if a.backend != nil {
		a.backend.Close()
		a.backend = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}
