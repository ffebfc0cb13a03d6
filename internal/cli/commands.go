package cli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"leasekeeper-service/internal/domain"
	"leasekeeper-service/internal/validator"
	"leasekeeper-service/pkg/leaselock"
)

func keyArg(args []string) (string, error) {
	if !validator.ValidLeaseKey(args[0]) {
		return "", fmt.Errorf("invalid key %q: must be 1-%d characters without whitespace or '/'", args[0], validator.MaxLeaseKeyLength)
	}
	return args[0], nil
}

func newRunCommand(a *app) *cobra.Command {
	var (
		lease   time.Duration
		noRetry bool
	)

	cmd := &cobra.Command{
		Use:   "run [key] -- [command] [args...]",
		Short: "Run a command while holding the lease for key",
		Long: `Acquire the lease for key, run the command, then release the lease.

The command is not interrupted when the lease runs out; leasectl reports
the failed release afterwards and exits non-zero.`,
		Args: cobra.MinimumNArgs(2),
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, args []string) error {
		key, err := keyArg(args)
		if err != nil {
			return err
		}

		var opts []leaselock.Option
		if lease > 0 {
			opts = append(opts, leaselock.WithLeaseDuration(lease))
		}
		if noRetry {
			opts = append(opts, leaselock.WithoutRetry())
		}

		return a.svc.Run(cmd.Context(), key, func(ctx context.Context) error {
			c := exec.CommandContext(ctx, args[1], args[2:]...)
			c.Stdin = cmd.InOrStdin()
			c.Stdout = cmd.OutOrStdout()
			c.Stderr = cmd.ErrOrStderr()
			return c.Run()
		}, opts...)
	})

	cmd.Flags().DurationVar(&lease, "lease", 0, "lease duration for this run (default from config)")
	cmd.Flags().BoolVar(&noRetry, "no-retry", false, "fail immediately when the lease is held elsewhere")

	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [key]",
		Short: "Show one lease, or every lease when no key is given",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			key, err := keyArg(args)
			if err != nil {
				return err
			}
			lease, err := a.svc.Inspect(cmd.Context(), key)
			if err != nil {
				return err
			}
			printLease(out, lease)
			return nil
		}

		leases, err := a.svc.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(leases) == 0 {
			fmt.Fprintln(out, "no leases")
			return nil
		}
		for _, l := range leases {
			printLease(out, l)
		}
		return nil
	})
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Read a guarded value under its lease",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, args []string) error {
		key, err := keyArg(args)
		if err != nil {
			return err
		}
		v, err := a.svc.Read(cmd.Context(), key)
		if err != nil {
			return err
		}
		if !v.Found {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not set\n", key)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), v.Value)
		return nil
	})
	return cmd
}

func newMutateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mutate [key] [set|append|incr] [operand]",
		Short: "Apply a read-modify-write to a guarded value",
		Args:  cobra.RangeArgs(2, 3),
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, args []string) error {
		key, err := keyArg(args)
		if err != nil {
			return err
		}
		m := domain.Mutation{Op: domain.MutationOp(args[1])}
		if len(args) == 3 {
			m.Operand = args[2]
		}

		v, err := a.svc.Mutate(cmd.Context(), key, m)
		if errors.Is(err, leaselock.ErrSaveRejected) {
			return fmt.Errorf("lease on %s expired before the write; nothing was saved: %w", key, err)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v.Value)
		return nil
	})
	return cmd
}

func newUnlockCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock [key]",
		Short: "Delete the lease for key regardless of its holder",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, args []string) error {
		key, err := keyArg(args)
		if err != nil {
			return err
		}
		removed, err := a.svc.ForceUnlock(cmd.Context(), key)
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(cmd.OutOrStdout(), "removed lease on %s\n", key)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "no lease on %s\n", key)
		}
		return nil
	})
	return cmd
}
