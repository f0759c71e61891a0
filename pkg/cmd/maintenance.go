package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/dropvault/pkg/app"
)

var (
	purgeDays int

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "soft-delete every expired file and remove its blob",
		RunE: withCore(func(ctx context.Context, cmd *cobra.Command, core *app.Core) error {
			n, err := core.Lifecycle.Sweep(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "cleaned %d expired file(s)\n", n)

			return nil
		}),
	}

	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "permanently delete records soft-deleted more than --days ago",
		RunE: withCore(func(ctx context.Context, cmd *cobra.Command, core *app.Core) error {
			days := core.Config.Lifecycle.RetentionDays
			if cmd.Flags().Changed("days") {
				days = purgeDays
			}

			n, err := core.Lifecycle.Purge(ctx, days)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged %d record(s) older than %d day(s)\n", n, days)

			return nil
		}),
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "remove blobs that no record references",
		RunE: withCore(func(ctx context.Context, cmd *cobra.Command, core *app.Core) error {
			res, err := core.Lifecycle.Reconcile(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, orphans %d, removed %d, failed %d\n",
				res.Scanned, res.Orphans, res.Removed, res.Failed)

			if res.Failed > 0 {
				return fmt.Errorf("%d orphan blob(s) could not be removed", res.Failed)
			}

			return nil
		}),
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "create or update the files table",
		RunE: withCore(func(_ context.Context, cmd *cobra.Command, _ *app.Core) error {
			// NewCore 已执行迁移
			fmt.Fprintln(cmd.OutOrStdout(), "migration finished")

			return nil
		}),
	}
)

// withCore 为一次性命令打开存储，命令结束后关闭.
func withCore(fn func(ctx context.Context, cmd *cobra.Command, core *app.Core) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		core, err := app.NewCore(ctx, appConfig, app.CoreOptions{SkipMQ: !appConfig.Events.Enabled})
		if err != nil {
			return err
		}
		defer core.Close()

		return fn(ctx, cmd, core)
	}
}

// registerMaintenanceCommands 注册一次性维护命令.
func registerMaintenanceCommands() {
	purgeCmd.Flags().IntVar(&purgeDays, "days", 0, "retention days, defaults to lifecycle.retention_days")

	rootCmd.AddCommand(sweepCmd, purgeCmd, reconcileCmd, migrateCmd)
}
