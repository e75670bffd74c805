package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/cli"
	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/engine"
)

func applyCmd() *cobra.Command {
	var (
		fromDate      string
		toDate        string
		category      string
		maxUpdates    int
		minConfidence float64
		force         bool
		noSnapshot    bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Bulk apply confident category changes",
		Long: `Write every suggestion at or above --min-confidence that differs from the
transaction's current category. The threshold may not be set below 0.7.

A snapshot of the database is taken first unless --no-snapshot is given, so
the run can be undone with 'khata snapshots restore'.

Examples:
  # Preview count, confirm, then apply
  khata apply --category Miscellaneous

  # Unattended, at most 200 writes
  khata apply --min-confidence 0.9 --max-updates 200 --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			dateRange, err := parseDateFlags(fromDate, toDate)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("min-confidence") {
				minConfidence = cfg.Recategorize.MinApplyConfidence
			}
			if err := engine.ValidateApplyThreshold(minConfidence, engine.MinApplyConfidence); err != nil {
				return common.NewUserError(fmt.Sprintf("--min-confidence must be at least %.2f", engine.MinApplyConfidence), err)
			}
			if maxUpdates < 0 {
				return common.NewUserError("--max-updates must be non-negative", nil)
			}

			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			eng, err := initEngine(ctx, cfg, store)
			if err != nil {
				return err
			}

			opts := engine.RunOptions{
				CategoryFilter: category,
				DateRange:      dateRange,
				MaxUpdates:     maxUpdates,
				MinConfidence:  minConfidence,
				DryRun:         true,
			}

			preview, err := eng.Run(ctx, opts)
			if err != nil {
				return err
			}
			pending := preview.HighConfidenceCount
			if maxUpdates > 0 {
				pending = min(pending, maxUpdates)
			}
			if pending == 0 {
				fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("No confident changes among %d transactions", preview.ProcessedCount)))
				return nil
			}

			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d of %d transactions will be recategorized (min confidence %.2f)",
				pending, preview.ProcessedCount, minConfidence)))

			if !force {
				ok, err := cli.Confirm(ctx, cli.NewNonBlockingReader(cmd.InOrStdin()), out, "Apply these changes?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, cli.SubtleStyle.Render("Apply canceled."))
					return nil
				}
			}

			var snapshotID string
			if !noSnapshot {
				manager, err := store.NewSnapshotManager()
				if err != nil {
					return fmt.Errorf("failed to create snapshot manager: %w", err)
				}
				info, err := manager.Create(ctx, "", fmt.Sprintf("Before apply (min confidence %.2f)", minConfidence))
				if err != nil {
					return fmt.Errorf("failed to snapshot database: %w", err)
				}
				snapshotID = info.ID
				fmt.Fprintln(out, cli.FormatSuccess("Snapshot "+snapshotID+" created"))
			}

			interrupts := cli.NewInterruptHandler(out)
			runCtx := interrupts.HandleInterrupts(ctx, snapshotID)

			progress := cli.NewProgress(out, pending, "Applying")
			opts.DryRun = false
			opts.OnApply = func(engine.ApplyOutcome) {
				progress.Increment()
			}

			result, err := eng.Run(runCtx, opts)
			if err != nil {
				return err
			}
			progress.Finish()

			if interrupts.WasInterrupted() {
				slog.Warn("Apply interrupted", "applied", result.AppliedCount, "failed", result.FailedCount)
			}

			categories, err := eng.Categories(ctx)
			if err != nil {
				return err
			}
			printRunResult(out, result, categories)

			if result.FailedCount > 0 && snapshotID != "" {
				fmt.Fprintln(out, cli.FormatInfo("Undo with: khata snapshots restore "+snapshotID))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromDate, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toDate, "to", "", "End date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&category, "category", "", "Only transactions currently in this category")
	cmd.Flags().IntVar(&maxUpdates, "max-updates", 0, "Write at most this many changes, most confident first (0 = all)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", engine.MinApplyConfidence, "Apply suggestions at or above this confidence (at least 0.7)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&noSnapshot, "no-snapshot", false, "Do not snapshot the database first")

	return cmd
}
