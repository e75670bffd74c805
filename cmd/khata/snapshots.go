package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/cli"
	"github.com/Veraticus/khata/internal/storage"
)

func snapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Manage database snapshots",
		Long: `Snapshots are full copies of the database taken before each bulk apply.
Restoring one undoes every change made since.`,
	}

	cmd.AddCommand(createSnapshotCmd())
	cmd.AddCommand(listSnapshotsCmd())
	cmd.AddCommand(restoreSnapshotCmd())

	return cmd
}

func openSnapshotManager(cmd *cobra.Command) (*storage.SQLiteStorage, *storage.SnapshotManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	manager, err := store.NewSnapshotManager()
	if err != nil {
		closeStorage(store)
		return nil, nil, fmt.Errorf("failed to create snapshot manager: %w", err)
	}
	return store, manager, nil
}

func createSnapshotCmd() *cobra.Command {
	var (
		tag         string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the database now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, manager, err := openSnapshotManager(cmd)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			info, err := manager.Create(cmd.Context(), tag, description)
			if err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created snapshot %s (%s, %d transactions)",
				info.ID, formatFileSize(info.FileSize), info.Transactions)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Snapshot name (default: timestamp)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Snapshot description")

	return cmd
}

func listSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			store, manager, err := openSnapshotManager(cmd)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			snapshots, err := manager.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list snapshots: %w", err)
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(out, cli.SubtleStyle.Render("No snapshots found."))
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(snapshots))
			for _, s := range snapshots {
				rows = append(rows, []string{
					cli.InfoStyle.Render(s.ID),
					formatRelativeTime(s.CreatedAt, now),
					formatFileSize(s.FileSize),
					strconv.Itoa(s.Transactions),
					strconv.Itoa(s.Categories),
					cli.Truncate(s.Description, 40),
				})
			}
			fmt.Fprint(out, cli.RenderTable([]string{"NAME", "CREATED", "SIZE", "TRANSACTIONS", "CATEGORIES", "DESCRIPTION"}, rows))
			return nil
		},
	}
}

func restoreSnapshotCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Restore the database from a snapshot",
		Long:  `Replace the current database with a snapshot. Changes made since it was taken are lost.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			id := args[0]

			store, manager, err := openSnapshotManager(cmd)
			if err != nil {
				return err
			}
			// Restore closes the database itself; a second Close is harmless.
			defer func() { _ = store.Close() }()

			if !force {
				question := fmt.Sprintf("Replace the current database with snapshot %s?", id)
				ok, err := cli.Confirm(ctx, cli.NewNonBlockingReader(cmd.InOrStdin()), out, question)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, cli.SubtleStyle.Render("Restore canceled."))
					return nil
				}
			}

			if err := manager.Restore(ctx, id); err != nil {
				return fmt.Errorf("failed to restore snapshot: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess("Restored from snapshot "+id))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
