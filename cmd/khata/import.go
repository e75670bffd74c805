package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/cli"
	"github.com/Veraticus/khata/internal/common"
	"github.com/Veraticus/khata/internal/model"
	"github.com/Veraticus/khata/internal/ofx"
)

func importCmd() *cobra.Command {
	var (
		category       string
		includeCredits bool
		dryRun         bool
	)

	cmd := &cobra.Command{
		Use:   "import <files...>",
		Short: "Import transactions from OFX/QFX statements",
		Long: `Import debits from OFX or QFX bank and card statements. Imported rows are
filed under --category (the fallback category by default) so a following
'khata analyze' can sort them. Rows already imported are skipped.

Examples:
  khata import ~/Downloads/statement_march.ofx
  khata import ~/Downloads/*.qfx --include-credits`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if category == "" {
				category = cfg.Engine.FallbackCategory
			}
			target, err := store.GetCategoryByName(ctx, category)
			if err != nil {
				return fmt.Errorf("failed to look up category: %w", err)
			}
			if target == nil {
				return common.NewUserError(
					fmt.Sprintf("Category %q does not exist; run 'khata categories seed' first", category),
					common.ErrUnknownCategory)
			}

			parser := ofx.NewParser(ofx.Options{IncludeCredits: includeCredits, CategoryID: target.ID})
			transactions, perFile := parseStatements(ctx, parser, files)
			if len(transactions) == 0 {
				fmt.Fprintln(out, cli.FormatWarning("No transactions found in any file"))
				return nil
			}

			rows := make([][]string, 0, len(perFile))
			for _, f := range files {
				if n, ok := perFile[f]; ok {
					rows = append(rows, []string{filepath.Base(f), fmt.Sprintf("%d", n)})
				}
			}
			fmt.Fprint(out, cli.RenderTable([]string{"FILE", "TRANSACTIONS"}, rows))

			total := decimal.Zero
			for _, txn := range transactions {
				total = total.Add(txn.Amount)
			}
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%d unique transactions totalling %s", len(transactions), total.StringFixed(2))))

			if dryRun {
				fmt.Fprintln(out, cli.FormatInfo("Dry run complete - no data saved"))
				return nil
			}

			inserted, err := store.SaveTransactions(ctx, transactions)
			if err != nil {
				return fmt.Errorf("failed to save transactions: %w", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d new transactions into %s (%d already present)",
				inserted, target.Name, len(transactions)-inserted)))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Category for imported rows (default: the fallback category)")
	cmd.Flags().BoolVar(&includeCredits, "include-credits", false, "Also import deposits and refunds")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Preview import without saving")

	return cmd
}

// expandFiles resolves globs, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, common.NewUserError("No files found to import", nil)
	}
	return files, nil
}

// parseStatements parses every file, dropping transactions seen in an
// earlier file. Unreadable files are logged and skipped.
func parseStatements(ctx context.Context, parser *ofx.Parser, files []string) ([]model.Transaction, map[string]int) {
	var (
		transactions []model.Transaction
		seen         = make(map[string]bool)
		perFile      = make(map[string]int)
	)

	for _, path := range files {
		f, err := os.Open(path) //nolint:gosec // user-supplied statement path
		if err != nil {
			slog.Error("Failed to open file", "file", path, "error", err)
			continue
		}
		parsed, err := parser.ParseFile(ctx, f)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", path, "error", err)
			continue
		}

		added := 0
		for _, txn := range parsed {
			if seen[txn.Hash] {
				continue
			}
			seen[txn.Hash] = true
			transactions = append(transactions, txn)
			added++
		}
		perFile[path] = added

		slog.Info("Processed file",
			"file", filepath.Base(path),
			"transactions_found", len(parsed),
			"added", added,
			"duplicates", len(parsed)-added)
	}

	return transactions, perFile
}
