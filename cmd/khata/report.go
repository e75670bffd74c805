package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/api"
	"github.com/Veraticus/khata/internal/cli"
	"github.com/Veraticus/khata/internal/engine"
)

func reportCmd() *cobra.Command {
	var (
		limit        int
		id           string
		category     string
		accuracyOnly bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compare suggestions with stored categories",
		Long: `Re-classify recent transactions, or one transaction with --id, and report
how often the suggestion agrees with the category currently assigned.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			_, store, eng, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			rows, err := eng.Report(ctx, engine.ReportOptions{
				TransactionID:  id,
				CategoryFilter: category,
				Limit:          limit,
			})
			if err != nil {
				return err
			}
			summary := api.Summarize(rows)

			if jsonOutput {
				resp := api.ReportResponse{Statistics: summary}
				if !accuracyOnly {
					resp.Rows = rows
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if !accuracyOnly && len(rows) > 0 {
				table := make([][]string, 0, len(rows))
				for _, row := range rows {
					mark := cli.SuccessStyle.Render(cli.SuccessIcon)
					if !row.IsCorrect {
						mark = cli.ErrorStyle.Render(cli.ErrorIcon)
					}
					table = append(table, []string{
						mark,
						row.TransactionID,
						cli.Truncate(row.Description, 40),
						row.Amount.StringFixed(2),
						row.CurrentCategory,
						row.SuggestedCategory,
						cli.FormatConfidence(row.Confidence),
					})
				}
				fmt.Fprint(out, cli.RenderTable(
					[]string{"", "ID", "DESCRIPTION", "AMOUNT", "CURRENT", "SUGGESTED", "CONFIDENCE"}, table))
				fmt.Fprintln(out)
			}

			lines := []string{
				fmt.Sprintf("Transactions:    %d", summary.Total),
				fmt.Sprintf("Agreeing:        %d", summary.Correct),
				fmt.Sprintf("Accuracy:        %.1f%%", summary.Accuracy*100),
				fmt.Sprintf("Avg confidence:  %s", cli.FormatConfidence(summary.AverageConfidence)),
			}
			if len(summary.ByCategory) > 1 {
				names := make([]string, 0, len(summary.ByCategory))
				for name := range summary.ByCategory {
					names = append(names, name)
				}
				sort.Strings(names)
				lines = append(lines, "")
				for _, name := range names {
					acc := summary.ByCategory[name]
					label := name
					if label == "" {
						label = "(uncategorized)"
					}
					lines = append(lines, fmt.Sprintf("  %-24s %3d/%-3d %5.1f%%", label, acc.Correct, acc.Total, acc.Accuracy*100))
				}
			}
			fmt.Fprintln(out, cli.RenderBox(cli.ChartIcon+" Accuracy report", strings.Join(lines, "\n")))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", engine.DefaultReportLimit, "Number of recent transactions to sample")
	cmd.Flags().StringVar(&id, "id", "", "Report on a single transaction")
	cmd.Flags().StringVar(&category, "category", "", "Only transactions currently in this category")
	cmd.Flags().BoolVar(&accuracyOnly, "accuracy-only", false, "Print only the statistics")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")

	return cmd
}
