package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/cli"
	"github.com/Veraticus/khata/internal/engine"
	"github.com/Veraticus/khata/internal/model"
)

func analyzeCmd() *cobra.Command {
	var (
		fromDate       string
		toDate         string
		category       string
		limit          int
		minConfidence  float64
		sortConfidence bool
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Preview recategorization without writing",
		Long: `Classify stored transactions and list those whose suggested category differs
from the current one with at least --min-confidence. Nothing is written.

Examples:
  # Everything filed under Miscellaneous
  khata analyze --category Miscellaneous

  # March 2025, most confident first
  khata analyze --from 2025-03-01 --to 2025-03-31 --sort-confidence`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			dateRange, err := parseDateFlags(fromDate, toDate)
			if err != nil {
				return err
			}

			cfg, store, eng, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if !cmd.Flags().Changed("min-confidence") {
				minConfidence = cfg.Recategorize.MinApplyConfidence
			}

			result, err := eng.Run(ctx, engine.RunOptions{
				CategoryFilter:   category,
				DateRange:        dateRange,
				Limit:            limit,
				MinConfidence:    minConfidence,
				SortByConfidence: sortConfidence,
				DryRun:           true,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			categories, err := eng.Categories(ctx)
			if err != nil {
				return err
			}
			printRunResult(out, result, categories)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromDate, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toDate, "to", "", "End date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&category, "category", "", "Only transactions currently in this category")
	cmd.Flags().IntVar(&limit, "limit", 0, "Scan at most this many of the most recent transactions (0 = all)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", engine.MinApplyConfidence, "Only list suggestions at or above this confidence")
	cmd.Flags().BoolVar(&sortConfidence, "sort-confidence", false, "List the most confident suggestions first")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	return cmd
}

// printRunResult renders a run summary, the category distribution and the
// listed suggestions.
func printRunResult(w io.Writer, result *model.BulkRunResult, categories model.CategoryMap) {
	title := "Recategorization analysis"
	if !result.DryRun {
		title = "Recategorization applied"
	}

	summary := []string{
		fmt.Sprintf("Processed:        %d", result.ProcessedCount),
		fmt.Sprintf("High confidence:  %d", result.HighConfidenceCount),
		fmt.Sprintf("Avg confidence:   %s", cli.FormatConfidence(result.AverageConfidence)),
	}
	if !result.DryRun {
		summary = append(summary,
			fmt.Sprintf("Applied:          %d", result.AppliedCount),
			fmt.Sprintf("Failed:           %d", result.FailedCount))
	}
	summary = append(summary, fmt.Sprintf("Duration:         %s", result.Duration.Round(time.Millisecond)))

	fmt.Fprintln(w, cli.RenderBox(cli.LedgerIcon+" "+title, strings.Join(summary, "\n")))

	if len(result.Distribution) > 0 {
		names := make([]string, 0, len(result.Distribution))
		for name := range result.Distribution {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if result.Distribution[names[i]] != result.Distribution[names[j]] {
				return result.Distribution[names[i]] > result.Distribution[names[j]]
			}
			return names[i] < names[j]
		})

		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, strconv.Itoa(result.Distribution[name])})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, cli.FormatTitle("Suggested categories"))
		fmt.Fprint(w, cli.RenderTable([]string{"CATEGORY", "COUNT"}, rows))
	}

	if len(result.Suggestions) > 0 {
		rows := make([][]string, 0, len(result.Suggestions))
		for _, s := range result.Suggestions {
			current := categories.NameOf(s.CurrentCategoryID)
			if current == "" {
				current = cli.SubtleStyle.Render("(none)")
			}
			rows = append(rows, []string{
				s.TransactionID,
				current,
				s.SuggestedCategoryName,
				cli.FormatConfidence(s.Confidence),
				cli.Truncate(s.Reasoning, 60),
			})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, cli.FormatTitle(fmt.Sprintf("Suggestions (%d of %d)", len(result.Suggestions), result.HighConfidenceCount)))
		fmt.Fprint(w, cli.RenderTable([]string{"ID", "CURRENT", "SUGGESTED", "CONFIDENCE", "REASONING"}, rows))
	}

	if len(result.Failures) > 0 {
		rows := make([][]string, 0, len(result.Failures))
		for _, f := range result.Failures {
			rows = append(rows, []string{f.TransactionID, cli.ErrorStyle.Render(f.Error)})
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, cli.FormatWarning(fmt.Sprintf("%d writes failed", len(result.Failures))))
		fmt.Fprint(w, cli.RenderTable([]string{"ID", "ERROR"}, rows))
	}

	if result.HighConfidenceCount == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, cli.FormatInfo("No confident changes found"))
	}
}
