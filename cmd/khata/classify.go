package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/cli"
	"github.com/Veraticus/khata/internal/common"
)

func classifyCmd() *cobra.Command {
	var (
		notes  string
		amount string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Suggest a category for one description",
		Long: `Classify a single free-text description. Nothing is stored.

Examples:
  khata classify "LESCO electricity bill" --amount 8000
  khata classify "بجلی کا بل"
  khata classify "Office rent March" --all`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			description := strings.Join(args, " ")

			amt := decimal.Zero
			if amount != "" {
				parsed, err := decimal.NewFromString(amount)
				if err != nil {
					return common.NewUserError(fmt.Sprintf("Invalid amount %q", amount), err)
				}
				amt = parsed
			}

			_, store, eng, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			s, err := eng.Classify(ctx, description, notes, amt)
			if err != nil {
				return err
			}

			keywords := "-"
			if len(s.MatchedKeywords) > 0 {
				keywords = strings.Join(s.MatchedKeywords, ", ")
			}
			patterns := "-"
			if len(s.MatchedScriptPatterns) > 0 {
				patterns = strings.Join(s.MatchedScriptPatterns, ", ")
			}
			body := strings.Join([]string{
				fmt.Sprintf("Category:    %s", cli.BoldStyle.Render(s.SuggestedCategoryName)),
				fmt.Sprintf("Confidence:  %s", cli.FormatConfidence(s.Confidence)),
				fmt.Sprintf("Score:       %.2f", s.Score),
				fmt.Sprintf("Keywords:    %s", keywords),
				fmt.Sprintf("Patterns:    %s", patterns),
				fmt.Sprintf("Reasoning:   %s", s.Reasoning),
			}, "\n")
			fmt.Fprintln(out, cli.RenderBox(cli.Truncate(description, 60), body))

			if !all {
				return nil
			}

			ranked, err := eng.Rank(ctx, description, notes, amt)
			if err != nil {
				return err
			}
			if len(ranked) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No category had any evidence"))
				return nil
			}
			rows := make([][]string, 0, len(ranked))
			for i, cand := range ranked {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1),
					cand.Category.Name,
					cli.FormatConfidence(cand.Confidence),
					fmt.Sprintf("%.2f", cand.Score),
				})
			}
			fmt.Fprintln(out, cli.FormatTitle("All candidates"))
			fmt.Fprint(out, cli.RenderTable([]string{"#", "CATEGORY", "CONFIDENCE", "SCORE"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes for the transaction")
	cmd.Flags().StringVar(&amount, "amount", "", "Transaction amount")
	cmd.Flags().BoolVar(&all, "all", false, "Also list every candidate category")

	return cmd
}
