package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/catalog"
	"github.com/Veraticus/khata/internal/cli"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the rule catalog",
	}
	cmd.AddCommand(validateCatalogCmd())
	return cmd
}

func validateCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Load and validate a rule catalog",
		Long: `Parse a catalog file and report its rules. With no path the configured
catalog, or the built-in one, is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var (
				cat    *catalog.Catalog
				source string
				err    error
			)
			switch {
			case len(args) == 1:
				source = args[0]
				cat, err = catalog.Load(source)
			default:
				cfg, cfgErr := loadConfig()
				if cfgErr != nil {
					return cfgErr
				}
				source = cfg.Catalog.Path
				if source == "" {
					source = "built-in catalog"
				}
				cat, err = loadCatalog(cfg)
			}
			if err != nil {
				fmt.Fprintln(out, cli.FormatError(err.Error()))
				return err
			}

			rows := make([][]string, 0, cat.Len())
			for _, entry := range cat.All() {
				rows = append(rows, []string{
					entry.CategoryName,
					fmt.Sprintf("%.2f", entry.BaseConfidence),
					fmt.Sprintf("%d", len(entry.Keywords)),
					fmt.Sprintf("%d", len(entry.ScriptPatterns)),
					fmt.Sprintf("%d", len(entry.AmountRanges)),
					cli.Truncate(strings.Join(entry.Keywords, ", "), 40),
				})
			}
			fmt.Fprint(out, cli.RenderTable([]string{"CATEGORY", "BASE", "KEYWORDS", "PATTERNS", "RANGES", "SAMPLE"}, rows))
			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s is valid: version %d, %d rules", source, cat.Version, cat.Len())))
			return nil
		},
	}
}
