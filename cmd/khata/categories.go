package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/khata/internal/catalog"
	"github.com/Veraticus/khata/internal/cli"
	"github.com/Veraticus/khata/internal/service"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage spending categories",
		Long:  `List, add and seed the categories transactions are filed under.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(seedCategoriesCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			categories, err := store.ListCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No categories found. Use 'khata categories seed' to create the catalog's categories."))
				return nil
			}

			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				rules := cli.SubtleStyle.Render("no rule")
				if _, ok := cat.Lookup(c.Name); ok {
					rules = cli.SuccessStyle.Render("rule")
				}
				if c.Name == cfg.Engine.FallbackCategory {
					rules = cli.InfoStyle.Render("fallback")
				}
				desc := c.Description
				if desc == "" {
					desc = cli.SubtleStyle.Render("(no description)")
				}
				rows = append(rows, []string{strconv.Itoa(c.ID), c.Name, rules, desc})
			}
			fmt.Fprint(out, cli.RenderTable([]string{"ID", "NAME", "CATALOG", "DESCRIPTION"}, rows))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			existing, err := store.GetCategoryByName(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to check existing category: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("category %q already exists", name)
			}

			category, err := store.CreateCategory(ctx, name, description)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created category %q (id %d)", category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Category description")

	return cmd
}

func seedCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create every catalog category and the fallback",
		Long: `Create a category for every rule in the catalog plus the fallback category.
Existing categories are left alone; inactive ones are reactivated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			created, err := seedCategories(ctx, store, cat, cfg.Engine.FallbackCategory)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Seeded catalog categories (%d new)", created)))
			return nil
		},
	}
}

// seedCategories creates the catalog's categories and the fallback, in
// catalog order. It returns how many did not exist before.
func seedCategories(ctx context.Context, store service.Storage, cat *catalog.Catalog, fallback string) (int, error) {
	names := append(cat.CategoryNames(), fallback)

	created := 0
	for _, name := range names {
		existing, err := store.GetCategoryByName(ctx, name)
		if err != nil {
			return created, fmt.Errorf("failed to check category %q: %w", name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := store.CreateCategory(ctx, name, ""); err != nil {
			return created, fmt.Errorf("failed to create category %q: %w", name, err)
		}
		created++
	}
	return created, nil
}
