package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/recipebook/internal/bootstrap"
	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/datasync"
)

func newRecipeCommand() *cobra.Command {
	recipeCmd := &cobra.Command{
		Use:   "recipe",
		Short: "Browse and maintain recipes",
	}
	format := OutputText
	recipeCmd.PersistentFlags().Var(&format, "output", "Output format. Options: text, json, yaml")

	var page, limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recipes by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				result, err := catalog.Recipes.List(ctx, page, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				return render(out, format, result, func() error {
					if err := printRecipes(out, result.Recipes); err != nil {
						return err
					}
					_, err := fmt.Fprintf(out, "page %d of %d (%d recipes)\n",
						result.Pagination.Page, result.Pagination.TotalPages, result.Pagination.Total)
					return err
				})
			})
		},
	}
	listCmd.Flags().IntVar(&page, "page", 1, "Page number")
	listCmd.Flags().IntVar(&limit, "limit", 20, "Recipes per page")

	getCmd := &cobra.Command{
		Use:   "get <recipe id>",
		Short: "Show a recipe with its ingredients and instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				r, err := catalog.Recipes.GetByID(ctx, id)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, r, func() error {
					return printRecipe(cmd.OutOrStdout(), r)
				})
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <recipe id>",
		Short: "Delete a recipe and everything that belongs to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				if err := catalog.Recipes.Delete(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted recipe %d\n", id)
				return err
			})
		},
	}

	recipeCmd.AddCommand(listCmd, getCmd, deleteCmd, newRecipeImportCommand(), newRecipeExportCommand())
	return recipeCmd
}

func newRecipeImportCommand() *cobra.Command {
	var dryRun bool
	var updateExisting bool

	cmd := &cobra.Command{
		Use:   "import <file.yml>...",
		Short: "Import recipes from YAML files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				out := cmd.OutOrStdout()
				importer := datasync.NewImporter(catalog.Recipes, out)
				opts := datasync.ImportOptions{
					DryRun:         dryRun,
					UpdateExisting: updateExisting,
				}
				result, err := importer.ImportRecipes(ctx, args, opts)
				if err != nil {
					return fmt.Errorf("importer.ImportRecipes() > %w", err)
				}

				fmt.Fprintln(out, "\nImport Summary:")
				if opts.DryRun {
					fmt.Fprintln(out, "  (dry-run mode, no changes made)")
				}
				fmt.Fprintf(out, "  Recipes: %d new, %d skipped, %d updated\n", result.New, result.Skipped, result.Updated)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without modifying the database")
	cmd.Flags().BoolVar(&updateExisting, "update-existing", false, "Replace recipes that already exist by name")
	return cmd
}

func newRecipeExportCommand() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every recipe as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				w := cmd.OutOrStdout()
				if outputPath != "" {
					f, err := os.Create(outputPath)
					if err != nil {
						return fmt.Errorf("os.Create(%s) > %w", outputPath, err)
					}
					defer f.Close()
					w = f
				}
				n, err := datasync.NewExporter(catalog.Recipes).Export(ctx, w)
				if err != nil {
					return err
				}
				if outputPath != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d recipes to %s\n", n, outputPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}
