package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/recipebook/internal/bootstrap"
	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/search"
)

func newSearchCommand() *cobra.Command {
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Find recipes by ingredient or name",
	}
	format := OutputText
	searchCmd.PersistentFlags().Var(&format, "output", "Output format. Options: text, json, yaml")

	match := MatchAny
	var page, limit int
	ingredientsCmd := &cobra.Command{
		Use:   "ingredients <ingredient>...",
		Short: "Find recipes containing any or all of the ingredients",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := search.Query{
				Terms:    splitTerms(args),
				MatchAll: match == MatchAll,
				Page:     page,
				Limit:    limit,
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				result, err := catalog.Search.SearchByIngredients(ctx, query)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				return render(out, format, result, func() error {
					if err := printRecipes(out, result.Recipes); err != nil {
						return err
					}
					_, err := fmt.Fprintf(out, "page %d of %d (%d matches for %s)\n",
						result.Pagination.Page, result.Pagination.TotalPages, result.Pagination.Total,
						strings.Join(result.Terms, ", "))
					return err
				})
			})
		},
	}
	ingredientsCmd.Flags().Var(&match, "match", "Match any or all ingredients. Options: any, all")
	ingredientsCmd.Flags().IntVar(&page, "page", 1, "Page number")
	ingredientsCmd.Flags().IntVar(&limit, "limit", 0, "Results per page (default from config)")

	suggestCmd := &cobra.Command{
		Use:   "suggest <prefix>",
		Short: "Suggest ingredient names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				names, err := catalog.Search.Suggestions(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				return render(out, format, names, func() error {
					for _, n := range names {
						fmt.Fprintln(out, n)
					}
					return nil
				})
			})
		},
	}

	nameCmd := &cobra.Command{
		Use:   "name <text>",
		Short: "Find recipes by name or type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				recipes, err := catalog.Search.SearchByName(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				return render(out, format, recipes, func() error {
					return printRecipes(out, recipes)
				})
			})
		},
	}

	searchCmd.AddCommand(ingredientsCmd, suggestCmd, nameCmd)
	return searchCmd
}

// splitTerms accepts both "egg milk" style arguments and comma separated lists.
func splitTerms(args []string) []string {
	var terms []string
	for _, arg := range args {
		for _, t := range strings.Split(arg, ",") {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
	}
	return terms
}
