package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/recipebook/internal/bootstrap"
	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/shopping"
)

func newShoppingCommand() *cobra.Command {
	shoppingCmd := &cobra.Command{
		Use:   "shopping",
		Short: "Build and tick off shopping lists",
	}
	format := OutputText
	shoppingCmd.PersistentFlags().Var(&format, "output", "Output format. Options: text, json, yaml")

	var listName string
	generateCmd := &cobra.Command{
		Use:   "generate <menu id>",
		Short: "Aggregate the ingredients of a menu into a new shopping list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			menuID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				items, err := catalog.Aggregator.Generate(ctx, menuID, listName)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, items, func() error {
					return printItemViews(cmd.OutOrStdout(), items)
				})
			})
		},
	}
	generateCmd.Flags().StringVar(&listName, "name", shopping.DefaultListName, "List name")

	var menuID, listID int64
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active shopping list, or the one of a menu or id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				list, err := selectList(ctx, catalog.Shopping, menuID, listID)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, list, func() error {
					return printShoppingList(cmd.OutOrStdout(), list)
				})
			})
		},
	}
	showCmd.Flags().Int64Var(&menuID, "menu", 0, "Newest list of this menu")
	showCmd.Flags().Int64Var(&listID, "list", 0, "List id")

	var undo bool
	checkCmd := &cobra.Command{
		Use:   "check <item id>",
		Short: "Mark an item as bought",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			complete := !undo
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				item, err := catalog.Shopping.UpdateItem(ctx, args[0], shopping.ItemPatch{Complete: &complete})
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, item.View(), func() error {
					return printItemViews(cmd.OutOrStdout(), []shopping.ItemView{item.View()})
				})
			})
		},
	}
	checkCmd.Flags().BoolVar(&undo, "undo", false, "Mark the item as not bought")

	var amount float64
	var unit string
	addCmd := &cobra.Command{
		Use:   "add <name>...",
		Short: "Add an item to the active shopping list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := shopping.ItemInput{Name: strings.Join(args, " ")}
			if cmd.Flags().Changed("amount") {
				in.TotalAmount = &amount
			}
			if unit != "" {
				in.AmountType = &unit
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				item, err := catalog.Shopping.AddItem(ctx, in)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, item.View(), func() error {
					return printItemViews(cmd.OutOrStdout(), []shopping.ItemView{item.View()})
				})
			})
		},
	}
	addCmd.Flags().Float64Var(&amount, "amount", 0, "Amount to buy")
	addCmd.Flags().StringVar(&unit, "unit", "", "Unit of the amount")

	removeCmd := &cobra.Command{
		Use:   "remove <item id>",
		Short: "Remove an item from its shopping list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				if err := catalog.Shopping.DeleteItem(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return err
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete-list <list id>",
		Short: "Delete a shopping list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				if err := catalog.Shopping.DeleteList(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted shopping list %d\n", id)
				return err
			})
		},
	}

	shoppingCmd.AddCommand(generateCmd, showCmd, checkCmd, addCmd, removeCmd, deleteCmd,
		newShoppingExportCommand(), newShoppingSyncCommand())
	return shoppingCmd
}

func selectList(ctx context.Context, svc *shopping.Service, menuID, listID int64) (*shopping.List, error) {
	switch {
	case listID > 0:
		return svc.Get(ctx, listID)
	case menuID > 0:
		return svc.ForMenu(ctx, menuID)
	default:
		return svc.Active(ctx)
	}
}

// exportPath is where a list's PDF goes when no path is given.
func exportPath(dir string, list *shopping.List) string {
	return filepath.Join(dir, fmt.Sprintf("shopping-list-%d.pdf", list.ID))
}

func newShoppingExportCommand() *cobra.Command {
	var menuID, listID int64
	var outputPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a shopping list as PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, cfg *config.Config, catalog *bootstrap.Catalog) error {
				list, err := selectList(ctx, catalog.Shopping, menuID, listID)
				if err != nil {
					return err
				}
				path := outputPath
				if path == "" {
					path = exportPath(cfg.Outputs.ShoppingListDirectory, list)
				}
				if err := shopping.ExportPDF(*list, path); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", list.Title(), path)
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&menuID, "menu", 0, "Newest list of this menu")
	cmd.Flags().Int64Var(&listID, "list", 0, "List id")
	cmd.Flags().StringVarP(&outputPath, "file", "f", "", "PDF path (default in outputs.shopping_list_directory)")
	return cmd
}

func newShoppingSyncCommand() *cobra.Command {
	var clearCompleted bool
	cmd := &cobra.Command{
		Use:   "sync [name]...",
		Short: "Push items to the Home Assistant shopping list",
		Long:  "Push the given names, or every item still to buy on the active list, to Home Assistant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				out := cmd.OutOrStdout()
				if clearCompleted {
					if err := catalog.HomeAssistant.ClearCompleted(ctx); err != nil {
						return fmt.Errorf("clear completed items: %w", err)
					}
				}
				result, err := catalog.Syncer.Sync(ctx, args)
				if err != nil {
					return err
				}
				for _, name := range result.Synced {
					fmt.Fprintf(out, "  %s %s\n", green.Sprint("synced"), name)
				}
				for _, f := range result.Failed {
					fmt.Fprintf(out, "  %s %s: %v\n", yellow.Sprint("failed"), f.Name, f.Err)
				}
				_, err = fmt.Fprintf(out, "%d synced, %d failed\n", len(result.Synced), len(result.Failed))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&clearCompleted, "clear-completed", false, "Clear completed items in Home Assistant first")
	return cmd
}
