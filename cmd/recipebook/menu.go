package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/recipebook/internal/bootstrap"
	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/menu"
)

func newMenuCommand() *cobra.Command {
	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "Plan weekly menus",
	}
	format := OutputText
	menuCmd.PersistentFlags().Var(&format, "output", "Output format. Options: text, json, yaml")

	showMenu := func(cmd *cobra.Command, m *menu.Menu) error {
		return render(cmd.OutOrStdout(), format, m, func() error {
			return printMenu(cmd.OutOrStdout(), m)
		})
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List menus, newest week first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				menus, err := catalog.Menus.List(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), format, menus, func() error {
					return printMenus(cmd.OutOrStdout(), menus)
				})
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <menu id>",
		Short: "Show a menu with its planned recipes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				m, err := catalog.Menus.Get(ctx, id)
				if err != nil {
					return err
				}
				return showMenu(cmd, m)
			})
		},
	}

	activeCmd := &cobra.Command{
		Use:   "active",
		Short: "Show the active menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				m, err := catalog.Menus.Active(ctx)
				if err != nil {
					return err
				}
				return showMenu(cmd, m)
			})
		},
	}

	activateCmd := &cobra.Command{
		Use:   "activate <menu id>",
		Short: "Make a menu the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				m, err := catalog.Menus.Activate(ctx, id)
				if err != nil {
					return err
				}
				return showMenu(cmd, m)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <menu id>",
		Short: "Delete a menu with its items and shopping lists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				if err := catalog.Menus.Delete(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted menu %d\n", id)
				return err
			})
		},
	}

	menuCmd.AddCommand(listCmd, getCmd, activeCmd, activateCmd, deleteCmd,
		newMenuCreateCommand(showMenu), newMenuAddItemCommand(&format), newMenuRemoveItemCommand())
	return menuCmd
}

func newMenuCreateCommand(showMenu func(*cobra.Command, *menu.Menu) error) *cobra.Command {
	var name, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a menu for a week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := menuInput(name, start, end)
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				m, err := catalog.Menus.Create(ctx, in)
				if err != nil {
					return err
				}
				return showMenu(cmd, m)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Menu name")
	cmd.Flags().StringVar(&start, "start", "", "First day of the week (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last day of the week (YYYY-MM-DD, default start + 6 days)")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

// menuInput builds a menu input, defaulting the end to a full week after start.
func menuInput(name, start, end string) (menu.Input, error) {
	weekStart, err := parseDate(start)
	if err != nil {
		return menu.Input{}, err
	}
	weekEnd := weekStart.AddDate(0, 0, 6)
	if end != "" {
		if weekEnd, err = parseDate(end); err != nil {
			return menu.Input{}, err
		}
	}
	return menu.Input{Name: name, WeekStart: weekStart, WeekEnd: weekEnd}, nil
}

func newMenuAddItemCommand(format *OutputFormat) *cobra.Command {
	var day DayFlag
	var recipeID int64
	var mealType string
	cmd := &cobra.Command{
		Use:   "add-item <menu id>",
		Short: "Plan a recipe for a day and meal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			menuID, err := parseID(args[0])
			if err != nil {
				return err
			}
			in := menu.ItemInput{DayOfWeek: int(day), RecipeID: recipeID, MealType: mealType}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				item, err := catalog.Menus.SetItem(ctx, menuID, in)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), *format, item, func() error {
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "Planned %s for %s %s (item %d)\n",
						deref(item.RecipeName), item.Day(), item.MealType, item.ID)
					return err
				})
			})
		},
	}
	cmd.Flags().Var(&day, "day", "Day of week, a name or 0 (Sunday) to 6")
	cmd.Flags().Int64Var(&recipeID, "recipe", 0, "Recipe id")
	cmd.Flags().StringVar(&mealType, "meal", menu.DefaultMealType, "Meal type")
	_ = cmd.MarkFlagRequired("day")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}

func newMenuRemoveItemCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-item <menu id> <item id>",
		Short: "Remove a planned recipe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			menuID, err := parseID(args[0])
			if err != nil {
				return err
			}
			itemID, err := parseID(args[1])
			if err != nil {
				return err
			}
			return withCatalog(cmd, func(ctx context.Context, _ *config.Config, catalog *bootstrap.Catalog) error {
				if err := catalog.Menus.RemoveItem(ctx, menuID, itemID); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed item %d from menu %d\n", itemID, menuID)
				return err
			})
		},
	}
}
