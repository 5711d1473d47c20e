package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/at-ishikawa/recipebook/internal/menu"
	"github.com/at-ishikawa/recipebook/internal/recipe"
	"github.com/at-ishikawa/recipebook/internal/shopping"
)

var (
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

func checkbox(done bool) string {
	if done {
		return green.Sprint("[x]")
	}
	return yellow.Sprint("[ ]")
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func printRecipes(w io.Writer, recipes []recipe.Recipe) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tRATING")
	for _, r := range recipes {
		rating := "-"
		if r.Rating != nil {
			rating = fmt.Sprintf("%.1f", r.Rating.Rating)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Name, deref(r.Type), rating)
	}
	return tw.Flush()
}

func printRecipe(w io.Writer, r *recipe.Recipe) error {
	bold.Fprintf(w, "%s", r.Name)
	fmt.Fprintf(w, " (#%d)\n", r.ID)
	if t := deref(r.Type); t != "" {
		fmt.Fprintf(w, "Type: %s\n", t)
	}
	if d := deref(r.Description); d != "" {
		fmt.Fprintf(w, "%s\n", d)
	}
	var tags []string
	for _, tag := range []struct {
		set  *bool
		name string
	}{{r.Meat, "meat"}, {r.Fish, "fish"}, {r.Poultry, "poultry"}} {
		if deref(tag.set) {
			tags = append(tags, tag.name)
		}
	}
	if len(tags) > 0 {
		fmt.Fprintf(w, "Contains: %s\n", strings.Join(tags, ", "))
	}
	if r.CookingTime != nil {
		fmt.Fprintf(w, "Cooking time: %d %s\n", r.CookingTime.Time, r.CookingTime.Unit)
	}
	if r.Rating != nil {
		fmt.Fprintf(w, "Rating: %.1f\n", r.Rating.Rating)
	}

	if len(r.Ingredients) > 0 {
		bold.Fprintln(w, "\nIngredients")
		for _, ing := range r.Ingredients {
			var parts []string
			if ing.Amount != nil {
				parts = append(parts, fmt.Sprint(*ing.Amount))
			}
			if u := deref(ing.AmountType); u != "" {
				parts = append(parts, u)
			}
			parts = append(parts, ing.Ingredient)
			fmt.Fprintf(w, "  - %s\n", strings.Join(parts, " "))
		}
	}
	if len(r.Instructions) > 0 {
		bold.Fprintln(w, "\nInstructions")
		for _, ins := range r.Instructions {
			fmt.Fprintf(w, "  %d. %s\n", ins.Step, ins.Instruction)
		}
	}
	return nil
}

func printMenus(w io.Writer, menus []menu.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tWEEK\tRECIPES\tACTIVE")
	for _, m := range menus {
		active := ""
		if m.Active {
			active = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s - %s\t%d\t%s\n", m.ID, m.DisplayName(),
			m.WeekStart.Format("2006-01-02"), m.WeekEnd.Format("2006-01-02"), m.RecipeCount, active)
	}
	return tw.Flush()
}

func printMenu(w io.Writer, m *menu.Menu) error {
	bold.Fprintf(w, "%s", m.DisplayName())
	fmt.Fprintf(w, " (#%d, %s - %s)", m.ID, m.WeekStart.Format("2006-01-02"), m.WeekEnd.Format("2006-01-02"))
	if m.Active {
		green.Fprint(w, " active")
	}
	fmt.Fprintln(w)
	if len(m.Items) == 0 {
		faint.Fprintln(w, "  nothing planned")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, it := range m.Items {
		name := deref(it.RecipeName)
		if name == "" {
			name = fmt.Sprintf("recipe #%d", it.RecipeID)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t(item %d)\n", it.Day(), it.MealType, name, it.ID)
	}
	return tw.Flush()
}

func printShoppingList(w io.Writer, list *shopping.List) error {
	bold.Fprintln(w, list.Title())
	if len(list.Items) == 0 {
		faint.Fprintln(w, "  nothing to buy")
		return nil
	}
	for _, it := range list.Items {
		fmt.Fprintf(w, "  %s %s ", checkbox(it.IsPurchased), it.DisplayName())
		faint.Fprintf(w, "%s\n", it.RandomID)
	}
	return nil
}

func printItemViews(w io.Writer, items []shopping.ItemView) error {
	for _, it := range items {
		fmt.Fprintf(w, "  %s %s ", checkbox(it.Complete), it.Name)
		faint.Fprintf(w, "%s\n", it.ID)
	}
	return nil
}
