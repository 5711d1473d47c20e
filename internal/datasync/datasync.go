// Package datasync moves recipes between YAML files and the catalog.
package datasync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/recipe"
)

// File is the YAML layout of a recipe file.
type File struct {
	Recipes []recipe.Input `yaml:"recipes"`
}

// ImportResult tracks counts for each import outcome.
type ImportResult struct {
	New     int
	Skipped int
	Updated int
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun         bool
	UpdateExisting bool
}

// Importer reads YAML recipe files and writes them to the catalog.
type Importer struct {
	recipeRepo recipe.Repository
	writer     io.Writer
}

func NewImporter(recipeRepo recipe.Repository, writer io.Writer) *Importer {
	return &Importer{recipeRepo: recipeRepo, writer: writer}
}

// ReadFiles decodes every recipe of the given files, in file order.
func ReadFiles(paths []string) ([]recipe.Input, error) {
	var all []recipe.Input
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("os.ReadFile(%s) > %w", path, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		var f File
		if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s > %w", path, err)
		}
		all = append(all, f.Recipes...)
	}
	return all, nil
}

// ImportRecipes creates recipes whose exact name is not in the catalog yet.
// Existing ones are skipped, or replaced with UpdateExisting.
func (imp *Importer) ImportRecipes(ctx context.Context, paths []string, opts ImportOptions) (*ImportResult, error) {
	inputs, err := ReadFiles(paths)
	if err != nil {
		return nil, err
	}

	var result ImportResult
	for _, in := range inputs {
		if err := imp.importRecipe(ctx, in, opts, &result); err != nil {
			return nil, fmt.Errorf("importRecipe(%s) > %w", in.Name, err)
		}
	}
	return &result, nil
}

func (imp *Importer) importRecipe(ctx context.Context, in recipe.Input, opts ImportOptions, result *ImportResult) error {
	id, err := imp.recipeRepo.FindIDByName(ctx, in.Name)
	if err != nil && !apperror.IsNotFound(err) {
		return fmt.Errorf("FindIDByName() > %w", err)
	}

	if err == nil {
		if !opts.UpdateExisting {
			fmt.Fprintf(imp.writer, "  [SKIP]  %q\n", in.Name)
			result.Skipped++
			return nil
		}
		if !opts.DryRun {
			if _, err := imp.recipeRepo.Update(ctx, id, in); err != nil {
				return fmt.Errorf("Update() > %w", err)
			}
		}
		fmt.Fprintf(imp.writer, "  [UPDATE]  %q (id %d)\n", in.Name, id)
		result.Updated++
		return nil
	}

	if !opts.DryRun {
		if _, err := imp.recipeRepo.Create(ctx, in); err != nil {
			return fmt.Errorf("Create() > %w", err)
		}
	}
	fmt.Fprintf(imp.writer, "  [NEW]  %q\n", in.Name)
	result.New++
	return nil
}

const exportPageSize = 100

// Exporter writes the catalog back out as YAML.
type Exporter struct {
	recipeRepo recipe.Repository
}

func NewExporter(recipeRepo recipe.Repository) *Exporter {
	return &Exporter{recipeRepo: recipeRepo}
}

// Export writes every recipe as one YAML document and returns how many were written.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	var f File
	for page := 1; ; page++ {
		p, err := e.recipeRepo.ListDetailed(ctx, page, exportPageSize)
		if err != nil {
			return 0, fmt.Errorf("ListDetailed(%d) > %w", page, err)
		}
		for _, r := range p.Recipes {
			f.Recipes = append(f.Recipes, toInput(r))
		}
		if !p.Pagination.HasNext {
			break
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(f); err != nil {
		return 0, fmt.Errorf("yaml.Encode() > %w", err)
	}
	if err := encoder.Close(); err != nil {
		return 0, fmt.Errorf("yaml.Close() > %w", err)
	}
	return len(f.Recipes), nil
}

func toInput(r recipe.Recipe) recipe.Input {
	in := recipe.Input{
		Name:        r.Name,
		Description: r.Description,
		Meat:        r.Meat,
		Fish:        r.Fish,
		Poultry:     r.Poultry,
	}
	if r.Type != nil {
		in.Type = *r.Type
	}
	for _, ing := range r.Ingredients {
		item := recipe.IngredientInput{Amount: ing.Amount, Ingredient: ing.Ingredient}
		if ing.AmountType != nil {
			item.AmountType = *ing.AmountType
		}
		in.Ingredients = append(in.Ingredients, item)
	}
	for _, ins := range r.Instructions {
		in.Instructions = append(in.Instructions, recipe.InstructionInput{Step: ins.Step, Instruction: ins.Instruction})
	}
	if r.CookingTime != nil {
		in.CookingTime = &recipe.CookingTimeInput{Time: r.CookingTime.Time, Unit: r.CookingTime.Unit}
	}
	if r.Rating != nil {
		rating := r.Rating.Rating
		in.Rating = &rating
	}
	return in
}
