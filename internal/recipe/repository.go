package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/database"
	"github.com/at-ishikawa/recipebook/internal/validation"
)

//go:generate mockgen -source=repository.go -destination=../mocks/recipe/mock_repository.go -package=mock_recipe Repository

// Repository defines operations for managing recipes.
type Repository interface {
	Create(ctx context.Context, in Input) (*Recipe, error)
	Update(ctx context.Context, id int64, in Input) (*Recipe, error)
	GetByID(ctx context.Context, id int64) (*Recipe, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, page, limit int) (*Page, error)
	ListDetailed(ctx context.Context, page, limit int) (*Page, error)
	Count(ctx context.Context) (int, error)
	FindIDByName(ctx context.Context, name string) (int64, error)
}

// DBRepository implements Repository on top of the dialect adapter.
type DBRepository struct {
	db          *database.DB
	schema      database.Schema
	loader      *Loader
	validator   *validation.Validator
	maxAttempts int
	retryDelay  time.Duration
	onChange    func(ctx context.Context)

	mu  sync.Mutex
	ids IDSource
}

type Option func(*DBRepository)

// WithMaxAttempts bounds the identifier allocator.
func WithMaxAttempts(n int) Option {
	return func(r *DBRepository) { r.maxAttempts = n }
}

// WithOnChange registers fn to run after every successful mutation.
func WithOnChange(fn func(ctx context.Context)) Option {
	return func(r *DBRepository) { r.onChange = fn }
}

// WithRetryDelay sets the pause before a create is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(r *DBRepository) { r.retryDelay = d }
}

func NewDBRepository(db *database.DB, schema database.Schema, opts ...Option) *DBRepository {
	r := &DBRepository{
		db:          db,
		schema:      schema,
		loader:      NewLoader(schema),
		validator:   validation.MustNewValidator(),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if schema.RecipeIDAutoIncrement {
		r.ids = NativeIDs{}
	} else {
		r.ids = NewAllocator(schema.RecipeTables, r.maxAttempts)
	}
	return r
}

func (r *DBRepository) idSource() IDSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids
}

// switchToAllocator is used when the store rejects an insert without an id
// even though the schema looked like it generates one.
func (r *DBRepository) switchToAllocator() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids.(*Allocator); ok {
		return false
	}
	slog.Default().Warn("recipe id has no default, allocating ids manually")
	r.ids = NewAllocator(r.schema.RecipeTables, r.maxAttempts)
	return true
}

func (r *DBRepository) table() string {
	return r.schema.RecipeTable()
}

func (r *DBRepository) columns() string {
	return Columns(r.schema, "")
}

// fields returns the writable recipe columns with their values.
func (r *DBRepository) fields(in Input) ([]string, []any) {
	cols := []string{"name", "type"}
	args := []any{strings.TrimSpace(in.Name), optionalText(in.Type)}
	if r.schema.HasDescription {
		cols = append(cols, "description")
		args = append(args, in.Description)
	}
	if r.schema.HasCategoryFlags {
		cols = append(cols, "meat", "fish", "poultry")
		args = append(args, in.Meat, in.Fish, in.Poultry)
	}
	return cols, args
}

func (r *DBRepository) changed(ctx context.Context) {
	if r.onChange != nil {
		r.onChange(ctx)
	}
}

// Create inserts a recipe with its dependent records in one transaction.
func (r *DBRepository) Create(ctx context.Context, in Input) (*Recipe, error) {
	if err := r.validator.Struct(in); err != nil {
		return nil, err
	}

	var created *Recipe
	err := retry.Do(
		func() error {
			return r.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
				id, err := r.insertRecipe(ctx, tx, in)
				if err != nil {
					return err
				}
				if err := r.insertDependents(ctx, tx, id, in); err != nil {
					return err
				}
				created, err = r.get(ctx, tx, id)
				return err
			})
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(r.retryable),
	)
	if err != nil {
		return nil, err
	}

	r.changed(ctx)
	return created, nil
}

func (r *DBRepository) retryable(err error) bool {
	dialect := r.db.Dialect()
	if dialect.IsMissingDefault(err) {
		return r.switchToAllocator()
	}
	// a concurrent writer took the allocated id between check and insert
	if _, manual := r.idSource().(*Allocator); manual {
		return dialect.IsUniqueViolation(err)
	}
	return false
}

func (r *DBRepository) insertRecipe(ctx context.Context, tx *database.Adapter, in Input) (int64, error) {
	cols, args := r.fields(in)
	id, err := r.idSource().NextID(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("allocate recipe id: %w", err)
	}
	if id != 0 {
		cols = append([]string{"id"}, cols...)
		args = append([]any{id}, args...)
	}

	generated, err := tx.Insert(ctx, database.BuildMultiRowInsert(r.table(), cols, 1), args...)
	if err != nil {
		return 0, fmt.Errorf("insert recipe: %w", err)
	}
	if id == 0 {
		id = generated
	}
	return r.confirmID(ctx, tx, id, in.Name)
}

// confirmID checks the new row is readable by id, falling back to the
// newest recipe with the same name when the store did not report one.
func (r *DBRepository) confirmID(ctx context.Context, tx *database.Adapter, id int64, name string) (int64, error) {
	if id > 0 {
		var found int64
		err := tx.Get(ctx, &found, fmt.Sprintf("SELECT id FROM %s WHERE id = $1", r.table()), id)
		if err == nil {
			return found, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("read back recipe %d: %w", id, err)
		}
	}

	var latest int64
	err := tx.Get(ctx, &latest, fmt.Sprintf("SELECT id FROM %s WHERE name = $1 ORDER BY id DESC LIMIT 1", r.table()), strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("inserted recipe %q cannot be read back", name)
	}
	if err != nil {
		return 0, fmt.Errorf("find recipe %q by name: %w", name, err)
	}
	return latest, nil
}

func (r *DBRepository) insertDependents(ctx context.Context, tx *database.Adapter, id int64, in Input) error {
	if len(in.Ingredients) > 0 {
		var args []any
		for _, ing := range in.Ingredients {
			args = append(args, id, ing.Amount, optionalText(ing.AmountType), strings.TrimSpace(ing.Ingredient))
		}
		query := database.BuildMultiRowInsert("Ingredients", []string{"id", "amount", "amount_type", "ingredient"}, len(in.Ingredients))
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert ingredients: %w", err)
		}
	}

	if len(in.Instructions) > 0 {
		var args []any
		for _, ins := range in.Instructions {
			args = append(args, id, ins.Step, strings.TrimSpace(ins.Instruction))
		}
		query := database.BuildMultiRowInsert("Instructions", []string{"id", "step", "instruction"}, len(in.Instructions))
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert instructions: %w", err)
		}
	}

	if in.CookingTime != nil {
		query := database.BuildMultiRowInsert("CookingTimes", []string{"id", "time", "timeunit"}, 1)
		if _, err := tx.Exec(ctx, query, id, in.CookingTime.Time, strings.TrimSpace(in.CookingTime.Unit)); err != nil {
			return fmt.Errorf("insert cooking time: %w", err)
		}
	}

	if in.Rating != nil {
		query := database.BuildMultiRowInsert("Ratings", []string{"id", "rating"}, 1)
		if _, err := tx.Exec(ctx, query, id, *in.Rating); err != nil {
			return fmt.Errorf("insert rating: %w", err)
		}
	}
	return nil
}

func (r *DBRepository) deleteDependents(ctx context.Context, tx *database.Adapter, id int64) error {
	for _, table := range []string{"Ingredients", "Instructions", "CookingTimes", "Ratings"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id); err != nil {
			return fmt.Errorf("delete %s of recipe %d: %w", strings.ToLower(table), id, err)
		}
	}
	return nil
}

// locate returns the recipe table variant holding id.
func (r *DBRepository) locate(ctx context.Context, a *database.Adapter, id int64) (string, error) {
	for _, table := range r.schema.RecipeTables {
		var found int64
		err := a.Get(ctx, &found, fmt.Sprintf("SELECT id FROM %s WHERE id = $1", table), id)
		if err == nil {
			return table, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("find recipe %d in %s: %w", id, table, err)
		}
	}
	return "", &apperror.NotFoundError{Entity: "recipe", Key: id}
}

// Update replaces the recipe and all its dependent records.
func (r *DBRepository) Update(ctx context.Context, id int64, in Input) (*Recipe, error) {
	if err := r.validator.Struct(in); err != nil {
		return nil, err
	}

	var updated *Recipe
	err := r.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		table, err := r.locate(ctx, tx, id)
		if err != nil {
			return err
		}

		cols, args := r.fields(in)
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		}
		args = append(args, id)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
		res, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update recipe %d: %w", id, err)
		}
		if res.RowsAffected == 0 {
			return &apperror.NotFoundError{Entity: "recipe", Key: id}
		}

		if err := r.deleteDependents(ctx, tx, id); err != nil {
			return err
		}
		if err := r.insertDependents(ctx, tx, id, in); err != nil {
			return err
		}
		updated, err = r.get(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.changed(ctx)
	return updated, nil
}

// GetByID returns the recipe with every dependent record set.
func (r *DBRepository) GetByID(ctx context.Context, id int64) (*Recipe, error) {
	return r.get(ctx, r.db.Adapter(), id)
}

func (r *DBRepository) get(ctx context.Context, a *database.Adapter, id int64) (*Recipe, error) {
	for _, table := range r.schema.RecipeTables {
		var rec Recipe
		err := a.Get(ctx, &rec, fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", r.columns(), table), id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load recipe %d: %w", id, err)
		}

		recipes := []Recipe{rec}
		if err := r.loader.Hydrate(ctx, a, recipes, PartAll); err != nil {
			return nil, err
		}
		return &recipes[0], nil
	}
	return nil, &apperror.NotFoundError{Entity: "recipe", Key: id}
}

// Delete removes the recipe and its dependent records. Deleting a missing recipe succeeds.
func (r *DBRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.InTx(ctx, func(ctx context.Context, tx *database.Adapter) error {
		if err := r.deleteDependents(ctx, tx, id); err != nil {
			return err
		}
		for _, table := range r.schema.RecipeTables {
			if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id); err != nil {
				return fmt.Errorf("delete recipe %d from %s: %w", id, table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.changed(ctx)
	return nil
}

// List returns a page of recipes ordered by name with cooking time and rating attached.
func (r *DBRepository) List(ctx context.Context, page, limit int) (*Page, error) {
	return r.list(ctx, page, limit, PartCookingTime|PartRating)
}

// ListDetailed returns a page of recipes with every dependent record attached.
func (r *DBRepository) ListDetailed(ctx context.Context, page, limit int) (*Page, error) {
	return r.list(ctx, page, limit, PartAll)
}

func (r *DBRepository) list(ctx context.Context, page, limit int, parts Part) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}
	p := NewPagination(page, limit, total)

	a := r.db.Adapter()
	recipes := []Recipe{}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY name, id LIMIT $1 OFFSET $2", r.columns(), r.table())
	if err := a.Select(ctx, &recipes, query, p.Limit, p.Offset()); err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	if err := r.loader.Hydrate(ctx, a, recipes, parts); err != nil {
		return nil, err
	}
	return &Page{Recipes: recipes, Pagination: p}, nil
}

func (r *DBRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.Adapter().Get(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM %s", r.table())); err != nil {
		return 0, fmt.Errorf("count recipes: %w", err)
	}
	return total, nil
}

// FindIDByName returns the id of the newest recipe named exactly name.
func (r *DBRepository) FindIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.Adapter().Get(ctx, &id, fmt.Sprintf("SELECT id FROM %s WHERE name = $1 ORDER BY id DESC LIMIT 1", r.table()), strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &apperror.NotFoundError{Entity: "recipe", Key: name}
	}
	if err != nil {
		return 0, fmt.Errorf("find recipe %q: %w", name, err)
	}
	return id, nil
}
