// Package search finds recipes by the ingredients they use.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/at-ishikawa/recipebook/internal/apperror"
	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/database"
	"github.com/at-ishikawa/recipebook/internal/recipe"
)

const (
	suggestionLimit = 10
	nameSearchLimit = 20
	recentLimit     = 10
	minQueryLength  = 2
)

//go:generate mockgen -source=search.go -destination=../mocks/search/mock_cache.go -package=mock_search Cache

// Cache stores search results between calls. Entries belong to a generation;
// a writer moves the cache to a new generation when recipes change, so a result
// computed under an older generation is never served afterwards. Misses report
// false without an error.
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, key string, dest any) (bool, error)
	Set(ctx context.Context, gen int64, key string, value any) error
}

// Query selects recipes whose ingredients contain the terms.
type Query struct {
	Terms    []string `json:"terms"`
	MatchAll bool     `json:"match_all"`
	Page     int      `json:"page"`
	Limit    int      `json:"limit"`
}

type Result struct {
	Recipes    []recipe.Recipe   `json:"recipes"`
	Pagination recipe.Pagination `json:"pagination"`
	Terms      []string          `json:"terms"`
}

type Engine struct {
	db           *database.DB
	schema       database.Schema
	loader       *recipe.Loader
	timeout      time.Duration
	defaultLimit int
	maxLimit     int
	cache        Cache
}

type Option func(*Engine)

// WithCache serves repeated searches from c.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithTimeout overrides the configured execution budget.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func NewEngine(db *database.DB, schema database.Schema, cfg config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		db:           db,
		schema:       schema,
		loader:       recipe.NewLoader(schema),
		timeout:      cfg.Timeout(),
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
	if e.timeout <= 0 {
		e.timeout = 15 * time.Second
	}
	if e.defaultLimit <= 0 {
		e.defaultLimit = 20
	}
	if e.maxLimit < e.defaultLimit {
		e.maxLimit = max(e.defaultLimit, 100)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SearchByIngredients returns one page of recipes whose ingredients match any
// or all of the terms, ordered by recipe name.
func (e *Engine) SearchByIngredients(ctx context.Context, q Query) (*Result, error) {
	terms := NormalizeTerms(q.Terms)
	if len(terms) == 0 {
		return nil, apperror.NewValidationError("at least one ingredient is required")
	}
	q.Terms = terms
	q.Page, q.Limit = e.bounds(q.Page, q.Limit)

	// The generation is read before querying so a change committed while the
	// query runs leaves this result under the superseded generation.
	key := cacheKey("ingredients", q)
	gen, cacheable := e.generation(ctx)
	var cached Result
	if cacheable && e.lookup(ctx, gen, key, &cached) {
		return &cached, nil
	}

	var res *Result
	err := e.withTimeout(ctx, "ingredient search", func(ctx context.Context) error {
		var err error
		res, err = e.searchByIngredients(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	if cacheable {
		e.store(ctx, gen, key, res)
	}
	return res, nil
}

func (e *Engine) searchByIngredients(ctx context.Context, q Query) (*Result, error) {
	a := e.db.Adapter()
	where, args := ingredientCondition(q.Terms, q.MatchAll)
	table := e.schema.RecipeTable()

	var total int
	if err := a.Get(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM %s r WHERE %s", table, where), args...); err != nil {
		return nil, fmt.Errorf("count matching recipes: %w", err)
	}
	p := recipe.NewPagination(q.Page, q.Limit, total)

	recipes := []recipe.Recipe{}
	if total > p.Offset() {
		query := fmt.Sprintf("SELECT %s FROM %s r WHERE %s ORDER BY r.name LIMIT $%d OFFSET $%d",
			recipe.Columns(e.schema, "r"), table, where, len(args)+1, len(args)+2)
		if err := a.Select(ctx, &recipes, query, append(args, p.Limit, p.Offset())...); err != nil {
			return nil, fmt.Errorf("select matching recipes: %w", err)
		}
		if err := e.loader.Hydrate(ctx, a, recipes, recipe.PartIngredients|recipe.PartCookingTime|recipe.PartRating); err != nil {
			return nil, err
		}
	}

	return &Result{Recipes: recipes, Pagination: p, Terms: q.Terms}, nil
}

// ingredientCondition matches recipes aliased r against the terms. Match-all
// needs one EXISTS per term so a single ingredient row cannot stand in for
// terms it does not contain.
func ingredientCondition(terms []string, matchAll bool) (string, []any) {
	args := make([]any, len(terms))
	likes := make([]string, len(terms))
	for i, term := range terms {
		args[i] = containsPattern(term)
		likes[i] = fmt.Sprintf("LOWER(i.ingredient) LIKE $%d ESCAPE '!'", i+1)
	}

	const exists = "EXISTS (SELECT 1 FROM Ingredients i WHERE i.id = r.id AND %s)"
	if !matchAll {
		return fmt.Sprintf(exists, "("+strings.Join(likes, " OR ")+")"), args
	}
	conds := make([]string, len(likes))
	for i, like := range likes {
		conds[i] = fmt.Sprintf(exists, like)
	}
	return strings.Join(conds, " AND "), args
}

// Suggestions returns up to ten distinct ingredient names containing q.
func (e *Engine) Suggestions(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < minQueryLength {
		return []string{}, nil
	}

	names := []string{}
	err := e.withTimeout(ctx, "ingredient suggestions", func(ctx context.Context) error {
		return e.db.Adapter().Select(ctx, &names,
			"SELECT DISTINCT ingredient FROM Ingredients WHERE LOWER(ingredient) LIKE $1 ESCAPE '!' ORDER BY ingredient LIMIT $2",
			containsPattern(strings.ToLower(q)), suggestionLimit)
	})
	if err != nil {
		return nil, fmt.Errorf("suggest ingredients for %q: %w", q, err)
	}
	return names, nil
}

// SearchByName returns recipes whose name or type contains q. Queries shorter
// than two characters return the first recipes by name instead.
func (e *Engine) SearchByName(ctx context.Context, q string) ([]recipe.Recipe, error) {
	q = strings.TrimSpace(q)
	table := e.schema.RecipeTable()
	cols := recipe.Columns(e.schema, "r")

	var query string
	var args []any
	if len([]rune(q)) < minQueryLength {
		query = fmt.Sprintf("SELECT %s FROM %s r ORDER BY r.name LIMIT $1", cols, table)
		args = []any{recentLimit}
	} else {
		query = fmt.Sprintf("SELECT %s FROM %s r WHERE LOWER(r.name) LIKE $1 ESCAPE '!' OR LOWER(r.type) LIKE $1 ESCAPE '!' ORDER BY r.name LIMIT $2", cols, table)
		args = []any{containsPattern(strings.ToLower(q)), nameSearchLimit}
	}

	recipes := []recipe.Recipe{}
	err := e.withTimeout(ctx, "recipe name search", func(ctx context.Context) error {
		a := e.db.Adapter()
		if err := a.Select(ctx, &recipes, query, args...); err != nil {
			return fmt.Errorf("search recipes by name: %w", err)
		}
		return e.loader.Hydrate(ctx, a, recipes, recipe.PartIngredients|recipe.PartCookingTime|recipe.PartRating)
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// withTimeout runs fn under the engine deadline. Expiry of that deadline is
// reported as a TimeoutError; cancellation by the caller is returned as is.
func (e *Engine) withTimeout(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := fn(tctx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return &apperror.TimeoutError{Op: op, After: e.timeout, Err: err}
	}
	return err
}

func (e *Engine) bounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = e.defaultLimit
	}
	return page, min(limit, e.maxLimit)
}

func (e *Engine) generation(ctx context.Context) (int64, bool) {
	if e.cache == nil {
		return 0, false
	}
	gen, err := e.cache.Generation(ctx)
	if err != nil {
		slog.Default().Warn("search cache unavailable", "error", err)
		return 0, false
	}
	return gen, true
}

func (e *Engine) lookup(ctx context.Context, gen int64, key string, dest *Result) bool {
	hit, err := e.cache.Get(ctx, gen, key, dest)
	if err != nil {
		slog.Default().Warn("search cache read failed", "key", key, "error", err)
		return false
	}
	return hit
}

func (e *Engine) store(ctx context.Context, gen int64, key string, res *Result) {
	if err := e.cache.Set(ctx, gen, key, res); err != nil {
		slog.Default().Warn("search cache write failed", "key", key, "error", err)
	}
}

// NormalizeTerms trims, lower-cases and de-duplicates terms, dropping blank ones.
func NormalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern matching s anywhere, with s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func cacheKey(kind string, q Query) string {
	terms := append([]string(nil), q.Terms...)
	sort.Strings(terms)
	q.Terms = terms
	b, _ := json.Marshal(q)
	return "search:" + kind + ":" + string(b)
}
