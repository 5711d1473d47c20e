package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/at-ishikawa/recipebook/internal/cache"
	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/database"
	"github.com/at-ishikawa/recipebook/internal/homeassistant"
	"github.com/at-ishikawa/recipebook/internal/menu"
	"github.com/at-ishikawa/recipebook/internal/recipe"
	"github.com/at-ishikawa/recipebook/internal/search"
	"github.com/at-ishikawa/recipebook/internal/shopping"
)

// Catalog holds every service of the recipe book over one connection pool.
type Catalog struct {
	DB            *database.DB
	Schema        database.Schema
	Recipes       *recipe.DBRepository
	Search        *search.Engine
	Menus         *menu.Repository
	Aggregator    *shopping.Aggregator
	Shopping      *shopping.Service
	HomeAssistant *homeassistant.Client
	Syncer        *homeassistant.Syncer
}

// OpenDatabase connects to the configured store and closes it on shutdown.
func (a *App) OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database.Connect() > %w", err)
	}
	a.AddShutdownHook(func(context.Context) error { return db.Close() })

	if err := db.Ping(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenCatalog connects to the store, detects its schema and builds the services.
// An unreachable cache is logged and searches run uncached.
func (a *App) OpenCatalog(ctx context.Context, cfg *config.Config) (*Catalog, error) {
	db, err := a.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	schema, err := database.DetectSchema(ctx, db.Adapter())
	if err != nil {
		return nil, fmt.Errorf("database.DetectSchema() > %w", err)
	}
	slog.Default().Debug("detected schema",
		"dialect", db.Dialect().Name(),
		"recipe_tables", schema.RecipeTables,
		"auto_increment", schema.RecipeIDAutoIncrement)

	var redisCache *cache.RedisCache
	if cfg.Cache.Enabled() {
		redisCache, err = cache.Connect(ctx, cfg.Cache)
		if err != nil {
			slog.Default().Warn("search cache unavailable", "error", err)
		} else {
			a.AddShutdownHook(func(context.Context) error { return redisCache.Close() })
		}
	}

	catalog := newCatalog(db, schema, cfg, redisCache)
	a.AddShutdownHook(func(context.Context) error { return catalog.HomeAssistant.Close() })
	return catalog, nil
}

func newCatalog(db *database.DB, schema database.Schema, cfg *config.Config, redisCache *cache.RedisCache) *Catalog {
	recipeOpts := []recipe.Option{recipe.WithMaxAttempts(cfg.Allocator.MaxAttempts)}
	var searchOpts []search.Option
	if redisCache != nil {
		recipeOpts = append(recipeOpts, recipe.WithOnChange(redisCache.InvalidateOnChange))
		searchOpts = append(searchOpts, search.WithCache(redisCache))
	}

	aggregator := shopping.NewAggregator(db)
	shoppingService := shopping.NewService(db, aggregator)
	haClient := homeassistant.NewClient(cfg.HomeAssistant)
	return &Catalog{
		DB:            db,
		Schema:        schema,
		Recipes:       recipe.NewDBRepository(db, schema, recipeOpts...),
		Search:        search.NewEngine(db, schema, cfg.Search, searchOpts...),
		Menus:         menu.NewRepository(db, schema),
		Aggregator:    aggregator,
		Shopping:      shoppingService,
		HomeAssistant: haClient,
		Syncer:        homeassistant.NewSyncer(haClient, shoppingService),
	}
}
