package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/recipebook/internal/bootstrap"
	"github.com/at-ishikawa/recipebook/internal/config"
	"github.com/at-ishikawa/recipebook/internal/database"
	"github.com/at-ishikawa/recipebook/schemas"
)

var (
	configFile string
	envFiles   []string
)

func main() {
	rootCommand := newRootCommand()
	if err := rootCommand.ExecuteContext(context.Background()); err != nil {
		if _, fprintfErr := fmt.Fprintf(os.Stderr, "failed to execute a command: %+v\n", err); fprintfErr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, fprintfErr))
		}
		os.Exit(1)
	}
	os.Exit(0)
}

func newRootCommand() *cobra.Command {
	var debugMode bool
	rootCommand := &cobra.Command{
		Use:           "recipebook",
		Short:         "Household recipe catalog, weekly menus and shopping lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(debugMode)
			return nil
		},
	}
	flags := rootCommand.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path")
	flags.StringSliceVar(&envFiles, "env-file", nil, ".env files to load before reading the environment")
	flags.BoolVar(&debugMode, "debug", false, "Enable debug mode")

	rootCommand.AddCommand(
		newMigrateCommand(),
		newRecipeCommand(),
		newSearchCommand(),
		newMenuCommand(),
		newShoppingCommand(),
	)
	return rootCommand
}

// setupLogger configures the default logger based on debug mode
func setupLogger(debugMode bool) {
	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		})),
	)
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}

// withCatalog runs fn against a freshly opened catalog and closes it afterwards.
func withCatalog(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, catalog *bootstrap.Catalog) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app := bootstrap.New()
	return app.Run(cmd.Context(), func(ctx context.Context) error {
		catalog, err := app.OpenCatalog(ctx, cfg)
		if err != nil {
			return err
		}
		return fn(ctx, cfg, catalog)
	})
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app := bootstrap.New()
			return app.Run(cmd.Context(), func(ctx context.Context) error {
				db, err := app.OpenDatabase(ctx, cfg.Database)
				if err != nil {
					return err
				}
				migrations, err := schemas.For(db.Dialect().Name())
				if err != nil {
					return err
				}
				version, err := database.Migrate(ctx, cfg.Database, migrations)
				if err != nil {
					return fmt.Errorf("database.Migrate() > %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schema for %s is at version %d\n", db.Dialect().Name(), version)
				return nil
			})
		},
	}
}
