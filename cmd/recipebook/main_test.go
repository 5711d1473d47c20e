package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/recipebook/internal/testutil"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name      string
		debugMode bool
		wantLevel slog.Level
	}{
		{
			name:      "debug mode enabled",
			debugMode: true,
			wantLevel: slog.LevelDebug,
		},
		{
			name:      "debug mode disabled",
			debugMode: false,
			wantLevel: slog.LevelInfo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupLogger(tt.debugMode)
			logger := slog.Default()
			assert.NotNil(t, logger)
			assert.Equal(t, tt.wantLevel <= slog.LevelDebug, logger.Enabled(context.Background(), slog.LevelDebug))
		})
	}
}

func subcommandNames(cmd *cobra.Command) []string {
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	return names
}

func TestNewRootCommand(t *testing.T) {
	cmd := newRootCommand()

	assert.Equal(t, "recipebook", cmd.Use)
	for _, name := range []string{"config", "env-file", "debug"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.ElementsMatch(t, []string{"migrate", "recipe", "search", "menu", "shopping"}, subcommandNames(cmd))
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		name string
		cmd  *cobra.Command
		want []string
	}{
		{
			name: "recipe",
			cmd:  newRecipeCommand(),
			want: []string{"list", "get", "delete", "import", "export"},
		},
		{
			name: "search",
			cmd:  newSearchCommand(),
			want: []string{"ingredients", "suggest", "name"},
		},
		{
			name: "menu",
			cmd:  newMenuCommand(),
			want: []string{"list", "get", "active", "activate", "delete", "create", "add-item", "remove-item"},
		},
		{
			name: "shopping",
			cmd:  newShoppingCommand(),
			want: []string{"generate", "show", "check", "add", "remove", "delete-list", "export", "sync"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.cmd.Use)
			assert.ElementsMatch(t, tt.want, subcommandNames(tt.cmd))

			outputFlag := tt.cmd.PersistentFlags().Lookup("output")
			require.NotNil(t, outputFlag)
			assert.Equal(t, "text", outputFlag.DefValue)
		})
	}
}

func TestNewMigrateCommand(t *testing.T) {
	cmd := newMigrateCommand()

	assert.Equal(t, "migrate", cmd.Use)
	assert.Equal(t, "Create the catalog tables", cmd.Short)
	assert.NotNil(t, cmd.RunE)
}

func TestCommands_InvalidConfig(t *testing.T) {
	cfgPath := testutil.SetupBrokenConfigFile(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "migrate", args: []string{"migrate"}},
		{name: "recipe list", args: []string{"recipe", "list"}},
		{name: "search ingredients", args: []string{"search", "ingredients", "egg"}},
		{name: "menu active", args: []string{"menu", "active"}},
		{name: "shopping show", args: []string{"shopping", "show"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs(append(tt.args, "--config", cfgPath))
			cmd.SetOut(&bytes.Buffer{})
			err := cmd.ExecuteContext(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "could not be read")
		})
	}
}

func TestCommands_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "non numeric recipe id", args: []string{"recipe", "get", "abc"}, wantErr: `invalid id "abc"`},
		{name: "zero menu id", args: []string{"menu", "get", "0"}, wantErr: `invalid id "0"`},
		{name: "bad week start", args: []string{"menu", "create", "--start", "next week"}, wantErr: "expected YYYY-MM-DD"},
		{name: "bad day", args: []string{"menu", "add-item", "1", "--day", "someday", "--recipe", "2"}, wantErr: "invalid day"},
		{name: "bad output", args: []string{"recipe", "list", "--output", "xml"}, wantErr: "invalid value"},
		{name: "missing week start", args: []string{"menu", "create"}, wantErr: "start"},
		{name: "missing item id", args: []string{"menu", "remove-item", "1"}, wantErr: "accepts 2 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := cmd.ExecuteContext(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrateCommand_UnreachableDatabase(t *testing.T) {
	cfgPath := testutil.SetupTestConfig(t, t.TempDir())

	cmd := newRootCommand()
	cmd.SetArgs([]string{"migrate", "--config", cfgPath})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	assert.Error(t, err)
}
