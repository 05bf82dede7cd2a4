package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"qualify", "batch", "serve", "inventory", "markets"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "solar-router", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestInventoryCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range inventoryCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"migrate", "seed", "show", "release", "set-accepting"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd  string
		flag string
		def  string
	}{
		{"serve", "port", "0"},
		{"batch", "input", ""},
		{"batch", "limit", "0"},
		{"batch", "format", ""},
		{"qualify", "profile", ""},
		{"qualify", "zip", ""},
		{"qualify", "bill", "0"},
		{"qualify", "shading", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			cmd, _, err := rootCmd.Find([]string{tt.cmd})
			require.NoError(t, err)
			f := cmd.Flags().Lookup(tt.flag)
			require.NotNil(t, f, "%s should have --%s", tt.cmd, tt.flag)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestInitEngine_InvalidConfig(t *testing.T) {
	c := testConfig()
	c.Inventory.Driver = "cassandra"

	_, err := initEngine(context.Background(), c, "qualify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory.driver")
}

func TestInitEngine_MissingReference(t *testing.T) {
	c := testConfig()
	c.Reference.MarketsPath = "testdata/missing.yaml"

	_, err := initEngine(context.Background(), c, "qualify")
	assert.Error(t, err)

	c = testConfig()
	c.Reference.PlatformsPath = "testdata/missing.yaml"
	_, err = initEngine(context.Background(), c, "qualify")
	assert.Error(t, err)
}

func TestInitEngine_SeedsMemoryInventory(t *testing.T) {
	env := testEnv(t)

	platforms, err := env.Store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, platforms, 3)
}
