package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moodsun/api/internal/config"
)

func TestMigrateMemoryStore(t *testing.T) {
	cmd := newRootCommand(config.Config{StoreDriver: config.DriverMemory, LogLevel: "error"})
	cmd.SetArgs([]string{"migrate"})
	require.NoError(t, cmd.Execute())
}

func TestStoreFlagOverridesEnvironment(t *testing.T) {
	cmd := newRootCommand(config.Config{StoreDriver: config.DriverMemory, LogLevel: "error"})
	cmd.SetArgs([]string{"migrate", "--store", "cassandra"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "cassandra"`)
}

func TestServeFlags(t *testing.T) {
	cmd := newRootCommand(config.Config{Addr: ":8787"})
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("addr"))
	assert.NotNil(t, cmd.Flags().Lookup("addr"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("store"))
}
