package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forbearing/sqlmap/catalog"
	"github.com/forbearing/sqlmap/config"
)

func TestInitDefaults(t *testing.T) {
	config.SetConfigName("sqlmap_test_defaults")
	config.SetConfigFile("")
	require.NoError(t, config.Init())

	require.True(t, config.App.Mapping.CacheEnabled)
	require.Equal(t, catalog.AutoMapPartial, config.App.Mapping.AutoMapping())
	require.Equal(t, "development", config.App.Environment.ID)
	require.Equal(t, "sqlite", config.App.Environment.Driver)
	require.Equal(t, "info", config.App.Logger.Level)
	require.Equal(t, []string{"equals", "clone", "hashCode", "toString"}, config.App.Mapping.LazyLoadTriggerMethods)
}

func TestInitFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlmap_test_file.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mapping:
  cache_enabled: false
  auto_mapping_behavior: FULL
environment:
  id: staging
  driver: mysql
`), 0o600))

	config.SetConfigFile(path)
	require.NoError(t, config.Init())
	config.SetConfigFile("")

	require.False(t, config.App.Mapping.CacheEnabled)
	require.Equal(t, catalog.AutoMapFull, config.App.Mapping.AutoMapping())
	require.Equal(t, "staging", config.App.Environment.ID)
	require.Equal(t, "mysql", config.App.Environment.Driver)
}

func TestInitRejectsUnknownTopLevelKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sqlmap_test_unknown.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mapping:
  cache_enabled: true
unknown_section:
  foo: bar
`), 0o600))

	config.SetConfigFile(path)
	defer config.SetConfigFile("")
	require.Error(t, config.Init())
}

type extraSection struct {
	Name string `mapstructure:"name" default:"hi"`
}

func TestRegisterGetFromEnv(t *testing.T) {
	// Set the override before Register: Register applies immediately
	// once Init has already run once in this process (inited latches
	// true for the process lifetime), so the env var must already be
	// in place for either code path to pick it up.
	t.Setenv("EXTRASECTION_NAME", "world")
	config.Register[extraSection]()

	config.SetConfigName("sqlmap_test_register")
	config.SetConfigFile("")
	require.NoError(t, config.Init())

	got := config.Get[extraSection]()
	require.Equal(t, "world", got.Name)
}
