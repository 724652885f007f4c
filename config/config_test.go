package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reside-ic/outpack-go/config"
)

func TestNewRequiresArchiveOrFileStore(t *testing.T) {
	_, err := config.New(config.Options{})
	require.Error(t, err)
}

func TestNewDefaultsHashAlgorithmAndLocalLocation(t *testing.T) {
	cfg, err := config.New(config.Options{UseFileStore: true})
	require.NoError(t, err)
	assert.Equal(t, "sha256", cfg.Core.HashAlgorithm)
	assert.True(t, cfg.Location.Has(config.ReservedLocal))
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.New(config.Options{UseFileStore: true})
	require.NoError(t, err)
	cfg.Location.Add(config.Location{Name: "up", Type: "path", Args: map[string]string{"path": "../up"}})

	require.NoError(t, config.Write(cfg, dir))

	loaded, err := config.Read(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Core.HashAlgorithm, loaded.Core.HashAlgorithm)
	assert.ElementsMatch(t, []string{config.ReservedLocal, "up"}, loaded.Location.Names())

	loc, ok := loaded.Location.Get("up")
	require.True(t, ok)
	assert.Equal(t, "path", loc.Type)
	assert.Equal(t, "../up", loc.Args["path"])
}

func TestReadMissingRepositoryErrors(t *testing.T) {
	_, err := config.Read(t.TempDir())
	require.Error(t, err)
}

func TestWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.New(config.Options{UseFileStore: true})
	require.NoError(t, err)
	require.NoError(t, config.Write(cfg, dir))

	entries, err := os.ReadDir(dir + "/.outpack")
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "tmp")
	}
}
