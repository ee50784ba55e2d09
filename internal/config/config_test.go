package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "substrate.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsWhenPathEmpty(t *testing.T) {
	store, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "substrate", store.String("app.name"))
	assert.EqualValues(t, 2, store.Int64("app.worker_threads"))
	assert.Equal(t, "info", store.String("logging.level"))
	assert.False(t, store.Bool("network.shell_enabled"))
}

func TestLoadParsesTOMLFile(t *testing.T) {
	path := writeTempConfig(t, `
[app]
name = "myapp"
worker_threads = 4
daemonize = true

[logging]
level = "debug"
components = ["table", "shell"]

[network]
shell_enabled = true
shell_address = "0.0.0.0:9000"
`)
	store, err := Load(path)
	require.NoError(t, err)

	cfg := store.Snapshot()
	assert.Equal(t, "myapp", cfg.App.Name)
	assert.Equal(t, 4, cfg.App.WorkerThreads)
	assert.True(t, cfg.App.Daemonize)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"table", "shell"}, cfg.Logging.Components)
	assert.True(t, cfg.Network.ShellEnabled)
	assert.Equal(t, "0.0.0.0:9000", cfg.Network.ShellAddress)
}

func TestLoadUnknownFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/path/substrate.toml")
	require.Error(t, err)
}

func TestReloadPicksUpChangedFile(t *testing.T) {
	path := writeTempConfig(t, `
[app]
name = "before"
`)
	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "before", store.String("app.name"))

	require.NoError(t, os.WriteFile(path, []byte(`
[app]
name = "after"
`), 0o644))
	require.NoError(t, store.Reload())
	assert.Equal(t, "after", store.String("app.name"))
}

func TestReloadWithoutPathIsNoOp(t *testing.T) {
	store, err := Load("")
	require.NoError(t, err)
	require.NoError(t, store.Reload())
	assert.Equal(t, "substrate", store.String("app.name"))
}

func TestIsSetReportsKeySetInFile(t *testing.T) {
	path := writeTempConfig(t, `
[app]
pid_file = "/var/run/substrate.pid"
`)
	store, err := Load(path)
	require.NoError(t, err)
	assert.True(t, store.IsSet("app.pid_file"))
}
