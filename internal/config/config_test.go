package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squadutils/internal/config"
	"squadutils/internal/search"
	"squadutils/internal/squad"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SQUAD_HOST", "SQUAD_TOKEN", "SQUAD_GROUP", "SQUAD_PROJECT"} {
		t.Setenv(k, "")
	}
}

func TestLoad_FromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[squad]
url = "https://squad.example.com"
token = "file-token"
project = "linux-next-master"
timeout = "30s"
requests_per_second = 5.0
burst = 2

[search]
window = 20
parallel = 8
allow_unfinished = true
completion = "result"

[log]
level = "debug"
format = "json"
`)
	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://squad.example.com", cfg.Squad.URL)
	assert.Equal(t, "file-token", cfg.Squad.Token)
	assert.Equal(t, "lkft", cfg.Squad.Group, "unset keys keep their default")
	assert.Equal(t, "linux-next-master", cfg.Squad.Project)
	assert.Equal(t, 30*time.Second, cfg.Squad.Timeout)
	assert.Equal(t, 5.0, cfg.Squad.RequestsPerSecond)
	assert.Equal(t, 2, cfg.Squad.Burst)
	assert.Equal(t, 20, cfg.Search.Window)
	assert.Equal(t, 8, cfg.Search.Parallel)
	assert.True(t, cfg.Search.AllowUnfinished)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	c, err := cfg.Search.CompletionPredicate()
	require.NoError(t, err)
	assert.Equal(t, search.ResultTests, c)
}

func TestLoad_EnvVarsTakePrecedence(t *testing.T) {
	path := writeConfig(t, `
[squad]
url = "https://from-file"
token = "from-file"
group = "from-file"
`)
	t.Setenv("SQUAD_HOST", "https://from-env")
	t.Setenv("SQUAD_TOKEN", "env-token")
	t.Setenv("SQUAD_GROUP", "env-group")
	t.Setenv("SQUAD_PROJECT", "env-project")

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://from-env", cfg.Squad.URL)
	assert.Equal(t, "env-token", cfg.Squad.Token)
	assert.Equal(t, "env-group", cfg.Squad.Group)
	assert.Equal(t, "env-project", cfg.Squad.Project)
}

func TestLoad_MissingFileIsNotError(t *testing.T) {
	clearEnv(t)
	t.Setenv("SQUAD_TOKEN", "only-env")
	cfg, err := config.LoadFrom("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, "only-env", cfg.Squad.Token)
	assert.Equal(t, squad.DefaultURL, cfg.Squad.URL)
	assert.Equal(t, search.DefaultWindow, cfg.Search.Window)

	c, err := cfg.Search.CompletionPredicate()
	require.NoError(t, err)
	assert.Zero(t, c, "no completion predicate is chosen by default")
}

func TestLoad_TokenFile(t *testing.T) {
	clearEnv(t)
	tokenPath := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("  secret  \nignored\n"), 0o600))
	path := writeConfig(t, "[squad]\ntoken_file = \""+tokenPath+"\"\n")

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Squad.Token)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.LoadFrom(writeConfig(t, "[squad\nurl="))
	assert.Error(t, err)

	_, err = config.LoadFrom(writeConfig(t, "[squad]\nurll = \"typo\"\n"))
	assert.ErrorContains(t, err, "squad.urll")

	cfg, err := config.LoadFrom(writeConfig(t, "[search]\ncompletion = \"finished\"\n"))
	require.NoError(t, err)
	_, err = cfg.Search.CompletionPredicate()
	assert.Error(t, err)
}
