package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Stats.Backend)
	assert.Equal(t, 10, cfg.Session.DefaultCount)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
session:
  idle_ttl: 5m
  default_count: 3
stats:
  backend: sqlite
questions:
  file: data/questions.json
  persist_generated: true
`)
	t.Setenv("PORT", "9100")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port, "env overrides yaml")
	assert.Equal(t, "5m", cfg.Session.IdleTTL)
	assert.Equal(t, 3, cfg.Session.DefaultCount)
	assert.Equal(t, "sqlite", cfg.Stats.Backend)
	assert.True(t, cfg.Questions.PersistGenerated)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
}

func TestAIKeyPrefersExplicitSetting(t *testing.T) {
	t.Setenv("AI_API_KEY", "primary")
	t.Setenv("OPENAI_API_KEY", "fallback")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.AI.APIKey)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]string{
		"unknown backend":    "stats:\n  backend: mongo\n",
		"redis without addr": "stats:\n  backend: redis\n",
		"pg source no url":   "questions:\n  source: postgres\n",
		"redis sessions":     "session:\n  store: redis\n",
		"zero default count": "session:\n  default_count: 0\n",
		"bad yaml":           "server: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TTLDuration("5m", time.Second))
	assert.Equal(t, time.Second, TTLDuration("", time.Second))
	assert.Equal(t, time.Second, TTLDuration("soon", time.Second))
}
