package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mathagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 50, cfg.Agent.MaxSteps)
	assert.Equal(t, 5, cfg.Agent.RetrievalTopK)
	assert.InDelta(t, 0.3, cfg.Agent.MinRelevance, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Agent.CollaboratorTimeout)
	assert.ElementsMatch(t, DefaultNonComputationalTools, cfg.Agent.NonComputationalTools)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "g-key", cfg.LLM.Gemini.APIKey)
	assert.Equal(t, "memory", cfg.TaskQueue.Driver)
	assert.Equal(t, "file", cfg.Memory.Sink)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 465, cfg.Tools.Mail.Port)
}

func TestLoadFileResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: scripted
  scripted:
    path: fixtures/session.yaml
memory:
  sink: none
  dir: state
tools:
  salary_db: data/salary.db
agent:
  max_steps: 12
`)
	base := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "fixtures/session.yaml"), cfg.LLM.Scripted.Path)
	assert.Equal(t, filepath.Join(base, "state"), cfg.Memory.Dir)
	assert.Equal(t, filepath.Join(base, "data/salary.db"), cfg.Tools.SalaryDB)
	assert.Equal(t, 12, cfg.Agent.MaxSteps)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MATHAGENT_LLM_PROVIDER", "openai")
	t.Setenv("MATHAGENT_TASK_QUEUE_WORKERS", "9")
	t.Setenv("OPENAI_API_KEY", " sk-test ")
	t.Setenv("GMAIL_ADDRESS", "bot@example.com")
	t.Setenv("GMAIL_APP_PASSWORD", "secret")
	t.Setenv("RECIPIENT_EMAIL", "a@example.com, b@example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 9, cfg.TaskQueue.Workers)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
	assert.True(t, cfg.Tools.Mail.Enabled())
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Tools.Mail.To)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "task_queue:\n  driver: kafka\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeInvalidArgument))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeNotFound))
}

func TestLoadAuthKeys(t *testing.T) {
	path := writeConfig(t, `
server:
  auth:
    enabled: true
    keys:
      - name: ops
        key_env: OPS_KEY
        permissions: [tasks:read]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Server.Auth.Enabled)
	require.Len(t, cfg.Server.Auth.Keys, 1)
	assert.Equal(t, "OPS_KEY", cfg.Server.Auth.Keys[0].KeyEnv)
	assert.Equal(t, []string{"tasks:read"}, cfg.Server.Auth.Keys[0].Permissions)
}
