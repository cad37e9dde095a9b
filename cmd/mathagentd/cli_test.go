package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MathAgent/internal/agent"
	"MathAgent/internal/tools"
)

const scriptFixture = `
intent:
  intent: calculation
  requires_tools: true
  confidence: 0.95
plans:
  - action_plan:
      - step_number: 1
        action_type: tool_call
        tool_name: number_list_to_sum
        parameters:
          numbers: [1, 2, 3]
      - step_number: 2
        action_type: tool_call
        tool_name: multiply
        parameters:
          a: RESULT_FROM_STEP_1
          b: 2
    should_continue: false
`

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.yaml"), []byte(scriptFixture), 0o600))
	cfg := `
logging:
  level: error
  output_paths: [stderr]
llm:
  provider: scripted
  scripted:
    path: script.yaml
memory:
  sink: file
  dir: memory
metrics:
  enabled: false
`
	path := filepath.Join(dir, "mathagent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestToolsListsCatalog(t *testing.T) {
	cfgPath := writeFixture(t)

	stdout, err := executeCLI(t, "--config", cfgPath, "tools", "--json")
	require.NoError(t, err)

	var specs []tools.Spec
	require.NoError(t, json.Unmarshal([]byte(stdout), &specs))
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "add")
	assert.Contains(t, names, "send_gmail")
	assert.Contains(t, names, "fallback_reasoning")
	assert.NotContains(t, names, "calculate_salary_for_id")
}

func TestAskRunsScriptedSession(t *testing.T) {
	cfgPath := writeFixture(t)

	stdout, err := executeCLI(t, "--config", cfgPath, "ask", "--json", "sum 1, 2, 3 then double it")
	require.NoError(t, err)

	var res agent.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "6 | 12", res.Answer)
	assert.Equal(t, 2, res.Counter)
	require.Len(t, res.Trace, 2)

	saved, err := filepath.Glob(filepath.Join(filepath.Dir(cfgPath), "memory", "memory_*.json"))
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestAskPlainOutput(t *testing.T) {
	cfgPath := writeFixture(t)

	stdout, err := executeCLI(t, "--config", cfgPath, "ask", "sum", "then", "double")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Query: sum then double\nResult: 6 | 12\n")
	assert.Contains(t, stdout, "number_list_to_sum succeeded = 6")
}

func TestMissingConfigFails(t *testing.T) {
	_, err := executeCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "tools")
	require.Error(t, err)
}

func TestAskRequiresQuery(t *testing.T) {
	cfgPath := writeFixture(t)
	_, err := executeCLI(t, "--config", cfgPath, "ask")
	require.Error(t, err)
}
