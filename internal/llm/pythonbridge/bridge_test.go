package pythonbridge

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "MathAgent/internal/errors"
	"MathAgent/internal/llm"
)

const script = `import json, sys
req = json.load(sys.stdin)
if req["stage"] == "perceive":
    print(json.dumps({"intent": "calculation", "requires_tools": True, "confidence": 0.8,
                      "extracted_facts": [req["query"]]}))
else:
    print(json.dumps({"action_plan": [{"step_number": 1, "action_type": "tool_call",
                      "tool_name": "add", "parameters": {"input": {"a": 2, "b": 3}}}],
                      "should_continue": req["round"] < 2}))
`

func requirePython(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	return path
}

func TestBridgeRoundTrip(t *testing.T) {
	python := requirePython(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.py"), []byte(script), 0o644))

	client, err := NewClient(python, ResolveScriptPath(dir, "agent.py"), dir)
	require.NoError(t, err)

	intent, err := client.Perceive(context.Background(), llm.PerceptionRequest{Query: "Add 2 and 3"})
	require.NoError(t, err)
	assert.Equal(t, "calculation", intent.Label)
	assert.Equal(t, []string{"Add 2 and 3"}, intent.Facts)

	p, err := client.Plan(context.Background(), llm.PlanningRequest{Round: 1, Query: "Add 2 and 3", Intent: *intent})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, map[string]any{"a": 2.0, "b": 3.0}, p.Steps[0].Params)
	assert.True(t, p.Continue)
}

func TestBridgeScriptFailureIsIntentFailure(t *testing.T) {
	python := requirePython(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.py"), []byte("import sys\nsys.exit(3)\n"), 0o644))

	client, err := NewClient(python, filepath.Join(dir, "broken.py"), "")
	require.NoError(t, err)
	_, err = client.Perceive(context.Background(), llm.PerceptionRequest{Query: "x"})
	assert.Equal(t, xerrors.CodeIntentFailure, xerrors.CodeOf(err))
}

func TestResolveScriptPath(t *testing.T) {
	assert.Equal(t, "", ResolveScriptPath("/base", ""))
	assert.Equal(t, "/abs/x.py", ResolveScriptPath("/base", "/abs/x.py"))
	assert.Equal(t, filepath.Join("/base", "x.py"), ResolveScriptPath("/base", "x.py"))
	_, err := NewClient("", "", "")
	assert.Error(t, err)
}
