package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"MathAgent/internal/plan"
)

const perceptionSystem = `You are the perception module of a math agent.
Read the user's request and answer with one JSON object:
{
  "intent": "short label such as calculation, lookup, delivery",
  "entities": {"name": "value"},
  "thought_type": "arithmetic | algebra | geometry | statistics | logic | lookup | planning",
  "extracted_facts": ["short factual statements found in the request"],
  "requires_tools": true,
  "confidence": 0.0
}
Output JSON only.`

const planningSystem = `You are the decision module of a math agent.
Produce the next plan as one JSON object:
{
  "action_plan": [
    {"step_number": 1, "action_type": "tool_call", "description": "...", "tool_name": "...",
     "parameters": {"input": {"param": "value"}}, "reasoning": "..."},
    {"step_number": 2, "action_type": "response", "description": "...", "reasoning": "..."}
  ],
  "reasoning": "...",
  "expected_outcome": "...",
  "confidence": 0.0,
  "should_continue": false,
  "self_check": {"plan_verified": true, "tools_available": true, "parameters_complete": true, "rationale": "..."},
  "fallback": [{"condition": "...", "action": "...", "tool": "fallback_reasoning"}]
}
Rules:
1. Only use tools from the catalog, with exactly the parameters they declare.
2. Use "%s<N>" as a parameter value to pass the result of step N to a later step.
3. Number steps from 1 without gaps.
4. Set should_continue to true only when another planning round is needed after these steps run.
Output JSON only.`

func perceptionPrompt(req PerceptionRequest) Prompt {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(req.Query)
	if len(req.Preferences) > 0 {
		prefs, _ := json.Marshal(req.Preferences)
		b.WriteString("\nPreferences: ")
		b.Write(prefs)
	}
	return Prompt{System: perceptionSystem, User: b.String(), JSON: true}
}

func planningPrompt(req PlanningRequest) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", req.Query)
	intent, _ := json.Marshal(req.Intent)
	fmt.Fprintf(&b, "Intent: %s\n", intent)

	b.WriteString("\nTools:\n")
	for _, spec := range req.Catalog {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Signature(), spec.Description)
	}

	if len(req.Facts) > 0 {
		b.WriteString("\nRelevant facts:\n")
		for _, f := range req.Facts {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Source, f.Content)
		}
	}

	if len(req.Completed) > 0 {
		fmt.Fprintf(&b, "\nThis is planning round %d. Steps already executed:\n", req.Round)
		for _, s := range req.Completed {
			if s.Success {
				fmt.Fprintf(&b, "- round %d step %d %s succeeded: %s\n", s.Round, s.Number, s.Tool, s.Value)
			} else {
				fmt.Fprintf(&b, "- round %d step %d %s failed: %s\n", s.Round, s.Number, s.Tool, s.Error)
			}
		}
		b.WriteString("Plan only the remaining work; step references restart at 1 in this plan.\n")
	}
	return Prompt{System: fmt.Sprintf(planningSystem, plan.RefPrefix), User: b.String(), JSON: true}
}
