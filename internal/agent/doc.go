// Package agent contains the orchestration loop that turns a natural-language
// request into validated plans of tool calls. A session perceives the request
// once, then alternates planning and execution rounds under a shared step
// budget, threading step results into later calls, and always finishes with a
// consolidated answer and a per-step trace.
package agent
