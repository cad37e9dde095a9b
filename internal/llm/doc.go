// Package llm defines the two reasoning collaborators of a session, the
// Perceiver (request to Intent) and the Planner (Intent plus facts to Plan),
// and adapts any text Generator into both of them.
//
// Provider specific generators live in sub-packages: openai, gemini,
// pythonbridge and scripted.
package llm
