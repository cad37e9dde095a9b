// Package memory implements the per-session fact store: an append-only list of
// timestamped facts, a preference map and a context map, with keyword based
// retrieval and whole-state persistence through a Sink.
//
// A State belongs to exactly one session and is not safe for concurrent use.
package memory
