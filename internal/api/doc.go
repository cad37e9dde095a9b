// Package api exposes the MathAgent HTTP surface: synchronous queries, the
// asynchronous task endpoints, the tool catalog and health/metrics probes.
package api
