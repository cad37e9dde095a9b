// Package auth guards the HTTP API with bearer API keys scoped by permission.
package auth
