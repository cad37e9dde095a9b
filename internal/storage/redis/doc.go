// Package redis builds the shared Redis client used by the memory sink and
// the task queue.
package redis
