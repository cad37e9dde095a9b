// Package mysql provides the MySQL connection, the embedded schema migrations
// and a memory.Sink that stores session snapshots in relational tables.
package mysql
