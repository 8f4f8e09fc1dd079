// Package database provides the PostgreSQL connection pool and schema for
// the chat archive.
package database
