// Package history keeps a record of finished uploads.
//
// A Recorder listens for terminal upload events and saves one Record per
// task to a Store. Two stores are provided: an in-memory ring for running
// without a database, and a PostgreSQL store (pgx via database/sql) whose
// schema is managed by embedded goose migrations.
package history
