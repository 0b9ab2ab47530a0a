// Package sqlite provides the modernc.org/sqlite backed execution store.
//
// The package mirrors the postgres driver layout: a Store owning the
// connection, embedded goose migrations and an execution.Repository.
package sqlite
