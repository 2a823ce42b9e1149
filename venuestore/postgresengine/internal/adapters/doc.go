// Package adapters provide database adapter implementations for the PostgreSQL storage engine.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgxpool.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface, so the engine works with any supported connection type.
//
// One adapter wraps the pool of one connection profile. The engine holds one for the strong
// profile and, optionally, one for the bounded-stale profile.
package adapters
