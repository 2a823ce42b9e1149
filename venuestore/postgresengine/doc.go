// Package postgresengine provides a PostgreSQL implementation of venuestore.Engine.
//
// It works with any server speaking the PostgreSQL wire protocol, including PGAdapter,
// and supports multiple database adapters (pgx, sql.DB, sqlx). Two connections are used:
// the strong one for writes and strong reads, and an optional bounded-stale one for
// reads that tolerate lag.
//
// Key features:
//   - Conditional single-row writes guarded by lock_version
//   - Constraint violations mapped from SQLSTATE for both pgx and lib/pq errors
//   - Schema provisioning from venuestore.Schema
//   - Optional replica-lag probe and staleness session parameter for the stale connection
//
// Usage examples:
//
//	strong, _ := pgxpool.New(ctx, strongDSN)
//	stale, _ := pgxpool.New(ctx, staleDSN)
//	engine, _ := postgresengine.NewEngineFromPGXPools(strong, stale, postgresengine.WithLogger(logger))
//
//	_ = engine.ProvisionSchema(ctx)
//	facade, _ := venuestore.NewFacade(engine)
package postgresengine
