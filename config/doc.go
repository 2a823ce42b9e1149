// Package config loads the connection configuration of both connection profiles from the
// environment, optionally seeded from a .env file, and opens the matching connection pools.
//
// Recognized variables:
//
//	VENUESTORE_STRONG_DSN            required, DSN of the strong connection
//	VENUESTORE_STALE_DSN             optional, DSN of the bounded-stale connection
//	VENUESTORE_MAX_CONNS             pool size per connection, default 50
//	VENUESTORE_MIN_CONNS             idle connections kept per pool, default 2
//	VENUESTORE_CONN_MAX_LIFETIME     default 1h
//	VENUESTORE_CONN_MAX_IDLE_TIME    default 5m
//	VENUESTORE_CONNECT_TIMEOUT       default 5s
//	VENUESTORE_STALENESS             bound of bounded-stale reads, default 10s
//	VENUESTORE_STALENESS_PARAMETER   session parameter carrying the bound, e.g. spanner.read_only_staleness
//	VENUESTORE_REPLICA_LAG_PROBE     probe the replay lag of the stale connection, default false
package config
