package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/AntonStoeckl/venuestore-go/venuestore/postgresengine"
)

const driverName = "postgres"

// PGXPoolConfig parses the DSN and applies the pool settings.
func (c ConnectionConfig) PGXPoolConfig() (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = c.MaxConns
	poolConfig.MinConns = c.MinConns
	poolConfig.MaxConnLifetime = c.MaxConnLifetime
	poolConfig.MaxConnIdleTime = c.MaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = c.ConnectTimeout

	return poolConfig, nil
}

// StalePGXPoolConfig is the pool config of the bounded-stale connection, carrying the staleness setting.
func (c Config) StalePGXPoolConfig() (*pgxpool.Config, error) {
	if c.BoundedStale == nil {
		return nil, postgresengine.ErrStaleConnectionNotConfigured
	}

	poolConfig, err := c.BoundedStale.PGXPoolConfig()
	if err != nil {
		return nil, err
	}

	c.StalenessSetting.ApplyToPGXConfig(poolConfig, c.Staleness)

	return poolConfig, nil
}

// StaleDSN is the bounded-stale DSN with the staleness setting added as a connection parameter,
// which lib/pq forwards as a runtime parameter. URL DSNs get it as a query parameter,
// keyword/value DSNs as one more key='value' pair.
func (c Config) StaleDSN() (string, error) {
	if c.BoundedStale == nil {
		return "", postgresengine.ErrStaleConnectionNotConfigured
	}

	dsn := c.BoundedStale.DSN
	if c.StalenessSetting.Parameter == "" {
		return dsn, nil
	}

	value := c.StalenessSetting.Value(c.Staleness)

	if !isURLDSN(dsn) {
		return strings.TrimSpace(dsn) + " " + c.StalenessSetting.Parameter + "=" + quoteDSNValue(value), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidValue, EnvStaleDSN, err)
	}

	q := u.Query()
	q.Set(c.StalenessSetting.Parameter, value)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func isURLDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// quoteDSNValue quotes a keyword/value DSN value, escaping backslashes and single quotes.
func quoteDSNValue(v string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

// OpenPGXPools opens a pgx pool per configured profile.
func (c Config) OpenPGXPools(ctx context.Context) (strong, stale *pgxpool.Pool, err error) {
	strongConfig, err := c.Strong.PGXPoolConfig()
	if err != nil {
		return nil, nil, err
	}

	strong, err = pgxpool.NewWithConfig(ctx, strongConfig)
	if err != nil {
		return nil, nil, err
	}

	if c.BoundedStale == nil {
		return strong, nil, nil
	}

	staleConfig, err := c.StalePGXPoolConfig()
	if err == nil {
		stale, err = pgxpool.NewWithConfig(ctx, staleConfig)
	}

	if err != nil {
		strong.Close()
		return nil, nil, err
	}

	return strong, stale, nil
}

// OpenSQLDBs opens a database/sql handle per configured profile through lib/pq and pings both.
func (c Config) OpenSQLDBs(ctx context.Context) (strong, stale *sql.DB, err error) {
	strong, err = c.openSQLDB(ctx, c.Strong, c.Strong.DSN)
	if err != nil {
		return nil, nil, err
	}

	if c.BoundedStale == nil {
		return strong, nil, nil
	}

	staleDSN, err := c.StaleDSN()
	if err == nil {
		stale, err = c.openSQLDB(ctx, *c.BoundedStale, staleDSN)
	}

	if err != nil {
		return nil, nil, errors.Join(err, strong.Close())
	}

	return strong, stale, nil
}

// OpenSQLX is OpenSQLDBs wrapped into sqlx handles.
func (c Config) OpenSQLX(ctx context.Context) (strong, stale *sqlx.DB, err error) {
	strongDB, staleDB, err := c.OpenSQLDBs(ctx)
	if err != nil {
		return nil, nil, err
	}

	strong = sqlx.NewDb(strongDB, driverName)
	if staleDB != nil {
		stale = sqlx.NewDb(staleDB, driverName)
	}

	return strong, stale, nil
}

func (c Config) openSQLDB(ctx context.Context, conn ConnectionConfig, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(int(conn.MaxConns))
	db.SetMaxIdleConns(int(conn.MinConns))
	db.SetConnMaxLifetime(conn.MaxConnLifetime)
	db.SetConnMaxIdleTime(conn.MaxConnIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, conn.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return db, nil
}
