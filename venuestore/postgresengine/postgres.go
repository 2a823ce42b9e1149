package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
	"github.com/AntonStoeckl/venuestore-go/venuestore/postgresengine/internal/adapters"
)

const (
	logMsgBuildQueryFailed   = "failed to build query"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgVersionConflict    = "version conflict detected"
	logMsgSQLExecuted        = "executed sql for: "
	logAttrError             = "error"
	logAttrQuery             = "query"
	logAttrTable             = "table"
	logAttrDurationMS        = "duration_ms"
	logAttrProfile           = "profile"
	logAttrExpectedVersion   = "expected_version"
	logActionInsert          = "insert"
	logActionLoad            = "load"
	logActionUpdate          = "update"
	logActionDelete          = "delete"
	logActionExists          = "exists"
	logActionCountReferences = "count references"
	logActionProbe           = "probe"
	logActionDDL             = "ddl"
)

var (
	// ErrStaleConnectionNotConfigured is reported by ProbeProfile when no bounded-stale connection was given.
	ErrStaleConnectionNotConfigured = errors.New("no bounded-stale connection configured")

	// ErrReplicaLagExceeded is reported by ProbeProfile when the replica lags beyond the profile's bound.
	ErrReplicaLagExceeded = errors.New("replica lag exceeds the staleness bound")
)

// Engine is a venuestore.Engine on top of PostgreSQL or any server speaking its wire protocol.
// Writes and strong reads use the strong connection, bounded-stale reads the stale one.
type Engine struct {
	strong           adapters.DBAdapter
	stale            adapters.DBAdapter
	logger           Logger
	contextualLogger ContextualLogger
	replicaLagProbe  bool
}

// NewEngineFromPGXPools creates a new Engine using pgx pools. stale may be nil, in which case
// bounded-stale reads are unavailable.
func NewEngineFromPGXPools(strong, stale *pgxpool.Pool, options ...Option) (*Engine, error) {
	if strong == nil {
		return nil, venuestore.ErrNilDatabaseConnection
	}

	e := &Engine{strong: adapters.NewPGXAdapter(strong)}
	if stale != nil {
		e.stale = adapters.NewPGXAdapter(stale)
	}

	return e.apply(options)
}

// NewEngineFromSQLDBs creates a new Engine using sql.DB handles. stale may be nil.
func NewEngineFromSQLDBs(strong, stale *sql.DB, options ...Option) (*Engine, error) {
	if strong == nil {
		return nil, venuestore.ErrNilDatabaseConnection
	}

	e := &Engine{strong: adapters.NewSQLAdapter(strong)}
	if stale != nil {
		e.stale = adapters.NewSQLAdapter(stale)
	}

	return e.apply(options)
}

// NewEngineFromSQLX creates a new Engine using sqlx.DB handles. stale may be nil.
func NewEngineFromSQLX(strong, stale *sqlx.DB, options ...Option) (*Engine, error) {
	if strong == nil {
		return nil, venuestore.ErrNilDatabaseConnection
	}

	e := &Engine{strong: adapters.NewSQLXAdapter(strong)}
	if stale != nil {
		e.stale = adapters.NewSQLXAdapter(stale)
	}

	return e.apply(options)
}

func (e *Engine) apply(options []Option) (*Engine, error) {
	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// ProbeProfile checks that the connection of profile is configured and reachable. With
// WithReplicaLagProbe it also fails when the stale connection lags beyond profile.Staleness.
func (e *Engine) ProbeProfile(ctx context.Context, profile venuestore.ConnectionProfile) error {
	if profile.Name == venuestore.ProfileStrong {
		return nil
	}

	if e.stale == nil {
		return ErrStaleConnectionNotConfigured
	}

	if err := e.stale.Ping(ctx); err != nil {
		return err
	}

	if !e.replicaLagProbe {
		return nil
	}

	lag, err := e.replicaLag(ctx)
	if err != nil {
		return err
	}

	if lag > profile.Staleness {
		return fmt.Errorf("%w: lag %s, bound %s", ErrReplicaLagExceeded, lag, profile.Staleness)
	}

	return nil
}

func (e *Engine) replicaLag(ctx context.Context) (time.Duration, error) {
	rows, err := e.query(ctx, e.stale, replicaLagQuery, nil, logActionProbe)
	if err != nil {
		return 0, err
	}
	defer e.closeRows(rows)

	var caughtUp bool
	var seconds float64
	if rows.Next() {
		if err := rows.Scan(&caughtUp, &seconds); err != nil {
			return 0, errors.Join(venuestore.ErrScanningDBRowFailed, err)
		}
	}

	return replicaLagOf(caughtUp, seconds), rows.Err()
}

// replicaLagOf is zero for a replica that replayed everything it received. Otherwise it is the
// age of the last replayed transaction, which keeps growing while the primary is idle.
func replicaLagOf(caughtUp bool, secondsSinceLastReplay float64) time.Duration {
	if caughtUp || secondsSinceLastReplay <= 0 {
		return 0
	}

	return time.Duration(secondsSinceLastReplay * float64(time.Second))
}

// Insert stores a new row.
func (e *Engine) Insert(ctx context.Context, ent venuestore.Entity) error {
	t, row, err := schemaAndRow(ent)
	if err != nil {
		return err
	}

	sqlQuery, args, err := buildInsert(t, row)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err, logAttrTable, t.Name)
		return err
	}

	if _, err := e.exec(ctx, sqlQuery, args, logActionInsert); err != nil {
		return mapWriteError(t.Name, err)
	}

	return nil
}

// Load fills dst from the connection of profile.
func (e *Engine) Load(ctx context.Context, profile venuestore.ConnectionProfile, dst venuestore.Entity) error {
	if dst == nil {
		return venuestore.ErrNilEntity
	}

	t, err := venuestore.TableByName(dst.TableName())
	if err != nil {
		return err
	}

	db := e.strong
	if profile.Name == venuestore.ProfileBoundedStale {
		if e.stale == nil {
			return errors.Join(venuestore.ErrRouteUnavailable, ErrStaleConnectionNotConfigured)
		}

		db = e.stale
	}

	sqlQuery, args, err := buildSelectByKey(t, dst.KeyValues())
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err, logAttrTable, t.Name)
		return err
	}

	rows, err := e.query(ctx, db, sqlQuery, args, logActionLoad)
	if err != nil {
		return err
	}
	defer e.closeRows(rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return errors.Join(venuestore.ErrQueryingFailed, err)
		}

		return venuestore.ErrNotFound
	}

	if err := rows.Scan(dst.ScanTargets()...); err != nil {
		e.logError(ctx, logMsgScanRowFailed, err, logAttrTable, t.Name, logAttrProfile, string(profile.Name))
		return errors.Join(venuestore.ErrScanningDBRowFailed, err)
	}

	return nil
}

// UpdateIfVersion writes intent.Payload with lock_version = NewVersion where lock_version = ExpectedVersion.
// Zero rows affected is resolved into ErrNotFound or ErrVersionConflict.
func (e *Engine) UpdateIfVersion(ctx context.Context, intent venuestore.WriteIntent) error {
	if intent.Payload == nil {
		return venuestore.ErrNilEntity
	}

	t, row, err := schemaAndRow(intent.Payload)
	if err != nil {
		return err
	}

	sqlQuery, args, err := buildConditionalUpdate(t, row, intent.Payload.KeyValues(), intent.ExpectedVersion, intent.NewVersion)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err, logAttrTable, t.Name)
		return err
	}

	affected, err := e.exec(ctx, sqlQuery, args, logActionUpdate)
	if err != nil {
		return mapWriteError(t.Name, err)
	}

	if affected == 0 {
		return e.resolveMiss(ctx, t, intent.Payload.KeyValues(), intent.ExpectedVersion)
	}

	return nil
}

// DeleteIfVersion deletes the row where lock_version = ExpectedVersion.
func (e *Engine) DeleteIfVersion(ctx context.Context, key venuestore.Entity, intent venuestore.WriteIntent) error {
	if key == nil {
		return venuestore.ErrNilEntity
	}

	t, err := venuestore.TableByName(key.TableName())
	if err != nil {
		return err
	}

	sqlQuery, args, err := buildConditionalDelete(t, key.KeyValues(), intent.ExpectedVersion)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err, logAttrTable, t.Name)
		return err
	}

	affected, err := e.exec(ctx, sqlQuery, args, logActionDelete)
	if err != nil {
		return mapDeleteError(t.Name, err)
	}

	if affected == 0 {
		return e.resolveMiss(ctx, t, key.KeyValues(), intent.ExpectedVersion)
	}

	return nil
}

// resolveMiss tells a missing row from a stale version after a conditional write matched nothing.
func (e *Engine) resolveMiss(ctx context.Context, t venuestore.TableSchema, keyValues []any, expectedVersion int64) error {
	exists, err := e.Exists(ctx, t.Name, keyValues)
	if err != nil {
		return err
	}

	if !exists {
		return venuestore.ErrNotFound
	}

	e.logOperation(ctx, logMsgVersionConflict, logAttrTable, t.Name, logAttrExpectedVersion, expectedVersion)

	return venuestore.ErrVersionConflict
}

// Exists reports whether a row with the given key exists on the strong connection.
func (e *Engine) Exists(ctx context.Context, table string, keyValues []any) (bool, error) {
	t, err := venuestore.TableByName(table)
	if err != nil {
		return false, err
	}

	sqlQuery, args, err := buildExists(t, keyValues)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err, logAttrTable, t.Name)
		return false, err
	}

	rows, err := e.query(ctx, e.strong, sqlQuery, args, logActionExists)
	if err != nil {
		return false, err
	}
	defer e.closeRows(rows)

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, errors.Join(venuestore.ErrQueryingFailed, err)
	}

	return found, nil
}

// CountReferences counts rows of ref.Table whose foreign key column equals value.
func (e *Engine) CountReferences(ctx context.Context, ref venuestore.Reference, value any) (int64, error) {
	sqlQuery, args, err := buildCountReferences(ref, value)
	if err != nil {
		e.logError(ctx, logMsgBuildQueryFailed, err, logAttrTable, ref.Table)
		return 0, err
	}

	rows, err := e.query(ctx, e.strong, sqlQuery, args, logActionCountReferences)
	if err != nil {
		return 0, err
	}
	defer e.closeRows(rows)

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, errors.Join(venuestore.ErrScanningDBRowFailed, err)
		}
	}

	return count, rows.Err()
}

// query executes a query and logs it with timing information.
func (e *Engine) query(ctx context.Context, db adapters.DBAdapter, sqlQuery string, args []any, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := db.Query(ctx, sqlQuery, args...)
	e.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if err != nil {
		e.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
		return nil, errors.Join(venuestore.ErrQueryingFailed, err)
	}

	return rows, nil
}

// exec executes a statement on the strong connection and returns the rows affected.
func (e *Engine) exec(ctx context.Context, sqlQuery string, args []any, action string) (int64, error) {
	start := time.Now()
	result, err := e.strong.Exec(ctx, sqlQuery, args...)
	e.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if err != nil {
		e.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return 0, errors.Join(venuestore.ErrExecutingFailed, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		e.logError(ctx, logMsgRowsAffectedFailed, err)
		return 0, errors.Join(venuestore.ErrGettingRowsAffectedFailed, err)
	}

	return affected, nil
}

// closeRows safely closes database rows and logs any errors.
func (e *Engine) closeRows(rows adapters.DBRows) {
	if err := rows.Close(); err != nil && e.logger != nil {
		e.logger.Warn(logMsgCloseRowsFailed, logAttrError, err.Error())
	}
}

func schemaAndRow(ent venuestore.Entity) (venuestore.TableSchema, venuestore.Row, error) {
	if ent == nil {
		return venuestore.TableSchema{}, nil, venuestore.ErrNilEntity
	}

	t, err := venuestore.TableByName(ent.TableName())
	if err != nil {
		return venuestore.TableSchema{}, nil, err
	}

	row, err := venuestore.RowOf(ent)
	if err != nil {
		return venuestore.TableSchema{}, nil, err
	}

	return t, row, nil
}

var _ venuestore.Engine = (*Engine)(nil)
