package postgresengine

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

const (
	dialectPostgres = "postgres"

	// replicaLagQuery reports whether the replica replayed all WAL it received, and the age of the last
	// replayed transaction. On a primary both functions return NULL, which reads as not caught up with age 0.
	replicaLagQuery = "SELECT COALESCE(pg_last_wal_receive_lsn() = pg_last_wal_replay_lsn(), false), " +
		"COALESCE(EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp())), 0)::float8"
)

// keyExpression matches the primary key columns of t against keyValues.
func keyExpression(t venuestore.TableSchema, keyValues []any) (goqu.Ex, error) {
	if len(keyValues) != len(t.PrimaryKey) {
		return nil, errors.Join(venuestore.ErrBuildingQueryFailed, errors.New("key values do not match the primary key of "+t.Name))
	}

	ex := goqu.Ex{}
	for i, col := range t.PrimaryKey {
		ex[col] = keyValues[i]
	}

	return ex, nil
}

func columnsOf(t venuestore.TableSchema) []any {
	names := t.ColumnNames()
	cols := make([]any, len(names))
	for i, name := range names {
		cols[i] = goqu.C(name)
	}

	return cols
}

func toSQL(sqlQuery string, args []any, err error) (string, []any, error) {
	if err != nil {
		return "", nil, errors.Join(venuestore.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, args, nil
}

func buildInsert(t venuestore.TableSchema, row venuestore.Row) (string, []any, error) {
	record := goqu.Record{}
	for _, name := range t.ColumnNames() {
		record[name] = row[name]
	}

	return toSQL(goqu.Dialect(dialectPostgres).
		Insert(t.Name).
		Rows(record).
		Prepared(true).
		ToSQL())
}

func buildSelectByKey(t venuestore.TableSchema, keyValues []any) (string, []any, error) {
	where, err := keyExpression(t, keyValues)
	if err != nil {
		return "", nil, err
	}

	return toSQL(goqu.Dialect(dialectPostgres).
		From(t.Name).
		Select(columnsOf(t)...).
		Where(where).
		Prepared(true).
		ToSQL())
}

// buildConditionalUpdate writes every mutable column and bumps lock_version, guarded by the expected version.
func buildConditionalUpdate(
	t venuestore.TableSchema,
	row venuestore.Row,
	keyValues []any,
	expectedVersion int64,
	newVersion int64,
) (string, []any, error) {

	where, err := keyExpression(t, keyValues)
	if err != nil {
		return "", nil, err
	}

	where[venuestore.ColLockVersion] = expectedVersion

	record := goqu.Record{venuestore.ColLockVersion: newVersion}
	for _, name := range t.MutableColumns() {
		record[name] = row[name]
	}

	return toSQL(goqu.Dialect(dialectPostgres).
		Update(t.Name).
		Set(record).
		Where(where).
		Prepared(true).
		ToSQL())
}

func buildConditionalDelete(t venuestore.TableSchema, keyValues []any, expectedVersion int64) (string, []any, error) {
	where, err := keyExpression(t, keyValues)
	if err != nil {
		return "", nil, err
	}

	where[venuestore.ColLockVersion] = expectedVersion

	return toSQL(goqu.Dialect(dialectPostgres).
		Delete(t.Name).
		Where(where).
		Prepared(true).
		ToSQL())
}

func buildExists(t venuestore.TableSchema, keyValues []any) (string, []any, error) {
	where, err := keyExpression(t, keyValues)
	if err != nil {
		return "", nil, err
	}

	return toSQL(goqu.Dialect(dialectPostgres).
		From(t.Name).
		Select(goqu.L("1")).
		Where(where).
		Limit(1).
		Prepared(true).
		ToSQL())
}

func buildCountReferences(ref venuestore.Reference, value any) (string, []any, error) {
	return toSQL(goqu.Dialect(dialectPostgres).
		From(ref.Table).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.Ex{ref.ForeignKey.Column: value}).
		Prepared(true).
		ToSQL())
}
