package memengine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

// ErrStaleReplicaUnavailable is reported by ProbeProfile while the bounded-stale replica is switched off.
var ErrStaleReplicaUnavailable = errors.New("bounded-stale replica is unavailable")

// ErrReplicaLagExceeded is reported by ProbeProfile when the replica lags beyond the profile's bound.
var ErrReplicaLagExceeded = errors.New("replica lag exceeds the staleness bound")

// revision is one committed state of a row. A nil row marks a delete.
type revision struct {
	committedAt time.Time
	row         venuestore.Entity
}

// Engine is an in-memory venuestore.Engine. It enforces primary key, foreign key, not null and
// check constraints like the relational schema does, and applies conditional writes atomically.
//
// The bounded-stale profile is served by a simulated replica that sees the committed state
// as of now minus the configured replica lag.
type Engine struct {
	mu               sync.RWMutex
	tables           map[string]map[string][]revision
	clock            func() time.Time
	replicaLag       time.Duration
	staleUnavailable bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithClock replaces the clock used to timestamp commits and to evaluate replica lag.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		e.clock = clock
		return nil
	}
}

// WithReplicaLag makes bounded-stale reads see the state as of now minus lag.
func WithReplicaLag(lag time.Duration) Option {
	return func(e *Engine) error {
		if lag < 0 {
			return fmt.Errorf("replica lag must not be negative: %s", lag)
		}

		e.replicaLag = lag

		return nil
	}
}

// WithoutStaleReplica starts the engine with the bounded-stale replica switched off.
func WithoutStaleReplica() Option {
	return func(e *Engine) error {
		e.staleUnavailable = true
		return nil
	}
}

// New creates an empty Engine with a table for every table of venuestore.Schema.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		tables: make(map[string]map[string][]revision),
		clock:  time.Now,
	}

	for _, t := range venuestore.Schema() {
		e.tables[t.Name] = make(map[string][]revision)
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// SetReplicaLag changes the simulated replica lag. Revisions pruned under a shorter lag are not restored.
func (e *Engine) SetReplicaLag(lag time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.replicaLag = lag
}

// SetStaleReplicaAvailable switches the bounded-stale replica on or off.
func (e *Engine) SetStaleReplicaAvailable(available bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.staleUnavailable = !available
}

// Count returns the number of live rows in table.
func (e *Engine) Count(table string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, revisions := range e.tables[table] {
		if latest(revisions) != nil {
			n++
		}
	}

	return n
}

// ProbeProfile reports whether the connection behind profile can serve reads.
func (e *Engine) ProbeProfile(ctx context.Context, profile venuestore.ConnectionProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if profile.Name == venuestore.ProfileStrong {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.staleUnavailable {
		return ErrStaleReplicaUnavailable
	}

	if e.replicaLag > profile.Staleness {
		return fmt.Errorf("%w: lag %s, bound %s", ErrReplicaLagExceeded, e.replicaLag, profile.Staleness)
	}

	return nil
}

// Insert stores a new row.
func (e *Engine) Insert(ctx context.Context, ent venuestore.Entity) error {
	t, row, err := schemaAndRow(ent)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rows := e.tables[t.Name]
	key := keyOf(ent.KeyValues())

	if latest(rows[key]) != nil {
		return &venuestore.ConstraintError{Table: t.Name, Kind: venuestore.ConstraintUnique, Constraint: t.Name + "_pkey"}
	}

	if err := e.checkConstraints(t, row); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e.commit(rows, key, revision{committedAt: e.clock(), row: ent.Clone()})

	return nil
}

// Load fills dst from the strong state or, for the bounded-stale profile, from the lagging replica.
func (e *Engine) Load(ctx context.Context, profile venuestore.ConnectionProfile, dst venuestore.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok := e.tables[dst.TableName()]; !ok {
		return fmt.Errorf("%w: %s", venuestore.ErrUnknownTable, dst.TableName())
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	revisions := e.tables[dst.TableName()][keyOf(dst.KeyValues())]

	var found venuestore.Entity
	if profile.Name == venuestore.ProfileBoundedStale {
		found = asOf(revisions, e.clock().Add(-e.replicaLag))
	} else {
		found = latest(revisions)
	}

	if found == nil {
		return venuestore.ErrNotFound
	}

	return copyInto(dst, found)
}

// UpdateIfVersion replaces the row if its stored lock_version matches the intent.
func (e *Engine) UpdateIfVersion(ctx context.Context, intent venuestore.WriteIntent) error {
	if intent.Payload == nil {
		return venuestore.ErrNilEntity
	}

	t, row, err := schemaAndRow(intent.Payload)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rows := e.tables[t.Name]
	key := keyOf(intent.Payload.KeyValues())

	current := latest(rows[key])
	if current == nil {
		return venuestore.ErrNotFound
	}

	if err := venuestore.ApplyIfMatch(current.Meta().LockVersion, intent); err != nil {
		return err
	}

	if err := e.checkConstraints(t, row); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	next := intent.Payload.Clone()
	next.Meta().LockVersion = intent.NewVersion
	e.commit(rows, key, revision{committedAt: e.clock(), row: next})

	return nil
}

// DeleteIfVersion removes the row if its stored lock_version matches and nothing references it.
func (e *Engine) DeleteIfVersion(ctx context.Context, key venuestore.Entity, intent venuestore.WriteIntent) error {
	if key == nil {
		return venuestore.ErrNilEntity
	}

	t, err := venuestore.TableByName(key.TableName())
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rows := e.tables[t.Name]
	k := keyOf(key.KeyValues())

	current := latest(rows[k])
	if current == nil {
		return venuestore.ErrNotFound
	}

	if err := venuestore.ApplyIfMatch(current.Meta().LockVersion, intent); err != nil {
		return err
	}

	if keyValues := key.KeyValues(); len(keyValues) == 1 {
		for _, ref := range venuestore.ReferencesTo(t.Name) {
			if n := e.countReferences(ref, keyValues[0]); n > 0 {
				return fmt.Errorf("%w: %d %s row(s) via %s", venuestore.ErrReferentialIntegrity, n, ref.Table, ref.ForeignKey.Name)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e.commit(rows, k, revision{committedAt: e.clock()})

	return nil
}

// Exists reports whether a live row with the given key exists.
func (e *Engine) Exists(ctx context.Context, table string, keyValues []any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.exists(table, keyValues)
}

// CountReferences counts live rows of ref.Table whose foreign key column equals value.
func (e *Engine) CountReferences(ctx context.Context, ref venuestore.Reference, value any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.countReferences(ref, value), nil
}

func (e *Engine) exists(table string, keyValues []any) (bool, error) {
	rows, ok := e.tables[table]
	if !ok {
		return false, fmt.Errorf("%w: %s", venuestore.ErrUnknownTable, table)
	}

	return latest(rows[keyOf(keyValues)]) != nil, nil
}

func (e *Engine) countReferences(ref venuestore.Reference, value any) int64 {
	var n int64
	for _, revisions := range e.tables[ref.Table] {
		current := latest(revisions)
		if current == nil {
			continue
		}

		row, err := venuestore.RowOf(current)
		if err != nil {
			continue
		}

		if row[ref.ForeignKey.Column] == value {
			n++
		}
	}

	return n
}

// checkConstraints enforces not null, foreign key and check constraints. Callers hold the lock.
func (e *Engine) checkConstraints(t venuestore.TableSchema, row venuestore.Row) error {
	for _, col := range t.Columns {
		if !col.Nullable && row[col.Name] == nil {
			return &venuestore.ConstraintError{
				Table:      t.Name,
				Kind:       venuestore.ConstraintNotNull,
				Constraint: col.Name,
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		value := row[fk.Column]
		if value == nil {
			continue
		}

		ok, err := e.exists(fk.ReferencedTable, []any{value})
		if err != nil {
			return err
		}

		if !ok {
			return &venuestore.ConstraintError{Table: t.Name, Kind: venuestore.ConstraintForeignKey, Constraint: fk.Name}
		}
	}

	for _, check := range t.Checks {
		if !check.Holds(row) {
			return &venuestore.ConstraintError{Table: t.Name, Kind: venuestore.ConstraintCheck, Constraint: check.Name}
		}
	}

	return nil
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

func keyOf(keyValues []any) string {
	parts := make([]string, len(keyValues))
	for i, v := range keyValues {
		parts[i] = fmt.Sprint(v)
	}

	return strings.Join(parts, "\x00")
}

// commit appends rev to the history of key and drops the revisions the replica can no longer see:
// everything before the newest revision committed at or before rev.committedAt minus the replica lag.
// A key whose only remaining revision is a delete marker is removed.
func (e *Engine) commit(rows map[string][]revision, key string, rev revision) {
	revisions := append(rows[key], rev)

	cutoff := rev.committedAt.Add(-e.replicaLag)
	for i := len(revisions) - 1; i > 0; i-- {
		if !revisions[i].committedAt.After(cutoff) {
			revisions = slices.Delete(revisions, 0, i)
			break
		}
	}

	if len(revisions) == 1 && revisions[0].row == nil {
		delete(rows, key)
		return
	}

	rows[key] = revisions
}

func latest(revisions []revision) venuestore.Entity {
	if len(revisions) == 0 {
		return nil
	}

	return revisions[len(revisions)-1].row
}

func asOf(revisions []revision, at time.Time) venuestore.Entity {
	for i := len(revisions) - 1; i >= 0; i-- {
		if !revisions[i].committedAt.After(at) {
			return revisions[i].row
		}
	}

	return nil
}

// copyInto overwrites dst with a deep copy of src. Both must have the same concrete type.
func copyInto(dst, src venuestore.Entity) error {
	dv := reflect.ValueOf(dst)
	sv := reflect.ValueOf(src.Clone())

	if dv.Type() != sv.Type() || dv.Kind() != reflect.Pointer {
		return fmt.Errorf("cannot load %T into %T", src, dst)
	}

	dv.Elem().Set(sv.Elem())

	return nil
}

var _ venuestore.Engine = (*Engine)(nil)
