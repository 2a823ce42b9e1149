package venuestore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Mutation changes the columns of a row during Update. It receives a copy of the current row.
type Mutation func(e Entity) error

// Created is the result of a successful Create.
type Created struct {
	Table     string
	Key       []any
	Version   int64
	CreatedAt time.Time
}

// Updated is the result of a successful Update.
type Updated struct {
	NewVersion int64
	UpdatedAt  time.Time
}

// Facade is the single entry point for reading and writing rows. It validates writes against
// the schema, gates mutations with the version guard and routes reads to a connection profile.
//
// Facade holds no per-request state and is safe for concurrent use.
type Facade struct {
	engine           Engine
	router           Router
	staleness        time.Duration
	clock            func() time.Time
	newID            func() (string, error)
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

// Option defines a functional option for configuring the Facade.
type Option func(*Facade) error

// WithStaleness sets the bound of the bounded-stale profile (default 10s).
func WithStaleness(staleness time.Duration) Option {
	return func(f *Facade) error {
		if staleness <= 0 {
			return ErrInvalidStaleness
		}

		f.staleness = staleness

		return nil
	}
}

// WithClock replaces the clock used for created_at and updated_at.
func WithClock(clock func() time.Time) Option {
	return func(f *Facade) error {
		f.clock = clock
		return nil
	}
}

// WithIDGenerator replaces the generator for identifiers assigned on Create.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(f *Facade) error {
		f.newID = newID
		return nil
	}
}

// WithLogger sets the logger for the Facade.
//
// Info level: completed operations with durations, version conflicts
// Error level: failed operations.
func WithLogger(logger Logger) Option {
	return func(f *Facade) error {
		f.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, e.g. one with trace correlation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(f *Facade) error {
		f.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Facade.
func WithMetrics(collector MetricsCollector) Option {
	return func(f *Facade) error {
		f.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Facade.
func WithTracing(collector TracingCollector) Option {
	return func(f *Facade) error {
		f.tracingCollector = collector
		return nil
	}
}

// NewFacade creates a Facade on top of the given engine.
func NewFacade(engine Engine, options ...Option) (*Facade, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	f := &Facade{
		engine:    engine,
		staleness: DefaultStaleness,
		clock:     time.Now,
		newID:     newUUIDv7,
	}

	for _, option := range options {
		if err := option(f); err != nil {
			return nil, err
		}
	}

	router, err := NewRouter(RouterConfig{Staleness: f.staleness}, engine)
	if err != nil {
		return nil, err
	}

	f.router = router

	return f, nil
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// Router returns the read router of this Facade.
func (f *Facade) Router() Router {
	return f.router
}

// Create inserts a new row. It assigns an identifier if the entity has none, sets created_at and
// updated_at to the same instant and starts lock_version at InitialVersion. On success the entity
// is updated in place with the stored values, on failure it is left untouched.
//
// Errors: ErrValidation, ErrConstraintViolation.
func (f *Facade) Create(ctx context.Context, e Entity) (Created, error) {
	if e == nil {
		return Created{}, ErrNilEntity
	}

	obs, ctx := f.startOperation(ctx, operationCreate, e.TableName())

	if err := ctx.Err(); err != nil {
		return Created{}, obs.finishError(err)
	}

	row := e.Clone()
	if err := f.assignKey(row); err != nil {
		return Created{}, obs.finishError(err)
	}

	now := f.now()
	meta := row.Meta()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	meta.LockVersion = InitialVersion

	if d, ok := row.(Deriver); ok {
		d.DeriveColumns()
	}

	if err := Validate(row); err != nil {
		return Created{}, obs.finishError(err)
	}

	if err := f.checkForeignKeys(ctx, row); err != nil {
		return Created{}, obs.finishError(err)
	}

	if err := f.engine.Insert(ctx, row); err != nil {
		return Created{}, obs.finishError(err)
	}

	adopt(e, row)
	obs.finishSuccess(logAttrVersion, meta.LockVersion)

	return Created{
		Table:     row.TableName(),
		Key:       row.KeyValues(),
		Version:   meta.LockVersion,
		CreatedAt: now,
	}, nil
}

// adopt overwrites dst with src. Entities are pointers to structs and Clone keeps the concrete type.
func adopt(dst, src Entity) {
	reflect.ValueOf(dst).Elem().Set(reflect.ValueOf(src).Elem())
}

// Read fills dst, identified by its key columns, using the connection profile for level.
//
// Errors: ErrNotFound, ErrRouteUnavailable.
func (f *Facade) Read(ctx context.Context, dst Entity, level ConsistencyLevel) error {
	if dst == nil {
		return ErrNilEntity
	}

	obs, ctx := f.startOperation(ctx, operationRead, dst.TableName())

	if err := ctx.Err(); err != nil {
		return obs.finishError(err)
	}

	profile, err := f.router.Route(ctx, level)
	if err != nil {
		return obs.finishError(err)
	}

	if err := f.engine.Load(ctx, profile, dst); err != nil {
		return obs.finishError(err)
	}

	obs.finishSuccess(logAttrProfile, string(profile.Name), logAttrVersion, dst.Meta().LockVersion)

	return nil
}

// ReadWithContextLevel is Read with the consistency level taken from the context,
// see WithStrongConsistency and WithBoundedStaleness.
func (f *Facade) ReadWithContextLevel(ctx context.Context, dst Entity) error {
	return f.Read(ctx, dst, GetConsistencyLevel(ctx))
}

// Update applies mutation to the row identified by key if it is still at expectedVersion.
// The current row is read with strong consistency, the mutation runs on a copy, and the result
// is written conditionally. Key columns, created_at and lock_version cannot be changed by the mutation.
//
// A VersionConflict is returned as-is: the caller decides whether to re-read and retry.
//
// Errors: ErrVersionConflict, ErrValidation, ErrNotFound, ErrConstraintViolation.
func (f *Facade) Update(ctx context.Context, key Entity, expectedVersion int64, mutation Mutation) (Updated, error) {
	if key == nil {
		return Updated{}, ErrNilEntity
	}

	if mutation == nil {
		return Updated{}, ErrNilMutation
	}

	obs, ctx := f.startOperation(ctx, operationUpdate, key.TableName())

	current, err := f.loadCurrent(ctx, key, expectedVersion)
	if err != nil {
		return Updated{}, obs.finishError(err)
	}

	next := current.Clone()
	if err := mutation(next); err != nil {
		return Updated{}, obs.finishError(err)
	}

	if err := keepImmutableColumns(current, next); err != nil {
		return Updated{}, obs.finishError(err)
	}

	next.Meta().UpdatedAt = f.now()

	if d, ok := next.(Deriver); ok {
		d.DeriveColumns()
	}

	if err := Validate(next); err != nil {
		return Updated{}, obs.finishError(err)
	}

	if err := f.checkForeignKeys(ctx, next); err != nil {
		return Updated{}, obs.finishError(err)
	}

	intent := PrepareUpdate(expectedVersion, next)
	if err := f.engine.UpdateIfVersion(ctx, intent); err != nil {
		return Updated{}, obs.finishError(err)
	}

	obs.finishSuccess(logAttrExpectedVersion, intent.ExpectedVersion, logAttrVersion, intent.NewVersion)

	return Updated{NewVersion: intent.NewVersion, UpdatedAt: next.Meta().UpdatedAt}, nil
}

// Delete removes the row identified by key if it is still at expectedVersion and no other row references it.
//
// Errors: ErrVersionConflict, ErrNotFound, ErrReferentialIntegrity.
func (f *Facade) Delete(ctx context.Context, key Entity, expectedVersion int64) error {
	if key == nil {
		return ErrNilEntity
	}

	obs, ctx := f.startOperation(ctx, operationDelete, key.TableName())

	if _, err := f.loadCurrent(ctx, key, expectedVersion); err != nil {
		return obs.finishError(err)
	}

	if err := f.checkDependents(ctx, key); err != nil {
		return obs.finishError(err)
	}

	if err := f.engine.DeleteIfVersion(ctx, key, PrepareDelete(expectedVersion)); err != nil {
		return obs.finishError(err)
	}

	obs.finishSuccess(logAttrExpectedVersion, expectedVersion)

	return nil
}

// loadCurrent reads the current row with strong consistency and fails fast on a version mismatch.
func (f *Facade) loadCurrent(ctx context.Context, key Entity, expectedVersion int64) (Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile, err := f.router.Route(ctx, StrongConsistency)
	if err != nil {
		return nil, err
	}

	current := key.Clone()
	if err := f.engine.Load(ctx, profile, current); err != nil {
		return nil, err
	}

	if err := ApplyIfMatch(current.Meta().LockVersion, WriteIntent{ExpectedVersion: expectedVersion}); err != nil {
		return nil, err
	}

	return current, nil
}

func (f *Facade) assignKey(e Entity) error {
	keyer, ok := e.(GeneratedKeyer)
	if !ok || keyer.HasKey() {
		return nil
	}

	id, err := f.newID()
	if err != nil {
		return errors.Join(ErrGeneratingIDFailed, err)
	}

	keyer.SetKey(id)

	return nil
}

// checkForeignKeys is a fast pre-check only; storage stays authoritative because a concurrent
// delete of the referenced row can still make the write fail at commit.
func (f *Facade) checkForeignKeys(ctx context.Context, e Entity) error {
	row, err := RowOf(e)
	if err != nil {
		return err
	}

	for _, fk := range ForeignKeysOf(e.TableName()) {
		value := row[fk.Column]
		if value == nil {
			continue
		}

		exists, err := f.engine.Exists(ctx, fk.ReferencedTable, []any{value})
		if err != nil {
			return err
		}

		if !exists {
			return &ConstraintError{
				Table:      e.TableName(),
				Kind:       ConstraintForeignKey,
				Constraint: fk.Name,
				Cause:      fmt.Errorf("%s %v does not exist", fk.ReferencedTable, value),
			}
		}
	}

	return nil
}

func (f *Facade) checkDependents(ctx context.Context, key Entity) error {
	keyValues := key.KeyValues()
	if len(keyValues) != 1 {
		return nil
	}

	for _, ref := range ReferencesTo(key.TableName()) {
		count, err := f.engine.CountReferences(ctx, ref, keyValues[0])
		if err != nil {
			return err
		}

		if count > 0 {
			return fmt.Errorf("%w: %d %s row(s) via %s", ErrReferentialIntegrity, count, ref.Table, ref.ForeignKey.Name)
		}
	}

	return nil
}

// keepImmutableColumns rejects key changes and restores created_at and lock_version on next.
func keepImmutableColumns(current, next Entity) error {
	t, err := TableByName(current.TableName())
	if err != nil {
		return err
	}

	currentKey := current.KeyValues()
	for i, v := range next.KeyValues() {
		if v != currentKey[i] {
			return &ValidationError{Table: t.Name, Field: t.PrimaryKey[i], Reason: "is immutable"}
		}
	}

	next.Meta().CreatedAt = current.Meta().CreatedAt
	next.Meta().LockVersion = current.Meta().LockVersion

	return nil
}

// now truncates to microseconds, the precision of timestamptz, so rows read back compare equal.
func (f *Facade) now() time.Time {
	return f.clock().UTC().Truncate(time.Microsecond)
}

// UpdateAs is a typed variant of Facade.Update.
//
// Example usage:
//
//	updated, err := venuestore.UpdateAs(ctx, facade, &venuestore.Singer{SingerID: id}, version,
//		func(s *venuestore.Singer) error {
//			s.LastName = "Doe"
//			return nil
//		})
func UpdateAs[T any, PT interface {
	*T
	Entity
}](ctx context.Context, f *Facade, key PT, expectedVersion int64, mutate func(PT) error) (Updated, error) {
	return f.Update(ctx, key, expectedVersion, func(e Entity) error {
		typed, ok := e.(PT)
		if !ok {
			return fmt.Errorf("%w: unexpected row type %T", ErrValidation, e)
		}

		return mutate(typed)
	})
}

// ReadAs reads the row identified by key into a fresh copy, leaving key untouched.
func ReadAs[T any, PT interface {
	*T
	Entity
}](ctx context.Context, f *Facade, key PT, level ConsistencyLevel) (PT, error) {
	if key == nil {
		return nil, ErrNilEntity
	}

	dst, ok := key.Clone().(PT)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected row type %T", ErrValidation, key)
	}

	if err := f.Read(ctx, dst, level); err != nil {
		return nil, err
	}

	return dst, nil
}
