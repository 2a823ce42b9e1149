package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
	"github.com/AntonStoeckl/venuestore-go/venuestore/postgresengine"
)

const (
	EnvStrongDSN          = "VENUESTORE_STRONG_DSN"
	EnvStaleDSN           = "VENUESTORE_STALE_DSN"
	EnvMaxConns           = "VENUESTORE_MAX_CONNS"
	EnvMinConns           = "VENUESTORE_MIN_CONNS"
	EnvConnMaxLifetime    = "VENUESTORE_CONN_MAX_LIFETIME"
	EnvConnMaxIdleTime    = "VENUESTORE_CONN_MAX_IDLE_TIME"
	EnvConnectTimeout     = "VENUESTORE_CONNECT_TIMEOUT"
	EnvStaleness          = "VENUESTORE_STALENESS"
	EnvStalenessParameter = "VENUESTORE_STALENESS_PARAMETER"
	EnvReplicaLagProbe    = "VENUESTORE_REPLICA_LAG_PROBE"
)

const (
	defaultMaxConns        = int32(50)
	defaultMinConns        = int32(2)
	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultConnectTimeout  = 5 * time.Second
	defaultEnvFile         = ".env"
)

var (
	ErrMissingStrongDSN = errors.New("the strong connection DSN is required")
	ErrInvalidPoolSize  = errors.New("pool size is invalid")
	ErrInvalidValue     = errors.New("invalid configuration value")
)

// ConnectionConfig configures the pool of one connection profile.
type ConnectionConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// Config holds both connection profiles. BoundedStale is nil when no stale DSN is configured,
// bounded-stale reads then fail with venuestore.ErrRouteUnavailable.
type Config struct {
	Strong           ConnectionConfig
	BoundedStale     *ConnectionConfig
	Staleness        time.Duration
	StalenessSetting postgresengine.StalenessSetting
	ReplicaLagProbe  bool
}

// Load reads the configuration from the process environment after loading envFiles,
// or ./.env if none are given and it exists. Variables already set in the environment win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", defaultEnvFile, err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return Config{}, fmt.Errorf("loading env files: %w", err)
	}

	return FromLookup(os.LookupEnv)
}

// FromLookup builds and validates the configuration from lookup.
func FromLookup(lookup func(key string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}

	conn := ConnectionConfig{
		DSN:             r.str(EnvStrongDSN),
		MaxConns:        r.int32(EnvMaxConns, defaultMaxConns),
		MinConns:        r.int32(EnvMinConns, defaultMinConns),
		MaxConnLifetime: r.duration(EnvConnMaxLifetime, defaultConnMaxLifetime),
		MaxConnIdleTime: r.duration(EnvConnMaxIdleTime, defaultConnMaxIdleTime),
		ConnectTimeout:  r.duration(EnvConnectTimeout, defaultConnectTimeout),
	}

	cfg := Config{
		Strong:           conn,
		Staleness:        r.duration(EnvStaleness, venuestore.DefaultStaleness),
		StalenessSetting: postgresengine.StalenessSetting{Parameter: r.str(EnvStalenessParameter)},
		ReplicaLagProbe:  r.bool(EnvReplicaLagProbe, false),
	}

	if staleDSN := r.str(EnvStaleDSN); staleDSN != "" {
		stale := conn
		stale.DSN = staleDSN
		cfg.BoundedStale = &stale
	}

	if r.err != nil {
		return Config{}, r.err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration without connecting.
func (c Config) Validate() error {
	if c.Strong.DSN == "" {
		return ErrMissingStrongDSN
	}

	if c.Staleness <= 0 {
		return venuestore.ErrInvalidStaleness
	}

	if err := c.Strong.validate(); err != nil {
		return err
	}

	if c.BoundedStale != nil {
		return c.BoundedStale.validate()
	}

	return nil
}

func (c ConnectionConfig) validate() error {
	if c.MaxConns < 1 || c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("%w: min %d, max %d", ErrInvalidPoolSize, c.MinConns, c.MaxConns)
	}

	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout %s", ErrInvalidValue, c.ConnectTimeout)
	}

	return nil
}

// FacadeOptions returns the facade options implied by the configuration.
func (c Config) FacadeOptions() []venuestore.Option {
	return []venuestore.Option{venuestore.WithStaleness(c.Staleness)}
}

// EngineOptions returns the engine options implied by the configuration.
func (c Config) EngineOptions() []postgresengine.Option {
	if c.ReplicaLagProbe {
		return []postgresengine.Option{postgresengine.WithReplicaLagProbe()}
	}

	return nil
}

// reader keeps the first parse error so that FromLookup reports it once.
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) str(key string) string {
	v, _ := r.lookup(key)

	return v
}

func (r *reader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}
}

func (r *reader) int32(key string, def int32) int32 {
	v := r.str(key)
	if v == "" {
		return def
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		r.fail(key, v, err)
		return def
	}

	return int32(n)
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}

	return d
}

func (r *reader) bool(key string, def bool) bool {
	v := r.str(key)
	if v == "" {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}

	return b
}
