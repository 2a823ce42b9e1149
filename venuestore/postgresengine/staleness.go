package postgresengine

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StalenessSetting is a session parameter that makes a server serve reads within a staleness bound,
// e.g. spanner.read_only_staleness on PGAdapter. It is set on every connection of the stale pool.
type StalenessSetting struct {
	Parameter string
}

// SpannerReadOnlyStaleness is the PGAdapter session parameter for read-only staleness.
var SpannerReadOnlyStaleness = StalenessSetting{Parameter: "spanner.read_only_staleness"}

// Value renders the parameter value for bound, e.g. "MAX_STALENESS 10s".
func (s StalenessSetting) Value(bound time.Duration) string {
	return fmt.Sprintf("MAX_STALENESS %s", formatBound(bound))
}

// ApplyToPGXConfig sets the parameter as a runtime parameter of every connection the pool opens.
func (s StalenessSetting) ApplyToPGXConfig(cfg *pgxpool.Config, bound time.Duration) {
	if s.Parameter == "" || cfg == nil {
		return
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = make(map[string]string)
	}

	cfg.ConnConfig.RuntimeParams[s.Parameter] = s.Value(bound)
}

// formatBound prints whole seconds as "10s" and sub-second bounds in milliseconds as "500ms".
func formatBound(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}

	return fmt.Sprintf("%dms", d/time.Millisecond)
}
