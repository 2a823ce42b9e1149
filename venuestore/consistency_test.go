package venuestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_GetConsistencyLevel(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected ConsistencyLevel
	}{
		{name: "unset defaults to strong", ctx: context.Background(), expected: StrongConsistency},
		{name: "strong", ctx: WithStrongConsistency(context.Background()), expected: StrongConsistency},
		{name: "bounded-stale", ctx: WithBoundedStaleness(context.Background()), expected: BoundedStaleConsistency},
		{
			name:     "latest wins",
			ctx:      WithStrongConsistency(WithBoundedStaleness(context.Background())),
			expected: StrongConsistency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetConsistencyLevel(tt.ctx))
		})
	}
}

func Test_ConsistencyLevel_String(t *testing.T) {
	assert.Equal(t, "strong", StrongConsistency.String())
	assert.Equal(t, "bounded-stale", BoundedStaleConsistency.String())
	assert.Equal(t, "unknown", ConsistencyLevel(9).String())
}
