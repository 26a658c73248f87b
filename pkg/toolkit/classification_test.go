package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler() Handler {
	return HandlerFunc(func(ctx context.Context, req *ExecutionRequest) (any, error) {
		return nil, nil
	})
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(CommandSpec{Name: "status", Classification: ClassificationRead}, noopHandler()))
	require.NoError(t, r.Register(CommandSpec{Name: "reset-tenant", Classification: ClassificationWrite}, noopHandler()))

	cmd, ok := r.Lookup("status")
	require.True(t, ok)
	assert.Equal(t, ClassificationRead, cmd.Spec.Classification)

	_, ok = r.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistry_RejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register(CommandSpec{Name: "", Classification: ClassificationRead}, noopHandler()))
	assert.Error(t, r.Register(CommandSpec{Name: "x", Classification: "MEDIUM"}, noopHandler()))
	assert.Error(t, r.Register(CommandSpec{Name: "x", Classification: ClassificationRead}, nil))

	require.NoError(t, r.Register(CommandSpec{Name: "x", Classification: ClassificationRead}, noopHandler()))
	assert.Error(t, r.Register(CommandSpec{Name: "x", Classification: ClassificationWrite}, noopHandler()),
		"duplicate name must be rejected")
}

func TestRegistry_SpecsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(CommandSpec{Name: name, Classification: ClassificationRead}, noopHandler()))
	}

	specs := r.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "mid", specs[1].Name)
	assert.Equal(t, "zeta", specs[2].Name)
}
