package mode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingProvider struct{}

func (failingProvider) IsReducedCapabilityMode(context.Context) (bool, error) {
	return false, errors.New("flag service down")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	m, err := Resolve(ctx, Static(true), NormalLimits(), ReducedLimits())
	require.NoError(t, err)
	assert.True(t, m.Reduced)
	assert.Equal(t, 3, m.Limits.MaxTasks)
	assert.Equal(t, "reduced", m.String())

	m, err = Resolve(ctx, Static(false), NormalLimits(), ReducedLimits())
	require.NoError(t, err)
	assert.False(t, m.Reduced)
	assert.Equal(t, 0, m.Limits.MaxTasks)

	m, err = Resolve(ctx, nil, NormalLimits(), ReducedLimits())
	require.NoError(t, err)
	assert.False(t, m.Reduced)

	_, err = Resolve(ctx, failingProvider{}, NormalLimits(), ReducedLimits())
	assert.Error(t, err)
}

func TestExceeded(t *testing.T) {
	assert.False(t, Exceeded(100, 0), "zero limit is unlimited")
	assert.False(t, Exceeded(2, 3))
	assert.True(t, Exceeded(3, 3))
}

func TestStackSize(t *testing.T) {
	assert.Equal(t, DefaultUndoStackSize, Limits{}.StackSize())
	assert.Equal(t, 10, ReducedLimits().StackSize())
	assert.Less(t, ReducedLimits().StackSize(), NormalLimits().StackSize())
}
