package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesKindSentinel(t *testing.T) {
	err := NotFound("tasks.update", "task not found: %s", "tk-1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "tasks.update: task not found: tk-1", err.Error())
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("link failed: %w", Conflict("deps.link", "would create a cycle"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestPersistence(t *testing.T) {
	cause := errors.New("disk full")
	err := Persistence("tasks.save", cause)

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "tasks.save: store failed: disk full", err.Error())

	// already classified errors keep their kind
	inner := Capacity("tasks.create", "limit reached")
	assert.Same(t, inner, Persistence("x", inner))
	assert.Nil(t, Persistence("x", nil))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
