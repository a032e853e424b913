package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoopGuardBound(t *testing.T) {
	g := NewLoopGuard("x", 5, nil)

	for i := 1; i <= 5; i++ {
		assert.True(t, g.CheckIteration(), "iteration %d should be allowed", i)
	}
	assert.False(t, g.CheckIteration(), "iteration 6 should be refused")
	assert.False(t, g.CheckIteration(), "every later iteration stays refused")
	assert.Equal(t, 7, g.Iterations())
}

func TestLoopGuardZeroMax(t *testing.T) {
	g := NewLoopGuard("never", 0, nil)
	assert.False(t, g.CheckIteration())
}
