package snowflake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorMonotonic(t *testing.T) {
	gen, err := NewGenerator(2)
	require.NoError(t, err)

	prev := gen.NextVersion()
	for i := 0; i < 1000; i++ {
		v := gen.NextVersion()
		assert.Greater(t, v, prev)
		prev = v
	}
	assert.Greater(t, gen.NextID(), int64(prev))
}

func TestNewGeneratorClampsMachineID(t *testing.T) {
	gen, err := NewGenerator(4096)
	require.NoError(t, err)
	assert.Positive(t, gen.NextID())
}

func TestDefaultInitializesOnce(t *testing.T) {
	a := Default()
	require.NotNil(t, a)
	assert.Same(t, a, Default())
}
