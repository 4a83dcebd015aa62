package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
)

func translation(x float32) [16]float32 {
	return [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, x, 0, 0, 1}
}

func TestAddAndReset(t *testing.T) {
	a := NewAccumulator(mesh.NewMesh())
	require.True(t, a.Add(translation(1)))
	require.True(t, a.Add(translation(2)))
	assert.Equal(t, 2, a.Count())
	require.Len(t, a.Transforms(), 2*TransformFloats)
	assert.Equal(t, float32(2), a.Transforms()[TransformFloats+12])

	a.Reset()
	assert.Equal(t, 0, a.Count())
	assert.Empty(t, a.Transforms())

	require.True(t, a.Add(translation(9)))
	assert.Equal(t, float32(9), a.Transforms()[12])
}

func TestAddClampsAtCap(t *testing.T) {
	a := NewAccumulator(mesh.NewMesh())
	for i := 0; i < MaxInstancesPerMesh+10; i++ {
		a.Add(translation(float32(i)))
	}
	assert.Equal(t, MaxInstancesPerMesh, a.Count())
	assert.Equal(t, 10, a.Dropped())
	assert.False(t, a.Add(translation(0)))

	a.Reset()
	assert.Equal(t, 0, a.Dropped())
}

func TestSourceIsLazyAndSized(t *testing.T) {
	a := NewAccumulator(mesh.NewMesh(), WithReserve(3))
	assert.Equal(t, 3, a.Reserved())
	for i := 0; i < 5; i++ {
		a.Add(translation(float32(i)))
	}

	s := a.Source()
	assert.Same(t, s, a.Source())
	assert.Equal(t, 5, s.Capacity())
	assert.Equal(t, 5, s.Live())
	assert.Same(t, a.Mesh(), s.Mesh())

	a.Reset()
	assert.Equal(t, 0, s.Live())
	assert.Equal(t, 5, s.Capacity())

	a.ReleaseSource()
	a.Reserve(MaxInstancesPerMesh * 2)
	assert.Equal(t, MaxInstancesPerMesh, a.Source().Capacity())

	a.Reserve(-4)
	assert.Equal(t, 0, a.Reserved())
}

func TestNewAccumulatorRequiresMesh(t *testing.T) {
	assert.Panics(t, func() { NewAccumulator(nil) })
}
