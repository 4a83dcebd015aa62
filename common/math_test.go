package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMul4Identity(t *testing.T) {
	var id, m, out [16]float32
	Identity(id[:])
	BuildModelMatrix(m[:], 1, 2, 3, 0.3, 0.2, 0.1, 1, 2, 3)
	Mul4(out[:], id[:], m[:])
	assert.Equal(t, m, out)
}

func TestInvert4RoundTrip(t *testing.T) {
	var m, inv, out, id [16]float32
	BuildModelMatrix(m[:], 4, -2, 7, 0.5, 1.0, -0.25, 2, 2, 2)
	require.True(t, Invert4(inv[:], m[:]))
	Mul4(out[:], m[:], inv[:])
	Identity(id[:])
	for i := range 16 {
		assert.InDelta(t, id[i], out[i], 1e-5)
	}
}

func TestTransformPoint(t *testing.T) {
	var m [16]float32
	Translation(m[:], 1, 2, 3)
	assert.Equal(t, [3]float32{2, 3, 4}, TransformPoint(m[:], [3]float32{1, 1, 1}))
	assert.Equal(t, [3]float32{1, 2, 3}, TranslationOf(m[:]))
}

func TestTransformExtentsRotation(t *testing.T) {
	var m [16]float32
	BuildModelMatrix(m[:], 0, 0, 0, 0, 3.14159265/2, 0, 1, 1, 1)
	got := TransformExtents(m[:], [3]float32{1, 2, 3})
	assert.InDelta(t, 3, got[0], 1e-5)
	assert.InDelta(t, 2, got[1], 1e-5)
	assert.InDelta(t, 1, got[2], 1e-5)
}

func TestNormalMatrix3Scale(t *testing.T) {
	var m [16]float32
	var n [9]float32
	BuildModelMatrix(m[:], 5, 5, 5, 0, 0, 0, 2, 4, 8)
	require.True(t, NormalMatrix3(n[:], m[:]))
	assert.InDelta(t, 0.5, n[0], 1e-6)
	assert.InDelta(t, 0.25, n[4], 1e-6)
	assert.InDelta(t, 0.125, n[8], 1e-6)

	var zero [16]float32
	assert.False(t, NormalMatrix3(n[:], zero[:]))
	assert.Equal(t, float32(1), n[0])
}

func TestCoalesceAndClamp(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, "", Coalesce[string]())
	assert.Equal(t, 4096, Clamp(5000, 0, 4096))
	assert.Equal(t, 0, Clamp(-3, 0, 4096))
}

func TestParsePass(t *testing.T) {
	p, ok := ParsePass("far_shadow")
	require.True(t, ok)
	assert.Equal(t, PassFarShadow, p)
	assert.True(t, p.IsShadow())
	_, ok = ParsePass("nope")
	assert.False(t, ok)
}

func TestQuatFromEulerSingleAxis(t *testing.T) {
	q := QuatFromEuler(0, 3.14159265, 0)
	assert.InDelta(t, 0, q[0], 1e-6)
	assert.InDelta(t, 1, q[1], 1e-6)
	assert.InDelta(t, 0, q[2], 1e-6)
	assert.InDelta(t, 0, q[3], 1e-6)

	id := QuatFromEuler(0, 0, 0)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, id)
}
