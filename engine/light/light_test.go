package light

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
)

func box(x, y, z float32) common.BoundingVolume {
	return common.BoundingVolume{Position: [3]float32{x, y, z}, HalfExtents: [3]float32{1, 1, 1}}
}

func TestCascadeCameras(t *testing.T) {
	l := NewDirectionalLight()

	assert.Nil(t, l.CascadeCamera(common.PassColor))
	assert.Zero(t, l.HalfExtent(common.PassColor))

	passes := []common.Pass{common.PassNearShadow, common.PassMidShadow, common.PassFarShadow}
	want := DefaultShadowHalfExtent
	for _, p := range passes {
		cam := l.CascadeCamera(p)
		require.NotNil(t, cam, p.String())
		assert.Equal(t, camera.ProjectionOrthographic, cam.Projection())
		assert.InDelta(t, want, l.HalfExtent(p), 1e-4)
		want *= DefaultCascadeFactor
	}
	assert.NotSame(t, l.CascadeCamera(common.PassNearShadow), l.CascadeCamera(common.PassFarShadow))
}

func TestCascadeCulling(t *testing.T) {
	l := NewDirectionalLight(WithCenter(10, 0, 10))
	near := l.CascadeCamera(common.PassNearShadow)
	far := l.CascadeCamera(common.PassFarShadow)
	near.Update()
	far.Update()

	eye := near.Eye()
	assert.InDeltaSlice(t, []float32{10, DefaultShadowFar / 2, 10}, eye[:], 1e-4)

	assert.True(t, near.CheckBounding(box(10, 0, 10), 3))
	assert.False(t, near.CheckBounding(box(110, 0, 10), 3), "outside the near cascade")
	assert.True(t, far.CheckBounding(box(110, 0, 10), 3))
}

func TestFollowAndDirection(t *testing.T) {
	l := NewDirectionalLight(WithDirection(1, -1, 0), WithCascades(5, 2))
	dir := l.Direction()
	assert.InDeltaSlice(t, []float32{0.70710677, -0.70710677, 0}, dir[:], 1e-5)
	assert.InDelta(t, float32(20), l.HalfExtent(common.PassFarShadow), 1e-4)

	l.Follow([3]float32{50, 0, 0})
	assert.Equal(t, [3]float32{50, 0, 0}, l.Center())

	cam := l.CascadeCamera(common.PassMidShadow)
	cam.Update()
	assert.True(t, cam.CheckBounding(box(50, 0, 0), 3))
	assert.False(t, cam.CheckBounding(box(0, 0, 0), 3))

	l.SetDirection(0, 0, 0)
	assert.Equal(t, dir, l.Direction(), "zero direction is ignored")

	l.SetDirection(0, -2, 0)
	assert.Equal(t, [3]float32{0, -1, 0}, l.Direction())
	x, y, z := cam.Up()
	assert.Equal(t, [3]float32{0, 0, 1}, [3]float32{x, y, z}, "vertical light switches the up vector")
}

func TestBuilderIgnoresInvalidValues(t *testing.T) {
	l := NewDirectionalLight(WithCascades(-1, 0.5), WithDepthRange(10, 5)).(*directionalLight)
	assert.Equal(t, DefaultShadowHalfExtent, l.halfExtent)
	assert.Equal(t, DefaultCascadeFactor, l.factor)
	assert.Equal(t, DefaultShadowNear, l.near)
	assert.Equal(t, DefaultShadowFar, l.far)
}
