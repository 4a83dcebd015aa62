package scene

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/light"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
	"github.com/Carmen-Shannon/oxy-scene/engine/node"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/render_queue"
)

func triangle(name string) mesh.Mesh {
	return mesh.NewMesh(
		mesh.WithName(name),
		mesh.WithPositions([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}),
		mesh.WithIndices([]uint32{0, 1, 2}),
	)
}

// lookingAtOrigin is a perspective camera at z = 10 facing -z.
func lookingAtOrigin() camera.Camera {
	return camera.NewCamera(camera.WithController(camera.NewLookAtController([3]float32{0, 0, 10}, [3]float32{})))
}

func newTestScene(t *testing.T, dev gpu.Device, options ...SceneBuilderOption) Scene {
	t.Helper()
	s, err := NewScene("test", lookingAtOrigin(), dev, append([]SceneBuilderOption{WithComputeWorkers(2)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func addNode(t *testing.T, s Scene, cat node.Category, objects ...drawable_object.DrawableObject) node.NodeID {
	t.Helper()
	id, err := s.AddNode(s.StaticRoot(), cat)
	require.NoError(t, err)
	for _, o := range objects {
		require.NoError(t, s.AddObject(id, o))
	}
	return id
}

func TestNewSceneDefaults(t *testing.T) {
	s := newTestScene(t, gpu.NewRecordingDevice())

	roots := s.Roots()
	require.Len(t, roots, 3)
	assert.Equal(t, []node.NodeID{s.StaticRoot(), s.BillboardRoot(), s.AnimationRoot()}, roots)
	for _, r := range roots {
		assert.True(t, s.Graph().Live(r))
	}
	require.Len(t, s.Queues(), 1)
	assert.Equal(t, common.PassColor, s.Queues()[0].Pass())

	assert.Panics(t, func() {
		_, _ = NewScene("nil camera", nil, gpu.NewRecordingDevice())
	})
	assert.Panics(t, func() {
		_, _ = NewScene("nil device", lookingAtOrigin(), nil)
	})
}

func TestShadowCascadesFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Shadow.Enabled = true
	s := newTestScene(t, gpu.NewRecordingDevice(), WithConfig(cfg))

	queues := s.Queues()
	require.Len(t, queues, 4)
	passes := make([]common.Pass, len(queues))
	for i, q := range queues {
		passes[i] = q.Pass()
	}
	assert.Equal(t, []common.Pass{common.PassColor, common.PassNearShadow, common.PassMidShadow, common.PassFarShadow}, passes)
	assert.Equal(t, cfg.Shadow.FarLevel, queues[3].ShadowLevel())
}

func TestConfiguredQueues(t *testing.T) {
	cfg := config.Default()
	cfg.Queues = []config.QueueConfig{{Name: "main", Pass: "color"}, {Name: "sun", Pass: "near_shadow", ShadowLevel: 1}}
	s := newTestScene(t, gpu.NewRecordingDevice(), WithConfig(cfg))
	require.Len(t, s.Queues(), 2)
	assert.Equal(t, "sun", s.Queues()[1].Name())

	cfg.Queues = []config.QueueConfig{{Name: "broken", Pass: "ultraviolet"}}
	_, err := NewScene("bad", lookingAtOrigin(), gpu.NewRecordingDevice(), WithConfig(cfg))
	assert.ErrorContains(t, err, "unknown pass")

	q := render_queue.NewRenderQueue(common.PassColor, 1, 2, render_queue.WithName("custom"))
	s = newTestScene(t, gpu.NewRecordingDevice(), WithConfig(cfg), WithQueue(q, nil))
	assert.Equal(t, []render_queue.RenderQueue{q}, s.Queues(), "explicit queues skip the configuration")
}

func TestFrameDrawsVisibleContent(t *testing.T) {
	dev := gpu.NewRecordingDevice()
	s := newTestScene(t, dev)
	rock := triangle("rock")
	s.RegisterMesh(rock)

	addNode(t, s, node.CategoryGeneric, drawable_object.NewDrawableObject(rock))
	addNode(t, s, node.CategoryGeneric, drawable_object.NewDrawableObject(rock, drawable_object.WithPosition(0, 0, 100)))
	addNode(t, s, node.CategoryInstanced,
		drawable_object.NewDrawableObject(rock),
		drawable_object.NewDrawableObject(rock, drawable_object.WithPosition(2, 0, 0)),
		drawable_object.NewDrawableObject(rock, drawable_object.WithPosition(-2, 0, 0)),
	)

	stats, err := s.Frame()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Updated)
	assert.Equal(t, 1, stats.Queues.DirectNodes, "node behind the camera is culled")
	assert.Equal(t, 3, stats.Queues.InstancedObjects)
	assert.Equal(t, 3, stats.Queues.LiveInstances)
	assert.Equal(t, 2, stats.Queues.Drawcalls)
	assert.Len(t, dev.Draws(), 2)

	stats, err = s.Frame()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 2, stats.Queues.Drawcalls)
}

func TestRegisterMeshAfterFrameInvalidatesQueues(t *testing.T) {
	s := newTestScene(t, gpu.NewRecordingDevice())
	rock, bush := triangle("rock"), triangle("bush")
	s.RegisterMesh(rock)
	s.RegisterMesh(rock)
	assert.Len(t, s.Meshes(), 1)

	addNode(t, s, node.CategoryInstanced, drawable_object.NewDrawableObject(rock))
	_, err := s.Frame()
	require.NoError(t, err)
	q := s.Queues()[0]
	require.NotNil(t, q.Consolidator())

	s.RegisterMesh(bush)
	assert.Nil(t, q.Consolidator())

	_, err = s.Frame()
	require.NoError(t, err)
	require.NotNil(t, q.Consolidator())
	assert.Len(t, q.Consolidator().Sources(), 2)
}

func TestRemoveNodeAppliesNextFrame(t *testing.T) {
	s := newTestScene(t, gpu.NewRecordingDevice())
	id := addNode(t, s, node.CategoryGeneric, drawable_object.NewDrawableObject(triangle("crate")))
	_, err := s.Frame()
	require.NoError(t, err)

	s.RemoveNode(id)
	assert.True(t, s.Graph().Live(id))
	stats, err := s.Frame()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.False(t, s.Graph().Live(id))
	assert.Equal(t, 0, stats.Queues.Drawcalls)
}

func TestDynamicObjectsTracked(t *testing.T) {
	s := newTestScene(t, gpu.NewRecordingDevice())
	m := triangle("ball")
	ball := drawable_object.NewDrawableObject(m, drawable_object.WithDynamic(true))
	wall := drawable_object.NewDrawableObject(m)
	id := addNode(t, s, node.CategoryStatic, ball, wall)

	assert.Equal(t, []drawable_object.DrawableObject{ball}, s.DynamicObjects())
	assert.True(t, s.RemoveObject(id, ball))
	assert.Empty(t, s.DynamicObjects())
	assert.False(t, s.RemoveObject(id, ball))
}

func TestFrameFailsOnAllocationError(t *testing.T) {
	s := newTestScene(t, gpu.NewRecordingDevice(gpu.WithAllocationLimit(0)))
	addNode(t, s, node.CategoryGeneric, drawable_object.NewDrawableObject(triangle("wall")))

	_, err := s.Frame()
	assert.ErrorIs(t, err, gpu.ErrAllocationFailed)
}

func TestProfilerTicksEveryFrame(t *testing.T) {
	now := time.Unix(0, 0)
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	p := profiler.NewProfiler(profiler.WithClock(clock), profiler.WithInterval(time.Second))
	s := newTestScene(t, gpu.NewRecordingDevice(), WithProfiler(p))
	addNode(t, s, node.CategoryGeneric, drawable_object.NewDrawableObject(triangle("lamp")))

	_, err := s.Frame()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Last().Frames)
	assert.Equal(t, 1, p.Last().Drawcalls)
}

func TestSunLightCullsShadowQueues(t *testing.T) {
	cfg := config.Default()
	cfg.Shadow.Enabled = true
	sun := light.NewDirectionalLight()
	farCam := lookingAtOrigin()

	cam := camera.NewCamera(camera.WithController(camera.NewLookAtController([3]float32{5, 0, 10}, [3]float32{5, 0, 0})))
	s, err := NewScene("sun", cam, gpu.NewRecordingDevice(),
		WithComputeWorkers(1),
		WithConfig(cfg),
		WithSunLight(sun),
		WithPassCamera(common.PassFarShadow, farCam),
	)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	assert.Same(t, sun, s.Sun())

	entries := s.(*scene).queues
	require.Len(t, entries, 4)
	assert.Nil(t, entries[0].cam, "color queue culls with the main camera")
	assert.Same(t, sun.CascadeCamera(common.PassNearShadow), entries[1].cam)
	assert.Same(t, sun.CascadeCamera(common.PassMidShadow), entries[2].cam)
	assert.Same(t, farCam, entries[3].cam, "explicit pass cameras win")

	_, err = s.Frame()
	require.NoError(t, err)
	assert.Equal(t, [3]float32{5, 0, 0}, sun.Center(), "cascades follow the camera target")
}
