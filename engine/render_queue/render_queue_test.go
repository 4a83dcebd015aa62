package render_queue

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/batch"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawcall"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
	"github.com/Carmen-Shannon/oxy-scene/engine/multi_instance"
	"github.com/Carmen-Shannon/oxy-scene/engine/node"
)

type visibleAll struct{}

func (visibleAll) CheckBounding(common.BoundingVolume, int) bool {
	return true
}

// visibleBelow accepts volumes centred left of a plane x = limit.
type visibleBelow struct {
	limit float32
}

func (v visibleBelow) CheckBounding(bv common.BoundingVolume, _ int) bool {
	return bv.Position[0]-bv.HalfExtents[0] < v.limit
}

type registry []mesh.Mesh

func (r registry) Meshes() []mesh.Mesh {
	return r
}

func triangle(name string) mesh.Mesh {
	return mesh.NewMesh(
		mesh.WithName(name),
		mesh.WithPositions([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}),
		mesh.WithIndices([]uint32{0, 1, 2}),
	)
}

type sceneFixture struct {
	g    *node.Graph
	ctx  *node.FrameContext
	root node.NodeID
}

func newFixture() *sceneFixture {
	g := node.NewGraph()
	return &sceneFixture{
		g:    g,
		ctx:  node.NewFrameContext(),
		root: g.CreateNode(node.CategoryGeneric, node.AsRoot()),
	}
}

// child creates a node under parent and fills it with objects.
func (f *sceneFixture) child(t *testing.T, parent node.NodeID, cat node.Category, objects []drawable_object.DrawableObject, options ...node.NodeBuilderOption) node.NodeID {
	t.Helper()
	id := f.g.CreateNode(cat, options...)
	require.NoError(t, f.g.AttachChild(f.ctx, parent, id))
	for _, o := range objects {
		require.NoError(t, f.g.AddObject(f.ctx, id, o))
	}
	return id
}

func objects(m mesh.Mesh, n int, options ...drawable_object.DrawableObjectBuilderOption) []drawable_object.DrawableObject {
	out := make([]drawable_object.DrawableObject, n)
	for i := range out {
		opts := append([]drawable_object.DrawableObjectBuilderOption{drawable_object.WithPosition(float32(i), 0, 0)}, options...)
		out[i] = drawable_object.NewDrawableObject(m, opts...)
	}
	return out
}

func frame(t *testing.T, q RenderQueue, f *sceneFixture, dev gpu.Device) {
	t.Helper()
	f.g.Drain(f.ctx)
	q.Flush()
	q.Classify(f.g, f.root, visibleAll{}, [3]float32{})
	require.NoError(t, q.Prepare())
	require.NoError(t, q.Draw(dev, f.g))
}

func TestQueryLodMeshThresholds(t *testing.T) {
	base, mid, low := triangle("base"), triangle("mid"), triangle("low")
	obj := drawable_object.NewDrawableObject(base, drawable_object.WithLOD(mid, low))
	center := obj.Bounds().Position
	q := NewRenderQueue(common.PassColor, 10, 20)

	tests := []struct {
		dist float32
		want mesh.Mesh
	}{
		{0, base},
		{9.99, base},
		{10, mid},
		{19.99, mid},
		{20, low},
		{500, low},
	}
	for _, tt := range tests {
		got, ok := q.QueryLodMesh(obj, [3]float32{center[0] + tt.dist, center[1], center[2]})
		require.True(t, ok)
		assert.Same(t, tt.want, got, "distance %v", tt.dist)
	}

	plain := drawable_object.NewDrawableObject(base)
	_, ok := q.QueryLodMesh(plain, [3]float32{100, 0, 0})
	assert.False(t, ok, "no low mesh selected")
}

func TestQueryLodMeshMeasuresFromVolumeCenter(t *testing.T) {
	base, mid, low := triangle("base"), triangle("mid"), triangle("low")
	obj := drawable_object.NewDrawableObject(base, drawable_object.WithLOD(mid, low), drawable_object.WithPosition(3, 4, 0))
	q := NewRenderQueue(common.PassColor, 10, 20)

	c := obj.Bounds().Position
	// 6-8-0 offset: 10 units away, exactly on the mid threshold
	eye := [3]float32{c[0] + 6, c[1] + 8, c[2]}
	require.InDelta(t, 100, obj.Bounds().DistanceSquared(eye), 1e-3)
	got, ok := q.QueryLodMesh(obj, eye)
	require.True(t, ok)
	assert.Same(t, mid, got)

	got, ok = q.QueryLodMesh(obj, [3]float32{c[0] + 6, c[1] + 7.9, c[2]})
	require.True(t, ok)
	assert.Same(t, base, got)
}

func TestOversizedNodeLogsDroppedObjects(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture()
	f.child(t, f.root, node.CategoryGeneric, objects(triangle("pebble"), batch.MaxObjects+44), node.WithName("pebbles"))

	dev := gpu.NewRecordingDevice()
	q := NewRenderQueue(common.PassColor, 50, 100, WithLogger(zap.New(core)))
	frame(t, q, f, dev)

	assert.Equal(t, 44, q.Stats().DroppedObjects)
	entries := logs.FilterMessage("node batch full, objects not drawn").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "pebbles", fields["node"])
	assert.EqualValues(t, 44, fields["dropped"])
	assert.EqualValues(t, batch.MaxObjects, fields["max_objects"])
}

func TestClassifyRoutesByCategory(t *testing.T) {
	f := newFixture()
	m := triangle("rock")
	generic := f.child(t, f.root, node.CategoryGeneric, objects(m, 1))
	static := f.child(t, f.root, node.CategoryStatic, objects(m, 1))
	f.child(t, f.root, node.CategoryStatic, objects(m, 2), node.WithDynamicBatch(true))
	group := f.child(t, f.root, node.CategoryGeneric, nil)
	f.child(t, group, node.CategoryInstanced, objects(m, 3))
	f.g.Drain(f.ctx)

	q := NewRenderQueue(common.PassColor, 50, 100)
	q.Flush()
	q.Classify(f.g, f.root, visibleAll{}, [3]float32{})

	assert.ElementsMatch(t, []node.NodeID{generic, static}, q.Nodes())
	require.NotNil(t, q.Batch())
	assert.Equal(t, 2, q.Batch().ObjectCount())
	acc, ok := q.Accumulator(m)
	require.True(t, ok)
	assert.Equal(t, 3, acc.Count())

	s := q.Stats()
	assert.Equal(t, 2, s.DirectNodes)
	assert.Equal(t, 2, s.BatchedObjects)
	assert.Equal(t, 3, s.InstancedObjects)

	q.Flush()
	assert.Empty(t, q.Nodes())
	assert.Equal(t, 0, q.Batch().ObjectCount())
	assert.Equal(t, 0, acc.Count())
	_, ok = q.Accumulator(m)
	assert.True(t, ok, "flush keeps accumulators")
}

func TestClassifyCullsNodesAndObjects(t *testing.T) {
	f := newFixture()
	m := triangle("tree")
	near := f.child(t, f.root, node.CategoryGeneric, objects(m, 1))
	far := drawable_object.NewDrawableObject(m, drawable_object.WithPosition(100, 0, 0))
	farNode := f.child(t, f.root, node.CategoryGeneric, []drawable_object.DrawableObject{far})
	f.child(t, f.root, node.CategoryInstanced, []drawable_object.DrawableObject{
		drawable_object.NewDrawableObject(m),
		drawable_object.NewDrawableObject(m, drawable_object.WithPosition(100, 0, 0)),
	})
	f.g.Drain(f.ctx)

	q := NewRenderQueue(common.PassColor, 50, 100)
	q.Flush()
	q.Classify(f.g, f.root, visibleBelow{limit: 50}, [3]float32{})

	assert.Equal(t, []node.NodeID{near}, q.Nodes())
	assert.NotContains(t, q.Nodes(), farNode)
	acc, ok := q.Accumulator(m)
	require.True(t, ok)
	assert.Equal(t, 1, acc.Count(), "objects are tested individually")
}

func TestShadowPassFiltersLevelsAndCasters(t *testing.T) {
	f := newFixture()
	m := triangle("crate")
	f.child(t, f.root, node.CategoryGeneric, objects(m, 1), node.WithShadowLevel(1))
	kept := f.child(t, f.root, node.CategoryGeneric, objects(m, 1))
	f.child(t, f.root, node.CategoryInstanced, append(objects(m, 1), objects(m, 2, drawable_object.WithShadowCaster(false))...))
	f.g.Drain(f.ctx)

	q := NewRenderQueue(common.PassNearShadow, 50, 100, WithShadowLevel(2))
	q.Flush()
	q.Classify(f.g, f.root, visibleAll{}, [3]float32{})

	assert.Equal(t, []node.NodeID{kept}, q.Nodes())
	acc, ok := q.Accumulator(m)
	require.True(t, ok)
	assert.Equal(t, 1, acc.Count())

	color := NewRenderQueue(common.PassColor, 50, 100, WithShadowLevel(2))
	color.Flush()
	color.Classify(f.g, f.root, visibleAll{}, [3]float32{})
	assert.Len(t, color.Nodes(), 2, "color pass ignores shadow settings")
}

func TestDrawSubmitsEveryPath(t *testing.T) {
	f := newFixture()
	m := triangle("bush")
	direct := f.child(t, f.root, node.CategoryGeneric, objects(m, 1))
	f.child(t, f.root, node.CategoryStatic, objects(m, 2), node.WithDynamicBatch(true))
	f.child(t, f.root, node.CategoryInstanced, objects(m, 3))

	dev := gpu.NewRecordingDevice()
	q := NewRenderQueue(common.PassColor, 50, 100)
	frame(t, q, f, dev)

	draws := dev.Draws()
	require.Len(t, draws, 3)
	s := q.Stats()
	assert.Equal(t, 3, s.Drawcalls)
	assert.Equal(t, 3, s.LiveInstances)

	var indirect []gpu.DrawCommand
	for _, d := range draws {
		if d.IndirectCount > 0 {
			indirect = append(indirect, d)
		}
	}
	require.Len(t, indirect, 1)
	assert.Equal(t, 1, indirect[0].IndirectCount)
	assert.Equal(t, "color instances normal", indirect[0].Label)

	dc, ok := f.g.Drawcall(direct).(drawcall.StaticDrawcall)
	require.True(t, ok, "node drawcall attached to the graph")
	assert.False(t, f.g.Flags(direct).NeedsDrawcallCreate)
	require.NotNil(t, q.Consolidator())
	assert.True(t, q.Consolidator().Inited())

	assert.False(t, dc.Buffers().DoubleBuffering(), "node drawcalls write in place")

	// moving an object refreshes the node drawcall in place
	dev.EndFrame()
	dev.Reset()
	require.NoError(t, f.g.TranslateObject(f.ctx, direct, 0, 2, 0, 0))
	frame(t, q, f, dev)
	assert.Same(t, dc, f.g.Drawcall(direct))
	assert.False(t, f.g.Flags(direct).NeedsDrawcallUpdate)
	assert.False(t, dc.Pending())
	assert.Len(t, dev.Draws(), 3)
}

func TestMovedObjectIsSubmittedOnTheFrameOfTheMove(t *testing.T) {
	f := newFixture()
	id := f.child(t, f.root, node.CategoryGeneric, objects(triangle("lamp"), 1))

	dev := gpu.NewRecordingDevice()
	q := NewRenderQueue(common.PassColor, 50, 100, WithDoubleBuffering(true))
	frame(t, q, f, dev)
	dev.EndFrame()
	dev.Reset()

	require.NoError(t, f.g.TranslateObject(f.ctx, id, 0, 7, 0, 0))
	frame(t, q, f, dev)

	draws := dev.Draws()
	require.Len(t, draws, 1)
	data := dev.ChannelData(draws[0].Buffer, gpu.SlotObjectMatrix)
	require.GreaterOrEqual(t, len(data), 16*4)
	assert.Equal(t, float32(7), math.Float32frombits(binary.LittleEndian.Uint32(data[12*4:])))

	// a second queue drawing the same node in the same frame sees the same contents
	shadow := NewRenderQueue(common.PassNearShadow, 50, 100)
	shadow.Flush()
	shadow.Classify(f.g, f.root, visibleAll{}, [3]float32{})
	require.NoError(t, shadow.Prepare())
	require.NoError(t, shadow.Draw(dev, f.g))
	require.Len(t, dev.Draws(), 2)
	assert.Same(t, draws[0].Buffer, dev.Draws()[1].Buffer)
}

func TestAnimatedNodeDrawsWithModelMatrix(t *testing.T) {
	f := newFixture()
	m := triangle("flag")
	id := f.child(t, f.root, node.CategoryAnimated, objects(m, 1))
	var transform [16]float32
	common.Translation(transform[:], 5, 0, 0)
	require.NoError(t, f.g.SetAnimatedTransform(id, transform))

	dev := gpu.NewRecordingDevice()
	q := NewRenderQueue(common.PassColor, 50, 100)
	frame(t, q, f, dev)

	draws := dev.Draws()
	require.Len(t, draws, 1)
	require.NotNil(t, draws[0].ModelMatrix)
	require.NotNil(t, draws[0].NormalMatrix)
	assert.Equal(t, float32(5), draws[0].ModelMatrix[12])
	assert.Equal(t, float32(1), draws[0].NormalMatrix[0])
}

func TestTerrainDrawsOnlyInColorPass(t *testing.T) {
	f := newFixture()
	f.child(t, f.root, node.CategoryTerrain, objects(triangle("ground"), 1))

	dev := gpu.NewRecordingDevice()
	shadow := NewRenderQueue(common.PassFarShadow, 50, 100)
	frame(t, shadow, f, dev)
	assert.Empty(t, dev.Draws())
	assert.Equal(t, 1, shadow.Stats().DirectNodes)

	color := NewRenderQueue(common.PassColor, 50, 100)
	frame(t, color, f, dev)
	assert.Len(t, dev.Draws(), 1)
}

func TestSeedingAndLookupMisses(t *testing.T) {
	f := newFixture()
	used, spare, late := triangle("used"), triangle("spare"), triangle("late")
	f.child(t, f.root, node.CategoryInstanced, objects(used, 2))

	dev := gpu.NewRecordingDevice()
	q := NewRenderQueue(common.PassColor, 50, 100, WithMeshRegistry(registry{used, spare}))
	frame(t, q, f, dev)

	acc, ok := q.Accumulator(used)
	require.True(t, ok)
	assert.Equal(t, 2, acc.Reserved())
	acc, ok = q.Accumulator(spare)
	require.True(t, ok)
	assert.Equal(t, 0, acc.Count())

	cons := q.Consolidator()
	require.NotNil(t, cons)
	assert.Len(t, cons.Sources(), 2)
	assert.Equal(t, 2, cons.TransformCapacity())

	f.child(t, f.root, node.CategoryInstanced, objects(late, 1))
	dev.EndFrame()
	frame(t, q, f, dev)
	assert.Equal(t, 1, q.Stats().LookupMisses)
	_, ok = q.Accumulator(late)
	assert.False(t, ok)

	q.Invalidate()
	assert.Nil(t, q.Consolidator())
	dev.EndFrame()
	frame(t, q, f, dev)
	assert.Equal(t, 0, q.Stats().LookupMisses)
	require.NotNil(t, q.Consolidator())
	assert.Len(t, q.Consolidator().Sources(), 3)
	assert.Equal(t, 3, q.Stats().LiveInstances)
}

func TestDeviceFailureAbortsDraw(t *testing.T) {
	f := newFixture()
	f.child(t, f.root, node.CategoryGeneric, objects(triangle("wall"), 1))
	f.g.Drain(f.ctx)

	dev := gpu.NewRecordingDevice(gpu.WithAllocationLimit(0))
	q := NewRenderQueue(common.PassColor, 50, 100)
	q.Flush()
	q.Classify(f.g, f.root, visibleAll{}, [3]float32{})
	require.NoError(t, q.Prepare())
	assert.ErrorIs(t, q.Draw(dev, f.g), gpu.ErrAllocationFailed)
}

func TestFromConfig(t *testing.T) {
	rc := config.Default().Render

	q, err := FromConfig(config.QueueConfig{Name: "sun", Pass: "mid_shadow", ShadowLevel: 2}, rc)
	require.NoError(t, err)
	assert.Equal(t, "sun", q.Name())
	assert.Equal(t, common.PassMidShadow, q.Pass())
	assert.Equal(t, 2, q.ShadowLevel())
	impl := q.(*renderQueue)
	assert.Equal(t, rc.MidDistance*rc.MidDistance, impl.midDistSqr)
	assert.Equal(t, multi_instance.PassAll, impl.filter)

	q, err = FromConfig(config.QueueConfig{MidDistance: 3, LowDistance: 4, Categories: []string{"normal", "billboard"}}, rc)
	require.NoError(t, err)
	impl = q.(*renderQueue)
	assert.Equal(t, "color", q.Name())
	assert.Equal(t, float32(16), impl.lowDistSqr)
	assert.Equal(t, multi_instance.PassNormal|multi_instance.PassBillboard, impl.filter)

	_, err = FromConfig(config.QueueConfig{Pass: "sideways"}, rc)
	assert.ErrorContains(t, err, "unknown pass")
	_, err = FromConfig(config.QueueConfig{Categories: []string{"skybox"}}, rc)
	assert.ErrorContains(t, err, "unknown instance category")
}
