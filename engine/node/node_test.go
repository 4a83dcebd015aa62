package node

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollision struct {
	position    [3]float32
	orientation [4]float32
	inits       int
}

func (f *fakeCollision) InitTransform(position [3]float32, orientation [4]float32) {
	f.position = position
	f.orientation = orientation
	f.inits++
}

type fakeWorld struct {
	removed []drawable_object.CollisionObject
}

func (w *fakeWorld) RemoveObject(c drawable_object.CollisionObject) {
	w.removed = append(w.removed, c)
}

type fakeTracker struct {
	live map[drawable_object.DrawableObject]bool
}

func (t *fakeTracker) AddDynamicObject(o drawable_object.DrawableObject) {
	t.live[o] = true
}

func (t *fakeTracker) RemoveDynamicObject(o drawable_object.DrawableObject) {
	delete(t.live, o)
}

type fakeDrawcall struct {
	released int
}

func (d *fakeDrawcall) Release() {
	d.released++
}

func cube() mesh.Mesh {
	return mesh.NewMesh(mesh.WithPositions([]float32{-1, -1, -1, 1, 1, 1}))
}

func objectAt(m mesh.Mesh, x, y, z float32, options ...drawable_object.DrawableObjectBuilderOption) drawable_object.DrawableObject {
	return drawable_object.NewDrawableObject(m, append([]drawable_object.DrawableObjectBuilderOption{drawable_object.WithPosition(x, y, z)}, options...)...)
}

func assertVolumeEqual(t *testing.T, want, got common.BoundingVolume) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, want.Position[i], got.Position[i], 1e-5)
		assert.InDelta(t, want.HalfExtents[i], got.HalfExtents[i], 1e-5)
	}
}

func TestAddRemoveObjectKeepsMergedBounds(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	n := g.CreateNode(CategoryStatic)
	m := cube()

	a := objectAt(m, 0, 0, 0)
	b := objectAt(m, 10, 0, 0)
	c := objectAt(m, 0, -5, 0)
	require.NoError(t, g.AddObject(ctx, n, a))
	require.NoError(t, g.AddObject(ctx, n, b))
	before := g.Bounds(n)

	require.NoError(t, g.AddObject(ctx, n, c))
	removed, ok := g.RemoveObject(ctx, n, c)
	require.True(t, ok)
	assert.Equal(t, c, removed)
	assertVolumeEqual(t, before, g.Bounds(n))

	var want common.BoundingVolume
	want.Merge(a.Bounds(), b.Bounds())
	assertVolumeEqual(t, want, g.Bounds(n))

	_, ok = g.RemoveObject(ctx, n, c)
	assert.False(t, ok)
	_, ok = g.RemoveObject(ctx, Nil, a)
	assert.False(t, ok)
}

func TestRemoveAllObjectsCollapsesBounds(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	n := g.CreateNode(CategoryStatic, WithPosition(1, 2, 3))
	o := objectAt(cube(), 4, 0, 0)
	require.NoError(t, g.AddObject(ctx, n, o))
	assert.False(t, g.Bounds(n).Empty())
	assert.Equal(t, [3]float32{5, 2, 3}, o.Bounds().Position)

	g.RemoveObject(ctx, n, o)
	assert.True(t, g.Bounds(n).Empty())
	assert.Equal(t, [3]float32{1, 2, 3}, g.Bounds(n).Position)
}

func TestAttachChildEnclosesInEveryAncestor(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	root := g.CreateNode(CategoryGeneric, AsRoot())
	mid := g.CreateNode(CategoryGeneric, WithPosition(0, 10, 0))
	leaf := g.CreateNode(CategoryStatic, WithPosition(5, 0, 0))

	require.NoError(t, g.AttachChild(ctx, root, mid))
	require.NoError(t, g.AddObject(ctx, leaf, objectAt(cube(), 0, 0, 0)))
	require.NoError(t, g.AttachChild(ctx, mid, leaf))

	leafBounds := g.Bounds(leaf)
	assert.Equal(t, [3]float32{5, 10, 0}, leafBounds.Position)
	for _, a := range []NodeID{mid, root} {
		assert.True(t, g.Bounds(a).Contains(leafBounds, 1e-5), "ancestor %d", a)
	}
	assert.True(t, g.Flags(leaf).NeedsDrawcallCreate)
	assert.Equal(t, mid, g.Parent(leaf))
	assert.Equal(t, []NodeID{leaf}, g.Children(mid))
}

func TestDetachReattachRestoresAncestorBounds(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	root := g.CreateNode(CategoryGeneric, AsRoot())
	a := g.CreateNode(CategoryStatic)
	b := g.CreateNode(CategoryStatic, WithPosition(20, 0, 0))
	require.NoError(t, g.AddObject(ctx, a, objectAt(cube(), 0, 0, 0)))
	require.NoError(t, g.AddObject(ctx, b, objectAt(cube(), 0, 3, 0)))
	require.NoError(t, g.AttachChild(ctx, root, a))
	require.NoError(t, g.AttachChild(ctx, root, b))
	before := g.Bounds(root)

	got, ok := g.DetachChild(root, b)
	require.True(t, ok)
	assert.Equal(t, b, got)
	assert.Equal(t, Nil, g.Parent(b))
	assertVolumeEqual(t, g.Bounds(a), g.Bounds(root))

	require.NoError(t, g.AttachChild(ctx, root, b))
	assertVolumeEqual(t, before, g.Bounds(root))

	_, ok = g.DetachChild(a, b)
	assert.False(t, ok)
}

func TestAttachChildErrors(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	a := g.CreateNode(CategoryGeneric)
	b := g.CreateNode(CategoryGeneric)
	c := g.CreateNode(CategoryGeneric)
	require.NoError(t, g.AttachChild(ctx, a, b))
	require.NoError(t, g.AttachChild(ctx, b, c))

	assert.ErrorIs(t, g.AttachChild(ctx, c, a), ErrCycle)
	assert.ErrorIs(t, g.AttachChild(ctx, a, a), ErrCycle)
	assert.ErrorIs(t, g.AttachChild(ctx, a, c), ErrAlreadyAttached)
	assert.ErrorIs(t, g.AttachChild(ctx, a, NodeID(99)), ErrNodeNotFound)
}

func TestPushToUpdateIsIdempotent(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	n := g.CreateNode(CategoryStatic)
	anim := g.CreateNode(CategoryAnimated)
	m := cube()

	require.NoError(t, g.AddObject(ctx, n, objectAt(m, 0, 0, 0)))
	require.NoError(t, g.AddObject(ctx, n, objectAt(m, 1, 0, 0)))
	require.NoError(t, g.TranslateObject(ctx, n, 0, 2, 0, 0))
	require.NoError(t, g.AddObject(ctx, anim, objectAt(m, 0, 0, 0)))

	assert.Equal(t, []NodeID{n}, ctx.PendingUpdates())
	assert.True(t, g.Flags(n).Queued)
	assert.False(t, g.Flags(anim).Queued)

	updated, removed := g.Drain(ctx)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 0, removed)
	assert.Empty(t, ctx.PendingUpdates())
	assert.False(t, g.Flags(n).Queued)

	require.NoError(t, g.TranslateObject(ctx, n, 1, 3, 0, 0))
	assert.Equal(t, []NodeID{n}, ctx.PendingUpdates())
}

func TestObjectTransformNormalFlags(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	n := g.CreateNode(CategoryStatic)
	require.NoError(t, g.AddObject(ctx, n, objectAt(cube(), 0, 0, 0)))

	require.NoError(t, g.ScaleObject(ctx, n, 0, 2, 2, 2))
	assert.False(t, g.Flags(n).NeedsNormalUpdate)
	assert.True(t, g.Flags(n).NeedsDrawcallUpdate)

	require.NoError(t, g.ScaleObject(ctx, n, 0, 2, 1, 3))
	assert.True(t, g.Flags(n).NeedsNormalUpdate)
	assert.Equal(t, [3]float32{2, 1, 3}, g.Bounds(n).HalfExtents)

	require.NoError(t, g.RotateObject(ctx, n, 0, 0, 1, 0))
	assert.True(t, g.Flags(n).NeedsNormalUpdate)

	require.NoError(t, g.TranslateObject(ctx, n, 0, 1, 1, 1))
	assert.False(t, g.Flags(n).NeedsNormalUpdate)

	assert.ErrorIs(t, g.RotateObject(ctx, n, 5, 0, 0, 0), ErrObjectIndex)
}

func TestTranslateObjectCenterAtWorld(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	n := g.CreateNode(CategoryStatic, WithPosition(10, 0, 0))
	// bounds centered away from the object origin
	m := mesh.NewMesh(mesh.WithPositions([]float32{0, 0, 0, 2, 2, 2}))
	o := objectAt(m, 0, 0, 0)
	require.NoError(t, g.AddObject(ctx, n, o))
	assert.Equal(t, [3]float32{11, 1, 1}, o.Bounds().Position)

	require.NoError(t, g.TranslateObjectCenterAtWorld(ctx, n, 0, 0, 0, 0))
	assertVolumeEqual(t, common.BoundingVolume{HalfExtents: [3]float32{1, 1, 1}}, o.Bounds())
	assert.Equal(t, [3]float32{-11, -1, -1}, o.Position())
}

func TestTranslateNodeShiftsSubtree(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	root := g.CreateNode(CategoryGeneric, AsRoot())
	parent := g.CreateNode(CategoryGeneric)
	child := g.CreateNode(CategoryStatic, WithPosition(1, 0, 0))
	o := objectAt(cube(), 0, 0, 0)
	require.NoError(t, g.AddObject(ctx, child, o))
	require.NoError(t, g.AttachChild(ctx, parent, child))
	require.NoError(t, g.AttachChild(ctx, root, parent))
	g.Drain(ctx)

	require.NoError(t, g.Translate(ctx, parent, 0, 5, 0))
	assert.Equal(t, [3]float32{1, 5, 0}, g.Bounds(child).Position)
	assert.Equal(t, [3]float32{1, 5, 0}, o.Bounds().Position)
	tr := g.Transform(child)
	assert.Equal(t, [3]float32{1, 5, 0}, common.TranslationOf(tr[:]))
	assert.True(t, g.Bounds(root).Contains(g.Bounds(child), 1e-5))
	assert.True(t, g.Flags(child).NeedsDrawcallUpdate)
	assert.Equal(t, []NodeID{child}, ctx.PendingUpdates())

	g.Drain(ctx)
	wt := o.WorldTransform()
	assert.Equal(t, [3]float32{1, 5, 0}, common.TranslationOf(wt[:]))
}

func TestDrainSyncsCollisionProxies(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	n := g.CreateNode(CategoryStatic, WithPosition(0, 0, 4))
	proxy := &fakeCollision{}
	o := objectAt(cube(), 1, 0, 0, drawable_object.WithCollisionObject(proxy))
	require.NoError(t, g.AddObject(ctx, n, o))

	g.Drain(ctx)
	assert.Equal(t, 1, proxy.inits)
	assert.Equal(t, [3]float32{1, 0, 4}, proxy.position)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, proxy.orientation)
}

func TestRemoveObjectReleasesCollisionAndDynamicTracking(t *testing.T) {
	world := &fakeWorld{}
	tracker := &fakeTracker{live: map[drawable_object.DrawableObject]bool{}}
	g := NewGraph(WithCollisionWorld(world), WithDynamicTracker(tracker))
	ctx := NewFrameContext()
	n := g.CreateNode(CategoryStatic, WithDynamicBatch(true))

	proxy := &fakeCollision{}
	o := objectAt(cube(), 0, 0, 0, drawable_object.WithCollisionObject(proxy), drawable_object.WithDynamic(true))
	require.NoError(t, g.AddObject(ctx, n, o))
	assert.True(t, tracker.live[o])

	_, ok := g.RemoveObject(ctx, n, o)
	require.True(t, ok)
	assert.Equal(t, []drawable_object.CollisionObject{proxy}, world.removed)
	assert.Nil(t, o.CollisionObject())
	assert.False(t, tracker.live[o])
}

func TestMeshUsageFollowsInstancedSubtrees(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	root := g.CreateNode(CategoryGeneric, AsRoot())
	group := g.CreateNode(CategoryGeneric)
	inst := g.CreateNode(CategoryInstanced)
	base, low := cube(), cube()

	// detached subtrees are not counted
	require.NoError(t, g.AddObject(ctx, inst, objectAt(base, 0, 0, 0, drawable_object.WithLOD(nil, low))))
	require.NoError(t, g.AddObject(ctx, inst, objectAt(base, 3, 0, 0)))
	require.NoError(t, g.AttachChild(ctx, group, inst))
	assert.Equal(t, 0, g.MeshUsage(base))

	require.NoError(t, g.AttachChild(ctx, root, group))
	assert.Equal(t, 2, g.MeshUsage(base))
	assert.Equal(t, 1, g.MeshUsage(low))

	extra := objectAt(base, 6, 0, 0)
	require.NoError(t, g.AddObject(ctx, inst, extra))
	assert.Equal(t, 3, g.MeshUsage(base))
	g.RemoveObject(ctx, inst, extra)
	assert.Equal(t, 2, g.MeshUsage(base))

	_, ok := g.DetachChild(root, group)
	require.True(t, ok)
	assert.Equal(t, 0, g.MeshUsage(base))
	assert.Equal(t, 0, g.MeshUsage(low))

	require.NoError(t, g.AttachChild(ctx, root, group))
	assert.Equal(t, 2, g.MeshUsage(base))
}

func TestDestroyReleasesSubtree(t *testing.T) {
	world := &fakeWorld{}
	g := NewGraph(WithCollisionWorld(world))
	ctx := NewFrameContext()
	root := g.CreateNode(CategoryGeneric, AsRoot())
	parent := g.CreateNode(CategoryStatic)
	child := g.CreateNode(CategoryInstanced)
	m := cube()
	require.NoError(t, g.AddObject(ctx, parent, objectAt(m, 0, 0, 0, drawable_object.WithCollisionObject(&fakeCollision{}))))
	require.NoError(t, g.AddObject(ctx, child, objectAt(m, 0, 0, 0)))
	require.NoError(t, g.AttachChild(ctx, parent, child))
	require.NoError(t, g.AttachChild(ctx, root, parent))
	dcParent, dcChild := &fakeDrawcall{}, &fakeDrawcall{}
	require.NoError(t, g.SetDrawcall(parent, dcParent))
	require.NoError(t, g.SetDrawcall(child, dcChild))
	assert.Equal(t, 1, g.MeshUsage(m))
	assert.Equal(t, 3, g.Len())

	ctx.QueueRemove(parent)
	ctx.QueueRemove(parent)
	assert.Len(t, ctx.PendingRemovals(), 1)
	_, removed := g.Drain(ctx)
	assert.Equal(t, 1, removed)

	assert.Equal(t, 1, dcParent.released)
	assert.Equal(t, 1, dcChild.released)
	assert.Len(t, world.removed, 1)
	assert.False(t, g.Live(parent))
	assert.False(t, g.Live(child))
	assert.Empty(t, g.Children(root))
	assert.Equal(t, 0, g.MeshUsage(m))
	assert.Equal(t, 1, g.Len())

	// freed slots are reused
	again := g.CreateNode(CategoryGeneric)
	assert.Contains(t, []NodeID{parent, child}, again)
	assert.ErrorIs(t, g.Destroy(ctx, NodeID(77)), ErrNodeNotFound)
}

func TestSetDrawcallReplacesAndReleases(t *testing.T) {
	g := NewGraph()
	n := g.CreateNode(CategoryGeneric)
	first, second := &fakeDrawcall{}, &fakeDrawcall{}
	require.NoError(t, g.SetDrawcall(n, first))
	require.NoError(t, g.SetDrawcall(n, first))
	assert.Equal(t, 0, first.released)
	require.NoError(t, g.SetDrawcall(n, second))
	assert.Equal(t, 1, first.released)
	assert.Equal(t, second, g.Drawcall(n))
}

func TestSetAnimatedTransform(t *testing.T) {
	g := NewGraph()
	ctx := NewFrameContext()
	anim := g.CreateNode(CategoryAnimated)
	static := g.CreateNode(CategoryStatic)
	o := objectAt(cube(), 0, 0, 0)
	require.NoError(t, g.AddObject(ctx, anim, o))

	var m [16]float32
	common.Translation(m[:], 0, 7, 0)
	require.NoError(t, g.SetAnimatedTransform(anim, m))
	assert.Equal(t, [3]float32{0, 7, 0}, o.Bounds().Position)
	assert.Equal(t, [3]float32{0, 7, 0}, g.Bounds(anim).Position)
	assert.ErrorIs(t, g.SetAnimatedTransform(static, m), ErrNotAnimated)
}
