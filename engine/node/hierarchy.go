package node

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"go.uber.org/zap"
)

// AddObject appends obj to the node, moves the object's bounds into world space, re-merges
// the node and every ancestor, and schedules the node for drawcall creation.
//
// Parameters:
//   - ctx: the frame context receiving the update request
//   - id: the owning node
//   - obj: the object to add
//
// Returns:
//   - error: ErrNodeNotFound for a dead handle
func (g *Graph) AddObject(ctx *FrameContext, id NodeID, obj drawable_object.DrawableObject) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.get(id)
	if n == nil {
		return fmt.Errorf("add object to %d: %w", id, ErrNodeNotFound)
	}
	n.objects = append(n.objects, obj)
	obj.UpdateWorld(n.transform[:])
	g.updateBounding(id)
	g.propagateUp(n.parent)

	n.flags.NeedsDrawcallCreate = true
	g.pushToUpdate(ctx, id)

	if n.category == CategoryInstanced && g.rooted(id) {
		g.adjustObjectUsage(obj, 1)
	}
	if obj.Dynamic() && g.dynamics != nil {
		g.dynamics.AddDynamicObject(obj)
	}
	return nil
}

// RemoveObject removes obj from the node, re-merges the node and its ancestors, detaches the
// object's collision proxy and drops it from dynamic tracking.
//
// Parameters:
//   - ctx: the frame context receiving the update request
//   - id: the owning node
//   - obj: the object to remove
//
// Returns:
//   - drawable_object.DrawableObject: the removed object, nil if it was not found
//   - bool: false if the node or the object was not found
func (g *Graph) RemoveObject(ctx *FrameContext, id NodeID, obj drawable_object.DrawableObject) (drawable_object.DrawableObject, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.get(id)
	if n == nil {
		return nil, false
	}
	i := slices.Index(n.objects, obj)
	if i < 0 {
		return nil, false
	}
	n.objects = slices.Delete(n.objects, i, i+1)
	g.updateBounding(id)
	g.propagateUp(n.parent)

	n.flags.NeedsDrawcallCreate = true
	g.pushToUpdate(ctx, id)

	if n.category == CategoryInstanced && g.rooted(id) {
		g.adjustObjectUsage(obj, -1)
	}
	g.releaseObject(obj)
	return obj, true
}

// AttachChild makes child a child of parent, re-bases the child's subtree bounds bottom-up,
// re-merges every ancestor and requests drawcall recreation for the new subtree.
//
// Parameters:
//   - ctx: the frame context receiving the update requests
//   - parent: the new parent
//   - child: a detached node
//
// Returns:
//   - error: ErrNodeNotFound, ErrAlreadyAttached or ErrCycle
func (g *Graph) AttachChild(ctx *FrameContext, parent, child NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, c := g.get(parent), g.get(child)
	if p == nil || c == nil {
		return fmt.Errorf("attach %d to %d: %w", child, parent, ErrNodeNotFound)
	}
	if c.parent != Nil {
		return fmt.Errorf("attach %d to %d: %w", child, parent, ErrAlreadyAttached)
	}
	for a := parent; a != Nil; a = g.nodes[a].parent {
		if a == child {
			return fmt.Errorf("attach %d to %d: %w", child, parent, ErrCycle)
		}
	}

	p.children = append(p.children, child)
	c.parent = parent

	g.refreshTransform(child)
	g.rebaseBounds(child)
	g.propagateUp(parent)
	g.markSubtreeDrawcall(ctx, child, true, false)

	if g.rooted(parent) {
		g.adjustUsage(child, 1)
	}
	return nil
}

// DetachChild removes child from parent's child list and re-merges the former ancestors.
// The mesh usage of instanced objects in the detached subtree is released.
//
// Parameters:
//   - parent: the current parent
//   - child: the node to detach
//
// Returns:
//   - NodeID: the detached child, Nil if it was not a child of parent
//   - bool: false if the child was not found
func (g *Graph) DetachChild(parent, child NodeID) (NodeID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.detach(parent, child) {
		return Nil, false
	}
	return child, true
}

// Translate moves a node to a new position relative to its parent. Bounding volumes of the
// whole subtree shift by the same delta, ancestors are re-merged, and every node below that
// owns objects is scheduled for a drawcall update.
//
// Parameters:
//   - ctx: the frame context receiving the update requests
//   - id: the node to move
//   - x, y, z: the new parent-relative position
//
// Returns:
//   - error: ErrNodeNotFound for a dead handle
func (g *Graph) Translate(ctx *FrameContext, id NodeID, x, y, z float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.get(id)
	if n == nil {
		return fmt.Errorf("translate %d: %w", id, ErrNodeNotFound)
	}
	d := [3]float32{x - n.position[0], y - n.position[1], z - n.position[2]}
	n.position = [3]float32{x, y, z}

	g.shiftBounds(id, d)
	g.propagateUp(n.parent)
	g.markSubtreeDrawcall(ctx, id, false, false)
	g.refreshTransform(id)
	return nil
}

// TranslateObject sets the node-local position of the i-th object.
//
// Parameters:
//   - ctx: the frame context receiving the update request
//   - id: the owning node
//   - i: the object index
//   - x, y, z: the new node-local position
//
// Returns:
//   - error: ErrNodeNotFound or ErrObjectIndex
func (g *Graph) TranslateObject(ctx *FrameContext, id NodeID, i int, x, y, z float32) error {
	return g.transformObject(ctx, id, i, func(o drawable_object.DrawableObject) bool {
		o.SetPosition(x, y, z)
		return false
	})
}

// TranslateObjectCenterAtWorld moves the i-th object so the center of its world bounding
// volume lands on the given world point.
//
// Parameters:
//   - ctx: the frame context receiving the update request
//   - id: the owning node
//   - i: the object index
//   - x, y, z: the world-space target for the bounds center
//
// Returns:
//   - error: ErrNodeNotFound or ErrObjectIndex
func (g *Graph) TranslateObjectCenterAtWorld(ctx *FrameContext, id NodeID, i int, x, y, z float32) error {
	return g.transformObject(ctx, id, i, func(o drawable_object.DrawableObject) bool {
		center := o.Bounds().Position
		p := o.Position()
		o.SetPosition(p[0]+x-center[0], p[1]+y-center[1], p[2]+z-center[2])
		return false
	})
}

// RotateObject sets the node-local rotation of the i-th object. Normals are always refreshed.
//
// Parameters:
//   - ctx: the frame context receiving the update request
//   - id: the owning node
//   - i: the object index
//   - rx, ry, rz: rotation angles in radians
//
// Returns:
//   - error: ErrNodeNotFound or ErrObjectIndex
func (g *Graph) RotateObject(ctx *FrameContext, id NodeID, i int, rx, ry, rz float32) error {
	return g.transformObject(ctx, id, i, func(o drawable_object.DrawableObject) bool {
		o.SetRotation(rx, ry, rz)
		return true
	})
}

// ScaleObject sets the node-local scale of the i-th object. Normals are refreshed only for
// non-uniform scale.
//
// Parameters:
//   - ctx: the frame context receiving the update request
//   - id: the owning node
//   - i: the object index
//   - sx, sy, sz: scale factors
//
// Returns:
//   - error: ErrNodeNotFound or ErrObjectIndex
func (g *Graph) ScaleObject(ctx *FrameContext, id NodeID, i int, sx, sy, sz float32) error {
	return g.transformObject(ctx, id, i, func(o drawable_object.DrawableObject) bool {
		o.SetScale(sx, sy, sz)
		return !(sx == sy && sy == sz)
	})
}

// UpdateBounding re-merges a node's volume from its objects and non-empty children.
//
// Parameters:
//   - id: the node
//
// Returns:
//   - error: ErrNodeNotFound for a dead handle
func (g *Graph) UpdateBounding(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.get(id) == nil {
		return fmt.Errorf("update bounding %d: %w", id, ErrNodeNotFound)
	}
	g.updateBounding(id)
	return nil
}

// UpdateTransform recomputes the world transform of a node and its subtree, top-down,
// from the parent's current transform.
//
// Parameters:
//   - id: the node
//
// Returns:
//   - error: ErrNodeNotFound for a dead handle
func (g *Graph) UpdateTransform(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.get(id) == nil {
		return fmt.Errorf("update transform %d: %w", id, ErrNodeNotFound)
	}
	g.refreshTransform(id)
	return nil
}

// SetAnimatedTransform drives an animated node's world transform from outside. Object world
// state and bounds are refreshed immediately and ancestors re-merged.
//
// Parameters:
//   - id: an animated node
//   - m: the new world transform (column-major)
//
// Returns:
//   - error: ErrNodeNotFound or ErrNotAnimated
func (g *Graph) SetAnimatedTransform(id NodeID, m [16]float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.get(id)
	if n == nil {
		return fmt.Errorf("animate %d: %w", id, ErrNodeNotFound)
	}
	if n.category != CategoryAnimated {
		return fmt.Errorf("animate %d: %w", id, ErrNotAnimated)
	}
	n.transform = m
	for _, c := range n.children {
		g.refreshTransform(c)
	}
	g.rebaseBounds(id)
	g.propagateUp(n.parent)
	return nil
}

// Drain runs the end-of-frame passes: every node queued for update recomputes its transform,
// refreshes its objects and syncs their collision proxies; then every node queued for removal
// is detached and destroyed.
//
// Parameters:
//   - ctx: the frame context to drain
//
// Returns:
//   - updated: number of nodes updated
//   - removed: number of nodes destroyed
func (g *Graph) Drain(ctx *FrameContext) (updated, removed int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ctx.toUpdate {
		n := g.get(id)
		if n == nil {
			continue
		}
		g.updateNode(id)
		updated++
	}
	ctx.toUpdate = ctx.toUpdate[:0]

	removals := slices.Clone(ctx.toRemove)
	ctx.toRemove = ctx.toRemove[:0]
	for _, id := range removals {
		n := g.get(id)
		if n == nil {
			continue
		}
		if n.parent != Nil {
			g.detach(n.parent, id)
		} else if n.root {
			g.adjustUsage(id, -1)
		}
		g.destroy(ctx, id)
		removed++
	}

	if updated > 0 || removed > 0 {
		g.logger.Debug("frame context drained", zap.Int("updated", updated), zap.Int("removed", removed))
	}
	return updated, removed
}

// Destroy detaches a node if needed and destroys it with its whole subtree, releasing every
// drawcall and collision proxy the subtree owns.
//
// Parameters:
//   - ctx: the frame context, pending requests for destroyed nodes are dropped
//   - id: the node to destroy
//
// Returns:
//   - error: ErrNodeNotFound for a dead handle
func (g *Graph) Destroy(ctx *FrameContext, id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.get(id)
	if n == nil {
		return fmt.Errorf("destroy %d: %w", id, ErrNodeNotFound)
	}
	if n.parent != Nil {
		g.detach(n.parent, id)
	} else if n.root {
		g.adjustUsage(id, -1)
	}
	g.destroy(ctx, id)
	return nil
}

// transformObject applies fn to the i-th object and refreshes bounds and flags.
// fn reports whether normals need to be refreshed.
func (g *Graph) transformObject(ctx *FrameContext, id NodeID, i int, fn func(drawable_object.DrawableObject) bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := g.get(id)
	if n == nil {
		return fmt.Errorf("transform object of %d: %w", id, ErrNodeNotFound)
	}
	if i < 0 || i >= len(n.objects) {
		return fmt.Errorf("transform object %d of %d: %w", i, id, ErrObjectIndex)
	}
	o := n.objects[i]
	needsNormal := fn(o)
	o.UpdateWorld(n.transform[:])
	g.updateBounding(id)
	g.propagateUp(n.parent)

	n.flags.NeedsNormalUpdate = needsNormal
	n.flags.NeedsDrawcallUpdate = true
	g.pushToUpdate(ctx, id)
	return nil
}

// pushToUpdate queues a node once. Animated nodes are never queued.
func (g *Graph) pushToUpdate(ctx *FrameContext, id NodeID) {
	n := &g.nodes[id]
	if ctx == nil || n.flags.Queued || n.category == CategoryAnimated {
		return
	}
	ctx.toUpdate = append(ctx.toUpdate, id)
	n.flags.Queued = true
}

// updateBounding re-merges a node from its object volumes and non-empty child volumes.
// A node with nothing to merge collapses to an empty volume at its world origin.
func (g *Graph) updateBounding(id NodeID) {
	n := &g.nodes[id]
	vs := make([]common.BoundingVolume, 0, len(n.objects)+len(n.children))
	for _, o := range n.objects {
		vs = append(vs, o.Bounds())
	}
	for _, c := range n.children {
		vs = append(vs, g.nodes[c].bounds)
	}
	if !n.bounds.Merge(vs...) {
		n.bounds = common.BoundingVolume{Position: common.TranslationOf(n.transform[:])}
	}
}

// propagateUp re-merges id and every ancestor of id.
func (g *Graph) propagateUp(id NodeID) {
	for id != Nil {
		g.updateBounding(id)
		id = g.nodes[id].parent
	}
}

// refreshTransform recomputes world transforms of id and its subtree from the parent down.
func (g *Graph) refreshTransform(id NodeID) {
	n := &g.nodes[id]
	var local [16]float32
	common.Translation(local[:], n.position[0], n.position[1], n.position[2])
	if n.parent != Nil {
		parent := g.nodes[n.parent].transform
		common.Mul4(n.transform[:], parent[:], local[:])
	} else {
		n.transform = local
	}
	for _, c := range n.children {
		g.refreshTransform(c)
	}
}

// rebaseBounds refreshes object world state and node bounds of a subtree, children first.
func (g *Graph) rebaseBounds(id NodeID) {
	n := &g.nodes[id]
	for _, c := range n.children {
		g.rebaseBounds(c)
	}
	for _, o := range n.objects {
		o.UpdateWorld(n.transform[:])
	}
	g.updateBounding(id)
}

// shiftBounds moves every object and node volume in a subtree by d.
func (g *Graph) shiftBounds(id NodeID, d [3]float32) {
	n := &g.nodes[id]
	for _, o := range n.objects {
		o.TranslateBounds(d)
	}
	n.bounds.Translate(d)
	for _, c := range n.children {
		g.shiftBounds(c, d)
	}
}

// markSubtreeDrawcall requests drawcall creation or update for every node in the subtree that owns objects.
func (g *Graph) markSubtreeDrawcall(ctx *FrameContext, id NodeID, create, normal bool) {
	n := &g.nodes[id]
	if len(n.objects) > 0 {
		if create {
			n.flags.NeedsDrawcallCreate = true
		} else {
			n.flags.NeedsDrawcallUpdate = true
		}
		n.flags.NeedsNormalUpdate = normal
		g.pushToUpdate(ctx, id)
	}
	for _, c := range n.children {
		g.markSubtreeDrawcall(ctx, c, create, normal)
	}
}

// updateNode recomputes a queued node's transform, refreshes its objects and syncs collision proxies.
func (g *Graph) updateNode(id NodeID) {
	n := &g.nodes[id]
	if n.category != CategoryAnimated {
		g.refreshTransform(id)
		for _, o := range n.objects {
			o.UpdateWorld(n.transform[:])
			if c := o.CollisionObject(); c != nil {
				c.InitTransform(common.TransformPoint(n.transform[:], o.Position()), o.Orientation())
			}
		}
	}
	n.flags.Queued = false
}

// detach unlinks child from parent. Caller must hold the lock.
func (g *Graph) detach(parent, child NodeID) bool {
	p, c := g.get(parent), g.get(child)
	if p == nil || c == nil {
		return false
	}
	i := slices.Index(p.children, child)
	if i < 0 {
		return false
	}
	p.children = slices.Delete(p.children, i, i+1)
	c.parent = Nil
	g.propagateUp(parent)

	if g.rooted(parent) {
		g.adjustUsage(child, -1)
	}
	return true
}

// destroy frees a detached subtree.
func (g *Graph) destroy(ctx *FrameContext, id NodeID) {
	n := &g.nodes[id]
	for _, c := range n.children {
		g.destroy(ctx, c)
	}
	if n.drawcall != nil {
		n.drawcall.Release()
	}
	for _, o := range n.objects {
		g.releaseObject(o)
	}
	if ctx != nil {
		ctx.forget(id)
	}
	g.logger.Debug("node destroyed", zap.Uint32("id", uint32(id)), zap.String("name", n.name))

	g.nodes[id] = node{}
	g.free = append(g.free, id)
}

// releaseObject detaches the object's collision proxy and dynamic tracking.
func (g *Graph) releaseObject(o drawable_object.DrawableObject) {
	if c := o.CollisionObject(); c != nil {
		if g.collisions != nil {
			g.collisions.RemoveObject(c)
		}
		o.SetCollisionObject(nil)
	}
	if o.Dynamic() && g.dynamics != nil {
		g.dynamics.RemoveDynamicObject(o)
	}
}

// adjustUsage adds delta to the usage of every mesh of every object in instanced nodes of a subtree.
func (g *Graph) adjustUsage(id NodeID, delta int) {
	n := &g.nodes[id]
	if n.category == CategoryInstanced {
		for _, o := range n.objects {
			g.adjustObjectUsage(o, delta)
		}
	}
	for _, c := range n.children {
		g.adjustUsage(c, delta)
	}
}

func (g *Graph) adjustObjectUsage(o drawable_object.DrawableObject, delta int) {
	for _, m := range o.Meshes() {
		v := g.usage[m] + delta
		if v <= 0 {
			delete(g.usage, m)
			continue
		}
		g.usage[m] = v
	}
}
