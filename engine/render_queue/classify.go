package render_queue

import (
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/engine/batch"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/instance"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
	"github.com/Carmen-Shannon/oxy-scene/engine/node"
)

func (q *renderQueue) Classify(g *node.Graph, root node.NodeID, vis Visibility, eye [3]float32) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.firstFlush {
		q.seed(g)
		q.firstFlush = false
	}
	q.classify(g, root, vis, eye)
}

// seed creates an accumulator for every registered mesh, reserving the number of instances
// the graph currently references.
func (q *renderQueue) seed(g *node.Graph) {
	if q.registry == nil {
		return
	}
	for _, m := range q.registry.Meshes() {
		q.accumulatorFor(g, m)
	}
	q.logger.Debug("seeded instance accumulators", zap.String("queue", q.name), zap.Int("meshes", len(q.order)))
}

// accumulatorFor returns the accumulator of m, creating it with the graph's usage as reservation.
func (q *renderQueue) accumulatorFor(g *node.Graph, m mesh.Mesh) instance.Accumulator {
	acc, ok := q.instances[m]
	if !ok {
		acc = instance.NewAccumulator(m)
		q.instances[m] = acc
		q.order = append(q.order, m)
	}
	acc.Reserve(g.MeshUsage(m))
	return acc
}

func (q *renderQueue) classify(g *node.Graph, id node.NodeID, vis Visibility, eye [3]float32) {
	if !vis.CheckBounding(g.Bounds(id), g.DetailLevel(id)) {
		return
	}
	for _, child := range g.Children(id) {
		if g.ObjectCount(child) == 0 {
			q.classify(g, child, vis, eye)
			continue
		}
		if q.pass.IsShadow() && g.ShadowLevel(child) < q.shadowLevel {
			continue
		}
		if !vis.CheckBounding(g.Bounds(child), g.DetailLevel(child)) {
			continue
		}
		q.dispatch(g, child, vis, eye)
	}
}

// dispatch routes a visible node that owns objects by its category. Caller must hold the lock.
func (q *renderQueue) dispatch(g *node.Graph, id node.NodeID, vis Visibility, eye [3]float32) {
	switch cat := g.Category(id); {
	case cat == node.CategoryStatic && g.DynamicBatch(id):
		g.ClearDrawcallFlags(id)
		q.eachVisibleObject(g, id, vis, eye, q.addToBatch)
	case cat == node.CategoryInstanced:
		g.ClearDrawcallFlags(id)
		q.eachVisibleObject(g, id, vis, eye, func(o drawable_object.DrawableObject, m mesh.Mesh) {
			q.addInstance(g, o, m)
		})
	default:
		q.nodes = append(q.nodes, id)
		q.stats.DirectNodes++
	}
}

// eachVisibleObject frustum-tests and LOD-selects every object of a node and passes the survivors to fn.
func (q *renderQueue) eachVisibleObject(g *node.Graph, id node.NodeID, vis Visibility, eye [3]float32, fn func(drawable_object.DrawableObject, mesh.Mesh)) {
	detail := g.DetailLevel(id)
	for _, o := range g.Objects(id) {
		if q.pass.IsShadow() && !o.ShadowCaster() {
			continue
		}
		if !vis.CheckBounding(o.Bounds(), detail) {
			continue
		}
		m, ok := q.QueryLodMesh(o, eye)
		if !ok {
			continue
		}
		fn(o, m)
	}
}

func (q *renderQueue) addToBatch(o drawable_object.DrawableObject, m mesh.Mesh) {
	if q.batch == nil {
		q.batch = batch.NewBatch(batch.WithLimits(q.batchLimits))
	}
	if !q.batch.AddObject(o, m) {
		q.stats.DroppedObjects++
		return
	}
	q.stats.BatchedObjects++
}

// addInstance appends an object's world transform to the accumulator of its mesh. Meshes that
// appear after consolidation have no slot in the shared buffers and count as lookup misses.
func (q *renderQueue) addInstance(g *node.Graph, o drawable_object.DrawableObject, m mesh.Mesh) {
	acc, ok := q.instances[m]
	if !ok {
		if q.consolidator != nil {
			q.stats.LookupMisses++
			q.logger.Debug("instance mesh not consolidated", zap.String("queue", q.name), zap.String("mesh", m.Name()))
			return
		}
		acc = q.accumulatorFor(g, m)
	}
	if !acc.Add(o.WorldTransform()) {
		q.stats.DroppedObjects++
		return
	}
	q.stats.InstancedObjects++
}
