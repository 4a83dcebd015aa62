// Package render_queue culls a scene graph for one render pass and routes what survives into
// per-node drawcalls, a shared dynamic batch or consolidated per-mesh instancing.
package render_queue

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/batch"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawcall"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/instance"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
	"github.com/Carmen-Shannon/oxy-scene/engine/multi_instance"
	"github.com/Carmen-Shannon/oxy-scene/engine/node"
)

// Visibility is the frustum test a queue culls against. camera.Camera satisfies it.
type Visibility interface {
	CheckBounding(bv common.BoundingVolume, detailLevel int) bool
}

// MeshRegistry lists the meshes a queue seeds its instance accumulators with on its first classification.
type MeshRegistry interface {
	Meshes() []mesh.Mesh
}

// Stats are the counters of the last classify, prepare and draw cycle.
type Stats struct {
	DirectNodes      int
	BatchedObjects   int
	InstancedObjects int
	LiveInstances    int
	Drawcalls        int
	LookupMisses     int
	DroppedObjects   int
}

// Add sums two stat sets.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		DirectNodes:      s.DirectNodes + o.DirectNodes,
		BatchedObjects:   s.BatchedObjects + o.BatchedObjects,
		InstancedObjects: s.InstancedObjects + o.InstancedObjects,
		LiveInstances:    s.LiveInstances + o.LiveInstances,
		Drawcalls:        s.Drawcalls + o.Drawcalls,
		LookupMisses:     s.LookupMisses + o.LookupMisses,
		DroppedObjects:   s.DroppedObjects + o.DroppedObjects,
	}
}

// RenderQueue collects the visible content of a scene for one pass and submits it.
// A frame runs Flush, Classify, Prepare and Draw in that order. Prepare only touches
// queue-owned CPU state and may run concurrently with other queues.
type RenderQueue interface {
	// Name returns the queue label.
	Name() string

	// Pass returns the render pass the queue serves.
	Pass() common.Pass

	// ShadowLevel returns the minimum node shadow level accepted by a shadow pass.
	ShadowLevel() int

	// Push enqueues a node for direct drawing.
	//
	// Parameters:
	//   - id: the node
	Push(id node.NodeID)

	// Nodes returns a copy of the nodes enqueued for direct drawing.
	Nodes() []node.NodeID

	// Flush clears the direct node list, every accumulator count and the batch without
	// releasing their storage.
	Flush()

	// Classify walks the visible subtree below root and dispatches every visible node
	// that owns objects by its category.
	//
	// Parameters:
	//   - g: the scene graph
	//   - root: the traversal root
	//   - vis: the frustum test
	//   - eye: the reference position for level-of-detail distances
	Classify(g *node.Graph, root node.NodeID, vis Visibility, eye [3]float32)

	// QueryLodMesh selects the mesh of obj for a viewer at eye.
	//
	// Parameters:
	//   - obj: the object
	//   - eye: the reference position
	//
	// Returns:
	//   - mesh.Mesh: the base, mid or low mesh
	//   - bool: false when the selected level has no mesh
	QueryLodMesh(obj drawable_object.DrawableObject, eye [3]float32) (mesh.Mesh, bool)

	// Accumulator returns the instance accumulator of a mesh.
	//
	// Parameters:
	//   - m: the mesh
	//
	// Returns:
	//   - instance.Accumulator: the accumulator
	//   - bool: false when the queue holds none for m
	Accumulator(m mesh.Mesh) (instance.Accumulator, bool)

	// Batch returns the dynamic batch, or nil before any object was batched.
	Batch() batch.Batch

	// Consolidator returns the instance consolidator, or nil before the first instance was collected.
	Consolidator() multi_instance.Consolidator

	// Invalidate drops the consolidated instance buffers and re-seeds the accumulators on the next Classify.
	Invalidate()

	// Prepare builds the consolidator on the first instanced frame and packs the frame's
	// transforms and batch matrices into CPU-side streams.
	//
	// Returns:
	//   - error: a consolidation error
	Prepare() error

	// Draw refreshes and submits every direct node, the consolidated instances and the dynamic batch.
	//
	// Parameters:
	//   - device: the graphics device
	//   - g: the scene graph
	//
	// Returns:
	//   - error: an allocation or device error, fatal for the frame
	Draw(device gpu.Device, g *node.Graph) error

	// Stats returns the counters of the current frame.
	Stats() Stats

	// Release frees the consolidated and batch drawcalls owned by the queue.
	Release()
}

// renderQueue is the implementation of the RenderQueue interface.
type renderQueue struct {
	mu *sync.Mutex

	name        string
	pass        common.Pass
	midDistSqr  float32
	lowDistSqr  float32
	shadowLevel int
	double      bool
	policy      *drawcall.ChannelPolicy
	batchLimits batch.Limits
	filter      multi_instance.PassFilter
	registry    MeshRegistry
	logger      *zap.Logger

	nodes      []node.NodeID
	instances  map[mesh.Mesh]instance.Accumulator
	order      []mesh.Mesh
	firstFlush bool

	batch         batch.Batch
	batchDrawcall drawcall.StaticDrawcall
	consolidator  multi_instance.Consolidator
	multi         drawcall.MultiDrawcall

	stats Stats
}

var _ RenderQueue = &renderQueue{}

// NewRenderQueue creates a queue for one pass.
//
// Parameters:
//   - pass: the render pass
//   - midDistance: distance from which the mid mesh is selected
//   - lowDistance: distance from which the low mesh is selected
//   - options: functional options
//
// Returns:
//   - RenderQueue: the queue
func NewRenderQueue(pass common.Pass, midDistance, lowDistance float32, options ...RenderQueueBuilderOption) RenderQueue {
	q := &renderQueue{
		mu:          &sync.Mutex{},
		pass:        pass,
		midDistSqr:  midDistance * midDistance,
		lowDistSqr:  lowDistance * lowDistance,
		double:      true,
		batchLimits: batch.DefaultLimits(),
		filter:      multi_instance.PassAll,
		logger:      zap.NewNop(),
		nodes:       make([]node.NodeID, 0, 64),
		instances:   make(map[mesh.Mesh]instance.Accumulator),
		firstFlush:  true,
	}
	for _, opt := range options {
		opt(q)
	}
	if q.name == "" {
		q.name = pass.String()
	}
	if q.policy == nil {
		q.policy = drawcall.DefaultChannelPolicy()
	}
	return q
}

func (q *renderQueue) Name() string {
	return q.name
}

func (q *renderQueue) Pass() common.Pass {
	return q.pass
}

func (q *renderQueue) ShadowLevel() int {
	return q.shadowLevel
}

func (q *renderQueue) Push(id node.NodeID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nodes = append(q.nodes, id)
	q.stats.DirectNodes++
}

func (q *renderQueue) Nodes() []node.NodeID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]node.NodeID(nil), q.nodes...)
}

func (q *renderQueue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nodes = q.nodes[:0]
	for _, acc := range q.instances {
		acc.Reset()
	}
	if q.batch != nil {
		q.batch.Reset()
	}
	q.stats = Stats{}
}

func (q *renderQueue) QueryLodMesh(obj drawable_object.DrawableObject, eye [3]float32) (mesh.Mesh, bool) {
	d := obj.Bounds().DistanceSquared(eye)
	m := obj.Mesh()
	if d >= q.lowDistSqr {
		m = obj.MeshLow()
	} else if d >= q.midDistSqr {
		m = obj.MeshMid()
	}
	return m, m != nil
}

func (q *renderQueue) Accumulator(m mesh.Mesh) (instance.Accumulator, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	acc, ok := q.instances[m]
	return acc, ok
}

func (q *renderQueue) Batch() batch.Batch {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.batch
}

func (q *renderQueue) Consolidator() multi_instance.Consolidator {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.consolidator
}

func (q *renderQueue) Invalidate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropConsolidation()
	q.firstFlush = true
}

// dropConsolidation releases the consolidated drawcall and forgets the sources. Caller must hold the lock.
func (q *renderQueue) dropConsolidation() {
	if q.multi != nil {
		q.multi.Release()
		q.multi = nil
	}
	q.consolidator = nil
	for _, acc := range q.instances {
		acc.ReleaseSource()
	}
}

func (q *renderQueue) Prepare() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.batch != nil && q.batch.ObjectCount() > 0 {
		q.batch.RefreshMatrices()
	}

	if q.consolidator == nil && q.collectedInstances() {
		if err := q.consolidate(); err != nil {
			return err
		}
	}
	if q.consolidator != nil {
		live, err := q.consolidator.UpdateTransform(nil)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", q.name, err)
		}
		q.stats.LiveInstances = live
	}
	return nil
}

// collectedInstances reports whether any accumulator holds an instance this frame.
func (q *renderQueue) collectedInstances() bool {
	for _, acc := range q.instances {
		if acc.Count() > 0 {
			return true
		}
	}
	return false
}

// consolidate merges every accumulator in seeding order into a new consolidator.
func (q *renderQueue) consolidate() error {
	cons := multi_instance.NewConsolidator(
		multi_instance.WithPassFilter(q.filter),
		multi_instance.WithLabel(q.name),
		multi_instance.WithLogger(q.logger),
	)
	for _, m := range q.order {
		if err := cons.Add(q.instances[m].Source()); err != nil {
			return fmt.Errorf("consolidate %s: %w", q.name, err)
		}
	}
	if err := cons.Init(); err != nil {
		return fmt.Errorf("consolidate %s: %w", q.name, err)
	}
	q.consolidator = cons
	return nil
}

func (q *renderQueue) Draw(device gpu.Device, g *node.Graph) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.nodes {
		if err := q.drawNode(device, g, id); err != nil {
			return err
		}
	}
	if err := q.drawInstances(device); err != nil {
		return err
	}
	return q.drawBatch(device)
}

// drawNode creates or refreshes a direct node's drawcall and submits it.
func (q *renderQueue) drawNode(device gpu.Device, g *node.Graph, id node.NodeID) error {
	cat := g.Category(id)
	if cat == node.CategoryTerrain && q.pass != common.PassColor {
		return nil
	}

	flags := g.Flags(id)
	dc, _ := g.Drawcall(id).(drawcall.StaticDrawcall)
	if !flags.Queued {
		var err error
		switch {
		case flags.NeedsDrawcallCreate || dc == nil:
			dc, err = q.createNodeDrawcall(device, g, id, cat)
		case flags.NeedsDrawcallUpdate:
			err = q.updateNodeDrawcall(g, id, dc)
		}
		if err != nil {
			return err
		}
	}
	if dc == nil {
		return nil
	}

	var model *[16]float32
	var normal *[9]float32
	if cat == node.CategoryAnimated {
		m := g.Transform(id)
		var n [9]float32
		common.NormalMatrix3(n[:], m[:])
		model, normal = &m, &n
	}
	drawn, err := dc.Draw(q.pass, model, normal)
	if err != nil {
		return err
	}
	if drawn {
		q.stats.Drawcalls++
	}
	return nil
}

// fillNodeBatch adds every object of a node with its base mesh. Objects past the batch limits
// are counted in the stats and logged.
func (q *renderQueue) fillNodeBatch(b batch.Batch, label string, objects []drawable_object.DrawableObject) {
	dropped := 0
	for _, o := range objects {
		if o.Mesh() == nil {
			continue
		}
		if !b.AddObject(o, o.Mesh()) {
			dropped++
		}
	}
	if dropped > 0 {
		q.stats.DroppedObjects += dropped
		q.logger.Debug("node batch full, objects not drawn",
			zap.String("queue", q.name),
			zap.String("node", label),
			zap.Int("dropped", dropped),
			zap.Int("max_objects", b.Limits().Objects))
	}
}

func nodeLabel(g *node.Graph, id node.NodeID) string {
	return common.Coalesce(g.Name(id), fmt.Sprintf("node %d", id))
}

// createNodeDrawcall builds a drawcall sized exactly to the node's objects and hands it to the graph.
// Node drawcalls are shared by every queue, so their buffers are always written in full. They hold
// a single buffer written in place, so a frame that updates a node also draws the update.
func (q *renderQueue) createNodeDrawcall(device gpu.Device, g *node.Graph, id node.NodeID, cat node.Category) (drawcall.StaticDrawcall, error) {
	objects := g.Objects(id)
	limits := batch.Limits{Objects: len(objects)}
	for _, o := range objects {
		if m := o.Mesh(); m != nil {
			limits.Vertices += m.VertexCount()
			limits.Indices += m.IndexCount()
		}
	}
	if limits.Vertices == 0 {
		g.ClearDrawcallFlags(id)
		return nil, nil
	}

	opts := []batch.BatchBuilderOption{batch.WithLimits(limits), batch.WithReserve(limits.Vertices, limits.Indices)}
	if cat == node.CategoryAnimated {
		opts = append(opts, batch.WithLocalMatrices())
	}
	b := batch.NewBatch(opts...)
	label := nodeLabel(g, id)
	q.fillNodeBatch(b, label, objects)

	dc, err := drawcall.NewStaticDrawcall(device, b, b.Limits(),
		drawcall.WithLabel(label),
		drawcall.WithDoubleBuffering(false),
		drawcall.WithChannelPolicy(q.policy),
		drawcall.WithLogger(q.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create drawcall %s: %w", label, err)
	}
	if err := g.SetDrawcall(id, dc); err != nil {
		dc.Release()
		return nil, fmt.Errorf("attach drawcall %s: %w", label, err)
	}
	q.logger.Debug("created node drawcall",
		zap.String("queue", q.name),
		zap.String("node", label),
		zap.Int("objects", b.ObjectCount()),
		zap.Int("vertices", b.VertexCount()))
	return dc, nil
}

func (q *renderQueue) updateNodeDrawcall(g *node.Graph, id node.NodeID, dc drawcall.StaticDrawcall) error {
	b := dc.Batch()
	b.Reset()
	q.fillNodeBatch(b, nodeLabel(g, id), g.Objects(id))
	err := dc.Update(common.PassColor)
	if errors.Is(err, drawcall.ErrBufferInFlight) {
		// flags stay set; the next queue drawing the node retries
		return nil
	}
	if err != nil {
		return err
	}
	g.ClearDrawcallFlags(id)
	return nil
}

// drawInstances creates the consolidated drawcall once and submits the frame's transforms.
func (q *renderQueue) drawInstances(device gpu.Device) error {
	if q.consolidator == nil {
		return nil
	}
	if q.multi == nil {
		multi, err := drawcall.NewMultiDrawcall(device, q.consolidator,
			drawcall.WithLabel(q.name+" instances"),
			drawcall.WithDoubleBuffering(q.double),
			drawcall.WithChannelPolicy(q.policy),
			drawcall.WithLogger(q.logger),
		)
		if err != nil {
			return fmt.Errorf("draw %s instances: %w", q.name, err)
		}
		q.multi = multi
	} else if err := q.multi.UpdateInstances(q.pass); err != nil {
		return err
	}
	n, err := q.multi.Draw(q.pass)
	q.stats.Drawcalls += n
	return err
}

// drawBatch creates the dynamic batch drawcall once and refreshes it every frame it holds objects.
func (q *renderQueue) drawBatch(device gpu.Device) error {
	if q.batch == nil || q.batch.ObjectCount() == 0 {
		return nil
	}
	if q.batchDrawcall == nil {
		dc, err := drawcall.NewStaticDrawcall(device, q.batch, q.batch.Limits(),
			drawcall.WithLabel(q.name+" batch"),
			drawcall.WithDoubleBuffering(q.double),
			drawcall.WithChannelPolicy(q.policy),
			drawcall.WithLogger(q.logger),
		)
		if err != nil {
			return fmt.Errorf("draw %s batch: %w", q.name, err)
		}
		q.batchDrawcall = dc
	} else if err := q.batchDrawcall.Update(q.pass); err != nil {
		return err
	}
	drawn, err := q.batchDrawcall.Draw(q.pass, nil, nil)
	if drawn {
		q.stats.Drawcalls++
	}
	return err
}

func (q *renderQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *renderQueue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dropConsolidation()
	if q.batchDrawcall != nil {
		q.batchDrawcall.Release()
		q.batchDrawcall = nil
	}
}
