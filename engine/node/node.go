// Package node implements the scene hierarchy as an arena of nodes addressed by NodeID.
// Parents are plain back-references; children are owned by their parent so destruction
// always starts from a single root.
package node

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
	"go.uber.org/zap"
)

// NodeID identifies a node in a Graph.
type NodeID uint32

// Nil represents an invalid NodeID.
const Nil NodeID = 0

// DefaultLevel is the initial shadow and detail level of every node.
const DefaultLevel = 3

// Category selects how a render queue submits a node's objects.
type Category int

const (
	// CategoryGeneric nodes are drawn directly, one drawcall per node. A node drawcall addresses at
	// most batch.MaxObjects (256) objects; objects past that are not drawn.
	CategoryGeneric Category = iota
	// CategoryStatic nodes are drawn directly, or merged into the shared batch when dynamic batching is on.
	// Drawn directly, they share the 256-object ceiling of CategoryGeneric.
	CategoryStatic
	// CategoryAnimated nodes have their transform driven externally every frame and never enter the update queue.
	CategoryAnimated
	// CategoryInstanced nodes contribute per-object transforms to per-mesh instance accumulators.
	CategoryInstanced
	// CategoryTerrain nodes are drawn directly by an external terrain renderer.
	CategoryTerrain
)

func (c Category) String() string {
	switch c {
	case CategoryGeneric:
		return "generic"
	case CategoryStatic:
		return "static"
	case CategoryAnimated:
		return "animated"
	case CategoryInstanced:
		return "instanced"
	case CategoryTerrain:
		return "terrain"
	}
	return "unknown"
}

var (
	// ErrNodeNotFound is returned for handles that do not name a live node.
	ErrNodeNotFound = errors.New("node: not found")
	// ErrAlreadyAttached is returned when attaching a node that already has a parent.
	ErrAlreadyAttached = errors.New("node: already attached")
	// ErrCycle is returned when an attach would make a node its own ancestor.
	ErrCycle = errors.New("node: attach would create a cycle")
	// ErrObjectIndex is returned when an object index is outside a node's object list.
	ErrObjectIndex = errors.New("node: object index out of range")
	// ErrNotAnimated is returned when an external transform is pushed to a non-animated node.
	ErrNotAnimated = errors.New("node: not an animated node")
)

// Drawcall is the GPU draw resource a render queue attaches to a node. The graph owns it once
// attached and releases it when the node is destroyed or the drawcall is replaced.
type Drawcall interface {
	Release()
}

// CollisionWorld is the physics collaborator that owns collision proxies.
type CollisionWorld interface {
	// RemoveObject detaches a proxy from the physics world.
	//
	// Parameters:
	//   - c: the proxy to remove
	RemoveObject(c drawable_object.CollisionObject)
}

// DynamicTracker keeps the set of objects rendered through the dynamic batch.
type DynamicTracker interface {
	// AddDynamicObject registers an object that entered the hierarchy.
	AddDynamicObject(o drawable_object.DrawableObject)
	// RemoveDynamicObject forgets an object that left the hierarchy.
	RemoveDynamicObject(o drawable_object.DrawableObject)
}

// Flags are the per-node bookkeeping bits read by render queues.
type Flags struct {
	NeedsDrawcallCreate bool
	NeedsDrawcallUpdate bool
	NeedsNormalUpdate   bool
	Queued              bool
}

type node struct {
	live         bool
	root         bool
	name         string
	category     Category
	dynamicBatch bool
	shadowLevel  int
	detailLevel  int

	position  [3]float32
	transform [16]float32
	bounds    common.BoundingVolume

	objects  []drawable_object.DrawableObject
	parent   NodeID
	children []NodeID

	flags    Flags
	drawcall Drawcall
}

// Graph is the arena holding every node of a scene. All mutations go through its methods so
// bounding volumes, flags and the mesh usage count stay consistent.
type Graph struct {
	mu *sync.RWMutex

	nodes []node
	free  []NodeID
	usage map[mesh.Mesh]int

	collisions CollisionWorld
	dynamics   DynamicTracker
	logger     *zap.Logger
}

// NewGraph creates an empty Graph.
//
// Parameters:
//   - options: functional options to attach collaborators
//
// Returns:
//   - *Graph: the new graph
func NewGraph(options ...GraphBuilderOption) *Graph {
	g := &Graph{
		mu:     &sync.RWMutex{},
		nodes:  make([]node, 1, 64),
		usage:  make(map[mesh.Mesh]int),
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// CreateNode allocates a detached node. Its world transform is its own translation until it is attached.
//
// Parameters:
//   - category: how render queues submit the node
//   - options: functional options for name, position and levels
//
// Returns:
//   - NodeID: the handle of the new node
func (g *Graph) CreateNode(category Category, options ...NodeBuilderOption) NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := node{
		live:        true,
		category:    category,
		shadowLevel: DefaultLevel,
		detailLevel: DefaultLevel,
	}
	for _, option := range options {
		option(&n)
	}
	common.Translation(n.transform[:], n.position[0], n.position[1], n.position[2])
	n.bounds.Position = n.position

	var id NodeID
	if k := len(g.free); k > 0 {
		id = g.free[k-1]
		g.free = g.free[:k-1]
		g.nodes[id] = n
	} else {
		id = NodeID(len(g.nodes))
		g.nodes = append(g.nodes, n)
	}
	return id
}

// Live reports whether id names a live node.
func (g *Graph) Live(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.get(id) != nil
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes) - 1 - len(g.free)
}

// Name returns the node's debug name.
func (g *Graph) Name(id NodeID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.name
	}
	return ""
}

// Category returns the node's category, or CategoryGeneric for a dead handle.
func (g *Graph) Category(id NodeID) Category {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.category
	}
	return CategoryGeneric
}

// DynamicBatch reports whether a static node merges its objects into the shared batch.
func (g *Graph) DynamicBatch(id NodeID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.dynamicBatch
	}
	return false
}

// ShadowLevel returns the node's shadow level.
func (g *Graph) ShadowLevel(id NodeID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.shadowLevel
	}
	return 0
}

// DetailLevel returns the precision used when frustum-testing the node.
func (g *Graph) DetailLevel(id NodeID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.detailLevel
	}
	return 0
}

// Parent returns the node's parent, or Nil.
func (g *Graph) Parent(id NodeID) NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.parent
	}
	return Nil
}

// Children returns a copy of the node's child list.
func (g *Graph) Children(id NodeID) []NodeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return append([]NodeID(nil), n.children...)
	}
	return nil
}

// Objects returns a copy of the node's object list.
func (g *Graph) Objects(id NodeID) []drawable_object.DrawableObject {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return append([]drawable_object.DrawableObject(nil), n.objects...)
	}
	return nil
}

// ObjectCount returns the number of objects owned by the node.
func (g *Graph) ObjectCount(id NodeID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return len(n.objects)
	}
	return 0
}

// Bounds returns the node's world bounding volume.
func (g *Graph) Bounds(id NodeID) common.BoundingVolume {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.bounds
	}
	return common.BoundingVolume{}
}

// Position returns the node's translation relative to its parent.
func (g *Graph) Position(id NodeID) [3]float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.position
	}
	return [3]float32{}
}

// Transform returns the node's accumulated world transform.
func (g *Graph) Transform(id NodeID) [16]float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.transform
	}
	var m [16]float32
	common.Identity(m[:])
	return m
}

// Flags returns the node's bookkeeping flags.
func (g *Graph) Flags(id NodeID) Flags {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.flags
	}
	return Flags{}
}

// Drawcall returns the draw resource attached to the node, or nil.
func (g *Graph) Drawcall(id NodeID) Drawcall {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n := g.get(id); n != nil {
		return n.drawcall
	}
	return nil
}

// SetDrawcall attaches a draw resource to the node, releasing any previous one, and
// clears the create and update flags.
//
// Parameters:
//   - id: the node
//   - dc: the new drawcall, may be nil
//
// Returns:
//   - error: ErrNodeNotFound for a dead handle
func (g *Graph) SetDrawcall(id NodeID, dc Drawcall) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.get(id)
	if n == nil {
		return ErrNodeNotFound
	}
	if n.drawcall != nil && n.drawcall != dc {
		n.drawcall.Release()
	}
	n.drawcall = dc
	n.flags.NeedsDrawcallCreate = false
	n.flags.NeedsDrawcallUpdate = false
	return nil
}

// ClearDrawcallFlags resets the create, update and normal flags once a render queue has consumed them.
func (g *Graph) ClearDrawcallFlags(id NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := g.get(id); n != nil {
		n.flags.NeedsDrawcallCreate = false
		n.flags.NeedsDrawcallUpdate = false
		n.flags.NeedsNormalUpdate = false
	}
}

// MeshUsage returns how many objects of instanced nodes reachable from a root reference m.
//
// Parameters:
//   - m: the mesh to look up
//
// Returns:
//   - int: the reference count, zero for unknown meshes
func (g *Graph) MeshUsage(m mesh.Mesh) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.usage[m]
}

// get returns the node for id, or nil. Caller must hold the lock.
func (g *Graph) get(id NodeID) *node {
	if id == Nil || int(id) >= len(g.nodes) || !g.nodes[id].live {
		return nil
	}
	return &g.nodes[id]
}

// rooted reports whether id is a root or hangs below one.
func (g *Graph) rooted(id NodeID) bool {
	for id != Nil {
		n := &g.nodes[id]
		if n.parent == Nil {
			return n.root
		}
		id = n.parent
	}
	return false
}
