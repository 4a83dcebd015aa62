package drawable_object

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
)

// CollisionObject is the physics-side proxy of a drawable object. The scene only keeps its
// transform in sync and never owns it.
type CollisionObject interface {
	// InitTransform places the proxy at a world position and orientation.
	//
	// Parameters:
	//   - position: world-space position
	//   - orientation: world-space orientation quaternion (x, y, z, w)
	InitTransform(position [3]float32, orientation [4]float32)
}

type drawableObject struct {
	mu *sync.RWMutex

	id           uint64
	meshBase     mesh.Mesh
	meshMid      mesh.Mesh
	meshLow      mesh.Mesh
	position     [3]float32
	rotation     [3]float32
	scale        [3]float32
	dynamic      bool
	shadowCaster bool
	collision    CollisionObject

	localTransform [16]float32
	localBounds    common.BoundingVolume
	worldTransform [16]float32
	normalMatrix   [9]float32
	bounds         common.BoundingVolume
}

// DrawableObject defines the interface for a renderable entity owned by a scene node.
// Its transform is local to the owning node; world state is derived by UpdateWorld
// whenever the node's accumulated transform changes.
type DrawableObject interface {
	// ID returns the object's identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// SetID sets the object's identifier.
	//
	// Parameters:
	//   - id: the new identifier
	SetID(id uint64)

	// Mesh returns the base (highest detail) mesh.
	//
	// Returns:
	//   - mesh.Mesh: the base mesh, never nil for renderable objects
	Mesh() mesh.Mesh

	// MeshMid returns the mid-distance LOD mesh, or nil if the object has none.
	MeshMid() mesh.Mesh

	// MeshLow returns the far-distance LOD mesh, or nil if the object has none.
	MeshLow() mesh.Mesh

	// Meshes returns the distinct non-nil meshes across all LOD levels.
	//
	// Returns:
	//   - []mesh.Mesh: base, mid and low meshes without duplicates
	Meshes() []mesh.Mesh

	// Position returns the node-local position.
	Position() [3]float32

	// Rotation returns the node-local Euler rotation in radians.
	Rotation() [3]float32

	// Scale returns the node-local scale.
	Scale() [3]float32

	// SetPosition sets the node-local position and refreshes the local transform.
	//
	// Parameters:
	//   - x, y, z: the new position
	SetPosition(x, y, z float32)

	// SetRotation sets the node-local Euler rotation and refreshes the local transform.
	//
	// Parameters:
	//   - rx, ry, rz: rotation angles in radians
	SetRotation(rx, ry, rz float32)

	// SetScale sets the node-local scale and refreshes the local transform.
	//
	// Parameters:
	//   - sx, sy, sz: scale factors
	SetScale(sx, sy, sz float32)

	// LocalTransform returns the node-local model matrix (T * R * S, column-major).
	LocalTransform() [16]float32

	// LocalBounds returns the base mesh bounds transformed into node-local space.
	LocalBounds() common.BoundingVolume

	// UpdateWorld recomputes the world transform, normal matrix and world bounds
	// from the owning node's accumulated transform.
	//
	// Parameters:
	//   - nodeTransform: the node's world transform (16 floats, column-major)
	UpdateWorld(nodeTransform []float32)

	// WorldTransform returns the world model matrix computed by the last UpdateWorld.
	WorldTransform() [16]float32

	// NormalMatrix returns the 3x3 inverse-transpose of the world transform.
	NormalMatrix() [9]float32

	// Bounds returns the world bounding volume.
	//
	// Returns:
	//   - common.BoundingVolume: the world-space volume
	Bounds() common.BoundingVolume

	// TranslateBounds shifts the world bounding volume without recomputing it.
	//
	// Parameters:
	//   - d: world-space offset
	TranslateBounds(d [3]float32)

	// Orientation returns the local rotation as a quaternion (x, y, z, w).
	Orientation() [4]float32

	// Dynamic reports whether the object is drawn through the shared dynamic batch.
	Dynamic() bool

	// ShadowCaster reports whether the object renders into shadow passes.
	ShadowCaster() bool

	// CollisionObject returns the physics proxy, or nil.
	CollisionObject() CollisionObject

	// SetCollisionObject attaches or, with nil, removes the physics proxy.
	//
	// Parameters:
	//   - c: the proxy to attach
	SetCollisionObject(c CollisionObject)
}

var _ DrawableObject = &drawableObject{}

// NewDrawableObject creates a DrawableObject with unit scale at the node origin.
// Objects are shadow casters by default.
//
// Parameters:
//   - base: the base mesh
//   - options: functional options to configure the object
//
// Returns:
//   - DrawableObject: the newly created object
func NewDrawableObject(base mesh.Mesh, options ...DrawableObjectBuilderOption) DrawableObject {
	o := &drawableObject{
		mu:           &sync.RWMutex{},
		meshBase:     base,
		scale:        [3]float32{1, 1, 1},
		shadowCaster: true,
	}
	for _, option := range options {
		option(o)
	}
	o.refreshLocal()
	identity := make([]float32, 16)
	common.Identity(identity)
	o.updateWorld(identity)
	return o
}

func (o *drawableObject) ID() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

func (o *drawableObject) SetID(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.id = id
}

func (o *drawableObject) Mesh() mesh.Mesh {
	return o.meshBase
}

func (o *drawableObject) MeshMid() mesh.Mesh {
	return o.meshMid
}

func (o *drawableObject) MeshLow() mesh.Mesh {
	return o.meshLow
}

func (o *drawableObject) Meshes() []mesh.Mesh {
	out := make([]mesh.Mesh, 0, 3)
	for _, m := range []mesh.Mesh{o.meshBase, o.meshMid, o.meshLow} {
		if m == nil {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == m {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, m)
		}
	}
	return out
}

func (o *drawableObject) Position() [3]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.position
}

func (o *drawableObject) Rotation() [3]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.rotation
}

func (o *drawableObject) Scale() [3]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.scale
}

func (o *drawableObject) SetPosition(x, y, z float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.position = [3]float32{x, y, z}
	o.refreshLocal()
}

func (o *drawableObject) SetRotation(rx, ry, rz float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotation = [3]float32{rx, ry, rz}
	o.refreshLocal()
}

func (o *drawableObject) SetScale(sx, sy, sz float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scale = [3]float32{sx, sy, sz}
	o.refreshLocal()
}

func (o *drawableObject) LocalTransform() [16]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.localTransform
}

func (o *drawableObject) LocalBounds() common.BoundingVolume {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.localBounds
}

func (o *drawableObject) UpdateWorld(nodeTransform []float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updateWorld(nodeTransform)
}

func (o *drawableObject) WorldTransform() [16]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.worldTransform
}

func (o *drawableObject) NormalMatrix() [9]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.normalMatrix
}

func (o *drawableObject) Bounds() common.BoundingVolume {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bounds
}

func (o *drawableObject) TranslateBounds(d [3]float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bounds.Translate(d)
}

func (o *drawableObject) Orientation() [4]float32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return common.QuatFromEuler(o.rotation[0], o.rotation[1], o.rotation[2])
}

func (o *drawableObject) Dynamic() bool {
	return o.dynamic
}

func (o *drawableObject) ShadowCaster() bool {
	return o.shadowCaster
}

func (o *drawableObject) CollisionObject() CollisionObject {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.collision
}

func (o *drawableObject) SetCollisionObject(c CollisionObject) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.collision = c
}

// refreshLocal rebuilds the local matrix and local bounds. Caller must hold the write lock.
func (o *drawableObject) refreshLocal() {
	common.BuildModelMatrix(o.localTransform[:],
		o.position[0], o.position[1], o.position[2],
		o.rotation[0], o.rotation[1], o.rotation[2],
		o.scale[0], o.scale[1], o.scale[2],
	)
	if o.meshBase == nil {
		o.localBounds = common.BoundingVolume{Position: o.position}
		return
	}
	mb := o.meshBase.Bounds()
	o.localBounds = common.BoundingVolume{
		Position:    common.TransformPoint(o.localTransform[:], mb.Position),
		HalfExtents: common.TransformExtents(o.localTransform[:], mb.HalfExtents),
	}
}

// updateWorld derives world state from nodeTransform. Caller must hold the write lock.
func (o *drawableObject) updateWorld(nodeTransform []float32) {
	common.Mul4(o.worldTransform[:], nodeTransform, o.localTransform[:])
	common.NormalMatrix3(o.normalMatrix[:], o.worldTransform[:])
	o.bounds = common.BoundingVolume{
		Position:    common.TransformPoint(nodeTransform, o.localBounds.Position),
		HalfExtents: common.TransformExtents(nodeTransform, o.localBounds.HalfExtents),
	}
}
