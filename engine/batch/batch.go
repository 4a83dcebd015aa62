package batch

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
)

// MaxObjects is the number of objects one batch can address; object ids are stored as a byte per vertex.
const MaxObjects = 256

// MatrixFloats is the size of one per-object matrix: the upper three rows of the world transform, row-major.
const MatrixFloats = 12

// Per-vertex component counts of the batch channels.
const (
	ColorComponents    = 4
	ObjectIDComponents = 4
)

// Limits caps the contents of a Batch.
type Limits struct {
	Vertices int
	Indices  int
	Objects  int
}

// DefaultLimits returns the limits used when none are given.
//
// Returns:
//   - Limits: 65536 vertices, 196608 indices, MaxObjects objects
func DefaultLimits() Limits {
	return Limits{Vertices: 65536, Indices: 196608, Objects: MaxObjects}
}

// Batch merges the geometry of many objects into shared attribute streams so they draw in one submission.
// Vertices stay in mesh space; each vertex carries the id of its object and the shader applies the
// object's matrix from ObjectMatrices.
type Batch interface {
	// AddObject appends the geometry of m for obj.
	//
	// Parameters:
	//   - obj: the owning object, its world transform becomes the per-object matrix
	//   - m: the mesh to append, usually the LOD mesh selected for obj
	//
	// Returns:
	//   - bool: false if the batch has no room left, the batch is unchanged
	AddObject(obj drawable_object.DrawableObject, m mesh.Mesh) bool

	// Reset empties the batch without freeing its storage.
	Reset()

	// RefreshMatrices rewrites every per-object matrix from the objects' current world transforms.
	RefreshMatrices()

	// Objects returns the objects in insertion order; the index is the object id.
	Objects() []drawable_object.DrawableObject

	ObjectCount() int
	VertexCount() int
	IndexCount() int
	Limits() Limits

	Positions() []float32
	Normals() []float32
	Tangents() []float32
	Texcoords() []float32
	MaterialIDs() []float32
	Colors() []uint8
	ObjectIDs() []uint8
	Indices() []uint32
	ObjectMatrices() []float32

	// Channel returns the element count and raw bytes of a channel slot.
	//
	// Parameters:
	//   - slot: a gpu.Slot* constant
	//
	// Returns:
	//   - int: number of elements
	//   - []byte: a view of the channel storage, valid until the next mutation
	//   - bool: false if the batch has no such channel
	Channel(slot int) (int, []byte, bool)
}

// batch is the implementation of the Batch interface.
type batch struct {
	mu          *sync.RWMutex
	limits      Limits
	local       bool
	objects     []drawable_object.DrawableObject
	positions   []float32
	normals     []float32
	tangents    []float32
	texcoords   []float32
	materialIDs []float32
	colors      []uint8
	objectIDs   []uint8
	indices     []uint32
	matrices    []float32
}

var _ Batch = &batch{}

// NewBatch creates an empty batch.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Batch: the batch
func NewBatch(options ...BatchBuilderOption) Batch {
	b := &batch{
		mu:     &sync.RWMutex{},
		limits: DefaultLimits(),
	}
	for _, opt := range options {
		opt(b)
	}
	b.limits.Objects = common.Clamp(b.limits.Objects, 0, MaxObjects)
	return b
}

// ChannelSpecs returns the channel layout of a batch drawcall with the given limits.
//
// Parameters:
//   - l: the batch limits, also the channel capacities
//
// Returns:
//   - []gpu.ChannelSpec: one spec per batch channel
func ChannelSpecs(l Limits) []gpu.ChannelSpec {
	return []gpu.ChannelSpec{
		{Slot: gpu.SlotPosition, Name: "position", Format: gpu.FormatFloat32, Components: mesh.PositionComponents, Capacity: l.Vertices},
		{Slot: gpu.SlotNormal, Name: "normal", Format: gpu.FormatFloat32, Components: mesh.NormalComponents, Capacity: l.Vertices},
		{Slot: gpu.SlotTexcoord, Name: "texcoord", Format: gpu.FormatFloat32, Components: mesh.TexcoordComponents, Capacity: l.Vertices},
		{Slot: gpu.SlotMaterial, Name: "material", Format: gpu.FormatFloat32, Components: mesh.MaterialComponents, Capacity: l.Vertices},
		{Slot: gpu.SlotColor, Name: "color", Format: gpu.FormatUint8, Components: ColorComponents, Capacity: l.Vertices},
		{Slot: gpu.SlotTangent, Name: "tangent", Format: gpu.FormatFloat32, Components: mesh.TangentComponents, Capacity: l.Vertices},
		{Slot: gpu.SlotObjectID, Name: "object id", Format: gpu.FormatUint8, Components: ObjectIDComponents, Capacity: l.Vertices},
		{Slot: gpu.SlotIndex, Name: "index", Format: gpu.FormatUint32, Components: 1, Capacity: l.Indices},
		{Slot: gpu.SlotObjectMatrix, Name: "object matrix", Format: gpu.FormatFloat32, Components: MatrixFloats, Capacity: l.Objects},
	}
}

func (b *batch) AddObject(obj drawable_object.DrawableObject, m mesh.Mesh) bool {
	if obj == nil || m == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := len(b.objects)
	base := len(b.positions) / mesh.PositionComponents
	vc := m.VertexCount()
	if id >= b.limits.Objects || base+vc > b.limits.Vertices || len(b.indices)+m.IndexCount() > b.limits.Indices {
		return false
	}

	b.objects = append(b.objects, obj)
	b.positions = append(b.positions, m.Positions()...)
	b.normals = append(b.normals, m.Normals()...)
	b.tangents = append(b.tangents, m.Tangents()...)
	b.texcoords = append(b.texcoords, m.Texcoords()...)
	b.materialIDs = append(b.materialIDs, m.MaterialIDs()...)

	colors := m.Colors()
	for v := 0; v < vc; v++ {
		c := colors[v*mesh.ColorComponents:]
		b.colors = append(b.colors, c[0], c[1], c[2], 255)
		b.objectIDs = append(b.objectIDs, uint8(id), 0, 0, 0)
	}
	for _, idx := range m.Indices() {
		b.indices = append(b.indices, idx+uint32(base))
	}

	b.matrices = appendMatrix(b.matrices, b.objectMatrix(obj))
	return true
}

// objectMatrix is the world transform, or the node-relative local transform when the
// batch is drawn with a per-draw model matrix.
func (b *batch) objectMatrix(obj drawable_object.DrawableObject) [16]float32 {
	if b.local {
		return obj.LocalTransform()
	}
	return obj.WorldTransform()
}

// appendMatrix appends the upper three rows of a column-major 4x4 matrix.
func appendMatrix(dst []float32, m [16]float32) []float32 {
	for r := 0; r < 3; r++ {
		dst = append(dst, m[r], m[4+r], m[8+r], m[12+r])
	}
	return dst
}

func (b *batch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.objects)
	b.objects = b.objects[:0]
	b.positions = b.positions[:0]
	b.normals = b.normals[:0]
	b.tangents = b.tangents[:0]
	b.texcoords = b.texcoords[:0]
	b.materialIDs = b.materialIDs[:0]
	b.colors = b.colors[:0]
	b.objectIDs = b.objectIDs[:0]
	b.indices = b.indices[:0]
	b.matrices = b.matrices[:0]
}

func (b *batch) RefreshMatrices() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matrices = b.matrices[:0]
	for _, o := range b.objects {
		b.matrices = appendMatrix(b.matrices, b.objectMatrix(o))
	}
}

func (b *batch) Objects() []drawable_object.DrawableObject {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]drawable_object.DrawableObject(nil), b.objects...)
}

func (b *batch) ObjectCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func (b *batch) VertexCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions) / mesh.PositionComponents
}

func (b *batch) IndexCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.indices)
}

func (b *batch) Limits() Limits {
	return b.limits
}

func (b *batch) Positions() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.positions
}

func (b *batch) Normals() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.normals
}

func (b *batch) Tangents() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tangents
}

func (b *batch) Texcoords() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.texcoords
}

func (b *batch) MaterialIDs() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.materialIDs
}

func (b *batch) Colors() []uint8 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.colors
}

func (b *batch) ObjectIDs() []uint8 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.objectIDs
}

func (b *batch) Indices() []uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.indices
}

func (b *batch) ObjectMatrices() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.matrices
}

func (b *batch) Channel(slot int) (int, []byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	vertices := len(b.positions) / mesh.PositionComponents
	switch slot {
	case gpu.SlotPosition:
		return vertices, common.SliceToBytes(b.positions), true
	case gpu.SlotNormal:
		return vertices, common.SliceToBytes(b.normals), true
	case gpu.SlotTexcoord:
		return vertices, common.SliceToBytes(b.texcoords), true
	case gpu.SlotMaterial:
		return vertices, common.SliceToBytes(b.materialIDs), true
	case gpu.SlotColor:
		return vertices, b.colors, true
	case gpu.SlotTangent:
		return vertices, common.SliceToBytes(b.tangents), true
	case gpu.SlotObjectID:
		return vertices, b.objectIDs, true
	case gpu.SlotIndex:
		return len(b.indices), common.SliceToBytes(b.indices), true
	case gpu.SlotObjectMatrix:
		return len(b.objects), common.SliceToBytes(b.matrices), true
	}
	return 0, nil, false
}
