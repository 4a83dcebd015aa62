package mesh

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
)

// Per-vertex component counts for every attribute channel a Mesh carries.
const (
	PositionComponents = 3
	NormalComponents   = 3
	TangentComponents  = 3
	TexcoordComponents = 4
	MaterialComponents = 2
	ColorComponents    = 3
	BoneComponents     = 4
	WeightComponents   = 4
)

// FaceRange is a contiguous run of indices that share a rendering category.
// Start and Count are measured in indices, not triangles.
type FaceRange struct {
	Start int
	Count int
}

// mesh is the implementation of the Mesh interface.
type mesh struct {
	name        string
	positions   []float32
	normals     []float32
	tangents    []float32
	texcoords   []float32
	materialIDs []float32
	colors      []uint8
	indices     []uint32
	boneIDs     []uint8
	weights     []float32
	normalFaces []FaceRange
	singleFaces []FaceRange
	facesSet    bool
	billboard   bool
	skinned     bool
	bounds      common.BoundingVolume
	boundsSet   bool
}

// Mesh defines the read-only geometry a drawable object renders with.
// Mesh values are compared by identity, so the same Mesh used by many objects
// is recognised as one instancing key.
type Mesh interface {
	// Name retrieves the mesh identifier.
	//
	// Returns:
	//   - string: the mesh name
	Name() string

	// VertexCount returns the number of vertices in the mesh.
	//
	// Returns:
	//   - int: the vertex count
	VertexCount() int

	// IndexCount returns the number of indices in the mesh.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// Positions returns PositionComponents floats per vertex.
	Positions() []float32

	// Normals returns NormalComponents floats per vertex.
	Normals() []float32

	// Tangents returns TangentComponents floats per vertex.
	Tangents() []float32

	// Texcoords returns TexcoordComponents floats per vertex.
	Texcoords() []float32

	// MaterialIDs returns MaterialComponents floats per vertex.
	MaterialIDs() []float32

	// Colors returns ColorComponents bytes per vertex.
	Colors() []uint8

	// Indices returns the mesh-local triangle indices.
	Indices() []uint32

	// BoneIDs returns BoneComponents bytes per vertex, nil for static meshes.
	BoneIDs() []uint8

	// Weights returns WeightComponents floats per vertex, nil for static meshes.
	Weights() []float32

	// NormalFaces returns the index ranges drawn with back-face culling.
	//
	// Returns:
	//   - []FaceRange: the normal face ranges, possibly empty
	NormalFaces() []FaceRange

	// SingleFaces returns the index ranges of single-sided materials.
	//
	// Returns:
	//   - []FaceRange: the single face ranges, possibly empty
	SingleFaces() []FaceRange

	// Billboard reports whether the mesh is a camera-facing billboard.
	Billboard() bool

	// Skinned reports whether the mesh carries bone ids and weights.
	Skinned() bool

	// Bounds returns the mesh-local bounding volume.
	//
	// Returns:
	//   - common.BoundingVolume: the local axis-aligned bounds
	Bounds() common.BoundingVolume
}

var _ Mesh = &mesh{}

// NewMesh creates a Mesh from the given options.
// Channels shorter than VertexCount are zero-padded. When no face ranges are supplied the
// whole index buffer becomes one normal face range, unless the mesh is a billboard.
// When no bounds are supplied they are computed from the positions.
//
// Parameters:
//   - options: functional options that provide the mesh data
//
// Returns:
//   - Mesh: the created mesh
func NewMesh(options ...MeshBuilderOption) Mesh {
	m := &mesh{}
	for _, option := range options {
		option(m)
	}

	n := len(m.positions) / PositionComponents
	m.positions = m.positions[:n*PositionComponents]
	m.normals = padFloats(m.normals, n*NormalComponents)
	m.tangents = padFloats(m.tangents, n*TangentComponents)
	m.texcoords = padFloats(m.texcoords, n*TexcoordComponents)
	m.materialIDs = padFloats(m.materialIDs, n*MaterialComponents)
	m.colors = padBytes(m.colors, n*ColorComponents)
	if m.skinned {
		m.boneIDs = padBytes(m.boneIDs, n*BoneComponents)
		m.weights = padFloats(m.weights, n*WeightComponents)
	}

	if !m.facesSet && !m.billboard && len(m.indices) > 0 {
		m.normalFaces = []FaceRange{{Start: 0, Count: len(m.indices)}}
	}
	if !m.boundsSet {
		m.bounds = boundsOf(m.positions)
	}
	return m
}

func (m *mesh) Name() string {
	return m.name
}

func (m *mesh) VertexCount() int {
	return len(m.positions) / PositionComponents
}

func (m *mesh) IndexCount() int {
	return len(m.indices)
}

func (m *mesh) Positions() []float32 {
	return m.positions
}

func (m *mesh) Normals() []float32 {
	return m.normals
}

func (m *mesh) Tangents() []float32 {
	return m.tangents
}

func (m *mesh) Texcoords() []float32 {
	return m.texcoords
}

func (m *mesh) MaterialIDs() []float32 {
	return m.materialIDs
}

func (m *mesh) Colors() []uint8 {
	return m.colors
}

func (m *mesh) Indices() []uint32 {
	return m.indices
}

func (m *mesh) BoneIDs() []uint8 {
	return m.boneIDs
}

func (m *mesh) Weights() []float32 {
	return m.weights
}

func (m *mesh) NormalFaces() []FaceRange {
	return m.normalFaces
}

func (m *mesh) SingleFaces() []FaceRange {
	return m.singleFaces
}

func (m *mesh) Billboard() bool {
	return m.billboard
}

func (m *mesh) Skinned() bool {
	return m.skinned
}

func (m *mesh) Bounds() common.BoundingVolume {
	return m.bounds
}

// padFloats grows s with zeros to exactly n elements, truncating longer input.
func padFloats(s []float32, n int) []float32 {
	if len(s) >= n {
		return s[:n]
	}
	out := make([]float32, n)
	copy(out, s)
	return out
}

func padBytes(s []uint8, n int) []uint8 {
	if len(s) >= n {
		return s[:n]
	}
	out := make([]uint8, n)
	copy(out, s)
	return out
}

// boundsOf computes the axis-aligned bounds of a packed xyz position slice.
func boundsOf(positions []float32) common.BoundingVolume {
	if len(positions) < PositionComponents {
		return common.BoundingVolume{}
	}
	lo := [3]float32{positions[0], positions[1], positions[2]}
	hi := lo
	for i := PositionComponents; i+2 < len(positions); i += PositionComponents {
		for axis := range 3 {
			lo[axis] = min(lo[axis], positions[i+axis])
			hi[axis] = max(hi[axis], positions[i+axis])
		}
	}
	return common.NewBoundingVolumeFromMinMax(lo, hi)
}
