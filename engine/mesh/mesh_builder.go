package mesh

import (
	"github.com/Carmen-Shannon/oxy-scene/common"
)

// MeshBuilderOption is a functional option for configuring a Mesh via NewMesh.
type MeshBuilderOption func(*mesh)

// WithName sets the mesh identifier.
//
// Parameters:
//   - name: the mesh name
//
// Returns:
//   - MeshBuilderOption: a function that applies the name option to a mesh
func WithName(name string) MeshBuilderOption {
	return func(m *mesh) {
		m.name = name
	}
}

// WithPositions sets the packed xyz vertex positions. The vertex count is derived from this channel.
//
// Parameters:
//   - positions: PositionComponents floats per vertex
//
// Returns:
//   - MeshBuilderOption: a function that applies the positions option to a mesh
func WithPositions(positions []float32) MeshBuilderOption {
	return func(m *mesh) {
		m.positions = positions
	}
}

// WithNormals sets the packed vertex normals.
//
// Parameters:
//   - normals: NormalComponents floats per vertex
//
// Returns:
//   - MeshBuilderOption: a function that applies the normals option to a mesh
func WithNormals(normals []float32) MeshBuilderOption {
	return func(m *mesh) {
		m.normals = normals
	}
}

// WithTangents sets the packed vertex tangents.
//
// Parameters:
//   - tangents: TangentComponents floats per vertex
//
// Returns:
//   - MeshBuilderOption: a function that applies the tangents option to a mesh
func WithTangents(tangents []float32) MeshBuilderOption {
	return func(m *mesh) {
		m.tangents = tangents
	}
}

// WithTexcoords sets the packed texture coordinates.
//
// Parameters:
//   - texcoords: TexcoordComponents floats per vertex
//
// Returns:
//   - MeshBuilderOption: a function that applies the texcoords option to a mesh
func WithTexcoords(texcoords []float32) MeshBuilderOption {
	return func(m *mesh) {
		m.texcoords = texcoords
	}
}

// WithMaterialIDs sets the per-vertex material identifiers.
//
// Parameters:
//   - ids: MaterialComponents floats per vertex
//
// Returns:
//   - MeshBuilderOption: a function that applies the material ids option to a mesh
func WithMaterialIDs(ids []float32) MeshBuilderOption {
	return func(m *mesh) {
		m.materialIDs = ids
	}
}

// WithColors sets the per-vertex RGB colors.
//
// Parameters:
//   - colors: ColorComponents bytes per vertex
//
// Returns:
//   - MeshBuilderOption: a function that applies the colors option to a mesh
func WithColors(colors []uint8) MeshBuilderOption {
	return func(m *mesh) {
		m.colors = colors
	}
}

// WithIndices sets the mesh-local triangle indices.
//
// Parameters:
//   - indices: three indices per triangle
//
// Returns:
//   - MeshBuilderOption: a function that applies the indices option to a mesh
func WithIndices(indices []uint32) MeshBuilderOption {
	return func(m *mesh) {
		m.indices = indices
	}
}

// WithFaces sets the face ranges by rendering category. Passing two empty slices produces a
// mesh that belongs to no category.
//
// Parameters:
//   - normal: index ranges drawn with back-face culling
//   - single: index ranges of single-sided materials
//
// Returns:
//   - MeshBuilderOption: a function that applies the faces option to a mesh
func WithFaces(normal, single []FaceRange) MeshBuilderOption {
	return func(m *mesh) {
		m.normalFaces = normal
		m.singleFaces = single
		m.facesSet = true
	}
}

// WithBillboard marks the mesh as a camera-facing billboard.
//
// Parameters:
//   - billboard: true for billboards
//
// Returns:
//   - MeshBuilderOption: a function that applies the billboard option to a mesh
func WithBillboard(billboard bool) MeshBuilderOption {
	return func(m *mesh) {
		m.billboard = billboard
	}
}

// WithSkin marks the mesh as skinned and sets its bone ids and weights.
//
// Parameters:
//   - boneIDs: BoneComponents bytes per vertex
//   - weights: WeightComponents floats per vertex
//
// Returns:
//   - MeshBuilderOption: a function that applies the skin option to a mesh
func WithSkin(boneIDs []uint8, weights []float32) MeshBuilderOption {
	return func(m *mesh) {
		m.skinned = true
		m.boneIDs = boneIDs
		m.weights = weights
	}
}

// WithBounds overrides the bounds computed from the positions.
//
// Parameters:
//   - bounds: the mesh-local bounding volume
//
// Returns:
//   - MeshBuilderOption: a function that applies the bounds option to a mesh
func WithBounds(bounds common.BoundingVolume) MeshBuilderOption {
	return func(m *mesh) {
		m.bounds = bounds
		m.boundsSet = true
	}
}
