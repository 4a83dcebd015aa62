package batch

import "github.com/Carmen-Shannon/oxy-scene/engine/mesh"

// BatchBuilderOption is a functional option for configuring a Batch.
type BatchBuilderOption func(*batch)

// WithLimits sets the capacity limits. Objects is clamped to MaxObjects.
//
// Parameters:
//   - l: vertex, index and object limits
//
// Returns:
//   - BatchBuilderOption: a function that applies the limits option
func WithLimits(l Limits) BatchBuilderOption {
	return func(b *batch) {
		b.limits = l
	}
}

// WithReserve preallocates storage for the given number of vertices and indices.
//
// Parameters:
//   - vertices: expected vertex count
//   - indices: expected index count
//
// Returns:
//   - BatchBuilderOption: a function that applies the reserve option
func WithReserve(vertices, indices int) BatchBuilderOption {
	return func(b *batch) {
		b.positions = make([]float32, 0, vertices*mesh.PositionComponents)
		b.normals = make([]float32, 0, vertices*mesh.NormalComponents)
		b.tangents = make([]float32, 0, vertices*mesh.PositionComponents)
		b.texcoords = make([]float32, 0, vertices*4)
		b.materialIDs = make([]float32, 0, vertices*2)
		b.colors = make([]uint8, 0, vertices*ColorComponents)
		b.objectIDs = make([]uint8, 0, vertices*ObjectIDComponents)
		b.indices = make([]uint32, 0, indices)
	}
}

// WithLocalMatrices records each object's local transform instead of its world transform.
// Used for nodes whose world transform is supplied per draw.
//
// Returns:
//   - BatchBuilderOption: a function that applies the local matrices option
func WithLocalMatrices() BatchBuilderOption {
	return func(b *batch) {
		b.local = true
	}
}
