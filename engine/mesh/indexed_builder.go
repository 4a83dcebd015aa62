package mesh

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

var (
	// ErrIndexOutOfRange is returned when a face references a missing position, normal or texcoord.
	ErrIndexOutOfRange = errors.New("mesh: face index out of range")
	// ErrVertexOverflow is returned when seam duplication would exceed the vertex bound.
	ErrVertexOverflow = errors.New("mesh: duplicated vertex bound exceeded")
)

// Face is one triangle of a FaceSource. All indices are zero-based.
type Face struct {
	Position [3]int
	Normal   [3]int
	Texcoord [3]int
	Material int
}

// FaceSource is un-indexed triangle data where every corner references its own
// position, normal and texcoord entries.
type FaceSource struct {
	Positions [][3]float32
	Normals   [][3]float32
	Texcoords [][2]float32
	Faces     []Face
}

// MaterialInfo is the subset of a material the scene core reads.
type MaterialInfo struct {
	SingleFace bool
}

// MaterialLookup resolves a material by identifier.
type MaterialLookup interface {
	// Lookup returns the material registered under id.
	//
	// Parameters:
	//   - id: the material identifier
	//
	// Returns:
	//   - MaterialInfo: the material properties
	//   - bool: false if no material is registered under id
	Lookup(id int) (MaterialInfo, bool)
}

// MaterialTable is a map-backed MaterialLookup.
type MaterialTable map[int]MaterialInfo

// Lookup implements MaterialLookup.
func (t MaterialTable) Lookup(id int) (MaterialInfo, bool) {
	info, ok := t[id]
	return info, ok
}

type seamKey struct {
	position int
	uv       [2]float32
}

// MaxVertices returns the vertex bound BuildIndexed allocates for src: every position once,
// plus one duplicate for each face corner in the worst case.
//
// Parameters:
//   - src: the face source
//
// Returns:
//   - int: the maximum number of output vertices
func MaxVertices(src *FaceSource) int {
	return len(src.Positions) + 3*len(src.Faces)
}

// BuildIndexed converts a FaceSource into an indexed Mesh. A position that is reused with a
// different texcoord is duplicated so every output vertex has one texcoord. Consecutive faces
// whose material is single-sided are grouped into SingleFaces ranges, the rest into NormalFaces.
// Faces whose material is missing from materials are treated as normal faces.
//
// Parameters:
//   - src: the face source
//   - materials: material lookup, may be nil
//   - options: additional mesh options such as WithName or WithColors
//
// Returns:
//   - Mesh: the indexed mesh
//   - error: ErrIndexOutOfRange or ErrVertexOverflow
func BuildIndexed(src *FaceSource, materials MaterialLookup, options ...MeshBuilderOption) (Mesh, error) {
	bound := MaxVertices(src)
	positions := make([]float32, 0, bound*PositionComponents)
	for _, p := range src.Positions {
		positions = append(positions, p[0], p[1], p[2])
	}
	normals := make([]float32, len(src.Positions)*NormalComponents, bound*NormalComponents)
	tangents := make([]float32, len(src.Positions)*TangentComponents, bound*TangentComponents)
	texcoords := make([]float32, len(src.Positions)*TexcoordComponents, bound*TexcoordComponents)
	materialIDs := make([]float32, len(src.Positions)*MaterialComponents, bound*MaterialComponents)
	indices := make([]uint32, 0, len(src.Faces)*3)

	assigned := make(map[int][2]float32, len(src.Positions))
	seams := make(map[seamKey]int)
	vertexCount := len(src.Positions)

	var normalFaces, singleFaces []FaceRange
	last := -1

	for fi, f := range src.Faces {
		var corner [3]int
		var uvs [3][2]float32
		for c := range 3 {
			p, n, t := f.Position[c], f.Normal[c], f.Texcoord[c]
			if p < 0 || p >= len(src.Positions) || n < 0 || n >= len(src.Normals) || t < 0 || t >= len(src.Texcoords) {
				return nil, fmt.Errorf("face %d corner %d: %w", fi, c, ErrIndexOutOfRange)
			}
			uv := src.Texcoords[t]
			uvs[c] = uv

			v := p
			if prev, used := assigned[p]; used && prev != uv {
				key := seamKey{position: p, uv: uv}
				dup, ok := seams[key]
				if !ok {
					if vertexCount >= bound {
						return nil, fmt.Errorf("face %d corner %d: %w", fi, c, ErrVertexOverflow)
					}
					dup = vertexCount
					vertexCount++
					seams[key] = dup
					pos := src.Positions[p]
					positions = append(positions, pos[0], pos[1], pos[2])
					normals = append(normals, 0, 0, 0)
					tangents = append(tangents, 0, 0, 0)
					texcoords = append(texcoords, 0, 0, 0, 0)
					materialIDs = append(materialIDs, 0, 0)
				}
				v = dup
			} else {
				assigned[p] = uv
			}
			corner[c] = v

			nrm := src.Normals[n]
			copy(normals[v*NormalComponents:], nrm[:])
			texcoords[v*TexcoordComponents] = uv[0]
			texcoords[v*TexcoordComponents+1] = uv[1]
			materialIDs[v*MaterialComponents] = float32(f.Material)
		}

		tangent := faceTangent(src.Positions[f.Position[0]], src.Positions[f.Position[1]], src.Positions[f.Position[2]], uvs)
		for _, v := range corner {
			copy(tangents[v*TangentComponents:], tangent[:])
			indices = append(indices, uint32(v))
		}

		state := 0
		if materials != nil {
			if info, ok := materials.Lookup(f.Material); ok && info.SingleFace {
				state = 1
			}
		}
		if state == last {
			if state == 1 {
				singleFaces[len(singleFaces)-1].Count += 3
			} else {
				normalFaces[len(normalFaces)-1].Count += 3
			}
		} else if state == 1 {
			singleFaces = append(singleFaces, FaceRange{Start: fi * 3, Count: 3})
		} else {
			normalFaces = append(normalFaces, FaceRange{Start: fi * 3, Count: 3})
		}
		last = state
	}

	opts := []MeshBuilderOption{
		WithPositions(positions),
		WithNormals(normals),
		WithTangents(tangents),
		WithTexcoords(texcoords),
		WithMaterialIDs(materialIDs),
		WithIndices(indices),
		WithFaces(normalFaces, singleFaces),
	}
	return NewMesh(append(opts, options...)...), nil
}

// faceTangent derives the flat tangent of a triangle from its texcoord gradient.
func faceTangent(p1, p2, p3 [3]float32, uv [3][2]float32) [3]float32 {
	e1 := [3]float32{p2[0] - p1[0], p2[1] - p1[1], p2[2] - p1[2]}
	e2 := [3]float32{p3[0] - p1[0], p3[1] - p1[1], p3[2] - p1[2]}
	du1, dv1 := uv[1][0]-uv[0][0], uv[1][1]-uv[0][1]
	du2, dv2 := uv[2][0]-uv[0][0], uv[2][1]-uv[0][1]

	det := du1*dv2 - du2*dv1
	if det == 0 {
		return [3]float32{1, 0, 0}
	}
	r := 1 / det
	t := [3]float32{
		r * (dv2*e1[0] - dv1*e2[0]),
		r * (dv2*e1[1] - dv1*e2[1]),
		r * (dv2*e1[2] - dv1*e2[2]),
	}
	l := math32.Sqrt(t[0]*t[0] + t[1]*t[1] + t[2]*t[2])
	if l == 0 {
		return [3]float32{1, 0, 0}
	}
	return [3]float32{t[0] / l, t[1] / l, t[2] / l}
}
