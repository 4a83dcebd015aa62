package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadSource() *FaceSource {
	return &FaceSource{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals:   [][3]float32{{0, 0, 1}},
		Texcoords: [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0.5, 0.5}},
		Faces: []Face{
			{Position: [3]int{0, 1, 2}, Texcoord: [3]int{0, 1, 2}, Material: 1},
			{Position: [3]int{0, 2, 3}, Texcoord: [3]int{0, 2, 3}, Material: 1},
		},
	}
}

func TestNewMeshPadsChannelsAndDefaultsFaces(t *testing.T) {
	m := NewMesh(
		WithName("tri"),
		WithPositions([]float32{0, 0, 0, 1, 0, 0, 0, 2, 0}),
		WithIndices([]uint32{0, 1, 2}),
	)
	assert.Equal(t, "tri", m.Name())
	assert.Equal(t, 3, m.VertexCount())
	assert.Len(t, m.Normals(), 9)
	assert.Len(t, m.Texcoords(), 12)
	assert.Len(t, m.MaterialIDs(), 6)
	assert.Len(t, m.Colors(), 9)
	assert.Nil(t, m.BoneIDs())
	assert.Equal(t, []FaceRange{{Start: 0, Count: 3}}, m.NormalFaces())
	assert.Empty(t, m.SingleFaces())
	assert.Equal(t, [3]float32{0, 0, 0}, m.Bounds().Min())
	assert.Equal(t, [3]float32{1, 2, 0}, m.Bounds().Max())
}

func TestNewMeshBillboardAndSkin(t *testing.T) {
	bill := NewMesh(WithPositions(make([]float32, 12)), WithIndices([]uint32{0, 1, 2, 0, 2, 3}), WithBillboard(true))
	assert.True(t, bill.Billboard())
	assert.Empty(t, bill.NormalFaces())

	skinned := NewMesh(WithPositions(make([]float32, 6)), WithSkin([]uint8{1}, nil))
	assert.True(t, skinned.Skinned())
	assert.Len(t, skinned.BoneIDs(), 8)
	assert.Len(t, skinned.Weights(), 8)

	none := NewMesh(WithPositions(make([]float32, 9)), WithIndices([]uint32{0, 1, 2}), WithFaces(nil, nil))
	assert.Empty(t, none.NormalFaces())
	assert.Empty(t, none.SingleFaces())
}

func TestBuildIndexedSharesMatchingTexcoords(t *testing.T) {
	m, err := BuildIndexed(quadSource(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, m.VertexCount())
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, m.Indices())
	assert.Equal(t, []FaceRange{{Start: 0, Count: 6}}, m.NormalFaces())
	assert.Equal(t, float32(1), m.MaterialIDs()[0])
	assert.InDelta(t, 1, m.Tangents()[0], 1e-6)
}

func TestBuildIndexedDuplicatesSeamVertices(t *testing.T) {
	src := quadSource()
	// position 0 reused with a new texcoord twice, position 2 once
	src.Faces = append(src.Faces,
		Face{Position: [3]int{0, 2, 1}, Texcoord: [3]int{4, 4, 1}},
		Face{Position: [3]int{0, 3, 1}, Texcoord: [3]int{4, 3, 1}},
	)
	m, err := BuildIndexed(src, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, m.VertexCount())
	assert.LessOrEqual(t, m.VertexCount(), MaxVertices(src))
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 1, 4, 3, 1}, m.Indices())

	// duplicates keep their source position and their own texcoord
	pos := m.Positions()
	assert.Equal(t, []float32{0, 0, 0}, pos[4*3:4*3+3])
	assert.Equal(t, []float32{1, 1, 0}, pos[5*3:5*3+3])
	tc := m.Texcoords()
	assert.Equal(t, []float32{0.5, 0.5}, tc[4*4:4*4+2])
}

func TestBuildIndexedGroupsFacesByMaterial(t *testing.T) {
	src := quadSource()
	src.Faces = []Face{
		{Position: [3]int{0, 1, 2}, Texcoord: [3]int{0, 1, 2}, Material: 1},
		{Position: [3]int{0, 2, 3}, Texcoord: [3]int{0, 2, 3}, Material: 1},
		{Position: [3]int{0, 1, 2}, Texcoord: [3]int{0, 1, 2}, Material: 2},
		{Position: [3]int{0, 2, 3}, Texcoord: [3]int{0, 2, 3}, Material: 7},
	}
	materials := MaterialTable{1: {}, 2: {SingleFace: true}}
	m, err := BuildIndexed(src, materials)
	require.NoError(t, err)
	assert.Equal(t, []FaceRange{{Start: 0, Count: 6}, {Start: 9, Count: 3}}, m.NormalFaces())
	assert.Equal(t, []FaceRange{{Start: 6, Count: 3}}, m.SingleFaces())
}

func TestBuildIndexedRejectsBadIndices(t *testing.T) {
	src := quadSource()
	src.Faces[1].Position[2] = 9
	_, err := BuildIndexed(src, nil)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}
