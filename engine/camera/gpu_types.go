package camera

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUCameraUniform is the GPU-aligned representation of the camera uniform buffer.
// Size: 80 bytes (std430 / WGSL aligned).
type GPUCameraUniform struct {
	ViewProj [16]float32 // offset  0: combined view-projection matrix (mat4x4<f32>)
	Eye      [3]float32  // offset 64: world-space camera position (vec3<f32>)
	Far      float32     // offset 76: far plane distance, fills the vec3 padding
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i, v := range g.ViewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i, v := range g.Eye {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[76:], math.Float32bits(g.Far))
	return buf
}
