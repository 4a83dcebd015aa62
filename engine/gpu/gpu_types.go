package gpu

import (
	"encoding/binary"
	"unsafe"
)

// DrawParamsSize is the byte size of one indirect draw record.
const DrawParamsSize = 20

// DrawParams is one indexed indirect draw record locating a mesh inside shared buffers.
// Marshal emits the WebGPU drawIndexedIndirect argument order:
// indexCount, instanceCount, firstIndex, baseVertex, firstInstance.
// Size: 20 bytes.
type DrawParams struct {
	BaseVertex    int32
	IndexCount    uint32
	FirstIndex    uint32
	InstanceCount uint32
	BaseInstance  uint32
}

// Size returns the size of the DrawParams struct in bytes.
//
// Returns:
//   - int: The size of the struct in bytes.
func (g *DrawParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the DrawParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 20-byte buffer ready for GPU upload.
func (g *DrawParams) Marshal() []byte {
	buf := make([]byte, DrawParamsSize)
	g.MarshalTo(buf)
	return buf
}

// MarshalTo writes the record into buf, which must hold at least DrawParamsSize bytes.
func (g *DrawParams) MarshalTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], g.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:8], g.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], g.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(g.BaseVertex))
	binary.LittleEndian.PutUint32(buf[16:20], g.BaseInstance)
}

// MarshalDrawParams packs records back to back.
//
// Parameters:
//   - params: the records to pack
//
// Returns:
//   - []byte: len(params) * DrawParamsSize bytes
func MarshalDrawParams(params []DrawParams) []byte {
	buf := make([]byte, len(params)*DrawParamsSize)
	for i := range params {
		params[i].MarshalTo(buf[i*DrawParamsSize:])
	}
	return buf
}
