// Package gpu declares the narrow graphics-buffer surface the scene core draws through.
// Buffers are sets of typed channels; a Device creates them and receives draw commands.
package gpu

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

var (
	// ErrUnknownSlot is returned when a channel slot is not part of the buffer.
	ErrUnknownSlot = errors.New("gpu: unknown channel slot")
	// ErrCapacityExceeded is returned when a channel write is larger than the channel.
	ErrCapacityExceeded = errors.New("gpu: channel capacity exceeded")
	// ErrAllocationFailed is returned when the device cannot create a buffer.
	ErrAllocationFailed = errors.New("gpu: allocation failed")
	// ErrReleased is returned when a released buffer is written or drawn.
	ErrReleased = errors.New("gpu: buffer released")
)

// Channel slots shared by every drawcall layout.
const (
	SlotPosition = iota
	SlotNormal
	SlotTexcoord
	SlotMaterial
	SlotColor
	SlotTangent
	SlotObjectID
	SlotIndex
	SlotBoneID
	SlotWeight
	SlotTransform
	SlotObjectMatrix
	SlotIndirect
	SlotBases
)

// Format is the scalar type of one channel component.
type Format int

const (
	FormatFloat32 Format = iota
	FormatUint8
	FormatUint32
)

// Size returns the byte size of one component.
func (f Format) Size() int {
	switch f {
	case FormatUint8:
		return 1
	default:
		return 4
	}
}

// Usage hints how often a buffer's channels are rewritten.
type Usage int

const (
	// UsageStatic buffers are written once.
	UsageStatic Usage = iota
	// UsageDynamic buffers are rewritten every few frames.
	UsageDynamic
	// UsageStream buffers are rewritten every frame.
	UsageStream
)

// Primitive is the topology of a draw.
type Primitive int

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveLines
)

// ChannelSpec describes one typed channel of a buffer.
type ChannelSpec struct {
	Slot       int
	Name       string
	Format     Format
	Components int
	// Capacity is the number of elements the channel holds. Zero uses the descriptor capacity.
	Capacity int
}

// Stride returns the byte size of one element.
func (c ChannelSpec) Stride() int {
	return c.Format.Size() * c.Components
}

// IsVertexAttribute reports whether the slot is bound as a per-vertex attribute stream.
func (c ChannelSpec) IsVertexAttribute() bool {
	switch c.Slot {
	case SlotPosition, SlotNormal, SlotTexcoord, SlotMaterial, SlotColor, SlotTangent, SlotObjectID, SlotBoneID, SlotWeight:
		return true
	}
	return false
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label    string
	Channels []ChannelSpec
	Capacity int
	Usage    Usage
}

// ChannelCapacity returns the element capacity of a channel in this descriptor.
func (d BufferDescriptor) ChannelCapacity(c ChannelSpec) int {
	if c.Capacity > 0 {
		return c.Capacity
	}
	return d.Capacity
}

// Buffer is a set of GPU channels created by a Device.
type Buffer interface {
	// Label returns the debug label given at creation.
	Label() string

	// UpdateChannel replaces the first count elements of a channel.
	//
	// Parameters:
	//   - slot: the channel slot
	//   - count: number of elements in data
	//   - data: raw little-endian element data, at least count * stride bytes
	//
	// Returns:
	//   - error: ErrUnknownSlot, ErrCapacityExceeded or ErrReleased
	UpdateChannel(slot int, count int, data []byte) error

	// Count returns the number of valid elements last written to a channel.
	Count(slot int) int

	// BindForDraw marks the buffer as consumed by the current submission.
	BindForDraw()

	// InFlight reports whether the buffer is bound for a submission that has not completed.
	InFlight() bool

	// Release frees the GPU resources. Further use returns ErrReleased.
	Release()
}

// DrawCommand is one submission through Device.Draw.
type DrawCommand struct {
	Label  string
	Buffer Buffer
	// Instances optionally holds the per-instance channels (transforms, bases, indirect records)
	// when they live apart from the geometry.
	Instances Buffer
	Pass      common.Pass
	Primitive Primitive
	Indexed   bool
	// Count is the index count for indexed draws, the vertex count otherwise.
	Count         int
	FirstIndex    int
	BaseVertex    int
	InstanceCount int
	// IndirectCount is the number of DrawParams records drawn from the SlotIndirect channel,
	// starting at record FirstIndirect. When non-zero Count is ignored.
	IndirectCount int
	FirstIndirect int
	ModelMatrix   *[16]float32
	NormalMatrix  *[9]float32
}

// Device creates buffers and receives draws.
type Device interface {
	// CreateBuffer allocates a buffer with the described channels.
	//
	// Parameters:
	//   - desc: the buffer layout
	//
	// Returns:
	//   - Buffer: the new buffer
	//   - error: ErrAllocationFailed or a backend error
	CreateBuffer(desc BufferDescriptor) (Buffer, error)

	// Draw binds cmd.Buffer and submits the draw.
	//
	// Parameters:
	//   - cmd: the draw to submit
	//
	// Returns:
	//   - error: ErrReleased or a backend error
	Draw(cmd DrawCommand) error

	// EndFrame marks every submission of the frame as complete, releasing in-flight buffers for writing.
	EndFrame()
}
