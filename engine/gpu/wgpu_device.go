package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// BindHook binds pipeline state and per-draw uniforms before a draw is recorded into the pass.
type BindHook func(pass *wgpu.RenderPassEncoder, cmd DrawCommand)

// WGPUDevice is a Device backed by a WebGPU device and queue.
// Draws are recorded into the render pass set with SetRenderPass.
type WGPUDevice struct {
	mu      *sync.Mutex
	device  *wgpu.Device
	queue   *wgpu.Queue
	pass    *wgpu.RenderPassEncoder
	hook    BindHook
	buffers []*wgpuBuffer
}

var _ Device = &WGPUDevice{}

// WGPUDeviceOption configures a WGPUDevice.
type WGPUDeviceOption func(*WGPUDevice)

// WithBindHook sets the callback invoked before each draw.
//
// Parameters:
//   - hook: binds pipelines, bind groups and uniforms for the command
//
// Returns:
//   - WGPUDeviceOption: the option
func WithBindHook(hook BindHook) WGPUDeviceOption {
	return func(d *WGPUDevice) {
		d.hook = hook
	}
}

// NewWGPUDevice wraps an initialized WebGPU device and queue.
//
// Parameters:
//   - device: the WebGPU device
//   - queue: the device queue
//   - options: functional options
//
// Returns:
//   - *WGPUDevice: the device
func NewWGPUDevice(device *wgpu.Device, queue *wgpu.Queue, options ...WGPUDeviceOption) *WGPUDevice {
	if device == nil || queue == nil {
		panic("gpu: NewWGPUDevice requires a device and queue")
	}
	d := &WGPUDevice{
		mu:     &sync.Mutex{},
		device: device,
		queue:  queue,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// SetRenderPass sets the pass subsequent draws are recorded into.
func (d *WGPUDevice) SetRenderPass(pass *wgpu.RenderPassEncoder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pass = pass
}

func usageFor(slot int) wgpu.BufferUsage {
	switch slot {
	case SlotIndex:
		return wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	case SlotIndirect:
		return wgpu.BufferUsageIndirect | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	case SlotTransform, SlotObjectMatrix:
		return wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	case SlotBases:
		return wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	default:
		return wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	}
}

func (d *WGPUDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := &wgpuBuffer{
		mu:       &sync.Mutex{},
		queue:    d.queue,
		label:    desc.Label,
		channels: make(map[int]*wgpuChannel, len(desc.Channels)),
	}
	for _, c := range desc.Channels {
		capacity := desc.ChannelCapacity(c)
		size := uint64(capacity * c.Stride())
		// WebGPU requires buffer sizes aligned to 4 bytes.
		size = (size + 3) &^ 3
		if size == 0 {
			size = 4
		}
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            fmt.Sprintf("%s %s", desc.Label, c.Name),
			Size:             size,
			Usage:            usageFor(c.Slot),
			MappedAtCreation: false,
		})
		if err != nil {
			b.Release()
			return nil, fmt.Errorf("create buffer %q channel %s: %w", desc.Label, c.Name, err)
		}
		b.channels[c.Slot] = &wgpuChannel{spec: c, capacity: capacity, buffer: buf}
		if c.IsVertexAttribute() {
			b.vertexSlots = append(b.vertexSlots, c.Slot)
		}
	}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *WGPUDevice) Draw(cmd DrawCommand) error {
	b, ok := cmd.Buffer.(*wgpuBuffer)
	if !ok || b == nil {
		return fmt.Errorf("draw %q: buffer not created by this device", cmd.Label)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pass == nil {
		return fmt.Errorf("draw %q: no render pass", cmd.Label)
	}

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return fmt.Errorf("draw %q: %w", cmd.Label, ErrReleased)
	}
	if d.hook != nil {
		d.hook(d.pass, cmd)
	}
	for location, slot := range b.vertexSlots {
		d.pass.SetVertexBuffer(uint32(location), b.channels[slot].buffer, 0, wgpu.WholeSize)
	}
	index, indexed := b.channels[SlotIndex]
	if cmd.Indexed && indexed {
		d.pass.SetIndexBuffer(index.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
	indirect := b.channels[SlotIndirect]
	b.inFlight = true
	b.mu.Unlock()

	if inst, ok := cmd.Instances.(*wgpuBuffer); ok && inst != nil {
		inst.mu.Lock()
		if c, ok := inst.channels[SlotIndirect]; ok {
			indirect = c
		}
		inst.inFlight = true
		inst.mu.Unlock()
	}

	instances := uint32(max(cmd.InstanceCount, 1))
	switch {
	case cmd.IndirectCount > 0 && indirect != nil:
		for i := cmd.FirstIndirect; i < cmd.FirstIndirect+cmd.IndirectCount; i++ {
			d.pass.DrawIndexedIndirect(indirect.buffer, uint64(i*DrawParamsSize))
		}
	case cmd.Indexed && indexed:
		d.pass.DrawIndexed(uint32(cmd.Count), instances, uint32(cmd.FirstIndex), int32(cmd.BaseVertex), 0)
	default:
		d.pass.Draw(uint32(cmd.Count), instances, uint32(cmd.BaseVertex), 0)
	}
	return nil
}

// EndFrame clears in-flight state. Queue writes are ordered after prior submissions.
func (d *WGPUDevice) EndFrame() {
	d.mu.Lock()
	defer d.mu.Unlock()
	live := d.buffers[:0]
	for _, b := range d.buffers {
		b.mu.Lock()
		b.inFlight = false
		released := b.released
		b.mu.Unlock()
		if !released {
			live = append(live, b)
		}
	}
	d.buffers = live
}

// ChannelBuffer returns the WebGPU buffer backing a channel, for bind hooks that bind storage or uniform channels.
//
// Parameters:
//   - b: a buffer created by this device
//   - slot: the channel slot
//
// Returns:
//   - *wgpu.Buffer: the backing buffer, nil if b is foreign or the slot is unknown
func (d *WGPUDevice) ChannelBuffer(b Buffer, slot int) *wgpu.Buffer {
	wb, ok := b.(*wgpuBuffer)
	if !ok || wb == nil {
		return nil
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()
	if c, ok := wb.channels[slot]; ok {
		return c.buffer
	}
	return nil
}

type wgpuChannel struct {
	spec     ChannelSpec
	capacity int
	count    int
	buffer   *wgpu.Buffer
}

type wgpuBuffer struct {
	mu          *sync.Mutex
	queue       *wgpu.Queue
	label       string
	channels    map[int]*wgpuChannel
	vertexSlots []int
	inFlight    bool
	released    bool
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string {
	return b.label
}

func (b *wgpuBuffer) UpdateChannel(slot int, count int, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return fmt.Errorf("update %s slot %d: %w", b.label, slot, ErrReleased)
	}
	c, ok := b.channels[slot]
	if !ok {
		return fmt.Errorf("update %s slot %d: %w", b.label, slot, ErrUnknownSlot)
	}
	if count < 0 || count > c.capacity {
		return fmt.Errorf("update %s slot %d: %d > %d: %w", b.label, slot, count, c.capacity, ErrCapacityExceeded)
	}
	size := count * c.spec.Stride()
	if len(data) < size {
		return fmt.Errorf("update %s slot %d: %d bytes for %d elements", b.label, slot, len(data), count)
	}
	if size > 0 {
		payload := data[:size]
		if size%4 != 0 {
			payload = make([]byte, (size+3)&^3)
			copy(payload, data[:size])
		}
		b.queue.WriteBuffer(c.buffer, 0, payload)
	}
	c.count = count
	return nil
}

func (b *wgpuBuffer) Count(slot int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.channels[slot]; ok {
		return c.count
	}
	return 0
}

func (b *wgpuBuffer) BindForDraw() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight = true
}

func (b *wgpuBuffer) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}

func (b *wgpuBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return
	}
	b.released = true
	for _, c := range b.channels {
		if c.buffer != nil {
			c.buffer.Release()
		}
	}
}
