package gpu

import (
	"fmt"
	"sync"
)

// ChannelWrite is one UpdateChannel call captured by a RecordingDevice.
type ChannelWrite struct {
	Buffer string
	Slot   int
	Count  int
	Data   []byte
}

// RecordingDevice is a headless Device that keeps buffer contents in memory and records every draw.
type RecordingDevice struct {
	mu         *sync.Mutex
	buffers    []*recordingBuffer
	draws      []DrawCommand
	writes     []ChannelWrite
	allocLimit int
	created    int
}

var _ Device = &RecordingDevice{}

// RecordingDeviceOption configures a RecordingDevice.
type RecordingDeviceOption func(*RecordingDevice)

// WithAllocationLimit makes CreateBuffer fail with ErrAllocationFailed once n buffers were created.
//
// Parameters:
//   - n: number of successful allocations, negative for unlimited
//
// Returns:
//   - RecordingDeviceOption: the option
func WithAllocationLimit(n int) RecordingDeviceOption {
	return func(d *RecordingDevice) {
		d.allocLimit = n
	}
}

// NewRecordingDevice creates an in-memory device.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *RecordingDevice: the device
func NewRecordingDevice(options ...RecordingDeviceOption) *RecordingDevice {
	d := &RecordingDevice{
		mu:         &sync.Mutex{},
		allocLimit: -1,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

func (d *RecordingDevice) CreateBuffer(desc BufferDescriptor) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.allocLimit >= 0 && d.created >= d.allocLimit {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, ErrAllocationFailed)
	}
	d.created++

	b := &recordingBuffer{
		mu:       &sync.Mutex{},
		device:   d,
		label:    desc.Label,
		channels: make(map[int]*recordingChannel, len(desc.Channels)),
	}
	for _, c := range desc.Channels {
		capacity := desc.ChannelCapacity(c)
		b.channels[c.Slot] = &recordingChannel{
			spec:     c,
			capacity: capacity,
			data:     make([]byte, capacity*c.Stride()),
		}
	}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *RecordingDevice) Draw(cmd DrawCommand) error {
	if cmd.Buffer == nil {
		return fmt.Errorf("draw %q: nil buffer", cmd.Label)
	}
	rb, ok := cmd.Buffer.(*recordingBuffer)
	if ok && rb.isReleased() {
		return fmt.Errorf("draw %q: %w", cmd.Label, ErrReleased)
	}
	cmd.Buffer.BindForDraw()
	if cmd.Instances != nil {
		cmd.Instances.BindForDraw()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if cmd.ModelMatrix != nil {
		m := *cmd.ModelMatrix
		cmd.ModelMatrix = &m
	}
	if cmd.NormalMatrix != nil {
		n := *cmd.NormalMatrix
		cmd.NormalMatrix = &n
	}
	d.draws = append(d.draws, cmd)
	return nil
}

func (d *RecordingDevice) EndFrame() {
	d.mu.Lock()
	buffers := append([]*recordingBuffer(nil), d.buffers...)
	d.mu.Unlock()

	for _, b := range buffers {
		b.mu.Lock()
		b.inFlight = false
		b.mu.Unlock()
	}
}

// Draws returns every draw submitted since the last Reset.
func (d *RecordingDevice) Draws() []DrawCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DrawCommand(nil), d.draws...)
}

// Writes returns every channel write since the last Reset.
func (d *RecordingDevice) Writes() []ChannelWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ChannelWrite(nil), d.writes...)
}

// Reset forgets recorded draws and writes. Buffers stay alive.
func (d *RecordingDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = d.draws[:0]
	d.writes = d.writes[:0]
}

// Created returns the number of buffers allocated so far.
func (d *RecordingDevice) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created
}

// Live returns the number of buffers that were not released.
func (d *RecordingDevice) Live() int {
	d.mu.Lock()
	buffers := append([]*recordingBuffer(nil), d.buffers...)
	d.mu.Unlock()

	n := 0
	for _, b := range buffers {
		if !b.isReleased() {
			n++
		}
	}
	return n
}

// ChannelData returns a copy of the valid bytes of a channel of a buffer created by this device.
//
// Parameters:
//   - b: the buffer
//   - slot: the channel slot
//
// Returns:
//   - []byte: Count(slot) * stride bytes, nil if the slot is unknown
func (d *RecordingDevice) ChannelData(b Buffer, slot int) []byte {
	rb, ok := b.(*recordingBuffer)
	if !ok {
		return nil
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	c, ok := rb.channels[slot]
	if !ok {
		return nil
	}
	return append([]byte(nil), c.data[:c.count*c.spec.Stride()]...)
}

// ChannelCapacity returns the element capacity of a channel of a buffer created by this device.
func (d *RecordingDevice) ChannelCapacity(b Buffer, slot int) int {
	rb, ok := b.(*recordingBuffer)
	if !ok {
		return 0
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if c, ok := rb.channels[slot]; ok {
		return c.capacity
	}
	return 0
}

// Slots returns the channel slots of a buffer created by this device.
func (d *RecordingDevice) Slots(b Buffer) map[int]bool {
	rb, ok := b.(*recordingBuffer)
	if !ok {
		return nil
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()
	slots := make(map[int]bool, len(rb.channels))
	for s := range rb.channels {
		slots[s] = true
	}
	return slots
}

func (d *RecordingDevice) recordWrite(w ChannelWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, w)
}

type recordingChannel struct {
	spec     ChannelSpec
	capacity int
	count    int
	data     []byte
}

type recordingBuffer struct {
	mu       *sync.Mutex
	device   *RecordingDevice
	label    string
	channels map[int]*recordingChannel
	inFlight bool
	released bool
}

var _ Buffer = &recordingBuffer{}

func (b *recordingBuffer) Label() string {
	return b.label
}

func (b *recordingBuffer) UpdateChannel(slot int, count int, data []byte) error {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return fmt.Errorf("update %s slot %d: %w", b.label, slot, ErrReleased)
	}
	c, ok := b.channels[slot]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("update %s slot %d: %w", b.label, slot, ErrUnknownSlot)
	}
	if count < 0 || count > c.capacity {
		b.mu.Unlock()
		return fmt.Errorf("update %s slot %d: %d > %d: %w", b.label, slot, count, c.capacity, ErrCapacityExceeded)
	}
	size := count * c.spec.Stride()
	if len(data) < size {
		b.mu.Unlock()
		return fmt.Errorf("update %s slot %d: %d bytes for %d elements", b.label, slot, len(data), count)
	}
	copy(c.data, data[:size])
	c.count = count
	b.mu.Unlock()

	b.device.recordWrite(ChannelWrite{
		Buffer: b.label,
		Slot:   slot,
		Count:  count,
		Data:   append([]byte(nil), data[:size]...),
	})
	return nil
}

func (b *recordingBuffer) Count(slot int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.channels[slot]; ok {
		return c.count
	}
	return 0
}

func (b *recordingBuffer) BindForDraw() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight = true
}

func (b *recordingBuffer) InFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight
}

func (b *recordingBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
	b.inFlight = false
	for _, c := range b.channels {
		c.data = nil
		c.count = 0
	}
}

func (b *recordingBuffer) isReleased() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}
