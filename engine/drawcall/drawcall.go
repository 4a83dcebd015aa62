// Package drawcall owns the GPU buffers behind every submission: a double-buffered channel set,
// the per-pass choice of channels to refresh, and the static and multi-instance drawcalls built on them.
package drawcall

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
)

// ErrBufferInFlight is returned when the buffer to be written is still bound for a submission.
var ErrBufferInFlight = errors.New("drawcall: buffer in flight")

// ChannelSource provides raw channel data for buffer updates.
type ChannelSource interface {
	// Channel returns the element count and bytes of a slot, false if the source has no such channel.
	Channel(slot int) (int, []byte, bool)
}

// ChannelPolicy decides which channels each pass refreshes. A pass without an entry refreshes every channel.
type ChannelPolicy struct {
	mu    *sync.RWMutex
	slots map[common.Pass][]int
}

// DefaultChannelPolicy returns the policy used by new drawcalls: the color pass refreshes everything,
// near and mid shadow passes refresh position, texcoord, object id, index and the matrices,
// the far shadow pass drops texcoords as well.
//
// Returns:
//   - *ChannelPolicy: the policy
func DefaultChannelPolicy() *ChannelPolicy {
	shadow := []int{gpu.SlotPosition, gpu.SlotTexcoord, gpu.SlotObjectID, gpu.SlotIndex, gpu.SlotObjectMatrix, gpu.SlotTransform, gpu.SlotBases, gpu.SlotIndirect}
	far := []int{gpu.SlotPosition, gpu.SlotObjectID, gpu.SlotIndex, gpu.SlotObjectMatrix, gpu.SlotTransform, gpu.SlotBases, gpu.SlotIndirect}
	return &ChannelPolicy{
		mu: &sync.RWMutex{},
		slots: map[common.Pass][]int{
			common.PassNearShadow: shadow,
			common.PassMidShadow:  slices.Clone(shadow),
			common.PassFarShadow:  far,
		},
	}
}

// Set overrides the channels refreshed by a pass. No slots restores refreshing every channel.
//
// Parameters:
//   - pass: the render pass
//   - slots: gpu.Slot* constants
func (p *ChannelPolicy) Set(pass common.Pass, slots ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(slots) == 0 {
		delete(p.slots, pass)
		return
	}
	p.slots[pass] = slices.Clone(slots)
}

// Refreshes reports whether a pass refreshes a slot.
//
// Parameters:
//   - pass: the render pass
//   - slot: a gpu.Slot* constant
//
// Returns:
//   - bool: true if the slot is written for the pass
func (p *ChannelPolicy) Refreshes(pass common.Pass, slot int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	slots, ok := p.slots[pass]
	return !ok || slices.Contains(slots, slot)
}

// DoubleBuffered is a pair of identical channel buffers: one bound for drawing, one accepting writes.
type DoubleBuffered interface {
	// UpdateBuffers swaps the buffers when double buffering is on, then writes the channels the pass refreshes
	// from src into the prepare buffer. With double buffering off the single buffer is written in place.
	//
	// Parameters:
	//   - pass: the render pass selecting channels through the policy
	//   - src: the channel data
	//
	// Returns:
	//   - error: ErrBufferInFlight if the buffer to write is bound for a submission, or a channel error
	UpdateBuffers(pass common.Pass, src ChannelSource) error

	// Seed writes every channel of src into every buffer. Used once after creation.
	//
	// Parameters:
	//   - src: the channel data
	//
	// Returns:
	//   - error: a channel error
	Seed(src ChannelSource) error

	// DrawBuffer returns the buffer bound for drawing.
	DrawBuffer() gpu.Buffer

	// PrepareBuffer returns the buffer accepting writes. Equal to DrawBuffer with double buffering off.
	PrepareBuffer() gpu.Buffer

	// Drawing returns 0 while buffer A is bound for drawing and 1 for buffer B.
	Drawing() int

	DoubleBuffering() bool
	Policy() *ChannelPolicy
	Updates() int

	// Release frees both buffers.
	Release()
}

// doubleBuffered is the implementation of the DoubleBuffered interface.
type doubleBuffered struct {
	mu       *sync.Mutex
	buffers  [2]gpu.Buffer
	slots    []int
	draw     int
	double   bool
	policy   *ChannelPolicy
	updates  int
	released bool
}

var _ DoubleBuffered = &doubleBuffered{}

// NewDoubleBuffered creates the buffers described by desc, two with double buffering on.
// Buffer A starts bound for drawing.
//
// Parameters:
//   - device: the device that allocates buffers
//   - desc: the channel layout
//   - options: functional options
//
// Returns:
//   - DoubleBuffered: the buffer pair
//   - error: the allocation error
func NewDoubleBuffered(device gpu.Device, desc gpu.BufferDescriptor, options ...DrawcallBuilderOption) (DoubleBuffered, error) {
	if device == nil {
		panic("drawcall: NewDoubleBuffered requires a device")
	}
	cfg := newDrawcallConfig(options...)
	d := &doubleBuffered{
		mu:     &sync.Mutex{},
		double: cfg.double,
		policy: cfg.policy,
	}
	for _, c := range desc.Channels {
		d.slots = append(d.slots, c.Slot)
	}

	n := 1
	if d.double {
		n = 2
	}
	names := [2]string{" A", " B"}
	for i := 0; i < n; i++ {
		bd := desc
		bd.Label = desc.Label + names[i]
		buf, err := device.CreateBuffer(bd)
		if err != nil {
			d.Release()
			return nil, fmt.Errorf("create %s: %w", desc.Label, err)
		}
		d.buffers[i] = buf
	}
	if !d.double {
		d.buffers[1] = d.buffers[0]
	}
	return d, nil
}

func (d *doubleBuffered) write(buf gpu.Buffer, src ChannelSource, pass common.Pass, all bool) error {
	for _, slot := range d.slots {
		if !all && !d.policy.Refreshes(pass, slot) {
			continue
		}
		count, data, ok := src.Channel(slot)
		if !ok {
			continue
		}
		if err := buf.UpdateChannel(slot, count, data); err != nil {
			return err
		}
	}
	return nil
}

func (d *doubleBuffered) UpdateBuffers(pass common.Pass, src ChannelSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return gpu.ErrReleased
	}
	// With double buffering the buffer drawn last becomes the prepare buffer.
	target := d.buffers[d.draw]
	if !d.double {
		target = d.buffers[0]
	}
	if target.InFlight() {
		return fmt.Errorf("update %s: %w", target.Label(), ErrBufferInFlight)
	}
	if d.double {
		d.draw = 1 - d.draw
	}
	d.updates++
	return d.write(target, src, pass, false)
}

func (d *doubleBuffered) Seed(src ChannelSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return gpu.ErrReleased
	}
	n := 1
	if d.double {
		n = 2
	}
	for i := 0; i < n; i++ {
		if err := d.write(d.buffers[i], src, common.PassColor, true); err != nil {
			return err
		}
	}
	return nil
}

func (d *doubleBuffered) DrawBuffer() gpu.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers[d.draw]
}

func (d *doubleBuffered) PrepareBuffer() gpu.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers[1-d.draw]
}

func (d *doubleBuffered) Drawing() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draw
}

func (d *doubleBuffered) DoubleBuffering() bool {
	return d.double
}

func (d *doubleBuffered) Policy() *ChannelPolicy {
	return d.policy
}

func (d *doubleBuffered) Updates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}

func (d *doubleBuffered) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	d.released = true
	if d.buffers[0] != nil {
		d.buffers[0].Release()
	}
	if d.double && d.buffers[1] != nil {
		d.buffers[1].Release()
	}
}
