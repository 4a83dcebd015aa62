package drawcall

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/batch"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
)

// StaticDrawcall draws a merged batch of objects in one indexed submission.
// It backs both whole static nodes and the shared dynamic batch of a render queue.
type StaticDrawcall interface {
	// Update rewrites the prepare buffer from the batch for a pass.
	// With double buffering the drawn buffer lags one update behind until Settle runs.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - error: ErrBufferInFlight or a channel error
	Update(pass common.Pass) error

	// Pending reports whether the drawn buffer is one update behind the batch contents.
	// Single-buffered drawcalls are never pending.
	Pending() bool

	// Settle repeats the last update so both buffers hold the current batch contents.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - error: ErrBufferInFlight or a channel error
	Settle(pass common.Pass) error

	// Draw submits the drawn buffer.
	//
	// Parameters:
	//   - pass: the render pass
	//   - model: optional model matrix for externally driven nodes
	//   - normal: optional normal matrix for externally driven nodes
	//
	// Returns:
	//   - bool: false when the drawn buffer holds no indices and nothing was submitted
	//   - error: the device error
	Draw(pass common.Pass, model *[16]float32, normal *[9]float32) (bool, error)

	// Batch returns the geometry source.
	Batch() batch.Batch

	// Buffers returns the underlying buffer pair.
	Buffers() DoubleBuffered

	// Release frees the GPU buffers.
	Release()
}

// staticDrawcall is the implementation of the StaticDrawcall interface.
type staticDrawcall struct {
	mu      *sync.Mutex
	device  gpu.Device
	batch   batch.Batch
	buffers DoubleBuffered
	label   string
	logger  *zap.Logger
	pending bool
}

var _ StaticDrawcall = &staticDrawcall{}

// NewStaticDrawcall allocates buffers sized to limits and seeds every buffer with the batch contents.
//
// Parameters:
//   - device: the device
//   - b: the batch to draw
//   - limits: channel capacities, usually b.Limits() or the exact counts of a static node
//   - options: functional options
//
// Returns:
//   - StaticDrawcall: the drawcall
//   - error: the allocation or write error
func NewStaticDrawcall(device gpu.Device, b batch.Batch, limits batch.Limits, options ...DrawcallBuilderOption) (StaticDrawcall, error) {
	if device == nil || b == nil {
		panic("drawcall: NewStaticDrawcall requires a device and a batch")
	}
	cfg := newDrawcallConfig(options...)
	label := common.Coalesce(cfg.label, "static")

	buffers, err := NewDoubleBuffered(device, gpu.BufferDescriptor{
		Label:    label,
		Channels: batch.ChannelSpecs(limits),
		Usage:    gpu.UsageDynamic,
	}, options...)
	if err != nil {
		return nil, err
	}
	if err := buffers.Seed(b); err != nil {
		buffers.Release()
		return nil, fmt.Errorf("seed %s: %w", label, err)
	}
	return &staticDrawcall{
		mu:      &sync.Mutex{},
		device:  device,
		batch:   b,
		buffers: buffers,
		label:   label,
		logger:  cfg.logger,
	}, nil
}

func (s *staticDrawcall) Update(pass common.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buffers.UpdateBuffers(pass, s.batch); err != nil {
		return fmt.Errorf("update %s: %w", s.label, err)
	}
	s.pending = s.buffers.DoubleBuffering()
	return nil
}

func (s *staticDrawcall) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *staticDrawcall) Settle(pass common.Pass) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return nil
	}
	if err := s.buffers.UpdateBuffers(pass, s.batch); err != nil {
		return fmt.Errorf("settle %s: %w", s.label, err)
	}
	s.pending = false
	return nil
}

func (s *staticDrawcall) Draw(pass common.Pass, model *[16]float32, normal *[9]float32) (bool, error) {
	buf := s.buffers.DrawBuffer()
	count := buf.Count(gpu.SlotIndex)
	if count == 0 {
		return false, nil
	}
	err := s.device.Draw(gpu.DrawCommand{
		Label:         s.label,
		Buffer:        buf,
		Pass:          pass,
		Primitive:     gpu.PrimitiveTriangles,
		Indexed:       true,
		Count:         count,
		InstanceCount: 1,
		ModelMatrix:   model,
		NormalMatrix:  normal,
	})
	if err != nil {
		return false, fmt.Errorf("draw %s: %w", s.label, err)
	}
	return true, nil
}

func (s *staticDrawcall) Batch() batch.Batch {
	return s.batch
}

func (s *staticDrawcall) Buffers() DoubleBuffered {
	return s.buffers
}

func (s *staticDrawcall) Release() {
	s.buffers.Release()
	s.logger.Debug("released drawcall", zap.String("drawcall", s.label))
}
