package drawcall

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/multi_instance"
)

// MultiDrawcall draws every category list of a consolidator with indirect records.
// Geometry is written once; transforms, bases and records are double-buffered.
type MultiDrawcall interface {
	// UpdateInstances writes the consolidator's current transforms, bases and records into the prepare buffer.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - error: ErrBufferInFlight or a channel error
	UpdateInstances(pass common.Pass) error

	// Draw submits one indirect draw per non-empty category list.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - int: number of submissions
	//   - error: the device error
	Draw(pass common.Pass) (int, error)

	Consolidator() multi_instance.Consolidator
	Geometry() gpu.Buffer
	Instances() DoubleBuffered

	// Release frees the geometry and instance buffers.
	Release()
}

// multiDrawcall is the implementation of the MultiDrawcall interface.
type multiDrawcall struct {
	mu        *sync.Mutex
	device    gpu.Device
	cons      multi_instance.Consolidator
	geometry  gpu.Buffer
	instances DoubleBuffered
	label     string
	logger    *zap.Logger
}

var _ MultiDrawcall = &multiDrawcall{}

// NewMultiDrawcall uploads the consolidated geometry and allocates the instance buffers.
//
// Parameters:
//   - device: the device
//   - cons: an initialized consolidator
//   - options: functional options
//
// Returns:
//   - MultiDrawcall: the drawcall
//   - error: multi_instance.ErrNotInitialized, or an allocation or write error
func NewMultiDrawcall(device gpu.Device, cons multi_instance.Consolidator, options ...DrawcallBuilderOption) (MultiDrawcall, error) {
	if device == nil || cons == nil {
		panic("drawcall: NewMultiDrawcall requires a device and a consolidator")
	}
	if !cons.Inited() {
		return nil, fmt.Errorf("create multi drawcall: %w", multi_instance.ErrNotInitialized)
	}
	cfg := newDrawcallConfig(options...)
	label := common.Coalesce(cfg.label, "multi instance")

	geometry, err := device.CreateBuffer(gpu.BufferDescriptor{
		Label:    label + " geometry",
		Channels: cons.GeometryChannels(),
		Usage:    gpu.UsageStatic,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s geometry: %w", label, err)
	}
	for _, spec := range cons.GeometryChannels() {
		count, data, ok := cons.Channel(spec.Slot)
		if !ok {
			continue
		}
		if err := geometry.UpdateChannel(spec.Slot, count, data); err != nil {
			geometry.Release()
			return nil, fmt.Errorf("upload %s %s: %w", label, spec.Name, err)
		}
	}

	instances, err := NewDoubleBuffered(device, gpu.BufferDescriptor{
		Label:    label + " instances",
		Channels: cons.InstanceChannels(),
		Usage:    gpu.UsageStream,
	}, options...)
	if err != nil {
		geometry.Release()
		return nil, err
	}
	if err := instances.Seed(cons); err != nil {
		geometry.Release()
		instances.Release()
		return nil, fmt.Errorf("seed %s: %w", label, err)
	}

	cfg.logger.Debug("created multi instance drawcall",
		zap.String("drawcall", label),
		zap.Int("vertices", cons.VertexCount()),
		zap.Int("indices", cons.IndexCount()),
		zap.Int("transform_capacity", cons.TransformCapacity()))

	return &multiDrawcall{
		mu:        &sync.Mutex{},
		device:    device,
		cons:      cons,
		geometry:  geometry,
		instances: instances,
		label:     label,
		logger:    cfg.logger,
	}, nil
}

func (m *multiDrawcall) UpdateInstances(pass common.Pass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.instances.UpdateBuffers(pass, m.cons); err != nil {
		return fmt.Errorf("update %s: %w", m.label, err)
	}
	return nil
}

func (m *multiDrawcall) Draw(pass common.Pass) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst := m.instances.DrawBuffer()
	draws := 0
	for _, cat := range multi_instance.Categories {
		n := len(m.cons.List(cat))
		if n == 0 {
			continue
		}
		err := m.device.Draw(gpu.DrawCommand{
			Label:         m.label + " " + cat.String(),
			Buffer:        m.geometry,
			Instances:     inst,
			Pass:          pass,
			Primitive:     gpu.PrimitiveTriangles,
			Indexed:       true,
			IndirectCount: n,
			FirstIndirect: m.cons.ListOffset(cat),
		})
		if err != nil {
			return draws, fmt.Errorf("draw %s %s: %w", m.label, cat, err)
		}
		draws++
	}
	return draws, nil
}

func (m *multiDrawcall) Consolidator() multi_instance.Consolidator {
	return m.cons
}

func (m *multiDrawcall) Geometry() gpu.Buffer {
	return m.geometry
}

func (m *multiDrawcall) Instances() DoubleBuffered {
	return m.instances
}

func (m *multiDrawcall) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geometry.Release()
	m.instances.Release()
}
