// Package multi_instance merges the geometry of many instanced meshes into shared buffers and
// computes the indirect draw records and instance offsets that locate each mesh inside them.
package multi_instance

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/instance"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
)

var (
	// ErrNotInitialized is returned by UpdateTransform before Init.
	ErrNotInitialized = errors.New("multi_instance: not initialized")
	// ErrAlreadyInitialized is returned by Add and Init after Init.
	ErrAlreadyInitialized = errors.New("multi_instance: already initialized")
	// ErrTargetTooSmall is returned when an external transform target cannot hold the live transforms.
	ErrTargetTooSmall = errors.New("multi_instance: transform target too small")
)

// Category is one of the mesh lists a source can be drawn from.
type Category int

const (
	CategoryNormal Category = iota
	CategorySingle
	CategoryBillboard
	CategoryAnimated
	categoryCount
)

// Categories lists every category in draw order.
var Categories = [categoryCount]Category{CategoryNormal, CategorySingle, CategoryBillboard, CategoryAnimated}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryNormal:
		return "normal"
	case CategorySingle:
		return "single"
	case CategoryBillboard:
		return "billboard"
	case CategoryAnimated:
		return "animated"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// PassFilter selects which category lists Init builds.
type PassFilter uint8

const (
	PassNormal PassFilter = 1 << iota
	PassSingle
	PassBillboard
	PassAnimated
	PassAll = PassNormal | PassSingle | PassBillboard | PassAnimated
)

func (f PassFilter) allows(c Category) bool {
	return f&(1<<uint(c)) != 0
}

// BasesComponents is the number of bases slots per mesh, one per category.
const BasesComponents = int(categoryCount)

// ColorComponents is the number of bytes per vertex in the shared color stream.
const ColorComponents = 4

// Source is one mesh to consolidate and its instances.
type Source interface {
	Mesh() mesh.Mesh
	// Capacity is the number of transform slots to reserve, clamped to instance.MaxInstancesPerMesh.
	Capacity() int
	// Live is the number of instances to draw this frame.
	Live() int
	// Transforms holds Live() * instance.TransformFloats values.
	Transforms() []float32
}

// Consolidator merges many per-mesh sources into shared attribute, index and transform streams.
type Consolidator interface {
	// Add registers a source. Sources keep their insertion order.
	//
	// Parameters:
	//   - src: the source
	//
	// Returns:
	//   - error: ErrAlreadyInitialized after Init
	Add(src Source) error

	// Init partitions the sources into category lists, computes their draw records and copies all geometry
	// into the shared streams. It runs once.
	//
	// Returns:
	//   - error: ErrAlreadyInitialized on a second call
	Init() error

	// Inited reports whether Init completed.
	Inited() bool

	// UpdateTransform packs the live transforms of every drawable source into target and refreshes
	// the bases table and each record's instance count. Records keep a zero base instance: the
	// shader offsets instance_index by the mesh's bases entry.
	//
	// Parameters:
	//   - target: destination of at least TransformCapacity() * 16 floats, or nil for the internal stream
	//
	// Returns:
	//   - int: the total number of instances written
	//   - error: ErrNotInitialized or ErrTargetTooSmall
	UpdateTransform(target []float32) (int, error)

	// List returns a copy of the draw records of one category.
	List(c Category) []gpu.DrawParams

	// Records returns every draw record, category lists concatenated in Categories order.
	Records() []gpu.DrawParams

	// ListOffset returns the index of the first record of c within Records.
	ListOffset(c Category) int

	Sources() []Source
	VertexCount() int
	IndexCount() int
	TransformCapacity() int
	// MeshCount is the length of the longest category list; the bases table holds MeshCount * 4 slots.
	MeshCount() int
	Skinned() bool
	LiveInstances() int

	Positions() []float32
	Normals() []float32
	Tangents() []float32
	Texcoords() []float32
	MaterialIDs() []float32
	Colors() []uint8
	Indices() []uint32
	BoneIDs() []uint8
	Weights() []float32
	Transforms() []float32
	Bases() []uint32

	// GeometryChannels returns the channel specs of the shared geometry, sized to the consolidated counts.
	GeometryChannels() []gpu.ChannelSpec

	// InstanceChannels returns the channel specs of the transform, bases and indirect streams.
	InstanceChannels() []gpu.ChannelSpec

	// Channel returns the element count and raw bytes of a slot.
	Channel(slot int) (int, []byte, bool)
}

type entry struct {
	src      Source
	capacity int
	// listIndex is the position of the source in each category list, -1 when absent.
	listIndex [categoryCount]int
	hasRecord bool
}

// consolidator is the implementation of the Consolidator interface.
type consolidator struct {
	mu     *sync.RWMutex
	logger *zap.Logger
	filter PassFilter
	label  string

	entries []entry
	lists   [categoryCount][]gpu.DrawParams
	inited  bool
	skinned bool

	vertexCount int
	indexCount  int
	capacity    int
	meshCount   int
	live        int

	positions   []float32
	normals     []float32
	tangents    []float32
	texcoords   []float32
	materialIDs []float32
	colors      []uint8
	indices     []uint32
	boneIDs     []uint8
	weights     []float32
	transforms  []float32
	bases       []uint32
	records     []byte
	lastTarget  []float32
}

var _ Consolidator = &consolidator{}

// NewConsolidator creates an empty consolidator.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Consolidator: the consolidator
func NewConsolidator(options ...ConsolidatorBuilderOption) Consolidator {
	c := &consolidator{
		mu:     &sync.RWMutex{},
		logger: zap.NewNop(),
		filter: PassAll,
		label:  "multi instance",
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *consolidator) Add(src Source) error {
	if src == nil || src.Mesh() == nil {
		return fmt.Errorf("add source: nil mesh")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inited {
		return fmt.Errorf("add source %s: %w", src.Mesh().Name(), ErrAlreadyInitialized)
	}
	c.entries = append(c.entries, entry{src: src})
	return nil
}

// record builds the draw record for one face range of a source whose geometry starts at the given offsets.
func record(baseVertex, indexOffset int, r mesh.FaceRange) gpu.DrawParams {
	return gpu.DrawParams{
		BaseVertex: int32(baseVertex),
		IndexCount: uint32(r.Count),
		FirstIndex: uint32(indexOffset + r.Start),
	}
}

func (c *consolidator) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inited {
		return fmt.Errorf("init %s: %w", c.label, ErrAlreadyInitialized)
	}

	for i := range c.entries {
		if c.entries[i].src.Mesh().Skinned() {
			c.skinned = true
		}
	}

	vertexOffset, indexOffset := 0, 0
	for i := range c.entries {
		e := &c.entries[i]
		m := e.src.Mesh()
		e.capacity = common.Clamp(e.src.Capacity(), 0, instance.MaxInstancesPerMesh)
		for k := range e.listIndex {
			e.listIndex[k] = -1
		}

		add := func(cat Category, r mesh.FaceRange) {
			if !c.filter.allows(cat) {
				return
			}
			e.listIndex[cat] = len(c.lists[cat])
			c.lists[cat] = append(c.lists[cat], record(vertexOffset, indexOffset, r))
			e.hasRecord = true
		}

		normal, single := m.NormalFaces(), m.SingleFaces()
		switch {
		case m.Skinned():
			switch {
			case len(normal) > 0:
				add(CategoryAnimated, normal[0])
			case len(single) > 0:
				add(CategoryAnimated, single[0])
			}
		case m.Billboard():
			add(CategoryBillboard, mesh.FaceRange{Start: 0, Count: m.IndexCount()})
		default:
			if len(normal) > 0 {
				add(CategoryNormal, normal[0])
			}
			if len(single) > 0 {
				add(CategorySingle, single[0])
			}
		}
		if !e.hasRecord {
			c.logger.Debug("source has no category, geometry kept without draw record",
				zap.String("consolidator", c.label), zap.String("mesh", m.Name()))
		}

		vertexOffset += m.VertexCount()
		indexOffset += m.IndexCount()
		c.capacity += e.capacity
	}
	c.vertexCount = vertexOffset
	c.indexCount = indexOffset

	for _, l := range c.lists {
		c.meshCount = max(c.meshCount, len(l))
	}

	c.allocate()
	for _, e := range c.entries {
		c.copySource(e.src.Mesh())
	}
	c.bases = make([]uint32, c.meshCount*BasesComponents)
	c.records = make([]byte, 0, c.recordCount()*gpu.DrawParamsSize)
	c.packRecords()
	c.inited = true

	c.logger.Debug("consolidated instance sources",
		zap.String("consolidator", c.label),
		zap.Int("sources", len(c.entries)),
		zap.Int("vertices", c.vertexCount),
		zap.Int("indices", c.indexCount),
		zap.Int("transform_capacity", c.capacity),
		zap.Int("normal", len(c.lists[CategoryNormal])),
		zap.Int("single", len(c.lists[CategorySingle])),
		zap.Int("billboard", len(c.lists[CategoryBillboard])),
		zap.Int("animated", len(c.lists[CategoryAnimated])))
	return nil
}

func (c *consolidator) allocate() {
	v, n := c.vertexCount, c.indexCount
	c.positions = make([]float32, 0, v*mesh.PositionComponents)
	c.normals = make([]float32, 0, v*mesh.NormalComponents)
	c.tangents = make([]float32, 0, v*mesh.TangentComponents)
	c.texcoords = make([]float32, 0, v*mesh.TexcoordComponents)
	c.materialIDs = make([]float32, 0, v*mesh.MaterialComponents)
	c.colors = make([]uint8, 0, v*ColorComponents)
	c.indices = make([]uint32, 0, n)
	if c.skinned {
		c.boneIDs = make([]uint8, 0, v*mesh.BoneComponents)
		c.weights = make([]float32, 0, v*mesh.WeightComponents)
	}
	c.transforms = make([]float32, c.capacity*instance.TransformFloats)
}

func (c *consolidator) copySource(m mesh.Mesh) {
	vc := m.VertexCount()
	c.positions = append(c.positions, m.Positions()...)
	c.normals = append(c.normals, m.Normals()...)
	c.tangents = append(c.tangents, m.Tangents()...)
	c.texcoords = append(c.texcoords, m.Texcoords()...)
	c.materialIDs = append(c.materialIDs, m.MaterialIDs()...)
	colors := m.Colors()
	for v := 0; v < vc; v++ {
		rgb := colors[v*mesh.ColorComponents:]
		c.colors = append(c.colors, rgb[0], rgb[1], rgb[2], 255)
	}
	// Indices stay mesh-local; records carry the base vertex.
	c.indices = append(c.indices, m.Indices()...)
	if c.skinned {
		if m.Skinned() {
			c.boneIDs = append(c.boneIDs, m.BoneIDs()...)
			c.weights = append(c.weights, m.Weights()...)
		} else {
			c.boneIDs = append(c.boneIDs, make([]uint8, vc*mesh.BoneComponents)...)
			c.weights = append(c.weights, make([]float32, vc*mesh.WeightComponents)...)
		}
	}
}

func (c *consolidator) recordCount() int {
	n := 0
	for _, l := range c.lists {
		n += len(l)
	}
	return n
}

func (c *consolidator) packRecords() {
	c.records = c.records[:0]
	var buf [gpu.DrawParamsSize]byte
	for _, l := range c.lists {
		for i := range l {
			l[i].MarshalTo(buf[:])
			c.records = append(c.records, buf[:]...)
		}
	}
}

func (c *consolidator) Inited() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inited
}

func (c *consolidator) UpdateTransform(target []float32) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inited {
		return 0, fmt.Errorf("update transform %s: %w", c.label, ErrNotInitialized)
	}
	if target == nil {
		target = c.transforms
	}

	clear(c.bases)
	total := 0
	for _, e := range c.entries {
		if !e.hasRecord {
			continue
		}
		n := min(e.src.Live(), e.capacity)
		if n > 0 {
			end := (total + n) * instance.TransformFloats
			if end > len(target) {
				return 0, fmt.Errorf("update transform %s: need %d floats, have %d: %w", c.label, end, len(target), ErrTargetTooSmall)
			}
			copy(target[total*instance.TransformFloats:end], e.src.Transforms()[:n*instance.TransformFloats])
		}
		for cat, idx := range e.listIndex {
			if idx < 0 {
				continue
			}
			c.bases[idx*BasesComponents+cat] = uint32(total)
			c.lists[cat][idx].InstanceCount = uint32(n)
		}
		total += n
	}
	c.live = total
	c.lastTarget = target
	c.packRecords()
	return total, nil
}

func (c *consolidator) List(cat Category) []gpu.DrawParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cat < 0 || cat >= categoryCount {
		return nil
	}
	return append([]gpu.DrawParams(nil), c.lists[cat]...)
}

func (c *consolidator) Records() []gpu.DrawParams {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gpu.DrawParams, 0, c.recordCount())
	for _, l := range c.lists {
		out = append(out, l...)
	}
	return out
}

func (c *consolidator) ListOffset(cat Category) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for k := Category(0); k < cat && k < categoryCount; k++ {
		n += len(c.lists[k])
	}
	return n
}

func (c *consolidator) Sources() []Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Source, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.src
	}
	return out
}

func (c *consolidator) VertexCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vertexCount
}

func (c *consolidator) IndexCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexCount
}

func (c *consolidator) TransformCapacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity
}

func (c *consolidator) MeshCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meshCount
}

func (c *consolidator) Skinned() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skinned
}

func (c *consolidator) LiveInstances() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live
}

func (c *consolidator) Positions() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.positions
}

func (c *consolidator) Normals() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.normals
}

func (c *consolidator) Tangents() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tangents
}

func (c *consolidator) Texcoords() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.texcoords
}

func (c *consolidator) MaterialIDs() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.materialIDs
}

func (c *consolidator) Colors() []uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.colors
}

func (c *consolidator) Indices() []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indices
}

func (c *consolidator) BoneIDs() []uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.boneIDs
}

func (c *consolidator) Weights() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.weights
}

func (c *consolidator) Transforms() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transforms
}

func (c *consolidator) Bases() []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]uint32(nil), c.bases...)
}

func (c *consolidator) GeometryChannels() []gpu.ChannelSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.vertexCount
	specs := []gpu.ChannelSpec{
		{Slot: gpu.SlotPosition, Name: "position", Format: gpu.FormatFloat32, Components: mesh.PositionComponents, Capacity: v},
		{Slot: gpu.SlotNormal, Name: "normal", Format: gpu.FormatFloat32, Components: mesh.NormalComponents, Capacity: v},
		{Slot: gpu.SlotTexcoord, Name: "texcoord", Format: gpu.FormatFloat32, Components: mesh.TexcoordComponents, Capacity: v},
		{Slot: gpu.SlotMaterial, Name: "material", Format: gpu.FormatFloat32, Components: mesh.MaterialComponents, Capacity: v},
		{Slot: gpu.SlotColor, Name: "color", Format: gpu.FormatUint8, Components: ColorComponents, Capacity: v},
		{Slot: gpu.SlotTangent, Name: "tangent", Format: gpu.FormatFloat32, Components: mesh.TangentComponents, Capacity: v},
		{Slot: gpu.SlotIndex, Name: "index", Format: gpu.FormatUint32, Components: 1, Capacity: c.indexCount},
	}
	if c.skinned {
		specs = append(specs,
			gpu.ChannelSpec{Slot: gpu.SlotBoneID, Name: "bone id", Format: gpu.FormatUint8, Components: mesh.BoneComponents, Capacity: v},
			gpu.ChannelSpec{Slot: gpu.SlotWeight, Name: "weight", Format: gpu.FormatFloat32, Components: mesh.WeightComponents, Capacity: v},
		)
	}
	return specs
}

func (c *consolidator) InstanceChannels() []gpu.ChannelSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []gpu.ChannelSpec{
		{Slot: gpu.SlotTransform, Name: "transform", Format: gpu.FormatFloat32, Components: instance.TransformFloats, Capacity: c.capacity},
		{Slot: gpu.SlotBases, Name: "bases", Format: gpu.FormatUint32, Components: BasesComponents, Capacity: c.meshCount},
		{Slot: gpu.SlotIndirect, Name: "indirect", Format: gpu.FormatUint32, Components: gpu.DrawParamsSize / 4, Capacity: c.recordCount()},
	}
}

func (c *consolidator) Channel(slot int) (int, []byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.vertexCount
	switch slot {
	case gpu.SlotPosition:
		return v, common.SliceToBytes(c.positions), true
	case gpu.SlotNormal:
		return v, common.SliceToBytes(c.normals), true
	case gpu.SlotTexcoord:
		return v, common.SliceToBytes(c.texcoords), true
	case gpu.SlotMaterial:
		return v, common.SliceToBytes(c.materialIDs), true
	case gpu.SlotColor:
		return v, c.colors, true
	case gpu.SlotTangent:
		return v, common.SliceToBytes(c.tangents), true
	case gpu.SlotIndex:
		return c.indexCount, common.SliceToBytes(c.indices), true
	case gpu.SlotBoneID:
		if c.skinned {
			return v, c.boneIDs, true
		}
	case gpu.SlotWeight:
		if c.skinned {
			return v, common.SliceToBytes(c.weights), true
		}
	case gpu.SlotTransform:
		target := c.lastTarget
		if target == nil {
			target = c.transforms
		}
		return c.live, common.SliceToBytes(target[:c.live*instance.TransformFloats]), true
	case gpu.SlotBases:
		return c.meshCount, common.SliceToBytes(c.bases), true
	case gpu.SlotIndirect:
		return c.recordCount(), c.records, true
	}
	return 0, nil, false
}
