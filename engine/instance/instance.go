// Package instance accumulates per-mesh instance transforms for instanced drawing.
package instance

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
)

// MaxInstancesPerMesh caps the transforms one mesh can draw per frame. Instances past the cap are dropped.
const MaxInstancesPerMesh = 4096

// TransformFloats is the size of one instance transform, a column-major 4x4 matrix.
const TransformFloats = 16

// Accumulator collects the world transforms of every visible instance of one mesh during classification.
type Accumulator interface {
	// Mesh returns the mesh this accumulator is keyed by.
	Mesh() mesh.Mesh

	// Add appends one instance transform.
	//
	// Parameters:
	//   - transform: the instance world transform
	//
	// Returns:
	//   - bool: false if the accumulator is at MaxInstancesPerMesh and the instance was dropped
	Add(transform [16]float32) bool

	// Count returns the number of instances added since the last Reset.
	Count() int

	// Dropped returns the number of instances dropped at the cap since the last Reset.
	Dropped() int

	// Transforms returns Count() * TransformFloats values, valid until the next Add or Reset.
	Transforms() []float32

	// Reset sets the count to zero and keeps the storage.
	Reset()

	// Reserve records an expected instance count used to size the instance source.
	//
	// Parameters:
	//   - n: expected instances, clamped to [0, MaxInstancesPerMesh]
	Reserve(n int)

	// Reserved returns the last reserved count.
	Reserved() int

	// Source returns the instance source for consolidation, creating it on first use.
	// Its capacity is fixed at creation to min(max(Count, Reserved), MaxInstancesPerMesh).
	Source() *Source

	// ReleaseSource drops the instance source so the next Source call sizes a new one.
	ReleaseSource()
}

// accumulator is the implementation of the Accumulator interface.
type accumulator struct {
	mu         *sync.Mutex
	mesh       mesh.Mesh
	transforms []float32
	count      int
	dropped    int
	reserved   int
	source     *Source
}

var _ Accumulator = &accumulator{}

// NewAccumulator creates an empty accumulator for a mesh.
//
// Parameters:
//   - m: the mesh, must not be nil
//   - options: functional options
//
// Returns:
//   - Accumulator: the accumulator
func NewAccumulator(m mesh.Mesh, options ...AccumulatorBuilderOption) Accumulator {
	if m == nil {
		panic("instance: NewAccumulator requires a mesh")
	}
	a := &accumulator{
		mu:   &sync.Mutex{},
		mesh: m,
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

func (a *accumulator) Mesh() mesh.Mesh {
	return a.mesh
}

func (a *accumulator) Add(transform [16]float32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count >= MaxInstancesPerMesh {
		a.dropped++
		return false
	}
	end := (a.count + 1) * TransformFloats
	if end > len(a.transforms) {
		a.transforms = append(a.transforms, transform[:]...)
	} else {
		copy(a.transforms[a.count*TransformFloats:end], transform[:])
	}
	a.count++
	return true
}

func (a *accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *accumulator) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

func (a *accumulator) Transforms() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transforms[:a.count*TransformFloats]
}

func (a *accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.dropped = 0
}

func clampInstances(n int) int {
	return max(0, min(n, MaxInstancesPerMesh))
}

func (a *accumulator) Reserve(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reserved = clampInstances(n)
	if need := a.reserved * TransformFloats; cap(a.transforms) < need {
		grown := make([]float32, len(a.transforms), need)
		copy(grown, a.transforms)
		a.transforms = grown
	}
}

func (a *accumulator) Reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved
}

func (a *accumulator) Source() *Source {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		a.source = &Source{
			acc:      a,
			capacity: clampInstances(max(a.count, a.reserved)),
		}
	}
	return a.source
}

func (a *accumulator) ReleaseSource() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = nil
}

// Source is the consolidation view of an Accumulator: its mesh, a fixed transform capacity and the live transforms.
type Source struct {
	acc      *accumulator
	capacity int
}

// Mesh returns the source mesh.
func (s *Source) Mesh() mesh.Mesh {
	return s.acc.mesh
}

// Capacity returns the number of transform slots reserved for this source.
func (s *Source) Capacity() int {
	return s.capacity
}

// Live returns the accumulator's current instance count.
func (s *Source) Live() int {
	return s.acc.Count()
}

// Transforms returns the accumulator's current transforms.
func (s *Source) Transforms() []float32 {
	return s.acc.Transforms()
}
