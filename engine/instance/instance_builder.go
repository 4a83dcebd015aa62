package instance

// AccumulatorBuilderOption is a functional option for configuring an Accumulator.
type AccumulatorBuilderOption func(*accumulator)

// WithReserve sets the expected instance count and preallocates transform storage for it.
//
// Parameters:
//   - n: expected instances, clamped to [0, MaxInstancesPerMesh]
//
// Returns:
//   - AccumulatorBuilderOption: a function that applies the reserve option
func WithReserve(n int) AccumulatorBuilderOption {
	return func(a *accumulator) {
		a.reserved = clampInstances(n)
		a.transforms = make([]float32, 0, a.reserved*TransformFloats)
	}
}
