package formula

// Indexes of the always-available formulas. Mandelbrot and Julia sit at
// fixed positions because switching between them swaps center and seed.
const (
	MandelbrotIndex = 0
	JuliaIndex      = 1
)

// Registry is an immutable, index-addressed set of formulas.
type Registry struct {
	formulas []Formula
}

// Default returns the registry with the two always-available formulas.
func Default() *Registry {
	return &Registry{formulas: []Formula{Mandelbrot{}, Julia{}}}
}

// AllFunctions returns the registry including the experimental formulas.
func AllFunctions() *Registry {
	return &Registry{formulas: []Formula{
		Mandelbrot{},
		Julia{},
		ordinarySquare{},
		notACircle{},
		binomialCollapseY2{},
		binomialIgnoreY2{},
	}}
}

// Len returns the number of registered formulas.
func (r *Registry) Len() int {
	return len(r.formulas)
}

// ByIndex returns the formula at idx. Panics on an out-of-range index; the
// plane guards indexes at reset time.
func (r *Registry) ByIndex(idx int) Formula {
	return r.formulas[idx]
}

// Next returns the index after idx, wrapping to zero.
func (r *Registry) Next(idx int) int {
	idx++
	if idx >= len(r.formulas) {
		return 0
	}
	return idx
}
