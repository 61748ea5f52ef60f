// Package plane owns the grid of escape-time iteration points, the
// compacted working set of points still in play, and the viewport that maps
// pixels onto the complex plane. All view mutations funnel through one
// reset path; Iterate advances the working set, in parallel when a thread
// pool is wanted.
//
// A Plane is driven by a single goroutine. Concurrency happens inside
// Iterate, never across calls; readers on other goroutines consume
// Snapshot values taken by the driving goroutine.
package plane

import (
	"github.com/google/uuid"

	"github.com/fractalforge/coordplane/pkg/core"
	"github.com/fractalforge/coordplane/pkg/core/failfast"
	"github.com/fractalforge/coordplane/pkg/formula"
	"github.com/fractalforge/coordplane/pkg/pool"
)

// Point is one grid cell. C is the fixed plane coordinate, Z the mutable
// iterate. Escaped is 0 while iterating, otherwise the 1-based global
// iteration at which the escape radius was crossed. Trapped points are
// proven never-escaping without iterating and are skipped entirely.
type Point struct {
	C       complex128
	Z       complex128
	Escaped uint64
	Trapped bool
}

// Params is the fully rationalized configuration a Plane is built from.
// The plane never parses text or reads the environment itself.
type Params struct {
	Width, Height int
	Center        complex128
	ResolutionX   float64
	ResolutionY   float64
	FunctionIndex int
	Seed          complex128
	HaltAfter     uint64 // total iteration budget, 0 = unlimited
	SkipRounds    int
	Threads       int
	Registry      *formula.Registry // nil means formula.Default()
	Logger        core.Logger       // nil means core.NewDefaultLogger()
}

// Plane is the coordinate plane and its iteration state.
type Plane struct {
	id uuid.UUID

	winWidth  int
	winHeight int
	center    complex128
	resX      float64
	resY      float64

	funcIdx  int
	seed     complex128
	registry *formula.Registry

	haltAfter  uint64
	skipRounds int

	iterationCount uint64
	escaped        int
	trapped        int
	unchanged      int

	desiredThreads int
	pool           *pool.Pool

	// points is the full row-major grid. notEscaped holds indices into
	// points for exactly the cells with Escaped == 0 and !Trapped.
	// scratch backs the per-partition survivor slices during Iterate.
	points     []Point
	notEscaped []int
	scratch    []int

	logger core.Logger
}

// New builds a plane and populates the grid. Invalid dimensions or
// resolutions are programmer/config errors and panic.
func New(params Params) *Plane {
	reg := params.Registry
	if reg == nil {
		reg = formula.Default()
	}
	logger := params.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	threads := params.Threads
	if threads < 1 {
		threads = 1
	}

	p := &Plane{
		id:             uuid.New(),
		registry:       reg,
		haltAfter:      params.HaltAfter,
		skipRounds:     params.SkipRounds,
		desiredThreads: threads,
		logger:         logger,
	}
	p.reset(params.Width, params.Height, params.Center,
		params.ResolutionX, params.ResolutionY,
		params.FunctionIndex, params.Seed)
	return p
}

// reset is the single code path that re-populates the grid. It reallocates
// only when the new grid needs more capacity than is already held, runs the
// formula's initializer and trap pre-test on every point, and rebuilds the
// compacted working set from scratch.
func (p *Plane) reset(width, height int, center complex128,
	resX, resY float64, funcIdx int, seed complex128) {

	failfast.If(width > 0 && height > 0, "invalid grid %dx%d", width, height)
	failfast.If(resX > 0 && resY > 0, "invalid resolution %g x %g", resX, resY)
	failfast.If(funcIdx >= 0 && funcIdx < p.registry.Len(),
		"function index %d out of range [0,%d)", funcIdx, p.registry.Len())

	p.winWidth = width
	p.winHeight = height
	p.center = center
	p.resX = resX
	p.resY = resY
	p.funcIdx = funcIdx
	p.seed = seed

	p.iterationCount = 0
	p.escaped = 0
	p.trapped = 0
	p.unchanged = 0

	needed := width * height
	if cap(p.points) < needed {
		p.points = make([]Point, needed)
		p.notEscaped = make([]int, 0, needed)
		p.scratch = make([]int, needed)
	}
	p.points = p.points[:needed]
	p.notEscaped = p.notEscaped[:0]
	p.scratch = p.scratch[:needed]

	f := p.registry.ByIndex(funcIdx)
	xMin := p.XMin()
	yMax := p.YMax()
	for py := 0; py < height; py++ {
		y := yMax - float64(py)*resY
		if absFloat(y) < resY/2 {
			// near enough to zero to call it zero
			y = 0
		}
		for px := 0; px < width; px++ {
			x := xMin + float64(px)*resX
			if absFloat(x) < resX/2 {
				x = 0
			}

			i := py*width + px
			pt := &p.points[i]
			pt.C = complex(x, y)
			pt.Z = f.Init(pt.C, seed)
			pt.Escaped = 0
			pt.Trapped = f.Trapped(pt.C, seed)
			if pt.Trapped {
				p.trapped++
			} else {
				p.notEscaped = append(p.notEscaped, i)
			}
		}
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Close stops and releases the owned thread pool, if any.
func (p *Plane) Close() {
	if p.pool != nil {
		p.pool.StopAndWait()
		p.pool = nil
	}
}

// Resize refits the viewport to a new pixel grid. The x-span of the view is
// preserved; with preserveRatio the pixels stay square, otherwise the old
// y-span is refit to the new height.
func (p *Plane) Resize(width, height int, preserveRatio bool) {
	xSpan := p.XMax() - p.XMin()
	ySpan := p.YMax() - p.YMin()

	newResX := xSpan / float64(width)
	newResY := newResX
	if !preserveRatio {
		newResY = ySpan / float64(height)
	}
	p.reset(width, height, p.center, newResX, newResY, p.funcIdx, p.seed)
}

// ZoomIn narrows the view to 80% resolution per pixel.
func (p *Plane) ZoomIn() {
	p.reset(p.winWidth, p.winHeight, p.center,
		p.resX*0.8, p.resY*0.8, p.funcIdx, p.seed)
}

// ZoomOut widens the view by 25% per pixel.
func (p *Plane) ZoomOut() {
	p.reset(p.winWidth, p.winHeight, p.center,
		p.resX*1.25, p.resY*1.25, p.funcIdx, p.seed)
}

func (p *Plane) panBy(dx, dy float64) {
	center := complex(real(p.center)+dx, imag(p.center)+dy)
	p.reset(p.winWidth, p.winHeight, center, p.resX, p.resY, p.funcIdx, p.seed)
}

// PanLeft shifts the view an eighth of the x-span.
func (p *Plane) PanLeft() { p.panBy(-(p.XMax()-p.XMin())/8, 0) }

// PanRight shifts the view an eighth of the x-span.
func (p *Plane) PanRight() { p.panBy((p.XMax()-p.XMin())/8, 0) }

// PanUp shifts the view an eighth of the y-span.
func (p *Plane) PanUp() { p.panBy(0, (p.YMax()-p.YMin())/8) }

// PanDown shifts the view an eighth of the y-span.
func (p *Plane) PanDown() { p.panBy(0, -(p.YMax()-p.YMin())/8) }

// Recenter moves the view center to the plane coordinate under pixel (x, y).
func (p *Plane) Recenter(x, y int) {
	failfast.If(x >= 0 && x < p.winWidth && y >= 0 && y < p.winHeight,
		"recenter pixel (%d,%d) outside %dx%d", x, y, p.winWidth, p.winHeight)

	c := p.points[y*p.winWidth+x].C
	p.reset(p.winWidth, p.winHeight, c, p.resX, p.resY, p.funcIdx, p.seed)
}

// NextFunction cycles to the next registered formula. Crossing into or out
// of Julia swaps center and seed, so switching twice restores the view:
// Julia's parameter is the point Mandelbrot was centered on, and vice versa.
func (p *Plane) NextFunction() {
	oldIdx := p.funcIdx
	newIdx := p.registry.Next(oldIdx)

	center := p.center
	seed := p.seed
	if newIdx == formula.JuliaIndex || oldIdx == formula.JuliaIndex {
		center, seed = seed, center
	}

	p.reset(p.winWidth, p.winHeight, center, p.resX, p.resY, newIdx, seed)
}

// ThreadsMore raises the desired worker count for subsequent Iterate calls.
func (p *Plane) ThreadsMore() {
	p.desiredThreads++
}

// ThreadsLess lowers the desired worker count, to a minimum of one. The
// pool itself is never shrunk; spare workers receive no partitions and
// stay parked on the queue.
func (p *Plane) ThreadsLess() {
	if p.desiredThreads > 1 {
		p.desiredThreads--
	}
}

// ID returns the plane's session identity, used in logs and status output.
func (p *Plane) ID() uuid.UUID { return p.id }

// WinWidth returns the grid width in pixels.
func (p *Plane) WinWidth() int { return p.winWidth }

// WinHeight returns the grid height in pixels.
func (p *Plane) WinHeight() int { return p.winHeight }

// Center returns the plane coordinate at the middle of the view.
func (p *Plane) Center() complex128 { return p.center }

// Seed returns the formula parameter used by Julia-style formulas.
func (p *Plane) Seed() complex128 { return p.seed }

// ResolutionX returns the plane distance between horizontally adjacent pixels.
func (p *Plane) ResolutionX() float64 { return p.resX }

// ResolutionY returns the plane distance between vertically adjacent pixels.
func (p *Plane) ResolutionY() float64 { return p.resY }

// XMin returns the left edge of the view.
func (p *Plane) XMin() float64 {
	return real(p.center) - p.resX*float64(p.winWidth/2)
}

// XMax returns the right edge of the view.
func (p *Plane) XMax() float64 {
	return real(p.center) + p.resX*float64(p.winWidth/2)
}

// YMin returns the bottom edge of the view.
func (p *Plane) YMin() float64 {
	return imag(p.center) - p.resY*float64(p.winHeight/2)
}

// YMax returns the top edge of the view.
func (p *Plane) YMax() float64 {
	return imag(p.center) + p.resY*float64(p.winHeight/2)
}

// FunctionIndex returns the active formula's registry index.
func (p *Plane) FunctionIndex() int { return p.funcIdx }

// FunctionName returns the active formula's name.
func (p *Plane) FunctionName() string {
	return p.registry.ByIndex(p.funcIdx).Name()
}

// Escaped returns the escape tick of the point at pixel (x, y); zero means
// the point has not escaped.
func (p *Plane) Escaped(x, y int) uint64 {
	return p.points[y*p.winWidth+x].Escaped
}

// Trapped reports whether the point at pixel (x, y) was proven
// never-escaping by the formula's analytic pre-test.
func (p *Plane) Trapped(x, y int) bool {
	return p.points[y*p.winWidth+x].Trapped
}

// IterationCount returns the total iterations applied since the last reset.
func (p *Plane) IterationCount() uint64 { return p.iterationCount }

// EscapedCount returns how many points have escaped.
func (p *Plane) EscapedCount() int { return p.escaped }

// NotEscapedCount returns how many points are still iterating.
func (p *Plane) NotEscapedCount() int { return len(p.notEscaped) }

// TrappedCount returns how many points the trap pre-test settled.
func (p *Plane) TrappedCount() int { return p.trapped }

// Unchanged returns how many consecutive Iterate calls made no progress.
// Callers use it to detect convergence.
func (p *Plane) Unchanged() int { return p.unchanged }

// NumThreads returns the desired worker count.
func (p *Plane) NumThreads() int { return p.desiredThreads }

// HaltAfter returns the total iteration budget, 0 meaning unlimited.
func (p *Plane) HaltAfter() uint64 { return p.haltAfter }

// SkipRounds returns how many reporting rounds the driver should skip.
func (p *Plane) SkipRounds() int { return p.skipRounds }
