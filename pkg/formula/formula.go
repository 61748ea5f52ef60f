// Package formula defines the escape-time iteration strategies and the
// registry the plane selects them from. Formulas are pure: all state lives
// in the caller's point.
package formula

// Formula is one escape-time iteration strategy.
type Formula interface {
	// Name identifies the formula in logs and status output.
	Name() string

	// Init returns the initial iterate z0 for plane coordinate c.
	Init(c, seed complex128) complex128

	// Escaped reports whether z has crossed the escape radius.
	Escaped(z complex128) bool

	// Step produces the next iterate from the current one.
	Step(z, c, seed complex128) complex128

	// Trapped reports whether c is analytically proven to never escape,
	// so iteration can be skipped entirely. Most formulas have no such
	// test and return false.
	Trapped(c, seed complex128) bool
}

// radiusSquared avoids the hypot call in cmplx.Abs; the iterate loop is the
// hot path.
func radiusSquared(z complex128) float64 {
	x, y := real(z), imag(z)
	return x*x + y*y
}

// escapeRadiusSquared is shared by every built-in: |z| > 2 escapes.
const escapeRadiusSquared = 4.0

// Mandelbrot iterates z[n+1] = z[n]^2 + c from z0 = 0.
type Mandelbrot struct{}

func (Mandelbrot) Name() string                     { return "mandelbrot" }
func (Mandelbrot) Init(c, seed complex128) complex128 { return 0 }
func (Mandelbrot) Escaped(z complex128) bool        { return radiusSquared(z) > escapeRadiusSquared }

func (Mandelbrot) Step(z, c, seed complex128) complex128 {
	return z*z + c
}

// Trapped tests membership in the main cardioid and the period-2 bulb,
// the two regions with a cheap closed-form interior test.
func (Mandelbrot) Trapped(c, seed complex128) bool {
	x, y := real(c), imag(c)

	// main cardioid: q*(q + x - 1/4) < y^2/4, q = (x - 1/4)^2 + y^2
	xq := x - 0.25
	q := xq*xq + y*y
	if q*(q+xq) < 0.25*y*y {
		return true
	}

	// period-2 bulb: disk of radius 1/4 around -1
	x1 := x + 1
	return x1*x1+y*y < 0.0625
}

// Julia iterates z[n+1] = z[n]^2 + seed from z0 = c.
type Julia struct{}

func (Julia) Name() string                       { return "julia" }
func (Julia) Init(c, seed complex128) complex128 { return c }
func (Julia) Escaped(z complex128) bool          { return radiusSquared(z) > escapeRadiusSquared }

func (Julia) Step(z, c, seed complex128) complex128 {
	return z*z + seed
}

func (Julia) Trapped(c, seed complex128) bool { return false }

// ordinarySquare squares the components independently. Not a complex
// square; kept because the shapes it makes are fun to explore.
type ordinarySquare struct{}

func (ordinarySquare) Name() string                       { return "ordinary_square" }
func (ordinarySquare) Init(c, seed complex128) complex128 { return c }
func (ordinarySquare) Escaped(z complex128) bool          { return radiusSquared(z) > escapeRadiusSquared }
func (ordinarySquare) Trapped(c, seed complex128) bool    { return false }

func (ordinarySquare) Step(z, c, seed complex128) complex128 {
	x, y := real(z), imag(z)
	return complex(x*x, y*y)
}

// notACircle feeds the freshly computed imaginary part back into the real
// part within a single step.
type notACircle struct{}

func (notACircle) Name() string                       { return "not_a_circle" }
func (notACircle) Init(c, seed complex128) complex128 { return c }
func (notACircle) Escaped(z complex128) bool          { return radiusSquared(z) > escapeRadiusSquared }
func (notACircle) Trapped(c, seed complex128) bool    { return false }

func (notACircle) Step(z, c, seed complex128) complex128 {
	x, y := real(z), imag(z)
	ny := y*y + 0.5*x
	nx := x*x + 0.5*ny
	return complex(nx, ny)
}

// binomialCollapseY2 squares the binomial (x + y) but folds the y^2 term
// into the imaginary part before adding c.
type binomialCollapseY2 struct{}

func (binomialCollapseY2) Name() string                       { return "square_binomial_collapse_y2" }
func (binomialCollapseY2) Init(c, seed complex128) complex128 { return 0 }
func (binomialCollapseY2) Escaped(z complex128) bool {
	return radiusSquared(z) > escapeRadiusSquared
}
func (binomialCollapseY2) Trapped(c, seed complex128) bool { return false }

func (binomialCollapseY2) Step(z, c, seed complex128) complex128 {
	x, y := real(z), imag(z)
	return complex(x*x+real(c), y*x+x*y+y*y+imag(c))
}

// binomialIgnoreY2 squares the binomial but drops the y^2 term entirely.
type binomialIgnoreY2 struct{}

func (binomialIgnoreY2) Name() string                       { return "square_binomial_ignore_y2" }
func (binomialIgnoreY2) Init(c, seed complex128) complex128 { return 0 }
func (binomialIgnoreY2) Escaped(z complex128) bool          { return radiusSquared(z) > escapeRadiusSquared }
func (binomialIgnoreY2) Trapped(c, seed complex128) bool    { return false }

func (binomialIgnoreY2) Step(z, c, seed complex128) complex128 {
	x, y := real(z), imag(z)
	return complex(x*x+real(c), x*y+y*x+imag(c))
}
