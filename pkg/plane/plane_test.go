package plane

import (
	"math"
	"testing"

	"github.com/fractalforge/coordplane/pkg/core"
	"github.com/fractalforge/coordplane/pkg/formula"
)

// testParams spans [-2.5,1.5]x[-1.5,1.5] on a 4x4 grid centered at (-0.5,0),
// the scenario grid from the escape-time contract.
func testParams() Params {
	return Params{
		Width:         4,
		Height:        4,
		Center:        complex(-0.5, 0),
		ResolutionX:   1.0,
		ResolutionY:   0.75,
		FunctionIndex: formula.MandelbrotIndex,
		Threads:       1,
		Logger:        core.NopLogger{},
	}
}

func checkAccounting(t *testing.T, p *Plane) {
	t.Helper()
	total := p.WinWidth() * p.WinHeight()
	if got := p.EscapedCount() + p.NotEscapedCount() + p.TrappedCount(); got != total {
		t.Fatalf("escaped(%d) + notEscaped(%d) + trapped(%d) = %d, want %d",
			p.EscapedCount(), p.NotEscapedCount(), p.TrappedCount(), got, total)
	}
}

func TestNew_Accounting(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	checkAccounting(t, p)
	if p.IterationCount() != 0 {
		t.Errorf("IterationCount() = %d, want 0", p.IterationCount())
	}
	if p.EscapedCount() != 0 {
		t.Errorf("EscapedCount() = %d, want 0 before any iteration", p.EscapedCount())
	}
}

func TestViewport(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	if got := p.XMin(); got != -2.5 {
		t.Errorf("XMin() = %v, want -2.5", got)
	}
	if got := p.XMax(); got != 1.5 {
		t.Errorf("XMax() = %v, want 1.5", got)
	}
	if got := p.YMin(); got != -1.5 {
		t.Errorf("YMin() = %v, want -1.5", got)
	}
	if got := p.YMax(); got != 1.5 {
		t.Errorf("YMax() = %v, want 1.5", got)
	}
}

func TestScenario_CornerEscapesCenterTrapped(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	// (-0.5, 0) lies in the main cardioid: trapped before any iteration.
	if !p.Trapped(2, 2) {
		t.Error("point nearest (-0.5,0) should be trapped before iterating")
	}
	if p.TrappedCount() == 0 {
		t.Error("TrappedCount() = 0, want > 0")
	}

	p.Iterate(1)
	checkAccounting(t, p)

	// pixel (0,3) maps to (-2.5,-0.75), outside the |c|=2 bounding disk.
	if got := p.Escaped(0, 3); got != 1 {
		t.Errorf("corner Escaped(0,3) = %d, want 1", got)
	}
	if got := p.Escaped(2, 2); got != 0 {
		t.Errorf("trapped center Escaped(2,2) = %d, want 0", got)
	}
}

func TestReset_NonPositiveResolutionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive resolution")
		}
	}()
	params := testParams()
	params.ResolutionX = 0
	New(params)
}

func TestReset_BadFunctionIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range function index")
		}
	}()
	params := testParams()
	params.FunctionIndex = 99
	New(params)
}

func TestNextFunction_RoundTripsCenterAndSeed(t *testing.T) {
	params := testParams()
	params.Seed = complex(0.25, -0.1)
	p := New(params)
	defer p.Close()

	origCenter, origSeed := p.Center(), p.Seed()

	p.NextFunction()
	if p.FunctionName() != "julia" {
		t.Fatalf("FunctionName() = %q, want julia", p.FunctionName())
	}
	// Julia's parameter is the point Mandelbrot was centered on.
	if p.Seed() != origCenter || p.Center() != origSeed {
		t.Errorf("after switch: center=%v seed=%v, want center=%v seed=%v",
			p.Center(), p.Seed(), origSeed, origCenter)
	}

	p.NextFunction()
	if p.FunctionName() != "mandelbrot" {
		t.Fatalf("FunctionName() = %q, want mandelbrot", p.FunctionName())
	}
	if p.Center() != origCenter || p.Seed() != origSeed {
		t.Errorf("double switch did not restore view: center=%v seed=%v", p.Center(), p.Seed())
	}
}

func TestNextFunction_ResetsIterationState(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	p.Iterate(10)
	p.NextFunction()

	if p.IterationCount() != 0 {
		t.Errorf("IterationCount() = %d after function switch, want 0", p.IterationCount())
	}
	checkAccounting(t, p)
}

func TestZoom_AdjustsResolution(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	p.ZoomIn()
	if math.Abs(p.ResolutionX()-0.8) > 1e-12 || math.Abs(p.ResolutionY()-0.6) > 1e-12 {
		t.Errorf("after ZoomIn: res = (%v, %v), want (0.8, 0.6)", p.ResolutionX(), p.ResolutionY())
	}

	p.ZoomOut()
	if math.Abs(p.ResolutionX()-1.0) > 1e-12 || math.Abs(p.ResolutionY()-0.75) > 1e-12 {
		t.Errorf("after ZoomOut: res = (%v, %v), want (1.0, 0.75)", p.ResolutionX(), p.ResolutionY())
	}
	checkAccounting(t, p)
}

func TestPan_ShiftsCenterByEighthOfSpan(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	p.PanRight()
	if got := real(p.Center()); math.Abs(got-0.0) > 1e-12 {
		t.Errorf("center.x after PanRight = %v, want 0", got)
	}
	p.PanLeft()
	if got := real(p.Center()); math.Abs(got-(-0.5)) > 1e-12 {
		t.Errorf("center.x after PanLeft = %v, want -0.5", got)
	}
	p.PanUp()
	if got := imag(p.Center()); math.Abs(got-0.375) > 1e-12 {
		t.Errorf("center.y after PanUp = %v, want 0.375", got)
	}
	p.PanDown()
	if got := imag(p.Center()); math.Abs(got-0.0) > 1e-12 {
		t.Errorf("center.y after PanDown = %v, want 0", got)
	}
	checkAccounting(t, p)
}

func TestRecenter(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	want := p.points[1*p.WinWidth()+1].C
	p.Recenter(1, 1)
	if p.Center() != want {
		t.Errorf("Center() = %v, want %v", p.Center(), want)
	}
	checkAccounting(t, p)
}

func TestRecenter_OutOfRangePanics(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range recenter pixel")
		}
	}()
	p.Recenter(4, 0)
}

func TestResize(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	// Preserve the x-span with square pixels.
	p.Resize(8, 8, true)
	if p.WinWidth() != 8 || p.WinHeight() != 8 {
		t.Fatalf("dimensions = %dx%d, want 8x8", p.WinWidth(), p.WinHeight())
	}
	if math.Abs(p.ResolutionX()-0.5) > 1e-12 {
		t.Errorf("ResolutionX() = %v, want 0.5", p.ResolutionX())
	}
	if p.ResolutionY() != p.ResolutionX() {
		t.Errorf("preserveRatio: ResolutionY() = %v, want %v", p.ResolutionY(), p.ResolutionX())
	}
	checkAccounting(t, p)

	// Shrinking reuses the existing allocation.
	before := cap(p.points)
	p.Resize(4, 4, false)
	if cap(p.points) != before {
		t.Errorf("shrink reallocated points: cap %d -> %d", before, cap(p.points))
	}
	checkAccounting(t, p)
}

func TestThreadsMoreLess(t *testing.T) {
	p := New(testParams())
	defer p.Close()

	if p.NumThreads() != 1 {
		t.Fatalf("NumThreads() = %d, want 1", p.NumThreads())
	}
	p.ThreadsMore()
	p.ThreadsMore()
	if p.NumThreads() != 3 {
		t.Errorf("NumThreads() = %d, want 3", p.NumThreads())
	}
	p.ThreadsLess()
	p.ThreadsLess()
	p.ThreadsLess() // clamped at 1
	if p.NumThreads() != 1 {
		t.Errorf("NumThreads() = %d, want 1", p.NumThreads())
	}
}

func TestNearZeroCoordinateSnapping(t *testing.T) {
	// A 5x5 grid centered on the origin puts the middle row and column
	// exactly at zero; the snap also catches accumulated float error.
	p := New(Params{
		Width:         5,
		Height:        5,
		Center:        complex(0, 0),
		ResolutionX:   0.1,
		ResolutionY:   0.1,
		FunctionIndex: formula.MandelbrotIndex,
		Threads:       1,
		Logger:        core.NopLogger{},
	})
	defer p.Close()

	c := p.points[2*5+2].C
	if real(c) != 0 || imag(c) != 0 {
		t.Errorf("center point C = %v, want exactly (0,0)", c)
	}
}
