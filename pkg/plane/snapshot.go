package plane

// Snapshot is an immutable copy of the plane's observable state, taken by
// the driving goroutine and safe to hand to other goroutines (inspector,
// metrics, progress feeds).
type Snapshot struct {
	ID             string  `json:"id"`
	Function       string  `json:"function"`
	FunctionIndex  int     `json:"function_index"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	CenterX        float64 `json:"center_x"`
	CenterY        float64 `json:"center_y"`
	SeedX          float64 `json:"seed_x"`
	SeedY          float64 `json:"seed_y"`
	ResolutionX    float64 `json:"resolution_x"`
	ResolutionY    float64 `json:"resolution_y"`
	XMin           float64 `json:"x_min"`
	XMax           float64 `json:"x_max"`
	YMin           float64 `json:"y_min"`
	YMax           float64 `json:"y_max"`
	IterationCount uint64  `json:"iteration_count"`
	Escaped        int     `json:"escaped"`
	NotEscaped     int     `json:"not_escaped"`
	Trapped        int     `json:"trapped"`
	Unchanged      int     `json:"unchanged"`
	Threads        int     `json:"threads"`
}

// Snapshot captures the current observable state.
func (p *Plane) Snapshot() Snapshot {
	return Snapshot{
		ID:             p.id.String(),
		Function:       p.FunctionName(),
		FunctionIndex:  p.funcIdx,
		Width:          p.winWidth,
		Height:         p.winHeight,
		CenterX:        real(p.center),
		CenterY:        imag(p.center),
		SeedX:          real(p.seed),
		SeedY:          imag(p.seed),
		ResolutionX:    p.resX,
		ResolutionY:    p.resY,
		XMin:           p.XMin(),
		XMax:           p.XMax(),
		YMin:           p.YMin(),
		YMax:           p.YMax(),
		IterationCount: p.iterationCount,
		Escaped:        p.escaped,
		NotEscaped:     len(p.notEscaped),
		Trapped:        p.trapped,
		Unchanged:      p.unchanged,
		Threads:        p.desiredThreads,
	}
}
