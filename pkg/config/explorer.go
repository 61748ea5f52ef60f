package config

import (
	"fmt"
	"runtime"

	"github.com/fractalforge/coordplane/pkg/formula"
)

// View is the initial viewport.
type View struct {
	CenterX     float64 `yaml:"center_x" json:"center_x"`
	CenterY     float64 `yaml:"center_y" json:"center_y"`
	ResolutionX float64 `yaml:"resolution_x" json:"resolution_x"`
	ResolutionY float64 `yaml:"resolution_y" json:"resolution_y"`
	SeedX       float64 `yaml:"seed_x" json:"seed_x"`
	SeedY       float64 `yaml:"seed_y" json:"seed_y"`
}

// Inspector configures the diagnostic HTTP endpoints. Empty addresses
// disable the corresponding listener.
type Inspector struct {
	Addr   string `yaml:"addr" json:"addr"`       // fasthttp status/metrics listener
	WSAddr string `yaml:"ws_addr" json:"ws_addr"` // websocket progress feed listener
}

// Explorer is the fully rationalized configuration the engine is
// constructed from.
type Explorer struct {
	Width         int    `yaml:"width" json:"width"`
	Height        int    `yaml:"height" json:"height"`
	FunctionIndex int    `yaml:"function_index" json:"function_index"`
	AllFunctions  bool   `yaml:"all_functions" json:"all_functions"`
	Threads       int    `yaml:"threads" json:"threads"`
	HaltAfter     uint64 `yaml:"halt_after" json:"halt_after"`
	SkipRounds    int    `yaml:"skip_rounds" json:"skip_rounds"`

	View      View      `yaml:"view" json:"view"`
	Inspector Inspector `yaml:"inspector" json:"inspector"`

	// BookmarksPath is the sqlite file for saved viewports; empty
	// disables bookmarking.
	BookmarksPath string `yaml:"bookmarks_path" json:"bookmarks_path"`

	// SaveBookmark, when non-empty, saves the final view under this name.
	SaveBookmark string `yaml:"save_bookmark" json:"save_bookmark"`
}

// DefaultExplorer returns the configuration used when a field is absent:
// the classic Mandelbrot view on an 800x600 grid, one worker per CPU
// core minus one.
func DefaultExplorer() Explorer {
	threads := runtime.NumCPU() - 1
	if threads < 1 {
		threads = 1
	}
	return Explorer{
		Width:   800,
		Height:  600,
		Threads: threads,
		View: View{
			CenterX:     -0.5,
			ResolutionX: 4.0 / 800,
			ResolutionY: 4.0 / 800,
		},
	}
}

// LoadExplorer loads an Explorer config from path (YAML or JSON), applies
// COORDPLANE_* environment overrides, fills defaults and validates.
func LoadExplorer(path string) (Explorer, error) {
	cfg := DefaultExplorer()
	if path != "" {
		if err := LoadWithEnv(path, "COORDPLANE", &cfg); err != nil {
			return Explorer{}, err
		}
	} else if err := ApplyEnvOverrides("COORDPLANE", &cfg); err != nil {
		return Explorer{}, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Explorer{}, err
	}
	return cfg, nil
}

func (c *Explorer) applyDefaults() {
	def := DefaultExplorer()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.Threads == 0 {
		c.Threads = def.Threads
	}
	if c.View.ResolutionX == 0 {
		c.View.ResolutionX = 4.0 / float64(c.Width)
	}
	if c.View.ResolutionY == 0 {
		c.View.ResolutionY = c.View.ResolutionX
	}
}

// Registry returns the formula registry the configuration selects.
func (c *Explorer) Registry() *formula.Registry {
	if c.AllFunctions {
		return formula.AllFunctions()
	}
	return formula.Default()
}

// Center returns the initial view center as a complex coordinate.
func (c *Explorer) Center() complex128 {
	return complex(c.View.CenterX, c.View.CenterY)
}

// Seed returns the Julia-style formula parameter.
func (c *Explorer) Seed() complex128 {
	return complex(c.View.SeedX, c.View.SeedY)
}

// Validate rejects configurations the engine would refuse at reset time,
// so errors surface as errors instead of panics.
func (c *Explorer) Validate() error {
	return Validate(c,
		ValidatorFunc(func(interface{}) error {
			if c.Width < 1 || c.Height < 1 {
				return fmt.Errorf("grid %dx%d: dimensions must be positive", c.Width, c.Height)
			}
			return nil
		}),
		ValidatorFunc(func(interface{}) error {
			if c.View.ResolutionX <= 0 || c.View.ResolutionY <= 0 {
				return fmt.Errorf("resolution (%g, %g) must be positive",
					c.View.ResolutionX, c.View.ResolutionY)
			}
			return nil
		}),
		ValidatorFunc(func(interface{}) error {
			if c.Threads < 1 {
				return fmt.Errorf("threads %d: must be at least 1", c.Threads)
			}
			return nil
		}),
		ValidatorFunc(func(interface{}) error {
			if c.FunctionIndex < 0 {
				return fmt.Errorf("function_index %d: must not be negative", c.FunctionIndex)
			}
			reg := formula.Default()
			if c.AllFunctions {
				reg = formula.AllFunctions()
			}
			if c.FunctionIndex >= reg.Len() {
				return fmt.Errorf("function_index %d: out of range [0,%d)", c.FunctionIndex, reg.Len())
			}
			return nil
		}),
	)
}
