// Command coordplane runs a headless escape-time iteration session: it
// loads a config file, iterates the plane until the view settles or the
// halt-after budget is spent, and serves diagnostics over the inspector.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fractalforge/coordplane/pkg/bookmark"
	"github.com/fractalforge/coordplane/pkg/config"
	"github.com/fractalforge/coordplane/pkg/core"
	"github.com/fractalforge/coordplane/pkg/inspector"
	obsprom "github.com/fractalforge/coordplane/pkg/observability/prometheus"
	"github.com/fractalforge/coordplane/pkg/plane"
)

// Batch sizes are tuned so one Iterate call lands between these bounds,
// keeping the inspector feed and signal handling responsive.
const (
	batchHighThreshold = time.Second / 30
	batchLowThreshold  = time.Second / 45

	// stagnantRounds is how many consecutive no-progress batches we
	// tolerate before declaring the view converged.
	stagnantRounds = 1000
)

func main() {
	var cfgPath string
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.LoadExplorer(cfgPath)
	if err != nil {
		slog.Error("invalid configuration", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	p := plane.New(plane.Params{
		Width:         cfg.Width,
		Height:        cfg.Height,
		Center:        cfg.Center(),
		ResolutionX:   cfg.View.ResolutionX,
		ResolutionY:   cfg.View.ResolutionY,
		FunctionIndex: cfg.FunctionIndex,
		Seed:          cfg.Seed(),
		HaltAfter:     cfg.HaltAfter,
		SkipRounds:    cfg.SkipRounds,
		Threads:       cfg.Threads,
		Registry:      cfg.Registry(),
	})
	defer p.Close()

	slog.Info("session starting",
		"id", p.ID(),
		"function", p.FunctionName(),
		"width", p.WinWidth(), "height", p.WinHeight(),
		"threads", p.NumThreads(),
		"halt_after", p.HaltAfter())

	insp := inspector.New(cfg.Inspector.Addr, cfg.Inspector.WSAddr, core.NewDefaultLogger())
	insp.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		insp.Stop(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run(ctx, p, insp, cfg.SkipRounds)

	if cfg.SaveBookmark != "" && cfg.BookmarksPath != "" {
		saveBookmark(p, cfg)
	}

	s := p.Snapshot()
	slog.Info("session finished",
		"iterations", s.IterationCount,
		"escaped", s.Escaped,
		"not_escaped", s.NotEscaped,
		"trapped", s.Trapped)
}

// run drives the iterate loop, tuning the batch size to the thresholds the
// way the interactive shell tunes iterations per frame.
func run(ctx context.Context, p *plane.Plane, insp *inspector.Inspector, skipRounds int) {
	metrics := obsprom.GetMetrics()
	metrics.RecordReset("initial")
	steps := 1

	for round := 0; ctx.Err() == nil; round++ {
		start := time.Now()
		escaped := p.Iterate(steps)
		elapsed := time.Since(start)

		metrics.RecordBatch(steps, escaped, p.NumThreads(), elapsed)
		snap := p.Snapshot()
		metrics.Observe(snap)
		insp.Publish(snap)

		if round >= skipRounds {
			slog.Info("batch",
				"round", round,
				"steps", steps,
				"new_escapes", escaped,
				"not_escaped", snap.NotEscaped,
				"iterations", snap.IterationCount,
				"elapsed", elapsed)
		}

		if snap.NotEscaped == 0 {
			slog.Info("all points settled")
			return
		}
		if p.HaltAfter() > 0 && snap.IterationCount >= p.HaltAfter() {
			slog.Info("halt-after budget reached", "budget", p.HaltAfter())
			return
		}
		if snap.Unchanged >= stagnantRounds {
			slog.Info("iteration stagnant, stopping", "unchanged_rounds", snap.Unchanged)
			return
		}

		steps = tuneSteps(steps, elapsed)
	}

	slog.Info("interrupted")
}

// tuneSteps grows the batch while calls come back fast and backs off
// proportionally when they run long.
func tuneSteps(steps int, elapsed time.Duration) int {
	switch {
	case elapsed < batchLowThreshold:
		return steps + 1
	case elapsed > batchHighThreshold && steps > 1:
		if steps < 10 {
			return steps - 1
		}
		scaled := int(float64(steps) * float64(batchHighThreshold) / float64(elapsed))
		if scaled >= steps {
			scaled = steps - 1
		}
		if scaled < 1 {
			scaled = 1
		}
		return scaled
	default:
		return steps
	}
}

func saveBookmark(p *plane.Plane, cfg config.Explorer) {
	store, err := bookmark.Open(cfg.BookmarksPath)
	if err != nil {
		slog.Error("bookmark store unavailable", "path", cfg.BookmarksPath, "error", err)
		return
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = store.Save(ctx, bookmark.Bookmark{
		Name:          cfg.SaveBookmark,
		SessionID:     p.ID().String(),
		FunctionIndex: p.FunctionIndex(),
		CenterX:       real(p.Center()),
		CenterY:       imag(p.Center()),
		ResolutionX:   p.ResolutionX(),
		ResolutionY:   p.ResolutionY(),
		SeedX:         real(p.Seed()),
		SeedY:         imag(p.Seed()),
	})
	if err != nil {
		slog.Error("bookmark save failed", "name", cfg.SaveBookmark, "error", err)
		return
	}
	slog.Info("view bookmarked", "name", cfg.SaveBookmark, "path", cfg.BookmarksPath)
}
