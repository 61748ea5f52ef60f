package plane

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/fractalforge/coordplane/pkg/formula"
	"github.com/fractalforge/coordplane/pkg/pool"
)

// iterateContext is one partition of an Iterate batch: the points at
// notEscaped[offset], notEscaped[offset+stride], ... It owns a private
// survivor slice carved out of the plane's scratch buffer, so partitions
// never write overlapping memory.
type iterateContext struct {
	plane  *Plane
	f      formula.Formula
	steps  int
	offset int
	stride int
	limit  int // length of notEscaped when the batch was planned

	survivors    []int
	localEscaped int
	done         atomic.Bool
}

// run advances every point in the partition by up to steps formula
// applications, stopping a point early once it escapes. Survivor indices
// are staged in the private scratch span; escaped points are dropped.
func (ctx *iterateContext) run() {
	p := ctx.plane
	f := ctx.f
	seed := p.seed
	base := p.iterationCount

	ctx.localEscaped = 0
	for j := ctx.offset; j < ctx.limit; j += ctx.stride {
		idx := p.notEscaped[j]
		pt := &p.points[idx]

		for i := 0; i < ctx.steps && pt.Escaped == 0; i++ {
			pt.Z = f.Step(pt.Z, pt.C, seed)
			if f.Escaped(pt.Z) {
				// 1-based global iteration of the crossing
				pt.Escaped = base + uint64(i) + 1
			}
		}

		if pt.Escaped != 0 {
			ctx.localEscaped++
		} else {
			ctx.survivors = append(ctx.survivors, idx)
		}
	}

	ctx.done.Store(true)
}

// interleaveCount is how many indices of [0, n) partition `offset` of
// `stride` visits.
func interleaveCount(n, offset, stride int) int {
	if offset >= n {
		return 0
	}
	return (n - offset + stride - 1) / stride
}

// planPartitions builds k partition contexts over the current working set,
// assigning each an exactly sized, non-overlapping span of scratch.
func (p *Plane) planPartitions(steps, k int) []iterateContext {
	n := len(p.notEscaped)
	f := p.registry.ByIndex(p.funcIdx)

	ctxs := make([]iterateContext, k)
	start := 0
	for i := 0; i < k; i++ {
		count := interleaveCount(n, i, k)
		ctxs[i] = iterateContext{
			plane:     p,
			f:         f,
			steps:     steps,
			offset:    i,
			stride:    k,
			limit:     n,
			survivors: p.scratch[start:start:start+count],
		}
		start += count
	}
	return ctxs
}

// merge folds finished partitions back into the plane, in partition order.
// Each context's done flag is confirmed with a yielding spin so the merge
// never reads a survivor span a worker is still writing, independent of the
// pool's own barrier.
func (p *Plane) merge(ctxs []iterateContext) {
	p.notEscaped = p.notEscaped[:0]
	for i := range ctxs {
		ctx := &ctxs[i]
		for !ctx.done.Load() {
			runtime.Gosched()
		}
		p.escaped += ctx.localEscaped
		p.notEscaped = append(p.notEscaped, ctx.survivors...)
	}
}

// ensurePool lazily creates or grows the owned pool to at least k workers.
// Shrinking never rebuilds the pool; spare workers idle at negligible cost,
// while destroying and recreating a pool is comparatively expensive.
func (p *Plane) ensurePool(k int) *pool.Pool {
	if p.pool != nil && p.pool.Size() >= k {
		return p.pool
	}
	if p.pool != nil {
		p.pool.StopAndWait()
	}
	p.logger.Debugf("plane %s: growing thread pool to %d workers", p.id, k)
	p.pool = pool.New(k, pool.WithLogger(p.logger))
	return p.pool
}

// Iterate advances every not-escaped, non-trapped point by up to steps
// formula applications, or fewer if the point escapes first. It returns how
// many points escaped during this call.
func (p *Plane) Iterate(steps int) int {
	if steps <= 0 {
		return 0
	}
	if p.haltAfter > 0 {
		if p.iterationCount >= p.haltAfter {
			return 0
		}
		if remaining := p.haltAfter - p.iterationCount; uint64(steps) > remaining {
			steps = int(remaining)
		}
	}
	if len(p.notEscaped) == 0 {
		return 0
	}

	escapedBefore := p.escaped
	notEscapedBefore := len(p.notEscaped)

	if k := p.desiredThreads; k < 2 {
		p.iterateSingleThreaded(steps)
	} else {
		p.iterateMultiThreaded(steps, k)
	}

	p.iterationCount += uint64(steps)
	if len(p.notEscaped) == notEscapedBefore {
		p.unchanged++
	} else {
		p.unchanged = 0
	}

	return p.escaped - escapedBefore
}

// iterateSingleThreaded runs the whole batch as one partition in the
// caller's stack. The multi-threaded path is a specialization of this.
func (p *Plane) iterateSingleThreaded(steps int) {
	ctxs := p.planPartitions(steps, 1)
	ctxs[0].run()
	p.merge(ctxs)
}

// iterateMultiThreaded splits the working set into k statically interleaved
// partitions and runs them on the owned pool. Interleaving rather than
// chunking balances load even after escapes have clustered spatially in
// earlier rounds.
func (p *Plane) iterateMultiThreaded(steps, k int) {
	pl := p.ensurePool(k)
	ctxs := p.planPartitions(steps, k)

	for i := range ctxs {
		ctx := &ctxs[i]
		task := pool.NewNamedTask(
			fmt.Sprintf("iterate-partition-%d/%d", ctx.offset, k),
			func(context.Context) error {
				ctx.run()
				return nil
			})
		if err := pl.Submit(task); err != nil {
			// The pool only refuses work while stopping, which
			// cannot happen while the plane owns it. Run inline
			// so the batch still completes.
			p.logger.Errorf("plane %s: submit partition %d: %v", p.id, ctx.offset, err)
			ctx.run()
		}
	}

	pl.Wait()
	p.merge(ctxs)
}
