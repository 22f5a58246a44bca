package chunkreader

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Driver owns the parallel chunked read of one contiguous byte range. It
// ties the planner, boundary computer, reconciler, output allocator,
// progress reporter and exception manager into a single ordered-parallel
// loop.
//
// A Driver is single-use: construct one per ReadAll call.
type Driver struct {
	env         Env
	store       ColumnStore
	newCtx      func() ParseContext
	hook        BoundaryHook
	meanLineLen float64
	plan        ChunkPlan
}

// NewDriver builds a Driver. meanLineLen is the caller's best estimate of
// the average record length in bytes, used only to size chunks; it need
// not be exact. newCtx is called once per worker goroutine to build that
// worker's dedicated ParseContext — contexts are never shared across
// workers. hook may be nil, in which case chunk boundaries are used
// exactly as computed.
func NewDriver(env Env, store ColumnStore, newCtx func() ParseContext, meanLineLen float64, hook BoundaryHook) (*Driver, error) {
	if env == nil || store == nil || newCtx == nil {
		return nil, fmt.Errorf("chunkreader: env, store and newCtx are required")
	}
	if hook == nil {
		hook = NoopHook{}
	}
	if store.NRows() > env.MaxNRows() {
		return nil, fmt.Errorf("chunkreader: store already holds %d rows, exceeding max_nrows %d", store.NRows(), env.MaxNRows())
	}

	inputSize := env.EOF() - env.SOF()
	plan := Plan(inputSize, meanLineLen, env.NThreads())

	return &Driver{
		env:         env,
		store:       store,
		newCtx:      newCtx,
		hook:        hook,
		meanLineLen: meanLineLen,
		plan:        plan,
	}, nil
}

// ReadAll parses and commits every chunk in order. It returns the first
// error captured by any worker, or ctx.Err() if the context is canceled
// before the region completes. On success, the column store holds exactly
// as many rows as were parsed, up to MaxNRows.
func (d *Driver) ReadAll(parent context.Context) error {
	plan := d.plan

	if workers := runtime.GOMAXPROCS(0); workers < plan.NThreads {
		d.env.Trace("chunkreader: requested %d workers but GOMAXPROCS is %d, replanning", plan.NThreads, workers)
		plan = Plan(d.env.EOF()-d.env.SOF(), d.meanLineLen, workers)
		d.plan = plan
	}

	sof, eof := d.env.SOF(), d.env.EOF()
	nrowsMax := d.env.MaxNRows()

	run := &runState{
		gate:           newTicketGate(),
		oem:            &exceptionManager{},
		lastChunkEnd:   sof,
		nrowsAllocated: d.store.NRows(),
		nrowsMax:       nrowsMax,
	}

	var nextIdx int64
	var mu sync.Mutex // guards nextIdx dispensation
	claim := func() (int64, bool) {
		mu.Lock()
		defer mu.Unlock()
		if nextIdx >= plan.ChunkCount {
			return 0, false
		}
		i := nextIdx
		nextIdx++
		return i, true
	}

	var wg sync.WaitGroup
	now := time.Now()
	for w := 0; w < plan.NThreads; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			d.worker(parent, run, plan, workerID == 0, now, claim)
		}(w)
	}
	wg.Wait()

	if err := run.oem.First(); err != nil {
		return err
	}

	if run.nrowsWritten < nrowsMax && run.lastChunkEnd != eof {
		return fmt.Errorf("%w: %d rows written below max_nrows %d but only consumed %d of %d input bytes",
			ErrInvariant, run.nrowsWritten, nrowsMax, run.lastChunkEnd-sof, eof-sof)
	}

	return d.store.SetNRows(run.nrowsWritten)
}

// runState is the mutable state shared across every worker goroutine for
// one ReadAll call. Every field below the gate is only ever mutated while
// holding run.gate's lock (i.e. between a wait/release pair), so it needs
// no additional synchronization of its own.
type runState struct {
	gate *ticketGate
	oem  *exceptionManager

	lastChunkEnd   int64
	nrowsWritten   int64
	nrowsAllocated int64
	nrowsMax       int64
}

func (d *Driver) worker(parent context.Context, run *runState, plan ChunkPlan, isMaster bool, start time.Time, claim func() (int64, bool)) {
	ctx := d.newCtx()
	ps := newProgressState(d.env.ReportProgress(), isMaster, d.env.EOF()-d.env.SOF(), start)
	sof, eof := d.env.SOF(), d.env.EOF()

	for {
		i, ok := claim()
		if !ok {
			break
		}

		var expected, actual ChunkCoordinates
		if !run.oem.Caught() {
			if parent.Err() != nil {
				run.oem.Capture(parent.Err())
			} else {
				if ps.shouldReport(time.Now()) {
					d.env.Progress(workDone(sof, eof, run.snapshotLastChunkEnd()))
				}

				if err := ctx.PushBuffers(d.store); err != nil {
					run.oem.Capture(err)
				} else {
					expected = ComputeChunkBoundaries(i, sof, eof, plan, run.snapshotLastChunkEnd(), d.hook, ctx)
					a, err := ctx.ReadChunk(expected)
					if err != nil {
						run.oem.Capture(err)
					} else {
						actual = a
					}
				}
			}
		}

		run.gate.wait(i)
		d.commit(run, plan, i, &expected, &actual, ctx)
		run.gate.release()
	}

	if run.oem.Caught() {
		ctx.SetUsedRows(0)
	} else if ctx.UsedRows() > 0 {
		if err := ctx.PushBuffers(d.store); err != nil {
			run.oem.Capture(err)
		}
	}

	if isMaster && ps.showAlways {
		status := StatusNormal
		switch {
		case parent.Err() != nil:
			status = StatusKeyboardInterrupt
		case run.oem.Caught():
			status = StatusError
		}
		d.env.Progress(workDone(sof, eof, run.snapshotLastChunkEnd()), status)
	}
}

// snapshotLastChunkEnd reads lastChunkEnd under the gate's lock. Workers
// call it when computing a chunk's speculative boundaries and when
// reporting progress; the value may lag behind commits that happen right
// after the read, which the reconciler in commit corrects for.
func (r *runState) snapshotLastChunkEnd() int64 {
	r.gate.mu.Lock()
	defer r.gate.mu.Unlock()
	return r.lastChunkEnd
}

// commit performs the strictly-ordered portion of one chunk's processing.
// The caller must hold run.gate locked for ticket i (via gate.wait(i))
// before calling, and must call run.gate.release() immediately after.
func (d *Driver) commit(run *runState, plan ChunkPlan, i int64, expected, actual *ChunkCoordinates, ctx ParseContext) {
	if run.oem.Caught() {
		return
	}

	ctx.SetRow0(run.nrowsWritten)

	if err := Reconcile(actual, expected, ctx, &run.lastChunkEnd); err != nil {
		run.oem.Capture(err)
		return
	}

	nrowsNew := run.nrowsWritten + ctx.UsedRows()
	if nrowsNew > run.nrowsAllocated {
		if run.nrowsAllocated >= run.nrowsMax {
			ctx.SetUsedRows(run.nrowsMax - run.nrowsWritten)
			nrowsNew = run.nrowsMax
		} else {
			newAlloc := reallocSize(i, plan.ChunkCount, nrowsNew, run.nrowsAllocated, run.nrowsMax)
			if err := d.store.SetNRows(newAlloc); err != nil {
				run.oem.Capture(err)
				return
			}
			run.nrowsAllocated = newAlloc
			if nrowsNew > newAlloc {
				ctx.SetUsedRows(newAlloc - run.nrowsWritten)
				nrowsNew = newAlloc
			}
		}
	}

	run.nrowsWritten = nrowsNew
	ctx.OrderBuffer()
}
