// Package dispatch drives ordered, watermark-gated execution of a
// contiguous command-number range, possibly spanning several shader
// entries end to end within one source file: a pool of workers pulls
// commands from a shared cursor, runs them through an exec.Executor,
// deposits results into a store.Store, and packages each static
// combo's bytecode the instant the dispatcher can prove no further
// dynamic combo for it will ever arrive.
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Alivebyte/ShaderCompile/combo"
	"github.com/Alivebyte/ShaderCompile/diag"
	"github.com/Alivebyte/ShaderCompile/exec"
	"github.com/Alivebyte/ShaderCompile/internal/obs"
	"github.com/Alivebyte/ShaderCompile/internal/parallel"
	"github.com/Alivebyte/ShaderCompile/pack"
	"github.com/Alivebyte/ShaderCompile/store"
)

// idle marks a worker slot in Range.running as not currently holding
// any command.
const idle = ^uint64(0)

// ResolveThreads turns a configured thread count (0 meaning "auto")
// into the number of worker goroutines to actually run: configured,
// clamped to the number of logical CPUs, with 0 resolving to all of
// them.
func ResolveThreads(configured int) int {
	hw := runtime.NumCPU()
	if configured <= 0 {
		return hw
	}
	if configured > hw {
		return hw
	}
	return configured
}

// Range drives a [first, end) command-number range, possibly crossing
// several shader entries. Two independent walks share it under lock R
// (Range.mu): the worker cursor, which hands out commands to be
// compiled, and the boundary cursor, advanced only by TryPackage,
// which determines when a static combo's last command has been
// proven complete.
//
// Static id is non-decreasing with command number within one entry
// (combo.ComboHandle.StaticID is ComboIndex/NumDynamicCombos, and
// ComboIndex only increases as the cursor advances), so the boundary
// walk only ever needs to notice when the (entry, static id) pair it
// is looking at changes, never to look backwards.
type Range struct {
	mu sync.Mutex

	store *store.Store

	end          uint64
	lastFinished uint64
	cursor       *combo.Cursor

	running []uint64
	stopped bool

	boundary     *combo.Cursor
	openEntry    *combo.EntryInfo
	openStaticID uint64
	haveOpen     bool

	completed atomic.Uint64
}

// NewRange returns a Range over [first, end) of enum's command-number
// space, depositing results into st. A single Range commonly spans
// many shader entries end to end (one file can declare several
// #shader blocks); each command carries its own entry, so Range reads
// the shader name off the handle rather than being told it up front.
func NewRange(enum *combo.Enumerator, st *store.Store, first, end uint64) *Range {
	return &Range{
		store:        st,
		end:          end,
		lastFinished: first,
		cursor:       enum.NewCursor(first),
		boundary:     enum.NewCursor(first),
	}
}

// Stop cooperatively cancels the range: workers already holding a
// command finish it, but no worker acquires another.
func (r *Range) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// Stopped reports whether Stop has been called.
func (r *Range) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Completed returns the number of commands whose response has been
// recorded so far, for progress reporting.
func (r *Range) Completed() uint64 {
	return r.completed.Load()
}

// Run distributes this range's remaining commands across workers
// worker goroutines (the single-threaded fast path runs inline on the
// calling goroutine and spawns nothing; it still takes r.mu around each
// command, uncontended), executing
// each through ex and recording results into the store and diagAgg.
// Run blocks until every worker has drained the cursor, hit end, or
// observed Stop.
func (r *Range) Run(ctx context.Context, workers int, ex exec.Executor, flags exec.Flags, diagAgg *diag.Aggregator, fastFail bool) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	r.running = make([]uint64, workers)
	for i := range r.running {
		r.running[i] = idle
	}

	if workers == 1 {
		r.runWorker(ctx, 0, ex, flags, diagAgg, fastFail)
		return
	}

	pool := parallel.NewWorkerPool(workers)
	defer pool.Close()

	work := make([]func(), workers)
	for i := range work {
		id := i
		work[i] = func() { r.runWorker(ctx, id, ex, flags, diagAgg, fastFail) }
	}
	pool.ExecuteAll(work)
}

// RangeFinished flushes any static combo whose commands have all
// completed but which hasn't been packaged yet, because no later
// command ever arrived to close its boundary naturally. Call this
// once Run has returned.
func (r *Range) RangeFinished() {
	if r.end == 0 {
		return
	}
	r.TryPackage(r.end - 1)

	r.mu.Lock()
	if !r.haveOpen {
		r.mu.Unlock()
		return
	}
	entry, staticID := r.openEntry, r.openStaticID
	r.haveOpen = false
	r.mu.Unlock()

	r.packageStatic(entry.Name, staticID)
}

func (r *Range) runWorker(ctx context.Context, id int, ex exec.Executor, flags exec.Flags, diagAgg *diag.Aggregator, fastFail bool) {
	for {
		if ctx.Err() != nil {
			r.Stop()
		}

		h, more := r.acquire(id)
		if !more {
			return
		}

		cmdLine := h.FormatCommand()
		humanCmd := h.FormatCommandHuman()
		shader := h.Entry.Name
		cmdNumber := h.CommandNumber
		staticID := h.StaticID()
		dynamicID := h.DynamicID()
		combo.Release(h)

		resp := ex.Execute(cmdLine, flags)
		r.handleResponse(shader, staticID, dynamicID, humanCmd, resp, diagAgg, fastFail)
		r.completed.Add(1)
		r.TryPackage(cmdNumber)
	}
}

// acquire hands the next command in this range to worker id, or
// reports more=false once the range is exhausted or stopped.
func (r *Range) acquire(id int) (*combo.ComboHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		r.running[id] = idle
		return nil, false
	}
	h := r.cursor.Next(r.end)
	if h == nil {
		r.running[id] = idle
		return nil, false
	}
	r.running[id] = h.CommandNumber
	return h, true
}

func (r *Range) handleResponse(shader string, staticID, dynamicID uint64, humanCmd string, resp exec.Response, diagAgg *diag.Aggregator, fastFail bool) {
	if resp.Succeeded {
		r.store.AddDynamic(shader, staticID, dynamicID, resp.Bytecode)
		if resp.Listing != "" && diagAgg != nil {
			diagAgg.Report(shader, humanCmd, resp.Listing)
		}
		return
	}

	r.store.MarkFailed(shader)
	listing := resp.Listing
	if listing == "" {
		listing = fmt.Sprintf("error 0000: compile failed with no listing: %s", humanCmd)
	}
	if diagAgg != nil {
		diagAgg.Report(shader, humanCmd, listing)
	}
	obs.Get().Warn("compile failed", "shader", shader, "command", humanCmd)
	if fastFail {
		r.Stop()
	}
}

// TryPackage is the watermark check: it proves, from the set of
// command numbers other workers currently hold, whether every command
// up to and including cmd has now been recorded, and if so walks the
// boundary cursor forward over the newly-closed range, packaging any
// static combo whose last command it crosses.
func (r *Range) TryPackage(cmd uint64) {
	r.mu.Lock()

	for _, running := range r.running {
		if running != idle && running < cmd {
			// Another worker is still processing an earlier command:
			// the run of completed commands has a gap before cmd, so
			// nothing new can be proven finished yet.
			r.mu.Unlock()
			return
		}
	}

	finishedByNow := cmd + 1
	if finishedByNow <= r.lastFinished {
		r.mu.Unlock()
		return
	}

	oldLastFinished := r.lastFinished
	r.lastFinished = finishedByNow
	r.mu.Unlock()

	r.closeBoundary(oldLastFinished, finishedByNow)
}

// closeBoundary walks the boundary cursor over [from, to), packaging
// every (entry, static id) pair it proves is complete: either because
// the next command belongs to a different static id, or because the
// command it just saw was the last one in its entry.
func (r *Range) closeBoundary(from, to uint64) {
	for {
		h := r.boundary.Next(to)
		if h == nil {
			return
		}
		entry := h.Entry
		staticID := h.StaticID()
		atEntryEnd := h.CommandNumber+1 == entry.CommandEnd
		combo.Release(h)

		r.mu.Lock()
		if r.haveOpen && (r.openEntry != entry || r.openStaticID != staticID) {
			closedEntry, closedID := r.openEntry, r.openStaticID
			r.haveOpen = false
			r.mu.Unlock()
			r.packageStatic(closedEntry.Name, closedID)
			r.mu.Lock()
		}
		r.openEntry = entry
		r.openStaticID = staticID
		r.haveOpen = true
		if atEntryEnd {
			r.haveOpen = false
			r.mu.Unlock()
			r.packageStatic(entry.Name, staticID)
			continue
		}
		r.mu.Unlock()
	}
}

// packageStatic sorts and packs one static combo's dynamic blocks and
// hands the result to the store. No lock is held across this call: it
// invokes pack.Pack, which is pure computation, but holding lock R
// across it would serialize packing with command dispatch for no
// reason, and the store has its own lock for the hand-off.
func (r *Range) packageStatic(shader string, staticID uint64) {
	blocks, ok := r.store.TakeDynamics(shader, staticID)
	if !ok {
		return
	}
	packBlocks := make([]pack.Block, len(blocks))
	for i, b := range blocks {
		packBlocks[i] = pack.Block{DynamicID: b.DynamicID, Bytecode: b.Bytecode}
	}
	packed := pack.Pack(packBlocks)
	r.store.AllocPacked(shader, staticID, packed)
}
