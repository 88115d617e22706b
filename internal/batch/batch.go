// Package batch processes many independent meetings concurrently.
//
// Meetings share no mutable state, so the pool is a plain fan-out — except
// for the learning memory, which is read once at startup and written once
// per batch. Each worker accumulates its memory mutations in a local delta;
// after all workers finish, a single writer merges the deltas into the
// shared store and saves it atomically. The store is never mutated
// mid-extraction.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/openquorum/quorum/internal/extract"
	"github.com/openquorum/quorum/internal/memory"
	"github.com/openquorum/quorum/internal/store"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// Options configures a batch run.
type Options struct {
	Workers    int
	MemoryPath string      // "" = do not persist memory
	Archive    store.Store // nil = do not archive results
}

// MeetingError records one meeting that failed. Input errors fail that
// meeting only; the batch continues.
type MeetingError struct {
	MeetingID string
	Err       error
}

func (e MeetingError) Error() string {
	return fmt.Sprintf("meeting %s: %v", e.MeetingID, e.Err)
}

// Result summarizes a batch run.
type Result struct {
	Results []*extract.ExtractionResult
	Errors  []MeetingError
}

// Runner fans meetings out over a worker pool.
type Runner struct {
	engine *extract.Engine
	opts   Options
}

// NewRunner builds a runner over a shared engine. The engine holds no
// cross-meeting state, so sharing it across workers is safe.
func NewRunner(engine *extract.Engine, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Runner{engine: engine, opts: opts}
}

// workerOutcome is one meeting's outcome flowing back to the collector.
type workerOutcome struct {
	result *extract.ExtractionResult
	delta  *memory.Delta
	err    *MeetingError
}

// Run processes the meetings and, as the single writer, merges all memory
// deltas into the shared store afterward. Archive failures are reported as
// meeting errors but do not stop the batch.
func (r *Runner) Run(ctx context.Context, mem *memory.ExtractionMemory, meetings []extract.MeetingInput) (*Result, error) {
	jobs := make(chan extract.MeetingInput)
	outcomes := make(chan workerOutcome)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range jobs {
				outcomes <- r.processOne(ctx, in)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, in := range meetings {
			select {
			case jobs <- in:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	res := &Result{}
	merged := memory.NewDelta()
	for out := range outcomes {
		if out.err != nil {
			res.Errors = append(res.Errors, *out.err)
		}
		// An archive failure still yields a usable result and delta.
		if out.result != nil {
			res.Results = append(res.Results, out.result)
			merged.Merge(out.delta)
		}
	}

	// Single-writer memory update, once per batch.
	if r.opts.MemoryPath != "" && !merged.Empty() {
		mem.Apply(merged)
		if err := mem.Save(r.opts.MemoryPath); err != nil {
			return res, fmt.Errorf("saving extraction memory: %w", err)
		}
	}
	return res, nil
}

// processOne extracts and optionally archives one meeting.
func (r *Runner) processOne(ctx context.Context, in extract.MeetingInput) workerOutcome {
	result, delta, err := r.engine.ExtractMeeting(ctx, in)
	if err != nil {
		return workerOutcome{err: &MeetingError{MeetingID: in.MeetingID, Err: err}}
	}
	if r.opts.Archive != nil {
		if _, err := r.opts.Archive.ArchiveRun(ctx, result); err != nil {
			return workerOutcome{
				result: result,
				delta:  delta,
				err:    &MeetingError{MeetingID: in.MeetingID, Err: fmt.Errorf("archiving: %w", err)},
			}
		}
	}
	return workerOutcome{result: result, delta: delta}
}
