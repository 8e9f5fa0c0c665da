package server

import (
	"context"
	"sort"
	"sync"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/orchestrator"
)

// Run tracks one asynchronous optimization: the live orchestrator while it
// executes, then its final result. Progress events fan out to any number of
// subscribers; a slow subscriber loses events rather than stalling the run.
type Run struct {
	ID string

	orch   *orchestrator.Orchestrator
	cancel context.CancelFunc

	mu     sync.RWMutex
	latest *orchestrator.Progress
	subs   map[chan orchestrator.Progress]struct{}
	result *orchestrator.RunResult
	err    error

	done chan struct{}
}

func newRun(orch *orchestrator.Orchestrator, cancel context.CancelFunc) *Run {
	return &Run{
		ID:     orch.RunID(),
		orch:   orch,
		cancel: cancel,
		subs:   make(map[chan orchestrator.Progress]struct{}),
		done:   make(chan struct{}),
	}
}

// Status returns the orchestrator's lifecycle state.
func (r *Run) Status() domain.RunStatus { return r.orch.Status() }

// Done is closed once the run finished and its result is readable.
func (r *Run) Done() <-chan struct{} { return r.done }

// Stop requests a graceful stop after the in-flight evaluations finish.
func (r *Run) Stop() { r.orch.Stop() }

// Result returns the final outcome, or an error if the run failed to start.
// Both are nil while the run is still executing.
func (r *Run) Result() (*orchestrator.RunResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result, r.err
}

// Latest returns the most recent progress snapshot, or nil before the first
// evaluation completes.
func (r *Run) Latest() *orchestrator.Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Subscribe registers a progress listener. The returned cancel function must
// be called when the listener is done; the channel closes when the run ends.
func (r *Run) Subscribe() (<-chan orchestrator.Progress, func()) {
	ch := make(chan orchestrator.Progress, 16)

	r.mu.Lock()
	if r.result != nil || r.err != nil {
		close(ch)
		r.mu.Unlock()
		return ch, func() {}
	}
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	return ch, func() {
		r.mu.Lock()
		if _, ok := r.subs[ch]; ok {
			delete(r.subs, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
}

// start launches the run. One goroutine executes the orchestrator, another
// pumps progress; the result is recorded only after the progress channel has
// fully drained, so subscribers never race a closing channel.
func (r *Run) start(ctx context.Context, onDone func(*orchestrator.RunResult, error)) {
	pumped := make(chan struct{})
	go func() {
		r.pump()
		close(pumped)
	}()
	go func() {
		result, err := r.orch.Run(ctx)
		<-pumped
		r.finish(result, err)
		if onDone != nil {
			onDone(result, err)
		}
		r.cancel()
	}()
}

// pump drains the orchestrator's progress channel until it closes, keeping
// the latest snapshot and fanning events out to subscribers.
func (r *Run) pump() {
	for p := range r.orch.Progress() {
		r.mu.Lock()
		snapshot := p
		r.latest = &snapshot
		for ch := range r.subs {
			select {
			case ch <- p:
			default:
			}
		}
		r.mu.Unlock()
	}
}

// finish records the outcome and closes every subscriber channel.
func (r *Run) finish(result *orchestrator.RunResult, err error) {
	r.mu.Lock()
	r.result = result
	r.err = err
	for ch := range r.subs {
		delete(r.subs, ch)
		close(ch)
	}
	r.mu.Unlock()
	close(r.done)
}

// Registry is the in-memory index of optimization runs started by this
// process.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Add registers a run under its ID.
func (g *Registry) Add(r *Run) {
	g.mu.Lock()
	g.runs[r.ID] = r
	g.mu.Unlock()
}

// Get looks up a run by ID.
func (g *Registry) Get(id string) (*Run, bool) {
	g.mu.RLock()
	r, ok := g.runs[id]
	g.mu.RUnlock()
	return r, ok
}

// IDs returns the registered run IDs, sorted.
func (g *Registry) IDs() []string {
	g.mu.RLock()
	ids := make([]string, 0, len(g.runs))
	for id := range g.runs {
		ids = append(ids, id)
	}
	g.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// StopAll requests a stop on every registered run, used during shutdown.
func (g *Registry) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.runs {
		r.Stop()
	}
}
