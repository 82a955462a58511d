package workflow

import (
	"context"

	"resumefit/internal/session"
	"resumefit/internal/types"
)

// HistoryRefresh is a history reload running in the background after a
// successful analysis. Callers may ignore it, poll it or wait on it; the
// analysis result never depends on it.
type HistoryRefresh struct {
	done    chan struct{}
	entries []types.HistoryEntry
	err     error
}

func (c *Controller) refreshHistory(ctx context.Context) *HistoryRefresh {
	r := &HistoryRefresh{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.entries, r.err = c.fetchHistory(ctx)
	}()
	return r
}

// Done is closed once the refresh has finished
func (r *HistoryRefresh) Done() <-chan struct{} {
	return r.done
}

// Result returns the fetched history. ok is false while the refresh is
// still running, after it failed, or when the history came back empty.
func (r *HistoryRefresh) Result() (entries []types.HistoryEntry, ok bool) {
	select {
	case <-r.done:
	default:
		return nil, false
	}
	if r.err != nil || len(r.entries) == 0 {
		return nil, false
	}
	return r.entries, true
}

// Wait blocks until the refresh finishes or ctx is done
func (r *HistoryRefresh) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Apply folds a finished, non-empty refresh into st. It reports whether
// the history changed.
func (r *HistoryRefresh) Apply(st session.State) (session.State, bool) {
	entries, ok := r.Result()
	if !ok {
		return st, false
	}
	return st.WithHistory(entries)
}
