// Package aggregate fetches the independent record collections behind
// one dashboard view concurrently, isolating each source's failure.
package aggregate

import (
	"context"
	"sync"

	"github.com/medihelp/carewire/internal/store"
	"go.uber.org/zap"
)

// SourceSpec declares one collection read within a dashboard fan-out.
// Dest allocates the destination slice for the rows.
type SourceSpec struct {
	Name  string
	Query store.Query
	Dest  func() any
}

// Outcome is the settled result of one source: rows or an error, never
// both.
type Outcome struct {
	Rows any
	Err  error
}

// OK reports whether the source settled successfully.
func (o Outcome) OK() bool { return o.Err == nil }

// Result holds every source's outcome. It exists only once all sources
// have settled.
type Result struct {
	Outcomes map[string]Outcome
}

// Outcome returns the named source's outcome.
func (r Result) Outcome(name string) Outcome { return r.Outcomes[name] }

// Aggregator performs single-shot concurrent fan-outs against the record
// store. It never retries; a failed source reports its own error while
// sibling sources deliver normally.
type Aggregator struct {
	store  store.Store
	logger *zap.Logger
}

// New creates an aggregator over the given store.
func New(st store.Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: st, logger: logger}
}

// FetchAll issues every source's read concurrently and returns once all
// of them have settled, regardless of individual outcomes.
func (a *Aggregator) FetchAll(ctx context.Context, sources []SourceSpec) Result {
	outcomes := make([]Outcome, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src SourceSpec) {
			defer wg.Done()
			dest := src.Dest()
			if err := a.store.Read(ctx, src.Query, dest); err != nil {
				a.logger.Warn("aggregate: source failed",
					zap.String("source", src.Name), zap.Error(err))
				outcomes[i] = Outcome{Err: err}
				return
			}
			outcomes[i] = Outcome{Rows: dest}
		}(i, src)
	}
	wg.Wait()

	result := Result{Outcomes: make(map[string]Outcome, len(sources))}
	for i, src := range sources {
		result.Outcomes[src.Name] = outcomes[i]
	}
	return result
}

// CountOutcome is the settled result of one counting read.
type CountOutcome struct {
	Count int64
	Err   error
}

// CountAll issues every query as a counting read concurrently, keyed the
// same way as FetchAll.
func (a *Aggregator) CountAll(ctx context.Context, queries map[string]store.Query) map[string]CountOutcome {
	type entry struct {
		name  string
		query store.Query
	}
	entries := make([]entry, 0, len(queries))
	for name, q := range queries {
		entries = append(entries, entry{name, q})
	}

	outcomes := make([]CountOutcome, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e entry) {
			defer wg.Done()
			count, err := a.store.Count(ctx, e.query)
			if err != nil {
				a.logger.Warn("aggregate: count failed",
					zap.String("source", e.name), zap.Error(err))
			}
			outcomes[i] = CountOutcome{Count: count, Err: err}
		}(i, e)
	}
	wg.Wait()

	result := make(map[string]CountOutcome, len(entries))
	for i, e := range entries {
		result[e.name] = outcomes[i]
	}
	return result
}
