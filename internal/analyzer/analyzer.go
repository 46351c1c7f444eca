// Package analyzer drives the query analysis pipeline.
//
// One analyzer owns one run: it pulls raw events from a source, parses and
// filters them, extracts shapes, matches them against the index catalog, and
// aggregates recommendations. Events are processed one at a time in arrival
// order; cancellation is cooperative and observed between events, so every
// event either fully completes the pipeline or is never started.
package analyzer

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/indexscout/index-scout/internal/catalog"
	"github.com/indexscout/index-scout/internal/event"
	"github.com/indexscout/index-scout/internal/match"
	"github.com/indexscout/index-scout/internal/nsfilter"
	"github.com/indexscout/index-scout/internal/pkg/errors"
	"github.com/indexscout/index-scout/internal/pkg/logger"
	"github.com/indexscout/index-scout/internal/recommend"
	"github.com/indexscout/index-scout/internal/shape"
	"github.com/indexscout/index-scout/internal/source"
)

// State is the run controller state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateTimedOut
	StateInterrupted
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateInterrupted:
		return "interrupted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunStats holds aggregate pipeline counters.
type RunStats struct {
	// EventsSeen counts every raw event pulled from the source.
	EventsSeen int64 `json:"events_seen"`

	// EventsMalformed counts skipped unparseable events.
	EventsMalformed int64 `json:"events_malformed"`

	// EventsFiltered counts events dropped by the namespace or slow-time
	// filter before shape extraction.
	EventsFiltered int64 `json:"events_filtered"`

	// EventsMatched and EventsUnmatched count events whose shape did or did
	// not have a supporting index.
	EventsMatched   int64 `json:"events_matched"`
	EventsUnmatched int64 `json:"events_unmatched"`

	// CatalogErrors counts events whose namespace degraded to unmatched
	// because its index list could not be fetched.
	CatalogErrors int64 `json:"catalog_errors"`
}

// Decision is one per-event shape/match record, exposed in verbose runs.
type Decision struct {
	NS       string
	Op       string
	ShapeKey string
	Matched  bool
	Indexes  []string
	Elapsed  time.Duration
}

// Report is the finalized result of a run. Always valid, even after
// timeout, interruption, or failure: the aggregator state at that point is
// flushed, never discarded.
type Report struct {
	State           State
	Stats           RunStats
	Recommendations []*recommend.Recommendation
	Shapes          []*recommend.ShapeStat
	Decisions       []Decision
	Started         time.Time
	Finished        time.Time
}

// Options configures a run. Immutable once the analyzer is constructed.
type Options struct {
	// Namespaces are glob patterns gating the pipeline; empty passes all.
	Namespaces []string

	// SlowTime drops events faster than this threshold. Zero admits all
	// events; a positive threshold also drops events without timing.
	SlowTime time.Duration

	// Timeout bounds the run's wall clock. Zero means no timeout.
	Timeout time.Duration

	// Verbose records per-event decisions in the report.
	Verbose bool
}

// Analyzer runs the pipeline.
type Analyzer struct {
	src    source.Source
	cat    *catalog.Catalog
	parser *event.Parser
	filter *nsfilter.Filter
	agg    *recommend.Aggregator
	opts   Options
	state  State
	log    *logger.Logger

	runStats  RunStats
	decisions []Decision
}

// New creates an analyzer over a source and catalog.
func New(src source.Source, cat *catalog.Catalog, opts Options, log *logger.Logger) (*Analyzer, error) {
	filter, err := nsfilter.New(opts.Namespaces)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Default()
	}

	return &Analyzer{
		src:    src,
		cat:    cat,
		parser: event.NewParser(),
		filter: filter,
		agg:    recommend.NewAggregator(),
		opts:   opts,
		state:  StateIdle,
		log:    log,
	}, nil
}

// State returns the current controller state.
func (a *Analyzer) State() State {
	return a.state
}

// Run processes events until the source is exhausted (batch), the timeout
// elapses, or the context is cancelled. Timeout and cancellation finalize
// gracefully and return a partial report with a nil error; only a
// non-recoverable source failure returns an error, alongside whatever was
// aggregated before it.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	a.state = StateRunning
	started := time.Now()

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	var runErr error

loop:
	for {
		// Cooperative cancellation boundary: the previous event fully
		// completed, the next has not started.
		if err := ctx.Err(); err != nil {
			a.state = terminalFor(err)
			break
		}

		raw, err := a.src.Next(ctx)
		switch {
		case err == nil:
			a.process(ctx, raw)

		case stderrors.Is(err, source.ErrEndOfStream):
			a.state = StateCompleted
			break loop

		case stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled):
			a.state = terminalFor(err)
			break loop

		case errors.IsMalformedEvent(err):
			a.runStats.EventsSeen++
			a.runStats.EventsMalformed++
			a.log.Debug("skipping malformed event", "error", err)

		default:
			a.state = StateFailed
			runErr = err
			break loop
		}
	}

	report := a.finalize(started)
	a.log.Info("run finished",
		"state", report.State.String(),
		"events", report.Stats.EventsSeen,
		"recommendations", len(report.Recommendations),
	)
	return report, runErr
}

func terminalFor(err error) State {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return StateTimedOut
	}
	return StateInterrupted
}

// process pushes one raw event through the full pipeline.
func (a *Analyzer) process(ctx context.Context, raw source.RawEvent) {
	a.runStats.EventsSeen++

	ev, err := a.parser.Parse(raw)
	if err != nil {
		a.runStats.EventsMalformed++
		a.log.Debug("skipping malformed event", "error", err)
		return
	}

	if !a.filter.Match(ev.NS) {
		a.runStats.EventsFiltered++
		return
	}

	if a.opts.SlowTime > 0 && (!ev.HasDuration || ev.Duration < a.opts.SlowTime) {
		a.runStats.EventsFiltered++
		return
	}

	s := shape.Extract(ev)

	matched, indexes := a.decide(ctx, s, ev.NS)
	if matched {
		a.runStats.EventsMatched++
	} else {
		a.runStats.EventsUnmatched++
	}

	a.agg.Observe(s, ev.Duration, matched)

	if a.opts.Verbose {
		a.decisions = append(a.decisions, Decision{
			NS:       ev.NS,
			Op:       ev.Op,
			ShapeKey: s.Key,
			Matched:  matched,
			Indexes:  indexes,
			Elapsed:  ev.Duration,
		})
	}
}

// decide resolves the matching decision for a shape. Catalog problems
// degrade the namespace to unmatched instead of aborting the run.
func (a *Analyzer) decide(ctx context.Context, s *shape.QueryShape, ns string) (bool, []string) {
	if !s.Indexable() {
		// Nothing an index could serve; never a recommendation.
		return true, nil
	}

	defs, err := a.cat.IndexesFor(ctx, ns)
	if err != nil {
		if stderrors.Is(err, catalog.ErrVerificationDisabled) {
			return false, nil
		}
		a.runStats.CatalogErrors++
		a.log.WithNamespace(ns).Debug("catalog unavailable, treating shape as unmatched")
		return false, nil
	}

	result := match.Matches(s, defs)
	return result.Matched, result.IndexNames
}

func (a *Analyzer) finalize(started time.Time) *Report {
	return &Report{
		State:           a.state,
		Stats:           a.runStats,
		Recommendations: a.agg.Recommendations(),
		Shapes:          a.agg.Shapes(),
		Decisions:       a.decisions,
		Started:         started,
		Finished:        time.Now(),
	}
}
