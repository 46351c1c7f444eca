package recommend

import (
	"time"

	"github.com/indexscout/index-scout/internal/shape"
)

// ShapeStat tracks one distinct shape's observation counts.
type ShapeStat struct {
	Shape     *shape.QueryShape
	Count     int64
	TotalTime time.Duration

	// Matched is the most recent matching decision for the shape; a watch
	// run may flip it when the catalog snapshot refreshes.
	Matched bool
}

// AvgTime returns the mean observed execution time.
func (s *ShapeStat) AvgTime() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Count)
}

// Aggregator deduplicates shapes, tracks their frequency and timing, and
// holds the evolving recommendation set. Insertion order of first occurrence
// is preserved for stable reporting. Not safe for concurrent use; the run
// controller processes events one at a time.
type Aggregator struct {
	shapes     map[string]*ShapeStat
	shapeOrder []string

	recs     map[string]*Recommendation
	recOrder []string
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		shapes: make(map[string]*ShapeStat),
		recs:   make(map[string]*Recommendation),
	}
}

// Observe records one event's shape and matching decision. Unmatched shapes
// contribute one recommendation per branch; recommendations sharing a
// namespace and field list merge counts and timing instead of duplicating.
func (a *Aggregator) Observe(s *shape.QueryShape, elapsed time.Duration, matched bool) {
	stat, ok := a.shapes[s.Key]
	if !ok {
		stat = &ShapeStat{Shape: s}
		a.shapes[s.Key] = stat
		a.shapeOrder = append(a.shapeOrder, s.Key)
	}
	stat.Count++
	stat.TotalTime += elapsed
	stat.Matched = matched

	if matched {
		return
	}

	for _, fields := range Synthesize(s) {
		key := fieldsKey(s.NS, fields)
		rec, ok := a.recs[key]
		if !ok {
			rec = &Recommendation{
				NS:       s.NS,
				Fields:   fields,
				ShapeKey: s.Key,
			}
			a.recs[key] = rec
			a.recOrder = append(a.recOrder, key)
		}
		rec.Count++
		rec.TotalTime += elapsed
	}
}

// Recommendations returns the recommendation set in first-seen order.
func (a *Aggregator) Recommendations() []*Recommendation {
	out := make([]*Recommendation, 0, len(a.recOrder))
	for _, key := range a.recOrder {
		out = append(out, a.recs[key])
	}
	return out
}

// Shapes returns every distinct observed shape in first-seen order.
func (a *Aggregator) Shapes() []*ShapeStat {
	out := make([]*ShapeStat, 0, len(a.shapeOrder))
	for _, key := range a.shapeOrder {
		out = append(out, a.shapes[key])
	}
	return out
}
