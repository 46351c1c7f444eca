// Package recommend synthesizes and aggregates index recommendations.
package recommend

import (
	"strconv"
	"strings"
	"time"

	"github.com/indexscout/index-scout/internal/shape"
)

// Field is one component of a recommended compound index.
type Field struct {
	Name  string
	Order int
}

// Recommendation is one proposed index, accumulated across every event
// whose shape produced the same namespace and field list.
type Recommendation struct {
	NS     string
	Fields []Field

	// ShapeKey is the canonical key of the first shape that justified this
	// recommendation.
	ShapeKey string

	Count     int64
	TotalTime time.Duration
}

// AvgTime returns the mean observed execution time.
func (r *Recommendation) AvgTime() time.Duration {
	if r.Count == 0 {
		return 0
	}
	return r.TotalTime / time.Duration(r.Count)
}

// KeySpec renders the field list in index-key notation, e.g. {a: 1, b: -1}.
func (r *Recommendation) KeySpec() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(strconv.Itoa(f.Order))
	}
	sb.WriteByte('}')
	return sb.String()
}

// Synthesize builds the minimal recommended field list for each branch of an
// unmatched shape: equality fields in first-seen order, then the first-seen
// range field, then the sort fields in declared order and direction. A field
// holding several roles keeps its highest-priority one and appears once.
// Branches with nothing indexable synthesize nothing.
func Synthesize(s *shape.QueryShape) [][]Field {
	out := make([][]Field, 0, len(s.Branches))
	for _, branch := range s.Branches {
		fields := synthesizeBranch(branch, s.Sort)
		if len(fields) > 0 {
			out = append(out, fields)
		}
	}
	return out
}

func synthesizeBranch(b shape.Branch, sortFields []shape.SortField) []Field {
	seen := make(map[string]bool)
	var fields []Field

	for _, f := range b.Equality() {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		fields = append(fields, Field{Name: f.Name, Order: 1})
	}

	for _, f := range b.Ranges() {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		fields = append(fields, Field{Name: f.Name, Order: 1})
		break // a single index serves at most one range field
	}

	for _, sf := range sortFields {
		if seen[sf.Name] {
			continue
		}
		seen[sf.Name] = true
		fields = append(fields, Field{Name: sf.Name, Order: sf.Order})
	}

	return fields
}

// fieldsKey is the merge identity of a recommendation.
func fieldsKey(ns string, fields []Field) string {
	var sb strings.Builder
	sb.WriteString(ns)
	sb.WriteByte('|')
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(f.Name)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(f.Order))
	}
	return sb.String()
}
