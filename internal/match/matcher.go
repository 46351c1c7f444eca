// Package match decides whether existing indexes satisfy a query shape.
//
// The rules mirror compound-index prefix semantics: equality fields form the
// prefix in any relative order, at most one range field follows, then the
// sort fields in declared order with a consistent direction. A shape with OR
// branches is matched only when every branch is individually covered by some
// index.
package match

import (
	"github.com/indexscout/index-scout/internal/catalog"
	"github.com/indexscout/index-scout/internal/shape"
)

// Result reports a matching decision.
type Result struct {
	Matched bool

	// IndexNames holds the covering index per branch when matched.
	IndexNames []string
}

// Matches reports whether the catalog snapshot fully satisfies the shape.
// An empty snapshot matches only shapes with nothing to serve.
func Matches(s *shape.QueryShape, indexes []catalog.IndexDefinition) Result {
	names := make([]string, 0, len(s.Branches))

	for _, branch := range s.Branches {
		covered := false
		for _, idx := range indexes {
			if branchCovered(branch, s.Sort, idx) {
				names = append(names, idx.Name)
				covered = true
				break
			}
		}
		if !covered {
			if branchEmpty(branch, s.Sort) {
				// Nothing for an index to serve; trivially covered.
				names = append(names, "")
				continue
			}
			return Result{}
		}
	}

	return Result{Matched: true, IndexNames: names}
}

// branchEmpty reports a branch with no orderable and no other-role demand.
func branchEmpty(b shape.Branch, sortFields []shape.SortField) bool {
	return len(b.Fields) == 0 && len(sortFields) == 0
}

// branchCovered applies the ordering rules of one branch against one index.
func branchCovered(b shape.Branch, sortFields []shape.SortField, idx catalog.IndexDefinition) bool {
	eq := b.Equality()
	ranges := b.Ranges()
	others := b.Others()

	// Two range fields cannot be served by a single index.
	if len(ranges) > 1 {
		return false
	}

	// Sort components already pinned by an equality match, or ordered by the
	// range key position, impose no separate suffix requirement.
	effSort := effectiveSort(sortFields, eq, ranges)

	if len(eq)+len(ranges)+len(effSort) == 0 {
		// Only other-role fields discriminate. Ordering rules cannot apply;
		// require the index to at least list every such field.
		return containsAll(idx, others)
	}

	if len(idx.Keys) < len(eq) {
		return false
	}

	// Rule 1: equality fields occupy the index prefix in any relative order.
	eqSet := make(map[string]bool, len(eq))
	for _, f := range eq {
		eqSet[f.Name] = true
	}
	for i := 0; i < len(eq); i++ {
		key := idx.Keys[i]
		if key.Order == 0 || !eqSet[key.Field] {
			return false
		}
	}
	pos := len(eq)

	// Rule 2: the single range field sits immediately after the prefix.
	if len(ranges) == 1 {
		if pos >= len(idx.Keys) {
			return false
		}
		key := idx.Keys[pos]
		if key.Order == 0 || key.Field != ranges[0].Name {
			return false
		}
		pos++
	}

	// Rule 3: sort fields follow in exact order, all forward or all reversed.
	if len(effSort) > 0 {
		if pos+len(effSort) > len(idx.Keys) {
			return false
		}
		direction := 0
		for i, sf := range effSort {
			key := idx.Keys[pos+i]
			if key.Order == 0 || key.Field != sf.Name {
				return false
			}
			d := key.Order * sf.Order
			if direction == 0 {
				direction = d
			} else if d != direction {
				return false
			}
		}
	}

	// Rule 4: other-role fields are ignored for ordering once orderable
	// fields are covered.
	return true
}

// effectiveSort drops sort components named by the branch's equality or
// range fields; their positions in the prefix already provide the order.
func effectiveSort(sortFields []shape.SortField, eq, ranges []shape.Field) []shape.SortField {
	pinned := make(map[string]bool, len(eq)+len(ranges))
	for _, f := range eq {
		pinned[f.Name] = true
	}
	for _, f := range ranges {
		pinned[f.Name] = true
	}

	out := make([]shape.SortField, 0, len(sortFields))
	for _, sf := range sortFields {
		if pinned[sf.Name] {
			continue
		}
		out = append(out, sf)
	}
	return out
}

// containsAll reports whether the index lists every field, at any position.
func containsAll(idx catalog.IndexDefinition, fields []shape.Field) bool {
	if len(fields) == 0 {
		return false
	}
	listed := make(map[string]bool, len(idx.Keys))
	for _, key := range idx.Keys {
		listed[key.Field] = true
	}
	for _, f := range fields {
		if !listed[f.Name] {
			return false
		}
	}
	return true
}
