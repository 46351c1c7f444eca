package shape

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/indexscout/index-scout/internal/event"
)

// Extract derives the canonical shape of a query event. Extraction is
// deterministic: the same event always yields the same shape and key.
func Extract(ev *event.QueryEvent) *QueryShape {
	base := newFieldSet()
	var groups [][]*fieldSet

	walkFilter(ev.Filter, base, &groups)

	var branches []Branch
	if len(groups) == 0 {
		branches = []Branch{{Fields: base.ordered()}}
	} else {
		// Each OR alternative becomes its own branch, carrying the fields
		// of the surrounding AND context. Multiple OR groups are not
		// cross-producted; every alternative of every group stands alone.
		for _, alternatives := range groups {
			for _, alt := range alternatives {
				merged := base.clone()
				for _, f := range alt.ordered() {
					merged.add(f.Name, f.Role)
				}
				branches = append(branches, Branch{Fields: merged.ordered()})
			}
		}
	}

	sortFields := extractSort(ev.Sort)

	return &QueryShape{
		NS:       ev.NS,
		Op:       ev.Op,
		Key:      canonicalKey(ev.NS, ev.Op, branches, sortFields),
		Branches: branches,
		Sort:     sortFields,
	}
}

// walkFilter flattens $and clauses into the enclosing field set and records
// $or/$nor clauses as alternative groups.
func walkFilter(doc bson.D, base *fieldSet, groups *[][]*fieldSet) {
	for _, el := range doc {
		switch {
		case el.Key == "$and":
			if subs, ok := asDocs(el.Value); ok {
				for _, sub := range subs {
					walkFilter(sub, base, groups)
				}
			}

		case el.Key == "$or" || el.Key == "$nor":
			subs, ok := asDocs(el.Value)
			if !ok {
				continue
			}
			alternatives := make([]*fieldSet, 0, len(subs))
			for _, sub := range subs {
				alternatives = append(alternatives, flatten(sub))
			}
			*groups = append(*groups, alternatives)

		case strings.HasPrefix(el.Key, "$"):
			// Non-field operators ($text, $where, $expr, $comment) do not
			// name an indexable field.
			continue

		default:
			base.add(el.Key, roleOf(el.Value))
		}
	}
}

// flatten collapses one OR alternative to a single field set; nested OR
// groups inside an alternative are unioned into it rather than expanded.
func flatten(doc bson.D) *fieldSet {
	fs := newFieldSet()
	var nested [][]*fieldSet
	walkFilter(doc, fs, &nested)
	for _, alternatives := range nested {
		for _, alt := range alternatives {
			for _, f := range alt.ordered() {
				fs.add(f.Name, f.Role)
			}
		}
	}
	return fs
}

// roleOf classifies a filter value. Scalars and exact documents are
// equality; operator documents are classified by their strongest operator.
func roleOf(v any) FieldRole {
	doc, ok := toDoc(v)
	if !ok {
		if _, isRegex := v.(primitive.Regex); isRegex {
			return RoleOther
		}
		return RoleEquality
	}

	if len(doc) == 0 || !strings.HasPrefix(doc[0].Key, "$") {
		// Exact document match.
		return RoleEquality
	}

	role := RoleOther
	for _, el := range doc {
		switch el.Key {
		case "$eq":
			return RoleEquality
		case "$gt", "$gte", "$lt", "$lte":
			role = RoleRange
		}
	}
	return role
}

// extractSort converts a sort document to the ordered signed field list,
// dropping duplicates and $meta components.
func extractSort(sortDoc bson.D) []SortField {
	if len(sortDoc) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(sortDoc))
	out := make([]SortField, 0, len(sortDoc))
	for _, el := range sortDoc {
		if seen[el.Key] {
			continue
		}
		order, ok := sortOrder(el.Value)
		if !ok {
			continue
		}
		seen[el.Key] = true
		out = append(out, SortField{Name: el.Key, Order: order})
	}
	return out
}

func sortOrder(v any) (int, bool) {
	var n float64
	switch num := v.(type) {
	case int:
		n = float64(num)
	case int32:
		n = float64(num)
	case int64:
		n = float64(num)
	case float64:
		n = num
	default:
		// $meta and friends have no index direction.
		return 0, false
	}
	if n < 0 {
		return -1, true
	}
	return 1, true
}

// fieldSet accumulates role-tagged fields preserving first-seen order. A
// field named in more than one role keeps its strongest role: equality over
// range over other.
type fieldSet struct {
	fields []Field
	index  map[string]int
}

func newFieldSet() *fieldSet {
	return &fieldSet{index: make(map[string]int)}
}

func (fs *fieldSet) add(name string, role FieldRole) {
	if i, ok := fs.index[name]; ok {
		if role < fs.fields[i].Role {
			fs.fields[i].Role = role
		}
		return
	}
	fs.index[name] = len(fs.fields)
	fs.fields = append(fs.fields, Field{Name: name, Role: role})
}

func (fs *fieldSet) ordered() []Field {
	return fs.fields
}

func (fs *fieldSet) clone() *fieldSet {
	out := newFieldSet()
	for _, f := range fs.fields {
		out.add(f.Name, f.Role)
	}
	return out
}

// toDoc coerces nested filter values to ordered documents.
func toDoc(v any) (bson.D, bool) {
	switch d := v.(type) {
	case bson.D:
		return d, true
	case bson.M:
		out := make(bson.D, 0, len(d))
		for k, val := range d {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, true
	case map[string]any:
		out := make(bson.D, 0, len(d))
		for k, val := range d {
			out = append(out, bson.E{Key: k, Value: val})
		}
		return out, true
	default:
		return nil, false
	}
}

// asDocs coerces an $and/$or/$nor payload to a document slice.
func asDocs(v any) ([]bson.D, bool) {
	var arr []any
	switch a := v.(type) {
	case bson.A:
		arr = a
	case []any:
		arr = a
	case []bson.D:
		return a, true
	default:
		return nil, false
	}

	out := make([]bson.D, 0, len(arr))
	for _, item := range arr {
		doc, ok := toDoc(item)
		if !ok {
			return nil, false
		}
		out = append(out, doc)
	}
	return out, true
}
