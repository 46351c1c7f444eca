// Package shape derives canonical, value-independent query shapes.
//
// A shape records which fields a query touches and how: equality, range, or
// other (existence, membership, regex and similar). Literal values are
// erased, so two queries differing only in constants share a shape. Shapes
// are the unit of aggregation and index matching.
package shape

import (
	"sort"
	"strconv"
	"strings"
)

// FieldRole classifies how a filter constrains a field.
type FieldRole int

const (
	// RoleEquality covers implicit matches and explicit $eq.
	RoleEquality FieldRole = iota

	// RoleRange covers the $gt/$gte/$lt/$lte family.
	RoleRange

	// RoleOther covers everything else: existence, membership, negation,
	// regex, text search. Not servable by index ordering rules.
	RoleOther
)

// String returns the role name.
func (r FieldRole) String() string {
	switch r {
	case RoleEquality:
		return "equality"
	case RoleRange:
		return "range"
	default:
		return "other"
	}
}

// Field is one role-tagged filter field.
type Field struct {
	Name string
	Role FieldRole
}

// SortField is one ordered sort component with its declared direction.
type SortField struct {
	Name  string
	Order int // 1 ascending, -1 descending
}

// Branch is the field-role set of one OR alternative (or the whole filter
// when no OR is present). Fields keep first-seen order.
type Branch struct {
	Fields []Field
}

// fieldsWithRole returns the branch fields holding a role, first-seen order.
func (b Branch) fieldsWithRole(role FieldRole) []Field {
	var out []Field
	for _, f := range b.Fields {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return out
}

// Equality returns the equality-role fields in first-seen order.
func (b Branch) Equality() []Field { return b.fieldsWithRole(RoleEquality) }

// Ranges returns the range-role fields in first-seen order.
func (b Branch) Ranges() []Field { return b.fieldsWithRole(RoleRange) }

// Others returns the other-role fields in first-seen order.
func (b Branch) Others() []Field { return b.fieldsWithRole(RoleOther) }

// QueryShape is a canonical description of a query event. Two events with
// identical role assignments and sort lists share a shape regardless of the
// literal values they carry.
type QueryShape struct {
	NS  string
	Op  string
	Key string // canonical aggregation key, precomputed at extraction

	// Branches holds one entry per OR alternative; exactly one entry for
	// queries without OR. A shape is matched only when every branch is
	// individually covered.
	Branches []Branch

	// Sort is the ordered, signed sort field list.
	Sort []SortField
}

// Indexable reports whether any branch or the sort list names a field an
// index could serve. Unfiltered scans are not indexable.
func (s *QueryShape) Indexable() bool {
	if len(s.Sort) > 0 {
		return true
	}
	for _, b := range s.Branches {
		if len(b.Fields) > 0 {
			return true
		}
	}
	return false
}

// canonicalKey builds the aggregation key. Field order inside a role group
// is irrelevant to shape identity, so groups are sorted in the key; sort
// order and branch order are significant and preserved.
func canonicalKey(ns, op string, branches []Branch, sortFields []SortField) string {
	var sb strings.Builder
	sb.WriteString(ns)
	sb.WriteByte('|')
	sb.WriteString(op)

	for _, b := range branches {
		sb.WriteString("|{")
		for i, role := range []FieldRole{RoleEquality, RoleRange, RoleOther} {
			names := make([]string, 0, len(b.Fields))
			for _, f := range b.fieldsWithRole(role) {
				names = append(names, f.Name)
			}
			sort.Strings(names)
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(role.String())
			sb.WriteByte(':')
			sb.WriteString(strings.Join(names, ","))
		}
		sb.WriteByte('}')
	}

	sb.WriteString("|sort:")
	for i, sf := range sortFields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(sf.Name)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(sf.Order))
	}

	return sb.String()
}
