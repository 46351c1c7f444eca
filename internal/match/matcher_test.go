package match

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/indexscout/index-scout/internal/catalog"
	"github.com/indexscout/index-scout/internal/event"
	"github.com/indexscout/index-scout/internal/shape"
)

func idx(name string, keys ...catalog.IndexKey) catalog.IndexDefinition {
	return catalog.IndexDefinition{NS: "shop.orders", Name: name, Keys: keys}
}

func key(field string, order int) catalog.IndexKey {
	return catalog.IndexKey{Field: field, Order: order}
}

func shapeOf(filter, sort bson.D) *shape.QueryShape {
	return shape.Extract(&event.QueryEvent{
		NS: "shop.orders", Op: event.OpFind, Filter: filter, Sort: sort,
	})
}

func TestMatches_OrderingRules(t *testing.T) {
	tests := []struct {
		name    string
		filter  bson.D
		sort    bson.D
		indexes []catalog.IndexDefinition
		want    bool
	}{
		{
			name:    "single equality on single-field index",
			filter:  bson.D{{Key: "a", Value: 1}},
			indexes: []catalog.IndexDefinition{idx("a_1", key("a", 1))},
			want:    true,
		},
		{
			name:    "equality on a longer index prefix",
			filter:  bson.D{{Key: "a", Value: 1}},
			indexes: []catalog.IndexDefinition{idx("a_1_x_1", key("a", 1), key("x", 1))},
			want:    true,
		},
		{
			name:    "equality not in prefix",
			filter:  bson.D{{Key: "a", Value: 1}},
			indexes: []catalog.IndexDefinition{idx("x_1_a_1", key("x", 1), key("a", 1))},
			want:    false,
		},
		{
			name: "equality prefix order free",
			filter: bson.D{
				{Key: "a", Value: 1},
				{Key: "b", Value: 2},
			},
			indexes: []catalog.IndexDefinition{idx("b_1_a_1", key("b", 1), key("a", 1))},
			want:    true,
		},
		{
			name: "range immediately after equalities",
			filter: bson.D{
				{Key: "a", Value: 1},
				{Key: "b", Value: bson.D{{Key: "$gt", Value: 5}}},
			},
			indexes: []catalog.IndexDefinition{idx("a_1_b_1", key("a", 1), key("b", 1))},
			want:    true,
		},
		{
			name: "range displaced by a stranger key",
			filter: bson.D{
				{Key: "a", Value: 1},
				{Key: "b", Value: bson.D{{Key: "$gt", Value: 5}}},
			},
			indexes: []catalog.IndexDefinition{idx("a_1_x_1_b_1", key("a", 1), key("x", 1), key("b", 1))},
			want:    false,
		},
		{
			name: "two range fields never match",
			filter: bson.D{
				{Key: "a", Value: bson.D{{Key: "$gt", Value: 1}}},
				{Key: "b", Value: bson.D{{Key: "$lt", Value: 9}}},
			},
			indexes: []catalog.IndexDefinition{idx("a_1_b_1", key("a", 1), key("b", 1))},
			want:    false,
		},
		{
			name: "equality then range then sort",
			filter: bson.D{
				{Key: "a", Value: 1},
				{Key: "b", Value: bson.D{{Key: "$gt", Value: 5}}},
			},
			sort: bson.D{{Key: "c", Value: 1}},
			indexes: []catalog.IndexDefinition{
				idx("a_1_b_1_c_1", key("a", 1), key("b", 1), key("c", 1)),
			},
			want: true,
		},
		{
			name: "sort fields in wrong order",
			sort: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 1}},
			indexes: []catalog.IndexDefinition{
				idx("b_1_a_1", key("b", 1), key("a", 1)),
			},
			want: false,
		},
		{
			name: "sort matched in reverse",
			sort: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: -1}},
			indexes: []catalog.IndexDefinition{
				idx("a_-1_b_1", key("a", -1), key("b", 1)),
			},
			want: true,
		},
		{
			name: "mixed sort direction rejected",
			sort: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: -1}},
			indexes: []catalog.IndexDefinition{
				idx("a_1_b_1", key("a", 1), key("b", 1)),
			},
			want: false,
		},
		{
			name:   "sort pinned by equality drops from suffix",
			filter: bson.D{{Key: "a", Value: 1}},
			sort:   bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 1}},
			indexes: []catalog.IndexDefinition{
				idx("a_1_b_1", key("a", 1), key("b", 1)),
			},
			want: true,
		},
		{
			name:    "other-only filter requires listed fields",
			filter:  bson.D{{Key: "a", Value: bson.D{{Key: "$in", Value: bson.A{1, 2}}}}},
			indexes: []catalog.IndexDefinition{idx("x_1_a_1", key("x", 1), key("a", 1))},
			want:    true,
		},
		{
			name:    "other-only filter with field missing",
			filter:  bson.D{{Key: "a", Value: bson.D{{Key: "$in", Value: bson.A{1, 2}}}}},
			indexes: []catalog.IndexDefinition{idx("x_1", key("x", 1))},
			want:    false,
		},
		{
			name:    "non-orderable key cannot serve equality",
			filter:  bson.D{{Key: "a", Value: 1}},
			indexes: []catalog.IndexDefinition{idx("a_hashed", key("a", 0))},
			want:    false,
		},
		{
			name:    "non-orderable key cannot serve sort",
			sort:    bson.D{{Key: "a", Value: 1}},
			indexes: []catalog.IndexDefinition{idx("a_text", key("a", 0))},
			want:    false,
		},
		{
			name:    "no indexes",
			filter:  bson.D{{Key: "a", Value: 1}},
			indexes: nil,
			want:    false,
		},
		{
			name: "second index covers",
			filter: bson.D{
				{Key: "a", Value: 1},
			},
			indexes: []catalog.IndexDefinition{
				idx("x_1", key("x", 1)),
				idx("a_1", key("a", 1)),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Matches(shapeOf(tt.filter, tt.sort), tt.indexes)
			if res.Matched != tt.want {
				t.Errorf("Matches() = %v, want %v", res.Matched, tt.want)
			}
		})
	}
}

func TestMatches_OrBranches(t *testing.T) {
	// Each OR alternative needs its own covering index.
	s := shapeOf(bson.D{
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "a", Value: 1}},
			bson.D{{Key: "b", Value: 1}},
		}},
	}, nil)

	both := []catalog.IndexDefinition{
		idx("a_1", key("a", 1)),
		idx("b_1", key("b", 1)),
	}
	res := Matches(s, both)
	if !res.Matched {
		t.Fatal("Matches() = false, want both branches covered")
	}
	if len(res.IndexNames) != 2 || res.IndexNames[0] != "a_1" || res.IndexNames[1] != "b_1" {
		t.Errorf("IndexNames = %v, want [a_1 b_1]", res.IndexNames)
	}

	onlyA := []catalog.IndexDefinition{idx("a_1", key("a", 1))}
	if Matches(s, onlyA).Matched {
		t.Error("Matches() = true with one branch uncovered")
	}
}

func TestMatches_EmptyShape(t *testing.T) {
	// A collection scan demands nothing of the catalog.
	s := shapeOf(nil, nil)
	if !Matches(s, nil).Matched {
		t.Error("empty shape should match trivially")
	}
}
