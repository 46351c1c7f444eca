package recommend

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestAggregator_DeduplicatesShapes(t *testing.T) {
	agg := NewAggregator()

	// Same shape, different literal values.
	agg.Observe(shapeOf(bson.D{{Key: "status", Value: "open"}}, nil), 10*time.Millisecond, false)
	agg.Observe(shapeOf(bson.D{{Key: "status", Value: "closed"}}, nil), 30*time.Millisecond, false)

	shapes := agg.Shapes()
	if len(shapes) != 1 {
		t.Fatalf("shapes = %d, want 1", len(shapes))
	}
	if shapes[0].Count != 2 {
		t.Errorf("Count = %d, want 2", shapes[0].Count)
	}
	if shapes[0].TotalTime != 40*time.Millisecond {
		t.Errorf("TotalTime = %v, want 40ms", shapes[0].TotalTime)
	}
	if shapes[0].AvgTime() != 20*time.Millisecond {
		t.Errorf("AvgTime() = %v, want 20ms", shapes[0].AvgTime())
	}
}

func TestAggregator_MergesRecommendationsByFieldList(t *testing.T) {
	agg := NewAggregator()

	// Distinct shapes that synthesize the same field list merge into one
	// recommendation.
	agg.Observe(shapeOf(bson.D{{Key: "a", Value: 1}}, bson.D{{Key: "b", Value: 1}}), 5*time.Millisecond, false)
	agg.Observe(shapeOf(bson.D{
		{Key: "a", Value: 1},
		{Key: "b", Value: bson.D{{Key: "$gt", Value: 3}}},
	}, nil), 7*time.Millisecond, false)

	if got := len(agg.Shapes()); got != 2 {
		t.Fatalf("shapes = %d, want 2", got)
	}
	recs := agg.Recommendations()
	if len(recs) != 1 {
		t.Fatalf("recommendations = %d, want 1", len(recs))
	}
	if recs[0].Count != 2 {
		t.Errorf("Count = %d, want 2", recs[0].Count)
	}
	if recs[0].TotalTime != 12*time.Millisecond {
		t.Errorf("TotalTime = %v, want 12ms", recs[0].TotalTime)
	}
}

func TestAggregator_MatchedShapesRecommendNothing(t *testing.T) {
	agg := NewAggregator()
	agg.Observe(shapeOf(bson.D{{Key: "a", Value: 1}}, nil), time.Millisecond, true)

	if len(agg.Recommendations()) != 0 {
		t.Error("matched shape should not produce a recommendation")
	}
	if !agg.Shapes()[0].Matched {
		t.Error("shape stat should record the matched decision")
	}
}

func TestAggregator_ReaggregationAddsCounts(t *testing.T) {
	// Observing the same event stream twice doubles counts rather than
	// duplicating shapes or recommendations.
	agg := NewAggregator()
	events := []bson.D{
		{{Key: "a", Value: 1}},
		{{Key: "a", Value: 2}},
		{{Key: "b", Value: bson.D{{Key: "$gt", Value: 0}}}},
	}

	run := func() {
		for _, f := range events {
			agg.Observe(shapeOf(f, nil), time.Millisecond, false)
		}
	}
	run()
	run()

	shapes := agg.Shapes()
	if len(shapes) != 2 {
		t.Fatalf("shapes = %d, want 2", len(shapes))
	}
	if shapes[0].Count != 4 || shapes[1].Count != 2 {
		t.Errorf("counts = [%d %d], want [4 2]", shapes[0].Count, shapes[1].Count)
	}

	recs := agg.Recommendations()
	if len(recs) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(recs))
	}
	if recs[0].Count != 4 || recs[1].Count != 2 {
		t.Errorf("rec counts = [%d %d], want [4 2]", recs[0].Count, recs[1].Count)
	}
}

func TestAggregator_StableOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Observe(shapeOf(bson.D{{Key: "z", Value: 1}}, nil), 0, false)
	agg.Observe(shapeOf(bson.D{{Key: "a", Value: 1}}, nil), 0, false)
	agg.Observe(shapeOf(bson.D{{Key: "z", Value: 9}}, nil), 0, false)

	recs := agg.Recommendations()
	if len(recs) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(recs))
	}
	if recs[0].Fields[0].Name != "z" || recs[1].Fields[0].Name != "a" {
		t.Errorf("order = [%s %s], want first-seen [z a]",
			recs[0].Fields[0].Name, recs[1].Fields[0].Name)
	}
}

func TestAggregator_MatchFlipRetainsRecommendation(t *testing.T) {
	// A later matched observation updates the shape stat but leaves the
	// recommendation accumulated so far in place.
	agg := NewAggregator()
	s := bson.D{{Key: "a", Value: 1}}

	agg.Observe(shapeOf(s, nil), time.Millisecond, false)
	agg.Observe(shapeOf(s, nil), time.Millisecond, true)

	if !agg.Shapes()[0].Matched {
		t.Error("shape stat should reflect the latest decision")
	}
	recs := agg.Recommendations()
	if len(recs) != 1 || recs[0].Count != 1 {
		t.Errorf("recommendations = %v, want one with count 1", recs)
	}
}
