package event

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// lookup finds a top-level key in an ordered document.
func lookup(doc bson.D, key string) (any, bool) {
	for _, el := range doc {
		if el.Key == key {
			return el.Value, true
		}
	}
	return nil, false
}

// asDoc coerces a decoded value to an ordered document. Maps lose their
// original key order; sources in this repo decode into bson.D, so the map
// paths only cover hand-built or foreign inputs.
func asDoc(v any) (bson.D, bool) {
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

// asArray coerces a decoded value to a slice.
func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	default:
		return nil, false
	}
}

// asString coerces a decoded value to a string.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asInt64 coerces any BSON numeric to int64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// asTime coerces a decoded value to a time.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time(), true
	case time.Time:
		return t, true
	default:
		return time.Time{}, false
	}
}
