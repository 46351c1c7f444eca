package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoFetcher lists indexes through an established client.
type MongoFetcher struct {
	client *mongo.Client
}

// NewMongoFetcher creates a fetcher over a client. Connection and
// authentication are the caller's concern.
func NewMongoFetcher(client *mongo.Client) *MongoFetcher {
	return &MongoFetcher{client: client}
}

// indexSpec is the wire shape of one listIndexes result.
type indexSpec struct {
	Name string `bson:"name"`
	Key  bson.D `bson:"key"`
}

// FetchIndexes lists the indexes of a db.collection namespace.
func (f *MongoFetcher) FetchIndexes(ctx context.Context, ns string) ([]IndexDefinition, error) {
	db, coll, err := SplitNS(ns)
	if err != nil {
		return nil, err
	}

	cursor, err := f.client.Database(db).Collection(coll).Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var defs []IndexDefinition
	for cursor.Next(ctx) {
		var spec indexSpec
		if err := cursor.Decode(&spec); err != nil {
			return nil, err
		}
		defs = append(defs, IndexDefinition{
			NS:   ns,
			Name: spec.Name,
			Keys: decodeKeys(spec.Key),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}

// decodeKeys maps a key document to ordered index keys. Numeric specs keep
// their sign; text, hashed and geo specs become non-orderable keys.
func decodeKeys(key bson.D) []IndexKey {
	keys := make([]IndexKey, 0, len(key))
	for _, el := range key {
		order := 0
		switch v := el.Value.(type) {
		case int:
			order = sign(float64(v))
		case int32:
			order = sign(float64(v))
		case int64:
			order = sign(float64(v))
		case float64:
			order = sign(v)
		}
		keys = append(keys, IndexKey{Field: el.Key, Order: order})
	}
	return keys
}

func sign(n float64) int {
	if n < 0 {
		return -1
	}
	return 1
}

// SplitNS splits "db.collection" at the first dot; collection names may
// themselves contain dots.
func SplitNS(ns string) (db, coll string, err error) {
	i := strings.Index(ns, ".")
	if i <= 0 || i == len(ns)-1 {
		return "", "", fmt.Errorf("invalid namespace %q", ns)
	}
	return ns[:i], ns[i+1:], nil
}
