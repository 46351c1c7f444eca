package source

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/indexscout/index-scout/internal/pkg/errors"
	"github.com/indexscout/index-scout/internal/pkg/logger"
)

// ProfilerSource reads query events from a database's system.profile
// collection. In batch mode it scans the collection once; in watch mode it
// holds a tailable await cursor open and re-establishes it when the capped
// collection rolls over.
type ProfilerSource struct {
	coll   *mongo.Collection
	db     string
	watch  bool
	cursor *mongo.Cursor
	lastTS time.Time
	log    *logger.Logger
}

// NewProfilerSource creates a profiler source over an established client.
// Connection and authentication are the caller's concern.
func NewProfilerSource(client *mongo.Client, db string, watch bool, log *logger.Logger) *ProfilerSource {
	if log == nil {
		log = logger.Default()
	}
	return &ProfilerSource{
		coll:  client.Database(db).Collection("system.profile"),
		db:    db,
		watch: watch,
		log:   log.WithSource("profiler"),
	}
}

// filter excludes the profiler's own bookkeeping and, in watch mode,
// everything at or before the last seen timestamp.
func (s *ProfilerSource) filter() bson.D {
	f := bson.D{
		{Key: "ns", Value: bson.D{{Key: "$ne", Value: s.db + ".system.profile"}}},
	}
	if s.watch && !s.lastTS.IsZero() {
		f = append(f, bson.E{Key: "ts", Value: bson.D{{Key: "$gt", Value: primitive.NewDateTimeFromTime(s.lastTS)}}})
	}
	return f
}

func (s *ProfilerSource) openCursor(ctx context.Context) error {
	opts := options.Find()
	if s.watch {
		// system.profile is capped, so a tailable await cursor suspends
		// server-side instead of busy-polling.
		opts.SetCursorType(options.TailableAwait).SetMaxAwaitTime(time.Second)
	}

	cursor, err := s.coll.Find(ctx, s.filter(), opts)
	if err != nil {
		return errors.SourceUnavailable(fmt.Sprintf("query %s.system.profile", s.db), err)
	}
	s.cursor = cursor
	return nil
}

// Next returns the next profiling document. In watch mode it blocks until a
// new document is written or the context is cancelled.
func (s *ProfilerSource) Next(ctx context.Context) (RawEvent, error) {
	if s.cursor == nil {
		if s.watch && s.lastTS.IsZero() {
			// Only report activity from this point on.
			s.lastTS = time.Now()
		}
		if err := s.openCursor(ctx); err != nil {
			return nil, err
		}
	}

	for {
		if s.cursor.Next(ctx) {
			var doc bson.D
			if err := s.cursor.Decode(&doc); err != nil {
				return nil, errors.MalformedEvent(fmt.Sprintf("decode profile document: %v", err))
			}
			s.observeTS(doc)
			return doc, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.cursor.Err(); err != nil {
			return nil, errors.SourceUnavailable(fmt.Sprintf("read %s.system.profile", s.db), err)
		}

		if !s.watch {
			return nil, ErrEndOfStream
		}

		// A dead tailable cursor means the capped collection rolled over
		// past our position. Resume after the last document we saw.
		s.log.Debug("profile cursor expired, reopening", "last_ts", s.lastTS)
		_ = s.cursor.Close(ctx)
		s.cursor = nil
		if err := s.openCursor(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *ProfilerSource) observeTS(doc bson.D) {
	for _, el := range doc {
		if el.Key != "ts" {
			continue
		}
		switch v := el.Value.(type) {
		case primitive.DateTime:
			s.lastTS = v.Time()
		case time.Time:
			s.lastTS = v
		}
		return
	}
}

// Close releases the cursor.
func (s *ProfilerSource) Close() error {
	if s.cursor == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.cursor.Close(ctx)
}
