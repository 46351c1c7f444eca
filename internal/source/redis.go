package source

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/indexscout/index-scout/internal/pkg/errors"
)

// payloadField is the stream entry field carrying the extended-JSON event.
const payloadField = "event"

// RedisSource reads query events from a Redis Stream. Batch mode drains the
// stream from the beginning and stops; watch mode blocks on XREAD for newly
// appended entries.
type RedisSource struct {
	client *redis.Client
	stream string
	watch  bool
	lastID string
	buf    []redis.XMessage
}

// NewRedisSource connects to Redis and positions the source at the start of
// the stream (batch) or at its current tail (watch).
func NewRedisSource(ctx context.Context, url, stream string, watch bool) (*RedisSource, error) {
	if stream == "" {
		return nil, errors.ValidationError("redis stream name cannot be empty")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid redis url", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.SourceUnavailable("connect to redis", err)
	}

	lastID := "0"
	if watch {
		lastID = "$"
	}

	return &RedisSource{
		client: client,
		stream: stream,
		watch:  watch,
		lastID: lastID,
	}, nil
}

// Next returns the next stream entry, blocking in watch mode.
func (s *RedisSource) Next(ctx context.Context) (RawEvent, error) {
	for len(s.buf) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		args := &redis.XReadArgs{
			Streams: []string{s.stream, s.lastID},
			Count:   100,
			Block:   -1, // no blocking; drain and stop
		}
		if s.watch {
			args.Block = 0 // block until an entry arrives or ctx is cancelled
		}

		streams, err := s.client.XRead(ctx, args).Result()
		if err == redis.Nil {
			return nil, ErrEndOfStream
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, errors.SourceUnavailable(fmt.Sprintf("read stream %s", s.stream), err)
		}

		for _, st := range streams {
			s.buf = append(s.buf, st.Messages...)
		}
	}

	msg := s.buf[0]
	s.buf = s.buf[1:]
	s.lastID = msg.ID

	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		return nil, errors.MalformedEvent(fmt.Sprintf("entry %s: missing %q field", msg.ID, payloadField))
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(payload), false, &doc); err != nil {
		return nil, errors.MalformedEvent(fmt.Sprintf("entry %s: %v", msg.ID, err))
	}
	return doc, nil
}

// Close closes the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
