package source

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/indexscout/index-scout/internal/config"
	"github.com/indexscout/index-scout/internal/pkg/errors"
	"github.com/indexscout/index-scout/internal/pkg/logger"
)

// Options carries dependencies the factory cannot build itself.
type Options struct {
	// Watch selects streaming behavior where the backend supports both.
	Watch bool

	// Mongo is an established client, required for the profiler source.
	// Connection and authentication are owned by the caller.
	Mongo *mongo.Client

	Log *logger.Logger
}

// New creates a Source based on the configuration.
func New(ctx context.Context, cfg config.SourceConfig, opts Options) (Source, error) {
	switch strings.ToLower(cfg.Type) {
	case "file":
		if opts.Watch {
			return nil, errors.ValidationError("file source does not support watch mode")
		}
		return NewFileSource(cfg.Path)

	case "profiler", "":
		if opts.Mongo == nil {
			return nil, errors.ValidationError("profiler source requires a mongo client")
		}
		return NewProfilerSource(opts.Mongo, cfg.Database, opts.Watch, opts.Log), nil

	case "kafka":
		brokers := ParseBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.ValidationError("kafka brokers not configured")
		}
		return NewKafkaSource(KafkaConfig{
			Brokers:       brokers,
			Topic:         cfg.KafkaTopic,
			ConsumerGroup: cfg.KafkaGroup,
		}, opts.Log)

	case "redis":
		return NewRedisSource(ctx, cfg.RedisURL, cfg.RedisStream, opts.Watch)

	case "memory":
		return NewMemorySource(), nil

	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown source type: %s", cfg.Type))
	}
}
